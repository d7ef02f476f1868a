package testbed

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Model indices inside the scene's model set.
const (
	ModelSquare uint32 = iota
	ModelWeirdSquare
	ModelCube

	modelCount
)

func vertex(x, y, z, r, g, b float32) metadata.Vertex {
	return metadata.Vertex{
		Position: math.NewVec3(x, y, z),
		Color:    math.NewVec3(r, g, b),
	}
}

func squareMesh() renderer.Mesh {
	return renderer.Mesh{
		Name: "square",
		Vertices: []metadata.Vertex{
			vertex(-0.5, -0.5, 0.0, 1.0, 0.0, 0.0),
			vertex(0.5, -0.5, 0.0, 0.0, 1.0, 0.0),
			vertex(0.5, 0.5, 0.0, 0.0, 0.0, 1.0),
			vertex(-0.5, 0.5, 0.0, 1.0, 1.0, 1.0),
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0},
	}
}

// weirdSquareMesh has one corner pulled out and is wound both ways.
func weirdSquareMesh() renderer.Mesh {
	return renderer.Mesh{
		Name: "weird_square",
		Vertices: []metadata.Vertex{
			vertex(-0.5, -0.5, 0.0, 1.0, 0.0, 0.0),
			vertex(0.5, -0.5, 0.0, 0.0, 1.0, 0.0),
			vertex(0.5, 0.5, 0.0, 0.0, 0.0, 1.0),
			vertex(-1.0, 1.0, 0.0, 0.0, 0.0, 0.0),
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0, 2, 1, 0, 0, 3, 2},
	}
}

func cubeMesh() renderer.Mesh {
	return renderer.Mesh{
		Name: "cube",
		Vertices: []metadata.Vertex{
			vertex(-1.0, -1.0, -1.0, 1.0, 0.5, 0.0),
			vertex(1.0, -1.0, -1.0, 1.0, 1.0, 0.0),
			vertex(1.0, 1.0, -1.0, 0.0, 1.0, 0.5),
			vertex(-1.0, 1.0, -1.0, 0.0, 0.5, 1.0),
			vertex(-1.0, -1.0, 1.0, 0.5, 0.0, 1.0),
			vertex(1.0, -1.0, 1.0, 1.0, 0.0, 0.5),
			vertex(1.0, 1.0, 1.0, 1.0, 1.0, 1.0),
			vertex(-1.0, 1.0, 1.0, 0.2, 0.2, 0.2),
		},
		Indices: []uint32{
			0, 1, 3, 3, 1, 2,
			1, 5, 2, 2, 5, 6,
			5, 4, 6, 6, 4, 7,
			4, 0, 7, 7, 0, 3,
			3, 2, 7, 7, 2, 6,
			4, 5, 0, 0, 5, 1,
		},
	}
}

// Meshes are ordered by model index.
func Meshes() []renderer.Mesh {
	return []renderer.Mesh{squareMesh(), weirdSquareMesh(), cubeMesh()}
}

// StaticGrid lays size x size objects on the XZ plane, cycling through the models.
func StaticGrid(size int, spacing float32) []metadata.InstanceRecord {
	records := make([]metadata.InstanceRecord, 0, size*size)
	half := float32(size-1) * spacing * 0.5
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			position := math.NewVec3(float32(col)*spacing-half, 0, float32(row)*spacing-half)
			model := uint32(row*size+col) % modelCount
			scale := float32(1.0)
			if model == ModelCube {
				scale = 0.5
			}
			records = append(records, metadata.InstanceRecord{
				Transform:  math.NewMat4TRS(position, 0, math.NewVec3(scale, scale, scale)),
				ModelIndex: model,
			})
		}
	}
	return records
}
