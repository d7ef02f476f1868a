package containers

import "golang.org/x/exp/constraints"

/**
 * @brief A contiguous range inside a flattened sequence or a single
 * device allocation. Partitions are values: resizing one means building
 * a new table.
 */
type Partition[S constraints.Unsigned] struct {
	/** @brief Number of elements (or bytes) in the range. */
	Size S
	/** @brief Index of the first element (or byte) of the range. */
	Offset S
}

// End returns the first position past the partition.
func (p Partition[S]) End() S {
	return p.Offset + p.Size
}

func (p Partition[S]) IsEmpty() bool {
	return p.Size == 0
}

// Slice returns the sub-slice of data described by the partition.
func Slice[E any, S constraints.Unsigned](data []E, p Partition[S]) []E {
	return data[p.Offset:p.End():p.End()]
}

// PartitionSizes lays the sizes out back to back, in order.
func PartitionSizes[S constraints.Unsigned](sizes []S) []Partition[S] {
	out := make([]Partition[S], len(sizes))
	var offset S
	for i, size := range sizes {
		out[i] = Partition[S]{Size: size, Offset: offset}
		offset += size
	}
	return out
}

// TotalSize returns the end of the last partition, zero for an empty table.
func TotalSize[S constraints.Unsigned](parts []Partition[S]) S {
	if len(parts) == 0 {
		return 0
	}
	return parts[len(parts)-1].End()
}

// Contiguous reports whether the partitions are ordered, non overlapping
// and leave no holes, starting at zero.
func Contiguous[S constraints.Unsigned](parts []Partition[S]) bool {
	var next S
	for _, p := range parts {
		if p.Offset != next {
			return false
		}
		next = p.End()
	}
	return true
}
