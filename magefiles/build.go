//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const (
	shaderSrcDir = "shaders"
	shaderOutDir = "assets/shaders"
)

// Compiles every GLSL stage under shaders/ into assets/shaders/<name>.spv.
// Up to date modules are skipped unless -v is given.
func (Build) Shaders() error {
	if err := os.MkdirAll(shaderOutDir, 0o755); err != nil {
		return err
	}
	sources, err := shaderSources()
	if err != nil {
		return err
	}
	for _, src := range sources {
		out := filepath.Join(shaderOutDir, filepath.Base(src)+".spv")
		rebuild, err := stale(out, src)
		if err != nil {
			return err
		}
		if !rebuild {
			continue
		}
		if err := run("glslc", "--target-env=vulkan1.1", src, "-o", out).exec(); err != nil {
			return err
		}
	}
	fmt.Printf("%d shader stages up to date in %s\n", len(sources), shaderOutDir)
	return nil
}

// Builds the testbed binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	return run("go", "build", "-o", "bin/tessera", ".").exec()
}

func shaderSources() ([]string, error) {
	entries, err := os.ReadDir(shaderSrcDir)
	if err != nil {
		return nil, err
	}
	var sources []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.TrimPrefix(filepath.Ext(e.Name()), ".") {
		case "vert", "frag", "comp":
			sources = append(sources, filepath.Join(shaderSrcDir, e.Name()))
		}
	}
	return sources, nil
}
