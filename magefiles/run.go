//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed with the sample configuration.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	return run("go", "run", ".").with("TESSERA_CONFIG", "config.toml").exec()
}
