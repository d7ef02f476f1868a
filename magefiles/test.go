//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// headless lists the packages whose tests need no GPU or window system.
var headless = []string{
	"./engine/core/...",
	"./engine/containers/...",
	"./engine/math/...",
	"./engine/systems/...",
	"./engine/assets/...",
	"./engine/renderer",
	"./engine/renderer/buffers/...",
	"./engine/renderer/components/...",
	"./engine/renderer/frame/...",
	"./engine/renderer/memory/...",
	"./engine/renderer/swapchain/...",
}

// Runs the unit tests of every package.
func (Test) Unit() error {
	return run("go", "test", "-race", "-count=1", "./...").exec()
}

// Runs the tests of the packages that need no GPU or window system.
func (Test) Headless() error {
	return run("go", append([]string{"test", "-race", "-count=1"}, headless...)...).exec()
}
