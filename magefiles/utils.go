//go:build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

// step is one external command of a target.
type step struct {
	cmd  string
	args []string
	env  map[string]string
}

func run(cmd string, args ...string) *step {
	return &step{cmd: cmd, args: args, env: map[string]string{}}
}

func (s *step) with(key, value string) *step {
	s.env[key] = value
	return s
}

// exec prints the command, streams its output and fails with the exit code.
func (s *step) exec() error {
	fmt.Printf("Executing: %s %s\n", s.cmd, strings.Join(s.args, " "))
	ran, err := sh.Exec(s.env, os.Stdout, os.Stderr, s.cmd, s.args...)
	if err != nil {
		return mg.Fatalf(sh.ExitStatus(err), "%s failed: %v", s.cmd, err)
	}
	if !ran {
		return fmt.Errorf("%s not found in PATH", s.cmd)
	}
	return nil
}

// stale reports whether dst is missing or older than src.
func stale(dst, src string) (bool, error) {
	if mg.Verbose() {
		return true, nil
	}
	return target.Path(dst, src)
}
