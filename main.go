/*
Testbed application driving the engine: a static grid of
models plus instances added and removed from the keyboard.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/testbed"
)

const configEnv = "TESSERA_CONFIG"

func main() {
	configPath := os.Getenv(configEnv)
	if configPath == "" {
		configPath = "config.toml"
	}
	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		core.LogFatal("invalid configuration %s: %s", configPath, err)
	}

	tb := testbed.NewTestGame(cfg)

	e, err := engine.New(tb.Game, configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initialization failed: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the loop owns the renderer, so the signal only asks it to stop
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal(runErr.Error())
	}
}
