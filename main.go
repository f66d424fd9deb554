/*
Renders the testbed scene. Pass the config path as the first argument,
engine.toml otherwise.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/saeedelsayed/vulkan-playground/engine"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/testbed"
)

func main() {
	if err := run(); err != nil {
		core.LogFatal("%+v", err)
	}
}

func run() error {
	configPath := "engine.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config, err := engine.LoadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	e, err := engine.New(testbed.NewTestGame(config).Game)
	if err != nil {
		return err
	}
	// Shutdown is safe after a partial Initialize.
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("shutdown: %s", err)
		}
	}()

	if err := e.Initialize(); err != nil {
		return err
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			e.Events().Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
		}
	}()

	return e.Run()
}
