//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed in a window.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "engine.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Renders 300 frames on the software device, no window or GPU required.
func (Run) Headless() error {
	fmt.Println("Run engine headless...")
	os.Setenv("ANIMA_HEADLESS", "true")
	os.Setenv("ANIMA_MAX_FRAMES", "300")
	defer os.Unsetenv("ANIMA_HEADLESS")
	defer os.Unsetenv("ANIMA_MAX_FRAMES")
	if _, err := executeCmd("go", withArgs("run", ".", "engine.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
