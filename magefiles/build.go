//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the GLSL sources in shaders/ to SPIR-V under assets/shaders.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the engine binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Build engine...")
	if _, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "anima"), "."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	for _, stage := range []string{"vert", "frag"} {
		src := filepath.Join("shaders", "world."+stage)
		dst := filepath.Join(shadersOutDir, "world."+stage+".spv")
		if _, err := executeCmd("glslc", withArgs(src, "-o", dst), withStream()); err != nil {
			return err
		}
	}
	return nil
}
