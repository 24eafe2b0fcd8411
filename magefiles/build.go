//go:build mage

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderDir = "resources/shaders"

var glslStages = map[string]bool{".vert": true, ".frag": true, ".comp": true}

type Build mg.Namespace

// Compiles every GLSL shader under resources/shaders to <shader>.spv.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary into bin/.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	return run("go", "build", "-o", "bin/umbra", ".")
}

// Runs the unit tests.
func Test() error {
	return run("go", "test", "./...")
}

func buildShaders() error {
	if err := os.MkdirAll("resources/cache", 0o755); err != nil {
		return err
	}
	compiled := 0
	err := filepath.WalkDir(shaderDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !glslStages[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		done, err := compileShader(path)
		if done {
			compiled++
		}
		return err
	})
	fmt.Printf("%d shaders compiled.\n", compiled)
	return err
}
