//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/magefile/mage/target"
)

// run executes command with its output attached to the terminal.
func run(command string, args ...string) error {
	fmt.Printf("Executing: %s %s\n", command, strings.Join(args, " "))
	if err := sh.RunV(command, args...); err != nil {
		return fmt.Errorf("error executing %s: %w", command, err)
	}
	return nil
}

// compileShader runs glslc on source unless <source>.spv is newer. Returns
// whether it compiled.
func compileShader(source string) (bool, error) {
	output := source + ".spv"
	stale, err := target.Path(output, source)
	if err != nil {
		return false, err
	}
	if !stale && !mg.Verbose() {
		return false, nil
	}
	out, err := sh.Output("glslc", source, "-o", output)
	if err != nil {
		fmt.Println("... failed command output:")
		fmt.Println(out)
		return false, fmt.Errorf("compiling %s: %w", source, err)
	}
	return true, nil
}
