//go:build mage
// +build mage

package main

import (
	"os"
	"os/exec"

	"github.com/grafana/grafana-plugin-sdk-go/build"
)

// Default builds the insight-dash app plugin backend for every platform.
func Default() error {
	return build.BuildAll()
}

// Clients builds dashclient and dashmcp into dist/.
func Clients() error {
	for _, name := range []string{"dashclient", "dashmcp"} {
		cmd := exec.Command("go", "build", "-o", "dist/"+name, "./cmd/"+name)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return err
		}
	}
	return nil
}
