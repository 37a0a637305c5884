// orchard reconstructs clonal trees by running a parallel ensemble of
// seeded tree searches.
//
// Usage:
//
//	orchard run <file.ssm> [--chains N] [--pool-size N] [--seed S] [--beam-width W]
//	orchard config
package main

import (
	"os"

	"github.com/Iron-Ham/orchard/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
