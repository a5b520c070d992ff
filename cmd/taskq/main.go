// Package main provides the entry point for the taskq CLI.
package main

import (
	"os"

	"github.com/randalmurphal/taskq/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
