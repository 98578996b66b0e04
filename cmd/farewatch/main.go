// Package main is the entry point for the farewatch CLI.
package main

import (
	"os"

	"github.com/jmylchreest/farewatch/cmd/farewatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
