// Package main is the entry point for the bugtracker terminal client.
package main

import (
	"os"

	"github.com/nhle/bugtracker/cmd/bugtracker/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
