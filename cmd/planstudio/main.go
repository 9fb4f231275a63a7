// Package main provides the entry point for the planstudio CLI.
package main

import (
	"fmt"
	"os"

	"github.com/planstudio-ai/planstudio/cmd/planstudio/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
