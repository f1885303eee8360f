// ./main.go
package main

import (
	"github.com/sheasmith19/ezapp/cmd"
)

// main is the entry point for the ezapp CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
