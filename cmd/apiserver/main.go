// Command apiserver runs only the HTTP API server.  It is the serve
// subcommand packaged as its own binary for single-role deployments.
package main

import (
	"fmt"
	"os"

	"github.com/agencypulse/crosssell-intelligence/internal/interfaces/cli"
)

func main() {
	root := cli.NewRootCommand()
	root.SetArgs(append([]string{"serve"}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
