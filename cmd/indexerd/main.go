// Package main provides the entry point for the indexerd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/codegraph-dev/indexer/cmd/indexerd/commands"
	"github.com/codegraph-dev/indexer/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
