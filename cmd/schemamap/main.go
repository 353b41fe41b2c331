// Package main provides the schemamap command-line tool.
package main

import (
	"os"

	"github.com/leapstack-labs/schemamap/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
