// Package main is the vegabase command-line tool.
package main

import (
	"os"

	"github.com/kjrjay/vegabase/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
