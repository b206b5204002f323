// Package main provides the parasim command line.
package main

import (
	"os"

	"github.com/thebtf/parasim/internal/cli"
)

var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
