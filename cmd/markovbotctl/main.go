// Package main is the entry point for the markovbotctl CLI.
//
// The binary builds, deploys and operates the markovbot Discord bot
// container. All functionality lives in the internal/cli package; this
// file only injects build-time version information and runs the root
// command.
package main

import (
	"github.com/saultyevil/markovbotctl/internal/cli"
)

// version, commit and date are set at build time via ldflags. They
// default to development placeholders.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
