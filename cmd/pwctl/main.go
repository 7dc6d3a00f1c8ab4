package main

import (
	"os"

	"github.com/portway-io/portway/cmd/pwctl/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Set version info for commands package
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	os.Exit(commands.Execute())
}
