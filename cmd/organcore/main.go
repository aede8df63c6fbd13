package main

import (
	"fmt"
	"os"

	"organcore/cmd/organcore/commands"
)

// Version information, set during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "organcore:", err)
		os.Exit(1)
	}
}
