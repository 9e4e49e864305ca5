// Command docchain inspects and maintains versioned document collections.
package main

import (
	"os"

	"docchain/cmd/docchain/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := commands.NewRootCmd()
	commands.SetVersionInfo(root, version, commit, date)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
