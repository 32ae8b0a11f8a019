// vdfcache precomputes VDF proofs and serves them to local clients.
package main

import (
	"os"

	"github.com/spacemeshos/vdfcache/cmd"
	"github.com/spacemeshos/vdfcache/node"
)

var (
	version string
	commit  string
	branch  string
)

func main() { // run the app
	cmd.Version = version
	cmd.Commit = commit
	cmd.Branch = branch
	if err := node.GetCommand().Execute(); err != nil {
		// Do not print error as cmd.SilenceErrors is false
		// and the error was already printed
		os.Exit(1)
	}
}
