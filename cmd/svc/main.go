package main

import (
	"fmt"
	"os"

	"github.com/fivetwenty-io/svc-client/cmd/svc/commands"
	"github.com/fivetwenty-io/svc-client/pkg/plugins"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	plugins.Version = version

	if err := commands.NewRootCommand(version, commit, date).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
