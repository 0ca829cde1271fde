// Package versioncmd implements the version command.
package versioncmd

import (
	"github.com/apiforge-io/apiforge/internal/cmd/base"
	"github.com/apiforge-io/apiforge/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return "Usage: apiforge version\n\n  Print the version of this binary.\n"
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}
