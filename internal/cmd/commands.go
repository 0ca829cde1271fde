package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/apiforge-io/apiforge/internal/cmd/base"
	"github.com/apiforge-io/apiforge/internal/cmd/commands/migratecmd"
	"github.com/apiforge-io/apiforge/internal/cmd/commands/serve"
	"github.com/apiforge-io/apiforge/internal/cmd/commands/versioncmd"
)

// Commands is the mapping of all available CLI commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	Commands = map[string]cli.CommandFactory{
		"serve": func() (cli.Command, error) {
			return &serve.Command{
				Command: base.NewCommand(log.Named("serve"), ui),
			}, nil
		},
		"migrate": func() (cli.Command, error) {
			return &migratecmd.Command{
				Command: base.NewCommand(log.Named("migrate"), ui),
			}, nil
		},
		"version": func() (cli.Command, error) {
			return &versioncmd.Command{
				Command: base.NewCommand(log, ui),
			}, nil
		},
	}
}
