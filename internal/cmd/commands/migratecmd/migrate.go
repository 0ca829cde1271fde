// Package migratecmd implements the schema migration command.
package migratecmd

import (
	"flag"
	"fmt"

	"github.com/apiforge-io/apiforge/internal/cmd/base"
	"github.com/apiforge-io/apiforge/internal/config"
	"github.com/apiforge-io/apiforge/internal/migrate"
	"github.com/apiforge-io/apiforge/pkg/database"
)

type Command struct {
	*base.Command

	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Apply pending database schema migrations"
}

func (c *Command) Help() string {
	return `Usage: apiforge migrate -config=config.hcl

  Apply all pending database schema migrations and print the resulting
  schema version.
`
}

func (c *Command) Run(args []string) int {
	f := flag.NewFlagSet("migrate", flag.ContinueOnError)
	f.StringVar(&c.flagConfig, "config", "", "Path to the configuration file")
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagConfig == "" {
		c.UI.Error("a configuration file is required (-config)")
		return 1
	}

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error parsing configuration file: %v", err))
		return 1
	}

	db, err := database.Connect(database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
	}, c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error connecting to the database: %v", err))
		return 1
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.UI.Error(fmt.Sprintf("error getting underlying SQL DB: %v", err))
		return 1
	}
	if err := migrate.RunMigrations(sqlDB, cfg.Database.Driver); err != nil {
		c.UI.Error(fmt.Sprintf("error running migrations: %v", err))
		return 1
	}

	version, dirty, err := migrate.GetMigrationVersion(sqlDB, cfg.Database.Driver)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error reading migration version: %v", err))
		return 1
	}
	c.UI.Info(fmt.Sprintf("schema at version %d (dirty: %t)", version, dirty))
	return 0
}
