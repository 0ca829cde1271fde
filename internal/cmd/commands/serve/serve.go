// Package serve implements the HTTP server command.
package serve

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"github.com/apiforge-io/apiforge/internal/api/v2"
	"github.com/apiforge-io/apiforge/internal/cmd/base"
	"github.com/apiforge-io/apiforge/internal/config"
	"github.com/apiforge-io/apiforge/internal/migrate"
	"github.com/apiforge-io/apiforge/internal/server"
	"github.com/apiforge-io/apiforge/pkg/database"
	"github.com/apiforge-io/apiforge/pkg/openapi"
)

type Command struct {
	*base.Command

	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Run the API catalog server"
}

func (c *Command) Help() string {
	return `Usage: apiforge serve -config=config.hcl

  Run the API catalog server. Applies pending schema migrations, then
  serves the v2 HTTP API on the configured listen address.
` + "\n  -config=<path>\n      Path to the HCL configuration file.\n"
}

func (c *Command) Run(args []string) int {
	f := flag.NewFlagSet("serve", flag.ContinueOnError)
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

	log := c.Log
	if cfg.LogFormat == "json" {
		log = hclog.New(&hclog.LoggerOptions{
			Name:       "apiforge",
			JSONFormat: true,
		})
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
	}, log)
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

	srv := server.Server{
		Config:     cfg,
		DB:         db,
		Logger:     log,
		Reconciler: openapi.NewReconciler(log.Named("reconciler")),
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, srv)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Info("starting server", "listen_addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		c.UI.Error(fmt.Sprintf("error starting server: %v", err))
		return 1
	}
	return 0
}
