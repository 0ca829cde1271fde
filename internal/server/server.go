package server

import (
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/internal/config"
	"github.com/apiforge-io/apiforge/pkg/openapi"
)

// Server contains the server configuration.
type Server struct {
	// Config is the config for the server.
	Config *config.Config

	// DB is the database for the server.
	DB *gorm.DB

	// Logger is the logger for the server.
	Logger hclog.Logger

	// Reconciler applies OpenAPI imports against the catalog.
	Reconciler *openapi.Reconciler
}
