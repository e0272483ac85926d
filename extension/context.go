// context.go defines the Context interface for extension access to dms
// internals.
//
// Separated from extension.go to isolate dependency injection concerns.
// The Context provides a controlled surface area for extensions: they can
// reach the service, the database and the configuration, and nothing else.
//
// Design: Extensions receive Context during Init(), not at construction,
// because they register in init() before any repository has been opened.

package extension

import (
	"database/sql"

	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/service"
)

// Context provides extensions controlled access to dms internals.
type Context interface {
	// Service returns the document service.
	Service() service.Service

	// DB exposes the metadata database for extensions needing custom
	// tables. Extensions should create their own tables, not modify core
	// tables.
	DB() *sql.DB

	// Config returns the loaded configuration.
	Config() *config.Config
}

type extContext struct {
	svc service.Service
	db  *sql.DB
	cfg *config.Config
}

// NewContext creates a new extension context.
func NewContext(svc service.Service, db *sql.DB, cfg *config.Config) Context {
	return &extContext{svc: svc, db: db, cfg: cfg}
}

func (c *extContext) Service() service.Service { return c.svc }
func (c *extContext) DB() *sql.DB              { return c.db }
func (c *extContext) Config() *config.Config   { return c.cfg }
