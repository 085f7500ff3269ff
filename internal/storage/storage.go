// Package storage implements the domain store interfaces on gorm. Every
// state transition is a conditional UPDATE gated on the current row state;
// callers learn from the affected-row count whether they won the
// transition. No application-level locks are held.
package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hivechat/swarm/swarm/collab"
	"github.com/hivechat/swarm/swarm/consensus"
	"github.com/hivechat/swarm/swarm/handoff"
	"github.com/hivechat/swarm/swarm/orchestrator"
	"github.com/hivechat/swarm/swarm/registry"
	"github.com/hivechat/swarm/types"
)

// Storage backs all swarm services with one gorm connection.
type Storage struct {
	db *gorm.DB
}

var (
	_ registry.Store     = (*Storage)(nil)
	_ orchestrator.Store = (*Storage)(nil)
	_ handoff.Store      = (*Storage)(nil)
	_ consensus.Store    = (*Storage)(nil)
	_ collab.Store       = (*Storage)(nil)
)

// New wraps an opened gorm connection.
func New(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

// DB exposes the underlying connection for health checks.
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Ping verifies the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// wrapGet normalizes single-row lookup errors: missing rows become a
// NOT_FOUND domain error, everything else an internal one.
func wrapGet(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewErrorf(types.ErrNotFound, "%s %s not found", kind, id)
	}
	return types.NewErrorf(types.ErrInternalError, "failed to load %s %s", kind, id).WithCause(err)
}
