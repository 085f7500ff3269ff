package storage

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/swarm/collab"
	"github.com/hivechat/swarm/swarm/consensus"
	"github.com/hivechat/swarm/swarm/handoff"
	"github.com/hivechat/swarm/swarm/orchestrator"
	"github.com/hivechat/swarm/swarm/registry"
)

// Open connects to the configured database, tunes the connection pool and
// migrates the schema.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access connection pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	} else if cfg.Driver == "sqlite" || cfg.Driver == "" {
		// In-memory sqlite gives every pooled connection its own database;
		// one shared connection keeps a single coherent store.
		sqlDB.SetMaxOpenConns(1)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	logger.Info("database ready",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return New(db), nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&registry.Agent{},
		&orchestrator.Task{},
		&handoff.Handoff{},
		&consensus.Request{},
		&consensus.Vote{},
		&collab.Collaboration{},
		&collab.Contribution{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
