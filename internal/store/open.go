package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"agentmesh/internal/config"
	"agentmesh/internal/db"
)

// Open builds the backend selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		logger.Warn("Using in-memory store; data is lost on restart")
		return NewMemoryStore(), nil

	case config.BackendRedis:
		s, err := DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		logger.WithField("addr", cfg.Redis.Addr).Info("Redis connected successfully")
		return s, nil

	case config.BackendSQLite:
		s, err := OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", cfg.SQLite.Path).Info("SQLite store opened")
		return s, nil

	case config.BackendMySQL:
		gdb, err := db.InitMySQL(cfg.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.MySQL.Migrate {
			if err := db.Migrate(gdb, logger); err != nil {
				return nil, err
			}
		}
		logger.Info("MySQL store opened")
		return NewGormStore(gdb), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
