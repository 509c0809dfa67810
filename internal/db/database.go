package db

import (
	"fmt"

	"github.com/ikkim/inspection-backend/config"
	appLogger "github.com/ikkim/inspection-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Stores holds one connection per logical store. No transaction ever spans
// two of them.
type Stores struct {
	Identity     *gorm.DB
	Business     *gorm.DB
	Scheduling   *gorm.DB
	Violation    *gorm.DB
	Notification *gorm.DB
}

// Each calls fn for every store with its name, stopping at the first error.
func (s *Stores) Each(fn func(name string, db *gorm.DB) error) error {
	for _, store := range []struct {
		name string
		db   *gorm.DB
	}{
		{"identity", s.Identity},
		{"business", s.Business},
		{"scheduling", s.Scheduling},
		{"violation", s.Violation},
		{"notification", s.Notification},
	} {
		if store.db == nil {
			continue
		}
		if err := fn(store.name, store.db); err != nil {
			return err
		}
	}
	return nil
}

// Initialize opens a connection pool for every configured store
func Initialize(cfg *config.StoresConfig) (*Stores, error) {
	stores := &Stores{}
	targets := []struct {
		name string
		cfg  *config.DatabaseConfig
		dst  **gorm.DB
	}{
		{"identity", &cfg.Identity, &stores.Identity},
		{"business", &cfg.Business, &stores.Business},
		{"scheduling", &cfg.Scheduling, &stores.Scheduling},
		{"violation", &cfg.Violation, &stores.Violation},
		{"notification", &cfg.Notification, &stores.Notification},
	}

	for _, t := range targets {
		conn, err := open(t.name, t.cfg)
		if err != nil {
			_ = stores.Close()
			return nil, err
		}
		*t.dst = conn
	}
	return stores, nil
}

func open(name string, cfg *config.DatabaseConfig) (*gorm.DB, error) {
	appLogger.Info("Connecting to store", map[string]interface{}{
		"store":    name,
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.DBName,
		"user":     cfg.User,
	})

	conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Use silent mode, we'll use our own logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s store: %w", name, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s store instance: %w", name, err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)

	appLogger.Info("Store connection established", map[string]interface{}{
		"store":          name,
		"max_idle_conns": 10,
		"max_open_conns": 50,
	})
	return conn, nil
}

// Close closes every open store connection
func (s *Stores) Close() error {
	var firstErr error
	_ = s.Each(func(name string, conn *gorm.DB) error {
		sqlDB, err := conn.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s store: %w", name, err)
		}
		return nil
	})
	return firstErr
}
