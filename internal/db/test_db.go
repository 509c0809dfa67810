package db

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestStores creates five independent in-memory SQLite databases, one
// per logical store, and migrates each with only its own tables.
func SetupTestStores() (*Stores, error) {
	stores := &Stores{}
	targets := []struct {
		name string
		dst  **gorm.DB
	}{
		{"identity", &stores.Identity},
		{"business", &stores.Business},
		{"scheduling", &stores.Scheduling},
		{"violation", &stores.Violation},
		{"notification", &stores.Notification},
	}

	for _, t := range targets {
		conn, err := openTestDB()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s test store: %w", t.name, err)
		}
		*t.dst = conn
	}

	models := storeModels()
	err := stores.Each(func(name string, conn *gorm.DB) error {
		return conn.AutoMigrate(models[name]...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate test stores: %w", err)
	}
	return stores, nil
}

func openTestDB() (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// every pooled connection to ":memory:" would be a fresh database
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}

// CleanupTestStores closes every test store
func CleanupTestStores(stores *Stores) {
	if err := stores.Close(); err != nil {
		log.Printf("Failed to close test stores: %v", err)
	}
}
