package db

import (
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"gorm.io/gorm"
)

// storeModels lists the tables each logical store owns.
func storeModels() map[string][]interface{} {
	return map[string][]interface{}{
		"identity":     {&model.User{}},
		"business":     {&model.Business{}, &model.BusinessDocument{}},
		"scheduling":   {&model.Inspection{}},
		"violation":    {&model.Violation{}},
		"notification": {&model.Notification{}},
	}
}

// Migrate runs schema migrations on every store
func Migrate(stores *Stores) error {
	logger.Info("Running store migrations...")

	models := storeModels()
	total := 0
	err := stores.Each(func(name string, conn *gorm.DB) error {
		if err := conn.AutoMigrate(models[name]...); err != nil {
			logger.Error("Failed to run migrations", err, map[string]interface{}{
				"store": name,
			})
			return err
		}
		total += len(models[name])
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Store migrations completed successfully", map[string]interface{}{
		"models_count": total,
	})
	return nil
}
