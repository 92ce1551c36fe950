package initializers

import (
	"github.com/Kariqs/farmmarket-api/models"
	"gorm.io/gorm"
)

// SyncDatabase migrates every model used by the API.
func SyncDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentEvent{},
	)
}
