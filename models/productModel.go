package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	gorm.Model
	Name        string          `json:"name" gorm:"size:191;index;not null"`
	Description string          `json:"description"`
	Category    string          `json:"category" gorm:"size:64"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Quantity    int             `json:"quantity" gorm:"not null;default:0"`
	Image       string          `json:"image"`
	FarmerID    uint            `json:"farmerId" gorm:"index;not null"`
	Farmer      *FarmerSummary  `json:"farmer,omitempty" gorm:"-"`
}

// FarmerSummary is the public view of a product's owner.
type FarmerSummary struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	FarmName     *string `json:"farmName"`
	FarmLocation *string `json:"farmLocation"`
}

type ProductInput struct {
	Name        string          `form:"name" json:"name" binding:"required,min=3"`
	Description string          `form:"description" json:"description" binding:"required,min=10"`
	Category    string          `form:"category" json:"category" binding:"required"`
	Price       decimal.Decimal `form:"-" json:"price"`
	Quantity    int             `form:"quantity" json:"quantity" binding:"required,min=1"`
}
