package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart rows are hard-deleted working state, so they skip gorm.Model's
// soft-delete column to keep the unique indexes usable.
type Cart struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"userId" gorm:"uniqueIndex;not null"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CartID    uint      `json:"cartId" gorm:"uniqueIndex:idx_cart_product;not null"`
	ProductID uint      `json:"productId" gorm:"uniqueIndex:idx_cart_product;not null"`
	Quantity  int       `json:"quantity" gorm:"not null;default:1"`
	Product   Product   `json:"-" gorm:"foreignKey:ProductID"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AddCartItemData struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity"`
}

type UpdateCartItemData struct {
	Quantity int `json:"quantity"`
}

// CartLine is one priced row of a CartView.
type CartLine struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// CartView is the priced cart returned to clients. Amounts serialise as
// decimal strings.
type CartView struct {
	ID       *uint           `json:"id"`
	Items    []CartLine      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}
