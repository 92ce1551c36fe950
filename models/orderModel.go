package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	OrderSourceCart   = "cart"
	OrderSourceDirect = "direct"
)

type Order struct {
	gorm.Model
	CustomerID            uint            `json:"customerId" gorm:"index;not null"`
	Subtotal              decimal.Decimal `json:"subtotal" gorm:"type:decimal(10,2);not null"`
	ShippingFee           decimal.Decimal `json:"shippingFee" gorm:"type:decimal(10,2);not null"`
	TotalAmount           decimal.Decimal `json:"totalAmount" gorm:"type:decimal(10,2);not null"`
	Status                string          `json:"status" gorm:"size:16;index;not null;default:PENDING"`
	Source                string          `json:"source" gorm:"size:16;not null;default:direct"`
	StockReserved         bool            `json:"-"`
	StripeSessionID       *string         `json:"stripeSessionId" gorm:"size:255;index"`
	StripePaymentIntentID *string         `json:"stripePaymentIntentId" gorm:"size:255"`
	PaymentExpiresAt      *time.Time      `json:"paymentExpiresAt"`
	PaidAt                *time.Time      `json:"paidAt"`
	CancelledAt           *time.Time      `json:"cancelledAt"`
	OrderItems            []OrderItem     `json:"orderItems" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem snapshots the unit price at order time; history never reads the
// live product price.
type OrderItem struct {
	gorm.Model
	OrderID   uint            `json:"orderId" gorm:"index;not null"`
	ProductID uint            `json:"productId" gorm:"index;not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unitPrice" gorm:"type:decimal(10,2);not null"`
	Product   *Product        `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PaymentEvent records each processed gateway event so redelivery is a no-op.
type PaymentEvent struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	EventID     string         `json:"eventId" gorm:"uniqueIndex;size:255;not null"`
	Type        string         `json:"type" gorm:"size:64;not null"`
	OrderID     *uint          `json:"orderId" gorm:"index"`
	Payload     datatypes.JSON `json:"payload"`
	ProcessedAt time.Time      `json:"processedAt"`
}

type CheckoutItem struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity"`
}

type CheckoutData struct {
	Items []CheckoutItem `json:"items" binding:"required"`
}

type PlaceOrderData struct {
	ProductID uint `json:"productId" binding:"required"`
	Quantity  int  `json:"quantity"`
}

type OrderStatusData struct {
	Status string `json:"status" form:"status" binding:"required"`
}

func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsSettled reports whether payment for the order has already been applied.
func IsSettled(status string) bool {
	switch status {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// FarmerOrderSummary is a dashboard row for a farmer's recent orders.
type FarmerOrderSummary struct {
	ID          uint                     `json:"id"`
	Status      string                   `json:"status"`
	TotalAmount decimal.Decimal          `json:"totalAmount"`
	CreatedAt   time.Time                `json:"createdAt"`
	Items       []FarmerOrderItemSummary `json:"items"`
}

type FarmerOrderItemSummary struct {
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

type FarmerDashboard struct {
	ProductsCount int64 `json:"productsCount"`
	OrdersCount   int64 `json:"ordersCount"`
}
