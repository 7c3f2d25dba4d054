package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID         uint            `gorm:"primaryKey"`
	CustomerID uint            `gorm:"index;not null"`
	Item       string          `gorm:"size:100;not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	OrderTime  time.Time       `gorm:"index;not null"`
	Status     OrderStatus     `gorm:"size:20;not null;default:'PENDING'"`

	Customer Customer `gorm:"foreignKey:CustomerID"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderResponse is the JSON shape returned by the order endpoints.
// Amount is always rendered with two decimals, e.g. "50.00".
type OrderResponse struct {
	ID           uint        `json:"id"`
	CustomerName string      `json:"customer_name"`
	Item         string      `json:"item"`
	Amount       string      `json:"amount"`
	OrderTime    time.Time   `json:"order_time"`
	Status       OrderStatus `json:"status"`
}

func (o *Order) Response() OrderResponse {
	return OrderResponse{
		ID:           o.ID,
		CustomerName: o.Customer.Name,
		Item:         o.Item,
		Amount:       o.Amount.StringFixed(2),
		OrderTime:    o.OrderTime,
		Status:       o.Status,
	}
}
