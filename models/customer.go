package models

import (
	"time"
)

type Customer struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;not null"`
	Code        string `gorm:"size:10;uniqueIndex;not null"`
	PhoneNumber string `gorm:"size:15;not null"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Orders []Order `gorm:"foreignKey:CustomerID"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerResponse is the JSON shape returned by the customer endpoints
type CustomerResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	PhoneNumber string    `json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c *Customer) Response() CustomerResponse {
	return CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		Code:        c.Code,
		PhoneNumber: c.PhoneNumber,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}
