// models/notification_log.go
package models

import (
	"time"
)

const (
	NotificationStatusSent   = "sent"
	NotificationStatusFailed = "failed"

	NotificationChannelSMS = "sms"
)

// NotificationLog records every confirmation message sent (or attempted)
// for an order.
type NotificationLog struct {
	ID           uint   `gorm:"primaryKey"`
	OrderID      uint   `gorm:"index;not null"`
	PhoneNumber  string `gorm:"size:15;not null"`
	Message      string `gorm:"type:text"`
	Status       string `gorm:"type:varchar(20);index"` // sent, failed
	MessageSID   string `gorm:"column:message_sid;type:varchar(64)"`
	ErrorMessage string `gorm:"type:text"`
	Channel      string `gorm:"type:varchar(20)"`
	Attempts     int    `gorm:"default:0"`
	SentAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}
