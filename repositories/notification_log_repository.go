package repositories

import (
	"context"

	"orderdesk-backend/models"

	"gorm.io/gorm"
)

type NotificationLogRepositoryInterface interface {
	Create(ctx context.Context, l *models.NotificationLog) error
	Update(ctx context.Context, l *models.NotificationLog) error
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.NotificationLog, error)
	ListByOrder(ctx context.Context, orderID uint) ([]models.NotificationLog, error)
}

type NotificationLogRepository struct {
	DB *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{DB: db}
}

func (r *NotificationLogRepository) Create(ctx context.Context, l *models.NotificationLog) error {
	return r.DB.WithContext(ctx).Create(l).Error
}

func (r *NotificationLogRepository) Update(ctx context.Context, l *models.NotificationLog) error {
	return r.DB.WithContext(ctx).Save(l).Error
}

// ListRetryable returns failed logs that still have attempts left, oldest first.
func (r *NotificationLogRepository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.NotificationLog, error) {
	logs := []models.NotificationLog{}
	err := r.DB.WithContext(ctx).
		Where("status = ? AND attempts < ?", models.NotificationStatusFailed, maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *NotificationLogRepository) ListByOrder(ctx context.Context, orderID uint) ([]models.NotificationLog, error) {
	logs := []models.NotificationLog{}
	err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&logs).Error
	return logs, err
}

var _ NotificationLogRepositoryInterface = (*NotificationLogRepository)(nil)
