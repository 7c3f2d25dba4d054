package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/models"
	"orderdesk-backend/utils"

	"gorm.io/gorm"
)

// OrderFilter narrows List. From/To are calendar dates (time of day is
// ignored) and both must be set for the range to apply. Query is matched
// case-insensitively against customer name, customer code and item.
type OrderFilter struct {
	From  *time.Time
	To    *time.Time
	Query string
}

type OrderRepositoryInterface interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	List(ctx context.Context, f OrderFilter) ([]models.Order, error)
	Update(ctx context.Context, o *models.Order) error
	Delete(ctx context.Context, id uint) error
}

type OrderRepository struct {
	DB *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{DB: db}
}

// Create inserts o and loads its customer.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	if err := r.DB.WithContext(ctx).Omit("Customer").Create(o).Error; err != nil {
		return err
	}
	return r.DB.WithContext(ctx).First(&o.Customer, o.CustomerID).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := r.DB.WithContext(ctx).Preload("Customer").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Order", id)
		}
		return nil, err
	}
	return &o, nil
}

// List returns orders matching f, newest order_time first.
func (r *OrderRepository) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Select("orders.*").
		Joins("JOIN customers ON customers.id = orders.customer_id").
		Preload("Customer")

	if f.From != nil && f.To != nil {
		start := utils.BeginningOfDay(f.From.UTC())
		end := utils.BeginningOfDay(f.To.UTC()).AddDate(0, 0, 1)
		q = q.Where("orders.order_time >= ? AND orders.order_time < ?", start, end)
	}

	if f.Query != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Query)) + "%"
		q = q.Where(
			`(LOWER(customers.name) LIKE ? ESCAPE '\' OR LOWER(customers.code) LIKE ? ESCAPE '\' OR LOWER(orders.item) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern,
		)
	}

	orders := []models.Order{}
	err := q.Order("orders.order_time DESC").Order("orders.id DESC").Find(&orders).Error
	return orders, err
}

// Update writes customer, item, amount and status. order_time is never
// touched.
func (r *OrderRepository) Update(ctx context.Context, o *models.Order) error {
	result := r.DB.WithContext(ctx).
		Model(&models.Order{ID: o.ID}).
		Updates(map[string]any{
			"customer_id": o.CustomerID,
			"item":        o.Item,
			"amount":      o.Amount,
			"status":      o.Status,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("Order", o.ID)
	}

	fresh, err := r.GetByID(ctx, o.ID)
	if err != nil {
		return err
	}
	*o = *fresh
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.NotificationLog{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Order{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.NewNotFound("Order", id)
		}
		return nil
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes %, _ and \ match literally in a LIKE ... ESCAPE '\' pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ OrderRepositoryInterface = (*OrderRepository)(nil)
