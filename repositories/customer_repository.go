package repositories

import (
	"context"
	"errors"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/models"

	"gorm.io/gorm"
)

const DuplicateCodeMessage = "customer with this code already exists."

// CustomerRepositoryInterface defines the customer store used by services
type CustomerRepositoryInterface interface {
	Create(ctx context.Context, c *models.Customer) error
	GetByID(ctx context.Context, id uint) (*models.Customer, error)
	GetByCode(ctx context.Context, code string) (*models.Customer, error)
	List(ctx context.Context) ([]models.Customer, error)
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, id uint) error
	CodeExists(ctx context.Context, code string, excludeID uint) (bool, error)
}

type CustomerRepository struct {
	DB *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{DB: db}
}

// Create inserts c. A unique-index violation on code comes back as a
// ValidationError, the same as the pre-check in the service.
func (r *CustomerRepository) Create(ctx context.Context, c *models.Customer) error {
	err := r.DB.WithContext(ctx).Omit("Orders").Create(c).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.NewValidationError("code", DuplicateCodeMessage)
	}
	return err
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Customer", id)
		}
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) GetByCode(ctx context.Context, code string) (*models.Customer, error) {
	var c models.Customer
	if err := r.DB.WithContext(ctx).Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Customer", code)
		}
		return nil, err
	}
	return &c, nil
}

// List returns every customer, newest first.
func (r *CustomerRepository) List(ctx context.Context) ([]models.Customer, error) {
	customers := []models.Customer{}
	err := r.DB.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&customers).Error
	return customers, err
}

// Update writes the mutable fields of c and reloads it so the refreshed
// updated_at is visible to the caller.
func (r *CustomerRepository) Update(ctx context.Context, c *models.Customer) error {
	result := r.DB.WithContext(ctx).
		Model(&models.Customer{ID: c.ID}).
		Select("name", "code", "phone_number", "updated_at").
		Updates(c)
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return apperrors.NewValidationError("code", DuplicateCodeMessage)
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("Customer", c.ID)
	}

	fresh, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *fresh
	return nil
}

// Delete removes the customer together with its orders and their
// notification logs. Dependents go first, all inside one transaction.
func (r *CustomerRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("Customer", id)
			}
			return err
		}

		orderIDs := tx.Model(&models.Order{}).Select("id").Where("customer_id = ?", id)
		if err := tx.Where("order_id IN (?)", orderIDs).Delete(&models.NotificationLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("customer_id = ?", id).Delete(&models.Order{}).Error; err != nil {
			return err
		}
		return tx.Delete(&customer).Error
	})
}

// CodeExists reports whether another customer (not excludeID) already uses code.
func (r *CustomerRepository) CodeExists(ctx context.Context, code string, excludeID uint) (bool, error) {
	var count int64
	q := r.DB.WithContext(ctx).Model(&models.Customer{}).Where("code = ?", code)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
