// services/customer_service.go
package services

import (
	"context"
	"strings"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/models"
	"orderdesk-backend/repositories"
	"orderdesk-backend/utils"

	"github.com/rs/zerolog"
)

// CreateCustomerInput defines the expected JSON structure for creating a customer.
// Phone is accepted as an alias of PhoneNumber.
type CreateCustomerInput struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	PhoneNumber string `json:"phone_number"`
	Phone       string `json:"phone"`
}

// UpdateCustomerInput defines the expected JSON structure for updating a customer.
// Omitted fields keep their current value.
type UpdateCustomerInput struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	PhoneNumber *string `json:"phone_number"`
	Phone       *string `json:"phone"`
}

// customerFields is what a customer must satisfy after create or update.
// Values are trimmed first. The phone number is stored as given, with no
// format check.
type customerFields struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=10,customer_code"`
	PhoneNumber string `json:"phone_number" validate:"required,max=15"`
}

func (f *customerFields) trim() {
	f.Name = strings.TrimSpace(f.Name)
	f.Code = strings.TrimSpace(f.Code)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
}

type CustomerService struct {
	customers repositories.CustomerRepositoryInterface
	logger    zerolog.Logger
}

func NewCustomerService(customers repositories.CustomerRepositoryInterface, logger zerolog.Logger) *CustomerService {
	return &CustomerService{customers: customers, logger: logger}
}

func (s *CustomerService) CreateCustomer(ctx context.Context, in CreateCustomerInput) (*models.Customer, error) {
	fields := customerFields{Name: in.Name, Code: in.Code, PhoneNumber: in.PhoneNumber}
	if fields.PhoneNumber == "" {
		fields.PhoneNumber = in.Phone
	}
	fields.trim()
	if err := s.validate(ctx, fields, 0); err != nil {
		return nil, err
	}

	customer := &models.Customer{
		Name:        fields.Name,
		Code:        fields.Code,
		PhoneNumber: fields.PhoneNumber,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info().Str("code", customer.Code).Uint("customer_id", customer.ID).Msg("created customer")
	return customer, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	return s.customers.GetByID(ctx, id)
}

func (s *CustomerService) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	return s.customers.List(ctx)
}

func (s *CustomerService) UpdateCustomer(ctx context.Context, id uint, in UpdateCustomerInput) (*models.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := customerFields{Name: customer.Name, Code: customer.Code, PhoneNumber: customer.PhoneNumber}
	if in.Name != nil {
		fields.Name = *in.Name
	}
	if in.Code != nil {
		fields.Code = *in.Code
	}
	if in.PhoneNumber != nil {
		fields.PhoneNumber = *in.PhoneNumber
	} else if in.Phone != nil {
		fields.PhoneNumber = *in.Phone
	}
	fields.trim()
	if err := s.validate(ctx, fields, customer.ID); err != nil {
		return nil, err
	}

	customer.Name = fields.Name
	customer.Code = fields.Code
	customer.PhoneNumber = fields.PhoneNumber
	if err := s.customers.Update(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info().Str("code", customer.Code).Uint("customer_id", customer.ID).Msg("updated customer")
	return customer, nil
}

func (s *CustomerService) DeleteCustomer(ctx context.Context, id uint) error {
	if err := s.customers.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Uint("customer_id", id).Msg("deleted customer")
	return nil
}

// validate checks field rules and then code uniqueness, ignoring the
// customer being updated.
func (s *CustomerService) validate(ctx context.Context, fields customerFields, selfID uint) error {
	if verr := utils.ValidateStruct(fields); verr != nil {
		return verr
	}

	taken, err := s.customers.CodeExists(ctx, fields.Code, selfID)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.NewValidationError("code", repositories.DuplicateCodeMessage)
	}
	return nil
}
