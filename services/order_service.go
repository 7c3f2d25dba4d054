// services/order_service.go
package services

import (
	"context"
	"strings"
	"time"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/models"
	"orderdesk-backend/repositories"
	"orderdesk-backend/utils"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	invalidCustomerCodeMessage = "Invalid customer code"
	InvalidDateMessage         = "Invalid date format. Use YYYY-MM-DD"
)

// CreateOrderInput defines the expected JSON structure for creating an order.
// Amount accepts a JSON string ("50.00") or number.
type CreateOrderInput struct {
	CustomerCode string           `json:"customer_code" validate:"required"`
	Item         string           `json:"item" validate:"required,max=100"`
	Amount       *decimal.Decimal `json:"amount"`
}

// UpdateOrderInput defines the expected JSON structure for updating an order.
// order_time cannot be changed.
type UpdateOrderInput struct {
	CustomerCode *string             `json:"customer_code"`
	Item         *string             `json:"item"`
	Amount       *decimal.Decimal    `json:"amount"`
	Status       *models.OrderStatus `json:"status"`
}

type orderFields struct {
	Item   string `json:"item" validate:"required,max=100"`
	Status string `json:"status" validate:"required,oneof=PENDING COMPLETED CANCELLED"`
}

// OrderNotifier is told about every newly created order.
type OrderNotifier interface {
	NotifyOrderCreated(ctx context.Context, order *models.Order)
}

type OrderService struct {
	orders    repositories.OrderRepositoryInterface
	customers repositories.CustomerRepositoryInterface
	notifier  OrderNotifier
	logger    zerolog.Logger

	now func() time.Time
}

func NewOrderService(
	orders repositories.OrderRepositoryInterface,
	customers repositories.CustomerRepositoryInterface,
	notifier OrderNotifier,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		customers: customers,
		notifier:  notifier,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder validates in, resolves the customer, stores a PENDING order
// and sends the confirmation SMS. A failed SMS never fails the order.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	in.CustomerCode = strings.TrimSpace(in.CustomerCode)
	in.Item = strings.TrimSpace(in.Item)

	verr := &apperrors.ValidationError{}
	if fe := utils.ValidateStruct(in); fe != nil {
		verr = fe
	}
	checkAmount(verr, in.Amount)

	var customer *models.Customer
	if in.CustomerCode != "" {
		c, err := s.resolveCustomer(ctx, in.CustomerCode, verr)
		if err != nil {
			return nil, err
		}
		customer = c
	}
	if verr.HasErrors() {
		return nil, verr
	}

	order := &models.Order{
		CustomerID: customer.ID,
		Item:       in.Item,
		Amount:     *in.Amount,
		OrderTime:  s.now(),
		Status:     models.OrderStatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info().
		Uint("order_id", order.ID).
		Str("customer_code", customer.Code).
		Str("amount", order.Amount.StringFixed(2)).
		Msg("created order")

	if s.notifier != nil {
		s.notifier.NotifyOrderCreated(ctx, order)
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListOrders returns all orders, or only those whose order_time falls on
// a date in [startDate, endDate] when both are given (YYYY-MM-DD).
func (s *OrderService) ListOrders(ctx context.Context, startDate, endDate string) ([]models.Order, error) {
	var filter repositories.OrderFilter
	if startDate != "" && endDate != "" {
		from, err := utils.ParseDate(startDate)
		if err != nil {
			return nil, apperrors.NewValidationError("date", InvalidDateMessage)
		}
		to, err := utils.ParseDate(endDate)
		if err != nil {
			return nil, apperrors.NewValidationError("date", InvalidDateMessage)
		}
		filter.From, filter.To = &from, &to
	}
	return s.orders.List(ctx, filter)
}

// SearchOrders matches q, as given, against customer name, customer code
// and item. An empty q returns every order.
func (s *OrderService) SearchOrders(ctx context.Context, q string) ([]models.Order, error) {
	return s.orders.List(ctx, repositories.OrderFilter{Query: q})
}

func (s *OrderService) UpdateOrder(ctx context.Context, id uint, in UpdateOrderInput) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := orderFields{Item: order.Item, Status: string(order.Status)}
	if in.Item != nil {
		fields.Item = strings.TrimSpace(*in.Item)
	}
	if in.Status != nil {
		fields.Status = string(*in.Status)
	}

	verr := &apperrors.ValidationError{}
	if fe := utils.ValidateStruct(fields); fe != nil {
		verr = fe
	}
	if in.Amount != nil {
		checkAmount(verr, in.Amount)
	}

	customer := &order.Customer
	if in.CustomerCode != nil {
		if code := strings.TrimSpace(*in.CustomerCode); code == "" {
			verr.Add("customer_code", "This field may not be blank.")
		} else if customer, err = s.resolveCustomer(ctx, code, verr); err != nil {
			return nil, err
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	order.Item = fields.Item
	order.Status = models.OrderStatus(fields.Status)
	if in.Amount != nil {
		order.Amount = *in.Amount
	}
	order.CustomerID = customer.ID
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.Info().Uint("order_id", order.ID).Str("status", string(order.Status)).Msg("updated order")
	return order, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id uint) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Uint("order_id", id).Msg("deleted order")
	return nil
}

// resolveCustomer looks up code. An unknown code is recorded on verr and
// returns a nil customer; only storage failures are returned as errors.
func (s *OrderService) resolveCustomer(ctx context.Context, code string, verr *apperrors.ValidationError) (*models.Customer, error) {
	customer, err := s.customers.GetByCode(ctx, code)
	if err != nil {
		if apperrors.IsNotFound(err) {
			verr.Add("customer_code", invalidCustomerCodeMessage)
			return nil, nil
		}
		return nil, err
	}
	return customer, nil
}

func checkAmount(verr *apperrors.ValidationError, amount *decimal.Decimal) {
	if amount == nil {
		verr.Add("amount", "This field is required.")
		return
	}
	for _, msg := range utils.ValidateAmount(*amount) {
		verr.Add("amount", msg)
	}
}
