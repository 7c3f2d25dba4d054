package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/config"
	"orderdesk-backend/models"
	"orderdesk-backend/repositories"
	"orderdesk-backend/utils"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gorm.io/gorm"
)

type sendCall struct {
	Phone   string
	OrderID uint
	Amount  string
}

var errSendFailed = errors.New("21211 invalid 'To' phone number")

// fakeSender records every call and succeeds while ok is true.
type fakeSender struct {
	mu    sync.Mutex
	ok    bool
	calls []sendCall
}

func (f *fakeSender) Send(_ context.Context, phone string, orderID uint, amount decimal.Decimal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sendCall{Phone: phone, OrderID: orderID, Amount: amount.StringFixed(2)})
	if !f.ok {
		return "", errSendFailed
	}
	return "SM123", nil
}

func (f *fakeSender) setOK(ok bool) {
	f.mu.Lock()
	f.ok = ok
	f.mu.Unlock()
}

type testEnv struct {
	db        *gorm.DB
	customers *repositories.CustomerRepository
	orders    *repositories.OrderRepository
	logs      *repositories.NotificationLogRepository
	sender    *fakeSender
	notifier  *NotificationService

	customerService *CustomerService
	orderService    *OrderService
}

func setupEnv(t *testing.T) *testEnv {
	db, err := config.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	env := &testEnv{
		db:        db,
		customers: repositories.NewCustomerRepository(db),
		orders:    repositories.NewOrderRepository(db),
		logs:      repositories.NewNotificationLogRepository(db),
		sender:    &fakeSender{ok: true},
	}
	logger := zerolog.Nop()
	env.notifier = NewNotificationService(env.sender, env.logs, logger)
	env.customerService = NewCustomerService(env.customers, logger)
	env.orderService = NewOrderService(env.orders, env.customers, env.notifier, logger)
	return env
}

func (e *testEnv) acme(t *testing.T) *models.Customer {
	c, err := e.customerService.CreateCustomer(context.Background(), CreateCustomerInput{
		Name: "Acme", Code: "ACME1", Phone: "+254700000000",
	})
	require.NoError(t, err)
	return c
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func requireValidation(t *testing.T, err error) *apperrors.ValidationError {
	t.Helper()
	verr, ok := apperrors.AsValidation(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	return verr
}

// =============================================================================
// Customers
// =============================================================================

func TestCreateCustomer(t *testing.T) {
	env := setupEnv(t)
	c := env.acme(t)

	assert.NotZero(t, c.ID)
	assert.Equal(t, "+254700000000", c.PhoneNumber, "phone is accepted as an alias")
	assert.False(t, c.CreatedAt.IsZero())
}

func TestCreateCustomer_Validation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)

	_, err := env.customerService.CreateCustomer(ctx, CreateCustomerInput{Name: "x", Code: "acme", PhoneNumber: "+1555000"})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Code must contain only uppercase letters and numbers"}, verr.Fields["code"])

	_, err = env.customerService.CreateCustomer(ctx, CreateCustomerInput{Name: "Dup", Code: "ACME1", PhoneNumber: "+1555000"})
	verr = requireValidation(t, err)
	assert.Equal(t, []string{repositories.DuplicateCodeMessage}, verr.Fields["code"])

	_, err = env.customerService.CreateCustomer(ctx, CreateCustomerInput{})
	verr = requireValidation(t, err)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "code")
	assert.Contains(t, verr.Fields, "phone_number")
}

func TestCreateCustomer_TrimsInput(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.customerService.CreateCustomer(ctx, CreateCustomerInput{Name: "   ", Code: " ", PhoneNumber: "\t"})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["name"])
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["code"])
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["phone_number"])

	c, err := env.customerService.CreateCustomer(ctx, CreateCustomerInput{Name: " Bob ", Code: " BOB1 ", PhoneNumber: " 0700123456 "})
	require.NoError(t, err)
	assert.Equal(t, "Bob", c.Name)
	assert.Equal(t, "BOB1", c.Code)
	assert.Equal(t, "0700123456", c.PhoneNumber, "local numbers are stored as given")

	blank := "  "
	_, err = env.customerService.UpdateCustomer(ctx, c.ID, UpdateCustomerInput{Name: &blank})
	verr = requireValidation(t, err)
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["name"])
}

func TestCreateCustomer_PhoneLength(t *testing.T) {
	env := setupEnv(t)

	_, err := env.customerService.CreateCustomer(context.Background(), CreateCustomerInput{
		Name: "Long", Code: "LONG", PhoneNumber: "+1 (555) 010-9999",
	})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Ensure this field has no more than 15 characters."}, verr.Fields["phone_number"])
}

func TestUpdateCustomer_Partial(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	c := env.acme(t)
	other, err := env.customerService.CreateCustomer(ctx, CreateCustomerInput{Name: "Bob", Code: "BOB", PhoneNumber: "+1555000"})
	require.NoError(t, err)

	name := "Acme Ltd"
	updated, err := env.customerService.UpdateCustomer(ctx, c.ID, UpdateCustomerInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", updated.Name)
	assert.Equal(t, "ACME1", updated.Code)

	same := "ACME1"
	_, err = env.customerService.UpdateCustomer(ctx, c.ID, UpdateCustomerInput{Code: &same})
	assert.NoError(t, err, "keeping the own code is not a duplicate")

	taken := "BOB"
	_, err = env.customerService.UpdateCustomer(ctx, c.ID, UpdateCustomerInput{Code: &taken})
	requireValidation(t, err)

	_, err = env.customerService.UpdateCustomer(ctx, other.ID+100, UpdateCustomerInput{Name: &name})
	assert.True(t, apperrors.IsNotFound(err))
}

// =============================================================================
// Order creation
// =============================================================================

func TestCreateOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)

	before := time.Now().UTC().Add(-time.Second)
	order, err := env.orderService.CreateOrder(ctx, CreateOrderInput{
		CustomerCode: "ACME1", Item: "Widget", Amount: amount("50.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "Acme", order.Customer.Name)
	assert.Equal(t, "50.00", order.Amount.StringFixed(2))
	assert.True(t, order.OrderTime.After(before))

	require.Len(t, env.sender.calls, 1)
	assert.Equal(t, sendCall{Phone: "+254700000000", OrderID: order.ID, Amount: "50.00"}, env.sender.calls[0])

	logs, err := env.logs.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.NotificationStatusSent, logs[0].Status)
	assert.Equal(t, "SM123", logs[0].MessageSID)
	assert.Equal(t, 1, logs[0].Attempts)
	assert.Equal(t, OrderConfirmationMessage(order.ID, order.Amount), logs[0].Message)
}

func TestCreateOrder_AmountBoundary(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)

	_, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("0.00")})
	verr := requireValidation(t, err)
	assert.Contains(t, verr.Fields, "amount")

	_, err = env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("0.01")})
	assert.NoError(t, err)
}

func TestCreateOrder_MissingFields(t *testing.T) {
	env := setupEnv(t)

	_, err := env.orderService.CreateOrder(context.Background(), CreateOrderInput{})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["item"])
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["customer_code"])
	assert.Equal(t, []string{"This field is required."}, verr.Fields["amount"])
	assert.Empty(t, env.sender.calls)
}

func TestCreateOrder_BlankItem(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)

	_, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "  ", Amount: amount("5.00")})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["item"])

	order, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: " ACME1 ", Item: " Widget ", Amount: amount("5.00")})
	require.NoError(t, err)
	assert.Equal(t, "Widget", order.Item)

	blank := " "
	_, err = env.orderService.UpdateOrder(ctx, order.ID, UpdateOrderInput{Item: &blank, CustomerCode: &blank})
	verr = requireValidation(t, err)
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["item"])
	assert.Equal(t, []string{"This field may not be blank."}, verr.Fields["customer_code"])
}

func TestCreateOrder_InvalidCustomerCode(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "NOPE", Item: "Widget", Amount: amount("5.00")})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Invalid customer code"}, verr.Fields["customer_code"])

	var count int64
	require.NoError(t, env.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "no order may be written")
	assert.Empty(t, env.sender.calls)
}

func TestCreateOrder_NotificationFailureIsNotFatal(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)
	env.sender.setOK(false)

	order, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("12.50")})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	logs, err := env.logs.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.NotificationStatusFailed, logs[0].Status)
	assert.Equal(t, errSendFailed.Error(), logs[0].ErrorMessage)
}

// =============================================================================
// Queries and updates
// =============================================================================

func TestListOrders_Dates(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)
	_, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("1.00")})
	require.NoError(t, err)

	_, err = env.orderService.ListOrders(ctx, "2024-13-40", "2024-01-01")
	requireValidation(t, err)

	all, err := env.orderService.ListOrders(ctx, "2000-01-01", "")
	require.NoError(t, err)
	assert.Len(t, all, 1, "a single bound is ignored")

	today := time.Now().UTC().Format(utils.DateLayout)
	got, err := env.orderService.ListOrders(ctx, today, today)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = env.orderService.ListOrders(ctx, "2000-01-01", "2000-01-02")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchOrders_EmptyQueryReturnsAll(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)
	for _, item := range []string{"Widget", "Gadget"} {
		_, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: item, Amount: amount("1.00")})
		require.NoError(t, err)
	}

	all, err := env.orderService.SearchOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := env.orderService.SearchOrders(ctx, "gadg")
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "Gadget", some[0].Item)

	none, err := env.orderService.SearchOrders(ctx, " gadg")
	require.NoError(t, err)
	assert.Empty(t, none, "q is matched as given")
}

func TestUpdateOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)
	order, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("1.00")})
	require.NoError(t, err)
	placed := order.OrderTime

	status := models.OrderStatusCompleted
	updated, err := env.orderService.UpdateOrder(ctx, order.ID, UpdateOrderInput{Status: &status, Amount: amount("2.50")})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)
	assert.Equal(t, "2.50", updated.Amount.StringFixed(2))
	assert.Equal(t, "Widget", updated.Item)
	assert.True(t, placed.Equal(updated.OrderTime))
	assert.Len(t, env.sender.calls, 1, "updates do not notify")

	bad := models.OrderStatus("LOST")
	_, err = env.orderService.UpdateOrder(ctx, order.ID, UpdateOrderInput{Status: &bad})
	requireValidation(t, err)

	code := "NOPE"
	_, err = env.orderService.UpdateOrder(ctx, order.ID, UpdateOrderInput{CustomerCode: &code})
	verr := requireValidation(t, err)
	assert.Equal(t, []string{"Invalid customer code"}, verr.Fields["customer_code"])

	_, err = env.orderService.UpdateOrder(ctx, order.ID+1, UpdateOrderInput{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)
	order, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("1.00")})
	require.NoError(t, err)

	require.NoError(t, env.orderService.DeleteOrder(ctx, order.ID))
	_, err = env.orderService.GetOrder(ctx, order.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

// =============================================================================
// Notifications
// =============================================================================

func TestNotificationRetrier_RunOnce(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)
	env.sender.setOK(false)

	order, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("9.99")})
	require.NoError(t, err)

	retrier := NewNotificationRetrier(env.notifier, env.orders, 3, zerolog.Nop())

	delivered, err := retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered)

	env.sender.setOK(true)
	delivered, err = retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	logs, err := env.logs.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.NotificationStatusSent, logs[0].Status)
	assert.Equal(t, 3, logs[0].Attempts)
	assert.NotNil(t, logs[0].SentAt)

	delivered, err = retrier.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered, "sent notifications are not retried")
}

func TestNotificationRetrier_GivesUpAfterMaxAttempts(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.acme(t)
	env.sender.setOK(false)

	_, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("9.99")})
	require.NoError(t, err)

	retrier := NewNotificationRetrier(env.notifier, env.orders, 2, zerolog.Nop())
	for i := 0; i < 3; i++ {
		_, err := retrier.RunOnce(ctx)
		require.NoError(t, err)
	}
	assert.Len(t, env.sender.calls, 2, "one original send and one retry")
}

func TestNotificationRetrier_Start(t *testing.T) {
	env := setupEnv(t)
	retrier := NewNotificationRetrier(env.notifier, env.orders, 3, zerolog.Nop())

	assert.Error(t, retrier.Start("not a schedule"))

	require.NoError(t, retrier.Start("@every 1h"))
	retrier.Stop()
}

type fakeMessages struct {
	params *twilioApi.CreateMessageParams
	resp   *twilioApi.ApiV2010Message
	err    error
	panic  bool
}

func (f *fakeMessages) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = params
	if f.panic {
		panic("boom")
	}
	return f.resp, f.err
}

func TestTwilioSender(t *testing.T) {
	sid := "SMabc"
	api := &fakeMessages{resp: &twilioApi.ApiV2010Message{Sid: &sid}}
	sender := &TwilioSender{api: api, from: "+15550000000", logger: zerolog.Nop()}

	got, err := sender.Send(context.Background(), "+254700000000", 7, decimal.RequireFromString("50"))
	require.NoError(t, err)
	assert.Equal(t, "SMabc", got)
	assert.Equal(t, "+254700000000", *api.params.To)
	assert.Equal(t, "+15550000000", *api.params.From)
	assert.Equal(t, "Your order #7 of amount 50.00 has been received and is being processed.", *api.params.Body)
	assert.Nil(t, api.params.MessagingServiceSid)

	sender.messagingServiceSID = "MG1"
	_, err = sender.Send(context.Background(), "+254700000000", 7, decimal.RequireFromString("50"))
	require.NoError(t, err)
	assert.Equal(t, "MG1", *api.params.MessagingServiceSid)
}

func TestTwilioSender_Failures(t *testing.T) {
	tests := []struct {
		name    string
		api     *fakeMessages
		wantErr string
	}{
		{"provider error", &fakeMessages{err: errors.New("401 unauthorized")}, "401 unauthorized"},
		{"no sid", &fakeMessages{resp: &twilioApi.ApiV2010Message{}}, ErrNoMessageID.Error()},
		{"panic", &fakeMessages{panic: true}, "sms send panicked: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &TwilioSender{api: tt.api, from: "+1555", logger: zerolog.Nop()}
			sid, err := sender.Send(context.Background(), "+1666", 1, decimal.RequireFromString("1"))
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
			assert.Empty(t, sid)
		})
	}
}

func TestNotifyOrderCreated_RecordsProviderError(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	api := &fakeMessages{err: errors.New("401 unauthorized")}
	env.notifier.sender = &TwilioSender{api: api, from: "+1555", logger: zerolog.Nop()}
	env.acme(t)

	order, err := env.orderService.CreateOrder(ctx, CreateOrderInput{CustomerCode: "ACME1", Item: "Widget", Amount: amount("3.00")})
	require.NoError(t, err)

	logs, err := env.logs.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.NotificationStatusFailed, logs[0].Status)
	assert.Equal(t, "401 unauthorized", logs[0].ErrorMessage)
	assert.Empty(t, logs[0].MessageSID)
}

// =============================================================================
// Users
// =============================================================================

func TestUserService_ResolveUser(t *testing.T) {
	env := setupEnv(t)
	users := repositories.NewUserRepository(env.db)
	svc := NewUserService(users, true, zerolog.Nop())
	ctx := context.Background()

	u, err := svc.ResolveUser(ctx, &utils.Claims{Subject: "s1", Email: "ann@example.com", GivenName: "Ann"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "Ann", u.FirstName)
	require.NotNil(t, u.LastLogin)

	again, err := svc.ResolveUser(ctx, &utils.Claims{Email: "ANN@example.com", GivenName: "Annie", FamilyName: "Lee"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Annie", again.FirstName)
	assert.Equal(t, "Lee", again.LastName)

	_, err = svc.ResolveUser(ctx, &utils.Claims{Subject: "no-email"})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))

	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	_, err = svc.ResolveUser(ctx, &utils.Claims{Email: "ann@example.com"})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
}

func TestUserService_NoAutoCreate(t *testing.T) {
	env := setupEnv(t)
	svc := NewUserService(repositories.NewUserRepository(env.db), false, zerolog.Nop())

	_, err := svc.ResolveUser(context.Background(), &utils.Claims{Email: "new@example.com"})
	assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated))
}
