// services/notification_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderdesk-backend/config"
	"orderdesk-backend/models"
	"orderdesk-backend/repositories"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender delivers order confirmations. Implementations never panic: a
// failed delivery is reported through err with an empty message id.
type SMSSender interface {
	Send(ctx context.Context, phone string, orderID uint, amount decimal.Decimal) (messageID string, err error)
}

// ErrNoMessageID is returned when the provider accepts a message without
// identifying it.
var ErrNoMessageID = errors.New("sms provider did not return a message id")

// OrderConfirmationMessage is the text sent to a customer after an order is
// created.
func OrderConfirmationMessage(orderID uint, amount decimal.Decimal) string {
	return fmt.Sprintf("Your order #%d of amount %s has been received and is being processed.",
		orderID, amount.StringFixed(2))
}

// messageCreator is the part of the Twilio API client we use.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	api                 messageCreator
	from                string
	messagingServiceSID string
	logger              zerolog.Logger
}

func NewTwilioSender(cfg config.Config, logger zerolog.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return &TwilioSender{
		api:                 client.Api,
		from:                cfg.TwilioPhoneNumber,
		messagingServiceSID: cfg.TwilioMessagingServiceSID,
		logger:              logger.With().Str("component", "sms").Logger(),
	}
}

func (s *TwilioSender) Send(_ context.Context, phone string, orderID uint, amount decimal.Decimal) (sid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Uint("order_id", orderID).Msg("sms send panicked")
			sid, err = "", fmt.Errorf("sms send panicked: %v", r)
		}
	}()

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetBody(OrderConfirmationMessage(orderID, amount))
	if s.messagingServiceSID != "" {
		params.SetMessagingServiceSid(s.messagingServiceSID)
	} else {
		params.SetFrom(s.from)
	}

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		s.logger.Error().Err(err).Str("to", phone).Uint("order_id", orderID).Msg("failed to send sms")
		return "", err
	}
	if resp == nil || resp.Sid == nil {
		s.logger.Warn().Str("to", phone).Uint("order_id", orderID).Msg("sms accepted but no SID returned")
		return "", ErrNoMessageID
	}

	s.logger.Info().Str("to", phone).Str("sid", *resp.Sid).Uint("order_id", orderID).Msg("sms sent")
	return *resp.Sid, nil
}

// LogSender stands in for Twilio when no credentials are configured. It
// logs the message and reports success.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(_ context.Context, phone string, orderID uint, amount decimal.Decimal) (string, error) {
	id := fmt.Sprintf("log-%d-%d", orderID, time.Now().UnixNano())
	s.Logger.Info().
		Str("to", phone).
		Uint("order_id", orderID).
		Str("body", OrderConfirmationMessage(orderID, amount)).
		Str("message_id", id).
		Msg("sms disabled, message logged only")
	return id, nil
}

// NotificationService sends order confirmations and keeps a log row per
// attempt so failures can be retried.
type NotificationService struct {
	sender SMSSender
	logs   repositories.NotificationLogRepositoryInterface
	logger zerolog.Logger
}

func NewNotificationService(sender SMSSender, logs repositories.NotificationLogRepositoryInterface, logger zerolog.Logger) *NotificationService {
	return &NotificationService{sender: sender, logs: logs, logger: logger}
}

// NotifyOrderCreated sends the confirmation for order and records the
// outcome. Errors are logged, never returned.
func (s *NotificationService) NotifyOrderCreated(ctx context.Context, order *models.Order) {
	entry := &models.NotificationLog{
		OrderID:     order.ID,
		PhoneNumber: order.Customer.PhoneNumber,
		Message:     OrderConfirmationMessage(order.ID, order.Amount),
		Channel:     models.NotificationChannelSMS,
	}
	s.deliver(ctx, entry, order.Amount)

	if err := s.logs.Create(ctx, entry); err != nil {
		s.logger.Error().Err(err).Uint("order_id", order.ID).Msg("failed to record notification")
	}
}

// deliver makes one send attempt and updates entry with the result.
func (s *NotificationService) deliver(ctx context.Context, entry *models.NotificationLog, amount decimal.Decimal) {
	entry.Attempts++

	sid, err := s.sender.Send(ctx, entry.PhoneNumber, entry.OrderID, amount)
	if err == nil && sid == "" {
		err = ErrNoMessageID
	}
	if err != nil {
		entry.Status = models.NotificationStatusFailed
		entry.ErrorMessage = err.Error()
		s.logger.Warn().
			Err(err).
			Uint("order_id", entry.OrderID).
			Int("attempts", entry.Attempts).
			Msg("order confirmation not delivered")
		return
	}

	now := time.Now().UTC()
	entry.Status = models.NotificationStatusSent
	entry.MessageSID = sid
	entry.ErrorMessage = ""
	entry.SentAt = &now
}
