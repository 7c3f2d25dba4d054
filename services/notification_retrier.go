// services/notification_retrier.go
package services

import (
	"context"
	"fmt"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/models"
	"orderdesk-backend/repositories"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const retryBatchSize = 100

// NotificationRetrier periodically re-sends confirmations whose last
// attempt failed, up to maxAttempts per log row.
type NotificationRetrier struct {
	notifier    *NotificationService
	orders      repositories.OrderRepositoryInterface
	maxAttempts int
	logger      zerolog.Logger

	cron *cron.Cron
}

func NewNotificationRetrier(notifier *NotificationService, orders repositories.OrderRepositoryInterface, maxAttempts int, logger zerolog.Logger) *NotificationRetrier {
	return &NotificationRetrier{
		notifier:    notifier,
		orders:      orders,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "notification_retrier").Logger(),
	}
}

// Start schedules RunOnce on a five-field cron expression.
func (r *NotificationRetrier) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("notification retry run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", schedule, err)
	}

	c.Start()
	r.cron = c
	r.logger.Info().Str("schedule", schedule).Msg("notification retrier started")
	return nil
}

// Stop waits for a running job to finish.
func (r *NotificationRetrier) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// RunOnce retries one batch of failed notifications and returns how many
// were delivered.
func (r *NotificationRetrier) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.notifier.logs.ListRetryable(ctx, r.maxAttempts, retryBatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := range pending {
		entry := &pending[i]

		order, err := r.orders.GetByID(ctx, entry.OrderID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			r.logger.Error().Err(err).Uint("order_id", entry.OrderID).Msg("failed to load order for retry")
			continue
		}

		r.notifier.deliver(ctx, entry, order.Amount)
		if err := r.notifier.logs.Update(ctx, entry); err != nil {
			r.logger.Error().Err(err).Uint("log_id", entry.ID).Msg("failed to update notification log")
			continue
		}
		if entry.Status == models.NotificationStatusSent {
			delivered++
		}
	}

	if len(pending) > 0 {
		r.logger.Info().Int("retried", len(pending)).Int("delivered", delivered).Msg("notification retry run finished")
	}
	return delivered, nil
}
