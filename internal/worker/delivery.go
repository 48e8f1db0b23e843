package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
	"github.com/anjali-yatham/Medisense/internal/sms"
	"github.com/anjali-yatham/Medisense/pkg/logger"
	"github.com/anjali-yatham/Medisense/pkg/metrics"
)

const (
	brandSuffix      = " - MediSense"
	maxMessageLength = 300

	recipientCacheTTL     = 5 * time.Minute
	recipientCacheCleanup = 10 * time.Minute
)

type DeliveryWorkerConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// DeliveryWorker drains the notification mailbox: it polls for unsent
// rows whose scheduledFor has passed, re-validates that each is still
// warranted against the live medicine state, and hands the composed text
// to the SMS transport. Delivery is at-least-once; a send that succeeds
// but fails to be recorded will repeat on the next cycle.
type DeliveryWorker struct {
	notifications repository.NotificationRepository
	medicines     repository.MedicineRepository
	users         repository.UserRepository
	sender        sms.Sender
	config        DeliveryWorkerConfig
	logger        *logger.Logger
	metrics       *metrics.Metrics

	// recipients caches user phone lookups within a few cycles; a batch
	// of reminders for one patient costs one user read, not one per row.
	recipients *gocache.Cache

	inFlight atomic.Bool
}

func NewDeliveryWorker(
	notifications repository.NotificationRepository,
	medicines repository.MedicineRepository,
	users repository.UserRepository,
	sender sms.Sender,
	config DeliveryWorkerConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *DeliveryWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 15 * time.Second
	}

	return &DeliveryWorker{
		notifications: notifications,
		medicines:     medicines,
		users:         users,
		sender:        sender,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		recipients:    gocache.New(recipientCacheTTL, recipientCacheCleanup),
	}
}

func (w *DeliveryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("starting delivery worker", "poll_interval", w.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutting down delivery worker")
			return
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				w.logger.Error(err, "delivery cycle failed")
			}
		}
	}
}

// ProcessOnce runs a single poll cycle. Single-flight: if a previous
// cycle is still working through a slow transport, this call returns
// immediately instead of overlapping it.
func (w *DeliveryWorker) ProcessOnce(ctx context.Context) error {
	if !w.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer w.inFlight.Store(false)

	timer := prometheus.NewTimer(w.metrics.DeliveryCycleDuration)
	defer timer.ObserveDuration()

	now := time.Now()
	dbTimer := prometheus.NewTimer(w.metrics.DatabaseLatency.WithLabelValues("list_pending_notifications"))
	pending, err := w.notifications.ListPending(ctx, now, w.config.BatchSize)
	dbTimer.ObserveDuration()
	if err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("list_pending_notifications", "error").Inc()
		return fmt.Errorf("failed to fetch pending notifications: %w", err)
	}
	w.metrics.DatabaseOperations.WithLabelValues("list_pending_notifications", "success").Inc()
	w.metrics.PendingQueueSize.Set(float64(len(pending)))

	for _, n := range pending {
		if err := w.deliver(ctx, n); err != nil {
			w.logger.Error(err, "failed to process notification",
				"notification_id", n.ID.String(), "type", string(n.Type))
		}
	}
	return nil
}

func (w *DeliveryWorker) deliver(ctx context.Context, n *model.Notification) error {
	// Self-resolution check: a reminder or missed alert for a dose the
	// user confirmed after enqueue would be a stale nag. Escalation
	// alerts are exempt; the streak they report already happened.
	if !n.IsEmergencyContact {
		moot, err := w.resolvedSinceEnqueue(ctx, n)
		if err != nil {
			return err
		}
		if moot {
			w.metrics.NotificationsSkipped.WithLabelValues("already_taken").Inc()
			w.logger.Info("dose confirmed since enqueue, marking sent without transport call",
				"notification_id", n.ID.String())
			return w.notifications.MarkSent(ctx, n.ID)
		}
	}

	to, greeting, err := w.resolveRecipient(ctx, n)
	if err != nil {
		return err
	}
	if to == "" {
		w.metrics.NotificationsSkipped.WithLabelValues("no_phone").Inc()
		w.logger.Warn("no phone resolvable, leaving notification unsent",
			"notification_id", n.ID.String(), "user_id", n.UserID.String())
		return nil
	}

	number := sms.NormalizePhone(to)
	if number == "" {
		w.metrics.NotificationsSkipped.WithLabelValues("invalid_phone").Inc()
		w.logger.Warn("invalid phone number, leaving notification unsent",
			"notification_id", n.ID.String(), "user_id", n.UserID.String())
		return nil
	}

	text := composeMessage(greeting, n)
	if err := w.sender.Send(ctx, number, text); err != nil {
		// Left unsent for retry on the next cycle.
		w.metrics.NotificationsFailed.Inc()
		return fmt.Errorf("transport send failed: %w", err)
	}

	if err := w.notifications.MarkSent(ctx, n.ID); err != nil {
		w.metrics.DatabaseOperations.WithLabelValues("mark_sent", "error").Inc()
		return fmt.Errorf("sent but failed to record: %w", err)
	}
	w.metrics.DatabaseOperations.WithLabelValues("mark_sent", "success").Inc()

	w.metrics.NotificationsDelivered.Inc()
	w.logger.Info("notification delivered",
		"notification_id", n.ID.String(), "type", string(n.Type))
	return nil
}

// resolvedSinceEnqueue reports whether a reminder or missed-dose alert is
// now moot because the dose was taken, or the medicine no longer exists.
func (w *DeliveryWorker) resolvedSinceEnqueue(ctx context.Context, n *model.Notification) (bool, error) {
	if n.Type != model.NotificationReminder && n.Type != model.NotificationMissedDose {
		return false, nil
	}
	if n.MedicineID == nil || n.Timing == nil {
		return false, nil
	}

	med, err := w.medicines.Get(ctx, *n.MedicineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("failed to re-check medicine: %w", err)
	}

	return med.IsTaken(*n.Timing), nil
}

// resolveRecipient returns the phone number and personalised greeting.
// Escalations use the contact snapshot captured at creation; everything
// else uses the target user's current phone.
func (w *DeliveryWorker) resolveRecipient(ctx context.Context, n *model.Notification) (string, string, error) {
	if n.IsEmergencyContact {
		phone := ""
		if n.EmergencyContactPhone != nil {
			phone = *n.EmergencyContactPhone
		}
		greeting := ""
		if n.EmergencyContactName != nil && *n.EmergencyContactName != "" {
			greeting = fmt.Sprintf("Hi %s, ", *n.EmergencyContactName)
		}
		return phone, greeting, nil
	}

	user, err := w.lookupUser(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("failed to load recipient: %w", err)
	}

	greeting := ""
	if user.Name != "" {
		greeting = fmt.Sprintf("Hi %s, ", user.Name)
	}
	return user.Phone, greeting, nil
}

func (w *DeliveryWorker) lookupUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if cached, ok := w.recipients.Get(id.String()); ok {
		return cached.(*model.User), nil
	}

	user, err := w.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	w.recipients.Set(id.String(), user, gocache.DefaultExpiration)
	return user, nil
}

func composeMessage(greeting string, n *model.Notification) string {
	body := n.Message
	if body == "" {
		body = n.Title
	}
	if body == "" {
		body = "Notification"
	}

	text := greeting + body + brandSuffix
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength-3] + "..."
	}
	return text
}
