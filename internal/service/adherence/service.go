package adherence

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
	"github.com/anjali-yatham/Medisense/pkg/logger"
	"github.com/anjali-yatham/Medisense/pkg/messaging"
	"github.com/anjali-yatham/Medisense/pkg/metrics"
)

const (
	// GracePeriod is how long after a slot's nominal time a dose can
	// still be taken before it counts as missed.
	GracePeriod = 60 * time.Minute

	// MissedRepeatInterval bounds how often a missed-dose alert repeats
	// for the same medicine and slot.
	MissedRepeatInterval = 30 * time.Minute

	// EscalationThreshold is the consecutive missed dose count at which
	// the emergency contact is alerted.
	EscalationThreshold = 5

	// ExpiryWarningDays is how far ahead the expiring-soon warning looks.
	ExpiryWarningDays = 3

	notificationChannel = "notifications"
)

// Service is the adherence state machine: it decides which reminders,
// missed alerts and escalations are warranted and enqueues them. Actual
// delivery belongs to the worker. Every scheduled operation processes
// medicines independently; one failure never aborts the rest of a tick.
type Service struct {
	medicines     repository.MedicineRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
	broker        messaging.Broker
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewService(
	medicines repository.MedicineRepository,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	broker messaging.Broker,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		medicines:     medicines,
		notifications: notifications,
		users:         users,
		broker:        broker,
		logger:        logger,
		metrics:       metrics,
	}
}

// ComputeDueReminders inserts one reminder per active, scheduled, untaken
// medicine for the slot. Idempotent within a calendar day: the dedupe
// lookup runs before every insert.
func (s *Service) ComputeDueReminders(ctx context.Context, slot model.DoseSlot, now time.Time) error {
	if !slot.Valid() {
		return fmt.Errorf("invalid timing slot %q", slot)
	}

	medicines, err := s.medicines.ListActive(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list active medicines: %w", err)
	}

	for _, med := range medicines {
		if !med.IsScheduled(slot) || med.IsTaken(slot) {
			continue
		}

		if err := s.remindOne(ctx, med, slot, now); err != nil {
			s.logger.Error(err, "failed to create reminder",
				"medicine_id", med.ID.String(), "timing", string(slot))
		}
	}
	return nil
}

func (s *Service) remindOne(ctx context.Context, med *model.Medicine, slot model.DoseSlot, now time.Time) error {
	existing, err := s.notifications.LatestForDay(ctx, med.ID, &slot, model.NotificationReminder, now)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	timing := slot
	err = s.enqueue(ctx, &model.Notification{
		UserID:       med.PatientID,
		MedicineID:   &med.ID,
		Type:         model.NotificationReminder,
		Title:        "Medicine Reminder",
		Message:      fmt.Sprintf("Time to take %s - %s", med.Name, slot.Label()),
		Timing:       &timing,
		ScheduledFor: now,
	})
	if err != nil {
		return err
	}

	s.metrics.RemindersCreated.Inc()
	return nil
}

// ComputeMissedDoses creates a missed-dose alert for every scheduled,
// untaken slot whose grace period has elapsed, repeating at most every
// MissedRepeatInterval until the dose is taken or the day resets.
func (s *Service) ComputeMissedDoses(ctx context.Context, now time.Time) error {
	medicines, err := s.medicines.ListActive(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list active medicines: %w", err)
	}

	for _, med := range medicines {
		for _, slot := range med.ScheduledSlots() {
			if med.IsTaken(slot) {
				continue
			}

			graceEnd := slot.NominalTime(now).Add(GracePeriod)
			if now.Before(graceEnd) {
				continue
			}

			if err := s.missedOne(ctx, med, slot, now); err != nil {
				s.logger.Error(err, "failed to create missed dose alert",
					"medicine_id", med.ID.String(), "timing", string(slot))
			}
		}
	}
	return nil
}

func (s *Service) missedOne(ctx context.Context, med *model.Medicine, slot model.DoseSlot, now time.Time) error {
	last, err := s.notifications.LatestForDay(ctx, med.ID, &slot, model.NotificationMissedDose, now)
	if err != nil {
		return err
	}
	if last != nil && !last.ScheduledFor.Before(now.Add(-MissedRepeatInterval)) {
		return nil
	}

	timing := slot
	err = s.enqueue(ctx, &model.Notification{
		UserID:       med.PatientID,
		MedicineID:   &med.ID,
		Type:         model.NotificationMissedDose,
		Title:        "Missed Dose Alert",
		Message:      fmt.Sprintf("You missed your dose of %s - %s. Please take it now!", med.Name, slot.Label()),
		Timing:       &timing,
		ScheduledFor: now,
	})
	if err != nil {
		return err
	}

	s.metrics.MissedAlertsCreated.Inc()
	return nil
}

// DailyReset tallies yesterday's misses and then zeroes the taken flags.
// The ordering is load-bearing: zeroing first would erase the evidence
// the tally reads.
func (s *Service) DailyReset(ctx context.Context, now time.Time) error {
	s.tallyMissedBeforeReset(ctx, now)

	count, err := s.medicines.ResetTaken(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to reset taken flags: %w", err)
	}

	s.logger.Info("daily reset completed", "medicines_reset", count)
	return nil
}

func (s *Service) tallyMissedBeforeReset(ctx context.Context, now time.Time) {
	medicines, err := s.medicines.ListActive(ctx, now)
	if err != nil {
		s.logger.Error(err, "failed to list active medicines for missed tally")
		return
	}

	today := model.StartOfDay(now)
	for _, med := range medicines {
		// A medicine already stamped for today was tallied at midnight;
		// counting it again would double its misses.
		if med.LastResetDate != nil && med.LastResetDate.Equal(today) {
			continue
		}
		missed := 0
		for _, slot := range med.ScheduledSlots() {
			if !med.IsTaken(slot) {
				missed++
			}
		}
		if missed == 0 {
			continue
		}

		if err := s.medicines.AddMissed(ctx, med.ID, missed); err != nil {
			s.logger.Error(err, "failed to record missed doses", "medicine_id", med.ID.String())
			continue
		}

		consecutive := med.ConsecutiveMissedCount + missed
		s.logger.Info("missed doses recorded",
			"medicine_id", med.ID.String(), "missed_today", missed, "consecutive", consecutive)

		if consecutive >= EscalationThreshold && !med.EmergencyContactNotified {
			med.ConsecutiveMissedCount = consecutive
			if err := s.Escalate(ctx, med); err != nil {
				s.logger.Error(err, "failed to escalate to emergency contact",
					"medicine_id", med.ID.String())
			}
		}
	}
}

// Escalate alerts the patient's emergency contact about the consecutive
// miss streak. The contact's name and phone are snapshotted into the
// notification; the latch on the medicine keeps the streak from firing
// twice. Without a configured contact this is a logged no-op.
func (s *Service) Escalate(ctx context.Context, med *model.Medicine) error {
	patient, err := s.users.Get(ctx, med.PatientID)
	if err != nil {
		return fmt.Errorf("failed to load patient: %w", err)
	}

	if !patient.HasEmergencyContact() {
		s.logger.Warn("no emergency contact configured, skipping escalation",
			"patient_id", patient.ID.String(), "medicine_id", med.ID.String())
		return nil
	}

	relationship := patient.EmergencyContact.Relationship
	if relationship == "" {
		relationship = "family member"
	}
	contactName := patient.EmergencyContact.Name
	if contactName == "" {
		contactName = "Emergency Contact"
	}
	contactPhone := patient.EmergencyContact.Phone

	err = s.enqueue(ctx, &model.Notification{
		UserID:     patient.ID,
		MedicineID: &med.ID,
		Type:       model.NotificationEmergencyContact,
		Title:      "Medication Alert - Immediate Attention Required",
		Message: fmt.Sprintf(
			"Your %s %s has missed their medication %q %d times consecutively. Please check on them and ensure they are taking their prescribed medicines.",
			relationship, patient.Name, med.Name, med.ConsecutiveMissedCount),
		ScheduledFor:          time.Now(),
		IsEmergencyContact:    true,
		EmergencyContactName:  &contactName,
		EmergencyContactPhone: &contactPhone,
	})
	if err != nil {
		return err
	}

	if err := s.medicines.MarkEscalated(ctx, med.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to latch escalation flag: %w", err)
	}

	s.metrics.EscalationsCreated.Inc()
	s.logger.Info("emergency contact alerted",
		"patient_id", patient.ID.String(),
		"medicine_id", med.ID.String(),
		"consecutive_missed", med.ConsecutiveMissedCount)
	return nil
}

// CheckConsecutiveMissed is a periodic sweep for medicines already over
// the threshold whose latch is clear, catching escalations a failed
// reset tick would otherwise lose.
func (s *Service) CheckConsecutiveMissed(ctx context.Context, now time.Time) error {
	medicines, err := s.medicines.ListEscalationCandidates(ctx, now, EscalationThreshold)
	if err != nil {
		return fmt.Errorf("failed to list escalation candidates: %w", err)
	}

	for _, med := range medicines {
		if err := s.Escalate(ctx, med); err != nil {
			s.logger.Error(err, "failed to escalate to emergency contact",
				"medicine_id", med.ID.String())
		}
	}
	return nil
}

// CheckExpiry warns about courses ending today and courses ending within
// the next ExpiryWarningDays days, once per calendar day each.
func (s *Service) CheckExpiry(ctx context.Context, now time.Time) error {
	today := model.StartOfDay(now)

	expired, err := s.medicines.ListExpiringBetween(ctx, today, model.EndOfDay(now))
	if err != nil {
		return fmt.Errorf("failed to list expired medicines: %w", err)
	}

	for _, med := range expired {
		err := s.expiryOne(ctx, med, model.NotificationExpired,
			"Medicine Course Completed",
			fmt.Sprintf("Your course of %s has ended today. Please consult your doctor if needed.", med.Name),
			now)
		if err != nil {
			s.logger.Error(err, "failed to create expiry notification", "medicine_id", med.ID.String())
		}
	}

	tomorrow := today.AddDate(0, 0, 1)
	horizon := today.AddDate(0, 0, ExpiryWarningDays)

	expiring, err := s.medicines.ListExpiringBetween(ctx, tomorrow, horizon)
	if err != nil {
		return fmt.Errorf("failed to list expiring medicines: %w", err)
	}

	for _, med := range expiring {
		daysLeft := int(math.Ceil(med.EndDate.Sub(today).Hours() / 24))
		err := s.expiryOne(ctx, med, model.NotificationExpiringSoon,
			"Medicine Course Ending Soon",
			fmt.Sprintf("Your course of %s will end in %d days. Please consult your doctor for renewal if needed.", med.Name, daysLeft),
			now)
		if err != nil {
			s.logger.Error(err, "failed to create expiring soon notification", "medicine_id", med.ID.String())
		}
	}

	return nil
}

func (s *Service) expiryOne(ctx context.Context, med *model.Medicine, typ model.NotificationType, title, message string, now time.Time) error {
	existing, err := s.notifications.LatestForDay(ctx, med.ID, nil, typ, now)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	return s.enqueue(ctx, &model.Notification{
		UserID:       med.PatientID,
		MedicineID:   &med.ID,
		Type:         typ,
		Title:        title,
		Message:      message,
		ScheduledFor: now,
	})
}

// NotifyNewMedicine enqueues the summary notification for a freshly
// prescribed medicine. Called by the prescription intake, not the scheduler.
func (s *Service) NotifyNewMedicine(ctx context.Context, med *model.Medicine) error {
	labels := make([]string, 0, len(model.AllSlots))
	for _, slot := range med.ScheduledSlots() {
		labels = append(labels, slot.Label())
	}

	schedule := "as prescribed"
	if len(labels) > 0 {
		schedule = strings.Join(labels, ", ")
	}

	return s.enqueue(ctx, &model.Notification{
		UserID:       med.PatientID,
		MedicineID:   &med.ID,
		Type:         model.NotificationNewMedicine,
		Title:        "New Medicine Added",
		Message:      fmt.Sprintf("%s has been added to your prescription. Take it at: %s", med.Name, schedule),
		ScheduledFor: time.Now(),
	})
}

// enqueue persists the notification and best-effort publishes the in-app
// fan-out event. Broker failures never fail the enqueue.
func (s *Service) enqueue(ctx context.Context, n *model.Notification) error {
	if err := s.notifications.Create(ctx, n); err != nil {
		return err
	}

	if s.broker != nil {
		event := &model.NotificationEvent{
			ID:             uuid.New(),
			NotificationID: n.ID,
			UserID:         n.UserID,
			Type:           n.Type,
			Title:          n.Title,
			CreatedAt:      time.Now(),
		}
		if err := s.broker.Publish(ctx, notificationChannel, event); err != nil {
			s.logger.Error(err, "failed to publish notification event", "notification_id", n.ID.String())
		}
	}
	return nil
}
