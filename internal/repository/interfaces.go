package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/anjali-yatham/Medisense/internal/model"
)

// ErrNoRowsUpdated is returned by compare-and-set style updates whose
// guard clause did not match; the caller maps it to a typed conflict.
var ErrNoRowsUpdated = errors.New("no rows updated")

// All repository interfaces in one file
type (
	// MedicineRepository owns the medicine records. Counter and flag
	// mutations are single-statement field-scoped updates so concurrent
	// writers never clobber each other's columns.
	MedicineRepository interface {
		Create(ctx context.Context, medicine *model.Medicine) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error)
		GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Medicine, error)
		Delete(ctx context.Context, id, patientID uuid.UUID) error
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error)
		ListActive(ctx context.Context, day time.Time) ([]*model.Medicine, error)
		ListActiveForPatient(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*model.Medicine, error)
		ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Medicine, error)
		ListEscalationCandidates(ctx context.Context, day time.Time, threshold int) ([]*model.Medicine, error)

		// RecordTake sets taken[slot], decrements quantity and bumps the
		// lifetime counters in one guarded statement; the guard requires
		// the slot untaken and quantity above zero.
		RecordTake(ctx context.Context, id uuid.UUID, slot model.DoseSlot) error
		// RecordUntake clears taken[slot] and restores quantity; the guard
		// requires the slot currently taken. takenCount never drops below zero.
		RecordUntake(ctx context.Context, id uuid.UUID, slot model.DoseSlot) error
		// AddMissed bumps missedCount and consecutiveMissedCount by n.
		AddMissed(ctx context.Context, id uuid.UUID, n int) error
		// MarkEscalated latches emergencyContactNotified and stamps the
		// last escalation time.
		MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) error
		// ResetTaken zeroes every taken flag for medicines active on day
		// and stamps lastResetDate. Returns the number of rows touched.
		ResetTaken(ctx context.Context, day time.Time) (int64, error)
	}

	// NotificationRepository is the durable outbound mailbox.
	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)

		// LatestForDay returns the newest notification for the dedupe key
		// (medicine, timing, type) within the calendar day of `day`, or
		// nil when none exists.
		LatestForDay(ctx context.Context, medicineID uuid.UUID, timing *model.DoseSlot, typ model.NotificationType, day time.Time) (*model.Notification, error)

		// ListPending returns unsent rows whose scheduledFor has passed,
		// oldest first, bounded by limit.
		ListPending(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error)
		MarkSent(ctx context.Context, id uuid.UUID) error

		MarkRemindersRead(ctx context.Context, medicineID uuid.UUID, timing model.DoseSlot, day time.Time) error

		ListForUser(ctx context.Context, userID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, int, error)
		UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
		MarkRead(ctx context.Context, id, userID uuid.UUID) error
		MarkAllRead(ctx context.Context, userID uuid.UUID) error
		Delete(ctx context.Context, id, userID uuid.UUID) error
	}

	// UserRepository is read-only for the core: phone numbers and
	// emergency contacts come from here.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	}
)
