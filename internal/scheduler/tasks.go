package scheduler

import (
	"context"
	"time"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/service/adherence"
)

// Task names used by the admin trigger endpoints.
const (
	TaskDailyReset      = "daily-reset"
	TaskMissedCheck     = "missed-check"
	TaskExpiryCheck     = "expiry-check"
	TaskEscalationCheck = "escalation-check"
)

// ReminderTaskName returns the per-slot reminder task name, e.g.
// "reminder-beforeBreakfast".
func ReminderTaskName(slot model.DoseSlot) string {
	return "reminder-" + string(slot)
}

// RegisterAdherenceTasks wires the standing adherence schedule: one
// reminder task per dose slot at its nominal time, the missed-dose
// check every half hour, the daily state reset at midnight, the expiry
// check each morning and a periodic sweep for silent escalations.
func RegisterAdherenceTasks(s *Scheduler, svc *adherence.Service) error {
	for _, slot := range model.AllSlots {
		slot := slot
		info := model.TimingSchedule[slot]
		err := s.Register(ReminderTaskName(slot), DailyAt{Hour: info.Hour, Minute: info.Minute}, func(ctx context.Context) error {
			return svc.ComputeDueReminders(ctx, slot, time.Now())
		})
		if err != nil {
			return err
		}
	}

	if err := s.Register(TaskMissedCheck, Every(30*time.Minute), func(ctx context.Context) error {
		return svc.ComputeMissedDoses(ctx, time.Now())
	}); err != nil {
		return err
	}

	if err := s.Register(TaskDailyReset, DailyAt{Hour: 0, Minute: 0}, func(ctx context.Context) error {
		return svc.DailyReset(ctx, time.Now())
	}); err != nil {
		return err
	}

	if err := s.Register(TaskExpiryCheck, DailyAt{Hour: 8, Minute: 0}, func(ctx context.Context) error {
		return svc.CheckExpiry(ctx, time.Now())
	}); err != nil {
		return err
	}

	return s.Register(TaskEscalationCheck, Every(2*time.Hour), func(ctx context.Context) error {
		return svc.CheckConsecutiveMissed(ctx, time.Now())
	})
}
