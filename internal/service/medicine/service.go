package medicine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
	apperrors "github.com/anjali-yatham/Medisense/pkg/errors"
	"github.com/anjali-yatham/Medisense/pkg/logger"
)

type Service interface {
	TakeDose(ctx context.Context, medicineID, patientID uuid.UUID, slot model.DoseSlot) (*model.DoseUpdateResult, error)
	UntakeDose(ctx context.Context, medicineID, patientID uuid.UUID, slot model.DoseSlot) (*model.DoseUpdateResult, error)
	GetTodaySchedule(ctx context.Context, patientID uuid.UUID, now time.Time) (map[model.DoseSlot]*model.SlotSchedule, error)
	GetStats(ctx context.Context, patientID uuid.UUID, now time.Time) (*model.Stats, error)
	ListMedicines(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error)
	DeleteMedicine(ctx context.Context, medicineID, patientID uuid.UUID) error
}

type service struct {
	medicines     repository.MedicineRepository
	notifications repository.NotificationRepository
	logger        *logger.Logger
}

func NewService(medicines repository.MedicineRepository, notifications repository.NotificationRepository, logger *logger.Logger) Service {
	return &service{
		medicines:     medicines,
		notifications: notifications,
		logger:        logger,
	}
}

// TakeDose confirms today's dose for one slot. Any successful take
// forgives the whole consecutive-miss streak and clears the escalation
// latch, not just the slot being taken.
func (s *service) TakeDose(ctx context.Context, medicineID, patientID uuid.UUID, slot model.DoseSlot) (*model.DoseUpdateResult, error) {
	med, err := s.getOwned(ctx, medicineID, patientID)
	if err != nil {
		return nil, err
	}

	if !med.IsScheduled(slot) {
		return nil, apperrors.BadRequest(fmt.Sprintf("this medicine is not scheduled for %s", slot), nil)
	}
	if med.IsTaken(slot) {
		return nil, apperrors.Conflict(fmt.Sprintf("%s already taken for %s", med.Name, slot.Label()), nil)
	}
	if med.Quantity <= 0 {
		return nil, apperrors.Exhausted(fmt.Sprintf("no %s tablets left, please refill", med.Name), nil)
	}

	if err := s.medicines.RecordTake(ctx, med.ID, slot); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			// Lost a race against a concurrent take or refill drain.
			return nil, apperrors.Conflict(fmt.Sprintf("%s already taken for %s", med.Name, slot.Label()), err)
		}
		return nil, fmt.Errorf("failed to record take: %w", err)
	}

	// A confirmed dose makes the pending reminder moot.
	if err := s.notifications.MarkRemindersRead(ctx, med.ID, slot, time.Now()); err != nil {
		s.logger.Error(err, "failed to mark reminders read",
			"medicine_id", med.ID.String(), "timing", string(slot))
	}

	return &model.DoseUpdateResult{
		MedicineID:   med.ID,
		MedicineName: med.Name,
		Timing:       slot,
		Taken:        true,
		QuantityLeft: med.Quantity - 1,
		TakenCount:   med.TakenCount + 1,
	}, nil
}

// UntakeDose is the same-day correction for an accidental take. It does
// not touch the consecutive-miss counters: an undo is a correction, not
// a new miss.
func (s *service) UntakeDose(ctx context.Context, medicineID, patientID uuid.UUID, slot model.DoseSlot) (*model.DoseUpdateResult, error) {
	med, err := s.getOwned(ctx, medicineID, patientID)
	if err != nil {
		return nil, err
	}

	if !med.IsTaken(slot) {
		return nil, apperrors.Conflict(fmt.Sprintf("%s was not marked as taken for %s", med.Name, slot.Label()), nil)
	}

	if err := s.medicines.RecordUntake(ctx, med.ID, slot); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			return nil, apperrors.Conflict(fmt.Sprintf("%s was not marked as taken for %s", med.Name, slot.Label()), err)
		}
		return nil, fmt.Errorf("failed to record untake: %w", err)
	}

	takenCount := med.TakenCount - 1
	if takenCount < 0 {
		takenCount = 0
	}

	return &model.DoseUpdateResult{
		MedicineID:   med.ID,
		MedicineName: med.Name,
		Timing:       slot,
		Taken:        false,
		QuantityLeft: med.Quantity + 1,
		TakenCount:   takenCount,
	}, nil
}

// GetTodaySchedule groups the patient's active medicines under each of
// the six timing slots for dashboard rendering.
func (s *service) GetTodaySchedule(ctx context.Context, patientID uuid.UUID, now time.Time) (map[model.DoseSlot]*model.SlotSchedule, error) {
	medicines, err := s.medicines.ListActiveForPatient(ctx, patientID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active medicines: %w", err)
	}

	schedule := make(map[model.DoseSlot]*model.SlotSchedule, len(model.AllSlots))
	for _, slot := range model.AllSlots {
		info := model.TimingSchedule[slot]
		schedule[slot] = &model.SlotSchedule{
			Label:     info.Label,
			Hour:      info.Hour,
			Minute:    info.Minute,
			Medicines: []model.SlotScheduleEntry{},
		}
	}

	for _, med := range medicines {
		for _, slot := range med.ScheduledSlots() {
			schedule[slot].Medicines = append(schedule[slot].Medicines, model.SlotScheduleEntry{
				MedicineID: med.ID,
				Name:       med.Name,
				Quantity:   med.Quantity,
				Taken:      med.IsTaken(slot),
			})
		}
	}

	return schedule, nil
}

// GetStats aggregates lifetime and today's adherence across the
// patient's active medicines.
func (s *service) GetStats(ctx context.Context, patientID uuid.UUID, now time.Time) (*model.Stats, error) {
	medicines, err := s.medicines.ListActiveForPatient(ctx, patientID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active medicines: %w", err)
	}

	stats := &model.Stats{Medicines: make([]model.MedicineStats, 0, len(medicines))}

	for _, med := range medicines {
		scheduledToday := 0
		takenToday := 0
		for _, slot := range med.ScheduledSlots() {
			scheduledToday++
			if med.IsTaken(slot) {
				takenToday++
			}
		}

		stats.Summary.TotalTakenAllTime += med.TakenCount
		stats.Summary.TotalMissedAllTime += med.MissedCount
		stats.Summary.ScheduledToday += scheduledToday
		stats.Summary.TakenToday += takenToday

		stats.Medicines = append(stats.Medicines, model.MedicineStats{
			MedicineID:               med.ID,
			Name:                     med.Name,
			Quantity:                 med.Quantity,
			TakenCount:               med.TakenCount,
			MissedCount:              med.MissedCount,
			ConsecutiveMissedCount:   med.ConsecutiveMissedCount,
			EmergencyContactNotified: med.EmergencyContactNotified,
			ScheduledToday:           scheduledToday,
			TakenToday:               takenToday,
			PendingToday:             scheduledToday - takenToday,
		})
	}

	stats.Summary.TotalMedicines = len(medicines)
	stats.Summary.PendingToday = stats.Summary.ScheduledToday - stats.Summary.TakenToday

	total := stats.Summary.TotalTakenAllTime + stats.Summary.TotalMissedAllTime
	if total > 0 {
		stats.Summary.AdherenceRate = int(float64(stats.Summary.TotalTakenAllTime)/float64(total)*100 + 0.5)
	} else {
		stats.Summary.AdherenceRate = 100
	}

	return stats, nil
}

func (s *service) ListMedicines(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error) {
	medicines, err := s.medicines.ListForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}
	return medicines, nil
}

func (s *service) DeleteMedicine(ctx context.Context, medicineID, patientID uuid.UUID) error {
	err := s.medicines.Delete(ctx, medicineID, patientID)
	if errors.Is(err, repository.ErrNoRowsUpdated) || errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("medicine", err)
	}
	return err
}

// getOwned loads the medicine scoped to the caller. A wrong id and an
// ownership mismatch are indistinguishable to the caller.
func (s *service) getOwned(ctx context.Context, medicineID, patientID uuid.UUID) (*model.Medicine, error) {
	med, err := s.medicines.GetForPatient(ctx, medicineID, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("medicine", err)
		}
		return nil, fmt.Errorf("failed to load medicine: %w", err)
	}
	return med, nil
}
