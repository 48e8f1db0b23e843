package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
)

type medicineRepository struct {
	db *sqlx.DB
}

func NewMedicineRepository(db *sqlx.DB) repository.MedicineRepository {
	return &medicineRepository{db: db}
}

// slotColumns maps the fixed slot enum onto column suffixes. Slot values
// reach SQL only through this table, never from raw request input.
var slotColumns = map[model.DoseSlot]string{
	model.SlotBeforeBreakfast: "before_breakfast",
	model.SlotAfterBreakfast:  "after_breakfast",
	model.SlotBeforeLunch:     "before_lunch",
	model.SlotAfterLunch:      "after_lunch",
	model.SlotBeforeDinner:    "before_dinner",
	model.SlotAfterDinner:     "after_dinner",
}

func slotColumn(prefix string, slot model.DoseSlot) (string, error) {
	suffix, ok := slotColumns[slot]
	if !ok {
		return "", fmt.Errorf("unknown timing slot %q", slot)
	}
	return prefix + "_" + suffix, nil
}

type medicineRow struct {
	ID             uuid.UUID `db:"id"`
	PatientID      uuid.UUID `db:"patient_id"`
	PrescribedBy   uuid.UUID `db:"prescribed_by"`
	PrescriptionID uuid.UUID `db:"prescription_id"`
	Name           string    `db:"name"`
	Quantity       int       `db:"quantity"`
	StartDate      time.Time `db:"start_date"`
	EndDate        time.Time `db:"end_date"`

	TimingBeforeBreakfast bool `db:"timing_before_breakfast"`
	TimingAfterBreakfast  bool `db:"timing_after_breakfast"`
	TimingBeforeLunch     bool `db:"timing_before_lunch"`
	TimingAfterLunch      bool `db:"timing_after_lunch"`
	TimingBeforeDinner    bool `db:"timing_before_dinner"`
	TimingAfterDinner     bool `db:"timing_after_dinner"`

	TakenBeforeBreakfast bool `db:"taken_before_breakfast"`
	TakenAfterBreakfast  bool `db:"taken_after_breakfast"`
	TakenBeforeLunch     bool `db:"taken_before_lunch"`
	TakenAfterLunch      bool `db:"taken_after_lunch"`
	TakenBeforeDinner    bool `db:"taken_before_dinner"`
	TakenAfterDinner     bool `db:"taken_after_dinner"`

	LastResetDate                 *time.Time `db:"last_reset_date"`
	TakenCount                    int        `db:"taken_count"`
	MissedCount                   int        `db:"missed_count"`
	ConsecutiveMissedCount        int        `db:"consecutive_missed_count"`
	EmergencyContactNotified      bool       `db:"emergency_contact_notified"`
	LastEmergencyNotificationDate *time.Time `db:"last_emergency_notification_date"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

const medicineColumns = `
	id, patient_id, prescribed_by, prescription_id, name, quantity,
	start_date, end_date,
	timing_before_breakfast, timing_after_breakfast, timing_before_lunch,
	timing_after_lunch, timing_before_dinner, timing_after_dinner,
	taken_before_breakfast, taken_after_breakfast, taken_before_lunch,
	taken_after_lunch, taken_before_dinner, taken_after_dinner,
	last_reset_date, taken_count, missed_count, consecutive_missed_count,
	emergency_contact_notified, last_emergency_notification_date,
	created_at, updated_at
`

func (r medicineRow) toModel() *model.Medicine {
	return &model.Medicine{
		ID:             r.ID,
		PatientID:      r.PatientID,
		PrescribedBy:   r.PrescribedBy,
		PrescriptionID: r.PrescriptionID,
		Name:           r.Name,
		Quantity:       r.Quantity,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Scheduled: map[model.DoseSlot]bool{
			model.SlotBeforeBreakfast: r.TimingBeforeBreakfast,
			model.SlotAfterBreakfast:  r.TimingAfterBreakfast,
			model.SlotBeforeLunch:     r.TimingBeforeLunch,
			model.SlotAfterLunch:      r.TimingAfterLunch,
			model.SlotBeforeDinner:    r.TimingBeforeDinner,
			model.SlotAfterDinner:     r.TimingAfterDinner,
		},
		Taken: map[model.DoseSlot]bool{
			model.SlotBeforeBreakfast: r.TakenBeforeBreakfast,
			model.SlotAfterBreakfast:  r.TakenAfterBreakfast,
			model.SlotBeforeLunch:     r.TakenBeforeLunch,
			model.SlotAfterLunch:      r.TakenAfterLunch,
			model.SlotBeforeDinner:    r.TakenBeforeDinner,
			model.SlotAfterDinner:     r.TakenAfterDinner,
		},
		LastResetDate:                 r.LastResetDate,
		TakenCount:                    r.TakenCount,
		MissedCount:                   r.MissedCount,
		ConsecutiveMissedCount:        r.ConsecutiveMissedCount,
		EmergencyContactNotified:      r.EmergencyContactNotified,
		LastEmergencyNotificationDate: r.LastEmergencyNotificationDate,
		CreatedAt:                     r.CreatedAt,
		UpdatedAt:                     r.UpdatedAt,
	}
}

func (r *medicineRepository) Create(ctx context.Context, m *model.Medicine) error {
	query := `
		INSERT INTO medicines (
			id, patient_id, prescribed_by, prescription_id, name, quantity,
			start_date, end_date,
			timing_before_breakfast, timing_after_breakfast, timing_before_lunch,
			timing_after_lunch, timing_before_dinner, timing_after_dinner,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.PatientID,
		m.PrescribedBy,
		m.PrescriptionID,
		m.Name,
		m.Quantity,
		m.StartDate,
		m.EndDate,
		m.Scheduled[model.SlotBeforeBreakfast],
		m.Scheduled[model.SlotAfterBreakfast],
		m.Scheduled[model.SlotBeforeLunch],
		m.Scheduled[model.SlotAfterLunch],
		m.Scheduled[model.SlotBeforeDinner],
		m.Scheduled[model.SlotAfterDinner],
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medicine: %w", err)
	}
	return nil
}

func (r *medicineRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1`

	var row medicineRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}
	return row.toModel(), nil
}

func (r *medicineRepository) GetForPatient(ctx context.Context, id, patientID uuid.UUID) (*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE id = $1 AND patient_id = $2`

	var row medicineRow
	if err := r.db.GetContext(ctx, &row, query, id, patientID); err != nil {
		return nil, fmt.Errorf("failed to get medicine: %w", err)
	}
	return row.toModel(), nil
}

func (r *medicineRepository) Delete(ctx context.Context, id, patientID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return fmt.Errorf("failed to delete medicine: %w", err)
	}
	return requireRowsAffected(result)
}

func (r *medicineRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE patient_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, patientID)
}

func (r *medicineRepository) ListActive(ctx context.Context, day time.Time) ([]*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE start_date <= $1 AND end_date >= $2`
	return r.list(ctx, query, model.EndOfDay(day), model.StartOfDay(day))
}

func (r *medicineRepository) ListActiveForPatient(ctx context.Context, patientID uuid.UUID, day time.Time) ([]*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE patient_id = $1 AND start_date <= $2 AND end_date >= $3`
	return r.list(ctx, query, patientID, model.EndOfDay(day), model.StartOfDay(day))
}

func (r *medicineRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines WHERE end_date >= $1 AND end_date <= $2`
	return r.list(ctx, query, from, to)
}

func (r *medicineRepository) ListEscalationCandidates(ctx context.Context, day time.Time, threshold int) ([]*model.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines
		WHERE start_date <= $1 AND end_date >= $2
		  AND consecutive_missed_count >= $3
		  AND emergency_contact_notified = false`
	return r.list(ctx, query, model.EndOfDay(day), model.StartOfDay(day), threshold)
}

func (r *medicineRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Medicine, error) {
	var rows []medicineRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}

	medicines := make([]*model.Medicine, 0, len(rows))
	for _, row := range rows {
		medicines = append(medicines, row.toModel())
	}
	return medicines, nil
}

func (r *medicineRepository) RecordTake(ctx context.Context, id uuid.UUID, slot model.DoseSlot) error {
	takenCol, err := slotColumn("taken", slot)
	if err != nil {
		return err
	}

	// Guarded compare-and-set: fails cleanly if a concurrent take landed
	// first or the stock ran out between read and write.
	query := fmt.Sprintf(`
		UPDATE medicines
		SET %s = true,
		    quantity = quantity - 1,
		    taken_count = taken_count + 1,
		    consecutive_missed_count = 0,
		    emergency_contact_notified = false,
		    updated_at = $2
		WHERE id = $1 AND %s = false AND quantity > 0
	`, takenCol, takenCol)

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record take: %w", err)
	}
	return requireRowsAffected(result)
}

func (r *medicineRepository) RecordUntake(ctx context.Context, id uuid.UUID, slot model.DoseSlot) error {
	takenCol, err := slotColumn("taken", slot)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE medicines
		SET %s = false,
		    quantity = quantity + 1,
		    taken_count = GREATEST(taken_count - 1, 0),
		    updated_at = $2
		WHERE id = $1 AND %s = true
	`, takenCol, takenCol)

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record untake: %w", err)
	}
	return requireRowsAffected(result)
}

func (r *medicineRepository) AddMissed(ctx context.Context, id uuid.UUID, n int) error {
	query := `
		UPDATE medicines
		SET missed_count = missed_count + $2,
		    consecutive_missed_count = consecutive_missed_count + $2,
		    updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, n, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add missed doses: %w", err)
	}
	return requireRowsAffected(result)
}

func (r *medicineRepository) MarkEscalated(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE medicines
		SET emergency_contact_notified = true,
		    last_emergency_notification_date = $2,
		    updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, at, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark escalated: %w", err)
	}
	return requireRowsAffected(result)
}

func (r *medicineRepository) ResetTaken(ctx context.Context, day time.Time) (int64, error) {
	query := `
		UPDATE medicines
		SET taken_before_breakfast = false,
		    taken_after_breakfast = false,
		    taken_before_lunch = false,
		    taken_after_lunch = false,
		    taken_before_dinner = false,
		    taken_after_dinner = false,
		    last_reset_date = $1,
		    updated_at = $2
		WHERE start_date <= $3 AND end_date >= $1
	`
	start := model.StartOfDay(day)
	result, err := r.db.ExecContext(ctx, query, start, time.Now(), model.EndOfDay(day))
	if err != nil {
		return 0, fmt.Errorf("failed to reset taken flags: %w", err)
	}
	return result.RowsAffected()
}

func requireRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNoRowsUpdated
	}
	return nil
}

// IsNotFound reports whether err is the driver's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
