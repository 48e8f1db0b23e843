package model

import (
	"time"

	"github.com/google/uuid"
)

// Medicine is one prescribed item for one patient. The Taken map holds
// today's per-slot confirmation flags and is zeroed at the daily reset;
// the counters are lifetime totals.
type Medicine struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	PrescribedBy   uuid.UUID `json:"prescribed_by"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`

	// Scheduled marks which slots apply to this medicine. Taken is only
	// meaningful for scheduled slots; unscheduled slots stay false.
	Scheduled map[DoseSlot]bool `json:"timing"`
	Taken     map[DoseSlot]bool `json:"taken"`

	LastResetDate *time.Time `json:"last_reset_date,omitempty"`

	TakenCount             int `json:"taken_count"`
	MissedCount            int `json:"missed_count"`
	ConsecutiveMissedCount int `json:"consecutive_missed_count"`

	EmergencyContactNotified      bool       `json:"emergency_contact_notified"`
	LastEmergencyNotificationDate *time.Time `json:"last_emergency_notification_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveOn reports whether the medicine course covers the given calendar day.
func (m *Medicine) ActiveOn(day time.Time) bool {
	d := StartOfDay(day)
	return !m.StartDate.After(EndOfDay(day)) && !m.EndDate.Before(d)
}

// IsScheduled reports whether the slot applies to this medicine.
func (m *Medicine) IsScheduled(slot DoseSlot) bool {
	return m.Scheduled[slot]
}

// IsTaken reports whether today's dose for the slot has been confirmed.
func (m *Medicine) IsTaken(slot DoseSlot) bool {
	return m.Taken[slot]
}

// ScheduledSlots returns the medicine's slots in fixed daily order.
func (m *Medicine) ScheduledSlots() []DoseSlot {
	var slots []DoseSlot
	for _, slot := range AllSlots {
		if m.Scheduled[slot] {
			slots = append(slots, slot)
		}
	}
	return slots
}

// NewSlotSet builds a slot membership map from a slice of slots.
func NewSlotSet(slots []DoseSlot) map[DoseSlot]bool {
	set := make(map[DoseSlot]bool, len(AllSlots))
	for _, slot := range AllSlots {
		set[slot] = false
	}
	for _, slot := range slots {
		set[slot] = true
	}
	return set
}

// CreateMedicineRequest is what the prescription authoring collaborator
// submits for each prescribed item.
type CreateMedicineRequest struct {
	Name      string     `json:"name" binding:"required"`
	Quantity  int        `json:"quantity" binding:"required,gte=0"`
	StartDate time.Time  `json:"start_date" binding:"required"`
	EndDate   time.Time  `json:"end_date" binding:"required"`
	Timings   []DoseSlot `json:"timings" binding:"required,min=1,dive,doseslot"`
}

// DoseUpdateRequest carries the slot for a take/untake call.
type DoseUpdateRequest struct {
	Timing string `json:"timing" binding:"required,doseslot"`
}

// DoseUpdateResult is returned to the caller after a successful take/untake.
type DoseUpdateResult struct {
	MedicineID   uuid.UUID `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	Timing       DoseSlot  `json:"timing"`
	Taken        bool      `json:"taken"`
	QuantityLeft int       `json:"quantity_left"`
	TakenCount   int       `json:"taken_count"`
}

// SlotScheduleEntry is one medicine inside a per-slot schedule grouping.
type SlotScheduleEntry struct {
	MedicineID uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	Taken      bool      `json:"taken"`
}

// SlotSchedule groups today's medicines under one timing slot.
type SlotSchedule struct {
	Label     string              `json:"label"`
	Hour      int                 `json:"hour"`
	Minute    int                 `json:"minute"`
	Medicines []SlotScheduleEntry `json:"medicines"`
}

// MedicineStats is the per-medicine slice of the adherence stats response.
type MedicineStats struct {
	MedicineID               uuid.UUID `json:"id"`
	Name                     string    `json:"name"`
	Quantity                 int       `json:"quantity"`
	TakenCount               int       `json:"taken_count"`
	MissedCount              int       `json:"missed_count"`
	ConsecutiveMissedCount   int       `json:"consecutive_missed_count"`
	EmergencyContactNotified bool      `json:"emergency_contact_notified"`
	ScheduledToday           int       `json:"scheduled_today"`
	TakenToday               int       `json:"taken_today"`
	PendingToday             int       `json:"pending_today"`
}

// StatsSummary aggregates adherence across all of a patient's active medicines.
type StatsSummary struct {
	TotalMedicines     int `json:"total_medicines"`
	TotalTakenAllTime  int `json:"total_taken_all_time"`
	TotalMissedAllTime int `json:"total_missed_all_time"`
	ScheduledToday     int `json:"scheduled_today"`
	TakenToday         int `json:"taken_today"`
	PendingToday       int `json:"pending_today"`
	AdherenceRate      int `json:"adherence_rate"`
}

// Stats is the full response of the stats endpoint.
type Stats struct {
	Summary   StatsSummary    `json:"summary"`
	Medicines []MedicineStats `json:"medicines"`
}
