package model

import (
	"time"

	"github.com/google/uuid"
)

// Prescription ties a batch of medicines to the prescribing organisation.
type Prescription struct {
	ID           uuid.UUID `json:"id" db:"id"`
	PatientID    uuid.UUID `json:"patient_id" db:"patient_id"`
	PrescribedBy uuid.UUID `json:"prescribed_by" db:"prescribed_by"`
	Notes        string    `json:"notes" db:"notes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// CreatePrescriptionRequest is submitted by the prescription authoring
// collaborator: one prescription with one or more medicines.
type CreatePrescriptionRequest struct {
	PatientID uuid.UUID               `json:"patient_id" binding:"required"`
	Notes     string                  `json:"notes"`
	Medicines []CreateMedicineRequest `json:"medicines" binding:"required,min=1,dive"`
}
