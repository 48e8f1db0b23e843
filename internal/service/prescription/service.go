package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository"
	"github.com/anjali-yatham/Medisense/internal/service/adherence"
	apperrors "github.com/anjali-yatham/Medisense/pkg/errors"
	"github.com/anjali-yatham/Medisense/pkg/logger"
)

// Service is the prescriber-facing intake: it turns an authored
// prescription into medicine rows and announces each to the patient.
type Service interface {
	CreatePrescription(ctx context.Context, prescriberID uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, []*model.Medicine, error)
	CreateMedicine(ctx context.Context, patientID, prescriberID, prescriptionID uuid.UUID, req *model.CreateMedicineRequest) (*model.Medicine, error)
}

type service struct {
	prescriptions repository.PrescriptionRepository
	medicines     repository.MedicineRepository
	users         repository.UserRepository
	adherence     *adherence.Service
	logger        *logger.Logger
}

func NewService(
	prescriptions repository.PrescriptionRepository,
	medicines repository.MedicineRepository,
	users repository.UserRepository,
	adherence *adherence.Service,
	logger *logger.Logger,
) Service {
	return &service{
		prescriptions: prescriptions,
		medicines:     medicines,
		users:         users,
		adherence:     adherence,
		logger:        logger,
	}
}

func (s *service) CreatePrescription(ctx context.Context, prescriberID uuid.UUID, req *model.CreatePrescriptionRequest) (*model.Prescription, []*model.Medicine, error) {
	if _, err := s.users.Get(ctx, req.PatientID); err != nil {
		return nil, nil, apperrors.NotFound("patient", err)
	}

	prescription := &model.Prescription{
		PatientID:    req.PatientID,
		PrescribedBy: prescriberID,
		Notes:        req.Notes,
	}
	if err := s.prescriptions.Create(ctx, prescription); err != nil {
		return nil, nil, fmt.Errorf("failed to create prescription: %w", err)
	}

	medicines := make([]*model.Medicine, 0, len(req.Medicines))
	for i := range req.Medicines {
		med, err := s.CreateMedicine(ctx, req.PatientID, prescriberID, prescription.ID, &req.Medicines[i])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create medicine %q: %w", req.Medicines[i].Name, err)
		}
		medicines = append(medicines, med)
	}

	return prescription, medicines, nil
}

func (s *service) CreateMedicine(ctx context.Context, patientID, prescriberID, prescriptionID uuid.UUID, req *model.CreateMedicineRequest) (*model.Medicine, error) {
	if err := validateMedicine(req); err != nil {
		return nil, err
	}

	med := &model.Medicine{
		PatientID:      patientID,
		PrescribedBy:   prescriberID,
		PrescriptionID: prescriptionID,
		Name:           req.Name,
		Quantity:       req.Quantity,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Scheduled:      model.NewSlotSet(req.Timings),
		Taken:          model.NewSlotSet(nil),
	}

	if err := s.medicines.Create(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to create medicine: %w", err)
	}

	// Announcement failure should not fail the prescription.
	if err := s.adherence.NotifyNewMedicine(ctx, med); err != nil {
		s.logger.Error(err, "failed to enqueue new medicine notification",
			"medicine_id", med.ID.String())
	}

	return med, nil
}

func validateMedicine(req *model.CreateMedicineRequest) error {
	if req.Name == "" {
		return apperrors.BadRequest("medicine name is required", nil)
	}
	if req.Quantity < 0 {
		return apperrors.BadRequest("quantity must not be negative", nil)
	}
	if req.EndDate.Before(req.StartDate) {
		return apperrors.BadRequest("end date must not precede start date", nil)
	}
	if len(req.Timings) == 0 {
		return apperrors.BadRequest("at least one timing slot is required", nil)
	}
	for _, slot := range req.Timings {
		if !slot.Valid() {
			return apperrors.BadRequest(fmt.Sprintf("invalid timing slot %q", slot), nil)
		}
	}
	return nil
}
