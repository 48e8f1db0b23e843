package prescription

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository/memory"
	"github.com/anjali-yatham/Medisense/internal/service/adherence"
	apperrors "github.com/anjali-yatham/Medisense/pkg/errors"
	"github.com/anjali-yatham/Medisense/pkg/logger"
	"github.com/anjali-yatham/Medisense/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "prescription")

type fixture struct {
	svc           Service
	medicines     *memory.MedicineRepository
	notifications *memory.NotificationRepository
	users         *memory.UserRepository
	patientID     uuid.UUID
	prescriberID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		medicines:     memory.NewMedicineRepository(),
		notifications: memory.NewNotificationRepository(),
		users:         memory.NewUserRepository(),
		patientID:     uuid.New(),
		prescriberID:  uuid.New(),
	}
	f.users.Put(&model.User{ID: f.patientID, Name: "Asha", Phone: "9876543210"})

	testLogger := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	adherenceSvc := adherence.NewService(f.medicines, f.notifications, f.users, nil, testLogger, testMetrics)
	f.svc = NewService(memory.NewPrescriptionRepository(), f.medicines, f.users, adherenceSvc, testLogger)
	return f
}

func validRequest(patientID uuid.UUID) *model.CreatePrescriptionRequest {
	start := time.Now()
	return &model.CreatePrescriptionRequest{
		PatientID: patientID,
		Notes:     "with food",
		Medicines: []model.CreateMedicineRequest{
			{
				Name:      "Metformin",
				Quantity:  60,
				StartDate: start,
				EndDate:   start.AddDate(0, 1, 0),
				Timings:   []model.DoseSlot{model.SlotAfterBreakfast, model.SlotAfterDinner},
			},
		},
	}
}

func TestCreatePrescription(t *testing.T) {
	f := newFixture(t)

	prescription, medicines, err := f.svc.CreatePrescription(context.Background(), f.prescriberID, validRequest(f.patientID))
	require.NoError(t, err)

	assert.Equal(t, f.patientID, prescription.PatientID)
	assert.Equal(t, f.prescriberID, prescription.PrescribedBy)

	require.Len(t, medicines, 1)
	med := medicines[0]
	assert.Equal(t, prescription.ID, med.PrescriptionID)
	assert.True(t, med.IsScheduled(model.SlotAfterBreakfast))
	assert.True(t, med.IsScheduled(model.SlotAfterDinner))
	assert.False(t, med.IsScheduled(model.SlotBeforeLunch))

	// The announcement landed in the mailbox.
	all := f.notifications.All()
	require.Len(t, all, 1)
	assert.Equal(t, model.NotificationNewMedicine, all[0].Type)
	assert.Equal(t, f.patientID, all[0].UserID)
}

func TestCreatePrescriptionUnknownPatient(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.CreatePrescription(context.Background(), f.prescriberID, validRequest(uuid.New()))
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestCreateMedicineValidation(t *testing.T) {
	f := newFixture(t)
	start := time.Now()

	cases := []struct {
		name string
		req  model.CreateMedicineRequest
	}{
		{"missing name", model.CreateMedicineRequest{
			Quantity: 10, StartDate: start, EndDate: start.AddDate(0, 0, 7),
			Timings: []model.DoseSlot{model.SlotAfterBreakfast},
		}},
		{"negative quantity", model.CreateMedicineRequest{
			Name: "X", Quantity: -1, StartDate: start, EndDate: start.AddDate(0, 0, 7),
			Timings: []model.DoseSlot{model.SlotAfterBreakfast},
		}},
		{"end before start", model.CreateMedicineRequest{
			Name: "X", Quantity: 10, StartDate: start, EndDate: start.AddDate(0, 0, -1),
			Timings: []model.DoseSlot{model.SlotAfterBreakfast},
		}},
		{"no timings", model.CreateMedicineRequest{
			Name: "X", Quantity: 10, StartDate: start, EndDate: start.AddDate(0, 0, 7),
		}},
		{"bad timing", model.CreateMedicineRequest{
			Name: "X", Quantity: 10, StartDate: start, EndDate: start.AddDate(0, 0, 7),
			Timings: []model.DoseSlot{"midnightSnack"},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateMedicine(context.Background(), f.patientID, f.prescriberID, uuid.New(), &tc.req)
			assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
		})
	}
}
