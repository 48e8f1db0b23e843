package medicine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anjali-yatham/Medisense/internal/handler"
	"github.com/anjali-yatham/Medisense/internal/middleware"
	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/repository/memory"
	"github.com/anjali-yatham/Medisense/internal/service/medicine"
	"github.com/anjali-yatham/Medisense/pkg/logger"
)

type fixture struct {
	engine    *gin.Engine
	medicines *memory.MedicineRepository
	patientID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gin.SetMode(gin.TestMode)
	handler.RegisterValidations()

	f := &fixture{
		medicines: memory.NewMedicineRepository(),
		patientID: uuid.New(),
	}

	testLogger := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	svc := medicine.NewService(f.medicines, memory.NewNotificationRepository(), testLogger)

	f.engine = gin.New()
	group := f.engine.Group("/api/v1")
	group.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, f.patientID.String())
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(group)
	return f
}

func (f *fixture) addMedicine(t *testing.T, slots []model.DoseSlot) *model.Medicine {
	t.Helper()

	now := time.Now()
	med := &model.Medicine{
		ID:        uuid.New(),
		PatientID: f.patientID,
		Name:      "Metformin",
		Quantity:  10,
		StartDate: model.StartOfDay(now).AddDate(0, 0, -1),
		EndDate:   model.StartOfDay(now).AddDate(0, 0, 10),
		Scheduled: model.NewSlotSet(slots),
		Taken:     model.NewSlotSet(nil),
	}
	require.NoError(t, f.medicines.Create(context.Background(), med))
	return med
}

func (f *fixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestTakeDoseEndpoint(t *testing.T) {
	f := newFixture(t)
	med := f.addMedicine(t, []model.DoseSlot{model.SlotBeforeBreakfast})

	w := f.request(t, http.MethodPost, "/api/v1/medicines/"+med.ID.String()+"/take",
		`{"timing":"beforeBreakfast"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Status string                 `json:"status"`
		Data   model.DoseUpdateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.True(t, resp.Data.Taken)
	assert.Equal(t, 9, resp.Data.QuantityLeft)
}

func TestTakeDoseEndpointConflict(t *testing.T) {
	f := newFixture(t)
	med := f.addMedicine(t, []model.DoseSlot{model.SlotBeforeBreakfast})

	path := "/api/v1/medicines/" + med.ID.String() + "/take"
	require.Equal(t, http.StatusOK, f.request(t, http.MethodPost, path, `{"timing":"beforeBreakfast"}`).Code)
	assert.Equal(t, http.StatusConflict, f.request(t, http.MethodPost, path, `{"timing":"beforeBreakfast"}`).Code)
}

func TestTakeDoseEndpointRejectsBadSlot(t *testing.T) {
	f := newFixture(t)
	med := f.addMedicine(t, []model.DoseSlot{model.SlotBeforeBreakfast})

	w := f.request(t, http.MethodPost, "/api/v1/medicines/"+med.ID.String()+"/take",
		`{"timing":"brunch"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTakeDoseEndpointUnknownMedicine(t *testing.T) {
	f := newFixture(t)

	w := f.request(t, http.MethodPost, "/api/v1/medicines/"+uuid.NewString()+"/take",
		`{"timing":"beforeBreakfast"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUntakeDoseEndpoint(t *testing.T) {
	f := newFixture(t)
	med := f.addMedicine(t, []model.DoseSlot{model.SlotBeforeBreakfast})

	base := "/api/v1/medicines/" + med.ID.String()
	require.Equal(t, http.StatusOK, f.request(t, http.MethodPost, base+"/take", `{"timing":"beforeBreakfast"}`).Code)

	w := f.request(t, http.MethodPost, base+"/untake", `{"timing":"beforeBreakfast"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.DoseUpdateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Taken)
	assert.Equal(t, 10, resp.Data.QuantityLeft)
}

func TestTodayScheduleEndpoint(t *testing.T) {
	f := newFixture(t)
	f.addMedicine(t, []model.DoseSlot{model.SlotBeforeBreakfast})

	w := f.request(t, http.MethodGet, "/api/v1/medicines/today", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data map[string]model.SlotSchedule `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, len(model.AllSlots))
	assert.Len(t, resp.Data["beforeBreakfast"].Medicines, 1)
	assert.Empty(t, resp.Data["afterDinner"].Medicines)
}

func TestDeleteMedicineEndpoint(t *testing.T) {
	f := newFixture(t)
	med := f.addMedicine(t, []model.DoseSlot{model.SlotBeforeBreakfast})

	path := "/api/v1/medicines/" + med.ID.String()
	assert.Equal(t, http.StatusOK, f.request(t, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, f.request(t, http.MethodDelete, path, "").Code)
}
