package medicine

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/anjali-yatham/Medisense/internal/handler"
	"github.com/anjali-yatham/Medisense/internal/middleware"
	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/service/medicine"
)

type Handler struct {
	service medicine.Service
}

func NewHandler(service medicine.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medicines := r.Group("/medicines")
	{
		medicines.GET("", h.ListMedicines)
		medicines.GET("/today", h.GetTodaySchedule)
		medicines.GET("/stats", h.GetStats)
		medicines.POST("/:id/take", h.TakeDose)
		medicines.POST("/:id/untake", h.UntakeDose)
		medicines.DELETE("/:id", h.DeleteMedicine)
	}
}

func (h *Handler) ListMedicines(c *gin.Context) {
	patientID, ok := currentUserID(c)
	if !ok {
		return
	}

	medicines, err := h.service.ListMedicines(c.Request.Context(), patientID)
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(medicines))
}

func (h *Handler) GetTodaySchedule(c *gin.Context) {
	patientID, ok := currentUserID(c)
	if !ok {
		return
	}

	schedule, err := h.service.GetTodaySchedule(c.Request.Context(), patientID, time.Now())
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(schedule))
}

func (h *Handler) GetStats(c *gin.Context) {
	patientID, ok := currentUserID(c)
	if !ok {
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), patientID, time.Now())
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

func (h *Handler) TakeDose(c *gin.Context) {
	h.updateDose(c, h.service.TakeDose)
}

func (h *Handler) UntakeDose(c *gin.Context) {
	h.updateDose(c, h.service.UntakeDose)
}

func (h *Handler) updateDose(c *gin.Context, update func(ctx context.Context, medicineID, patientID uuid.UUID, slot model.DoseSlot) (*model.DoseUpdateResult, error)) {
	patientID, ok := currentUserID(c)
	if !ok {
		return
	}

	medicineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medicine ID"))
		return
	}

	var req model.DoseUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	result, err := update(c.Request.Context(), medicineID, patientID, model.DoseSlot(req.Timing))
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) DeleteMedicine(c *gin.Context) {
	patientID, ok := currentUserID(c)
	if !ok {
		return
	}

	medicineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medicine ID"))
		return
	}

	if err := h.service.DeleteMedicine(c.Request.Context(), medicineID, patientID); err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": true}))
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return uuid.Nil, false
	}
	return id, true
}
