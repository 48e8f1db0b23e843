package prescription

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/anjali-yatham/Medisense/internal/handler"
	"github.com/anjali-yatham/Medisense/internal/middleware"
	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/service/prescription"
)

type Handler struct {
	service prescription.Service
}

func NewHandler(service prescription.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.POST("", h.CreatePrescription)
	}
}

func (h *Handler) CreatePrescription(c *gin.Context) {
	prescriberID, err := uuid.Parse(c.GetString(middleware.ContextUserID))
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	var req model.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, medicines, err := h.service.CreatePrescription(c.Request.Context(), prescriberID, &req)
	if err != nil {
		handler.WriteError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"prescription": created,
		"medicines":    medicines,
	}))
}
