package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anjali-yatham/Medisense/internal/handler"
	"github.com/anjali-yatham/Medisense/internal/model"
	"github.com/anjali-yatham/Medisense/internal/scheduler"
)

// Handler exposes manual triggers for the scheduled adherence tasks.
type Handler struct {
	scheduler *scheduler.Scheduler
}

func NewHandler(sched *scheduler.Scheduler) *Handler {
	return &Handler{scheduler: sched}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tasks := r.Group("/tasks")
	{
		tasks.GET("", h.ListTasks)
		tasks.POST("/reset", h.trigger(scheduler.TaskDailyReset))
		tasks.POST("/missed-check", h.trigger(scheduler.TaskMissedCheck))
		tasks.POST("/expiry-check", h.trigger(scheduler.TaskExpiryCheck))
		tasks.POST("/emergency-contact-check", h.trigger(scheduler.TaskEscalationCheck))
		tasks.POST("/reminder/:slot", h.TriggerReminder)
	}
}

func (h *Handler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.scheduler.TaskNames()))
}

func (h *Handler) trigger(task string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.scheduler.RunTask(c.Request.Context(), task); err != nil {
			c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"task": task}))
	}
}

func (h *Handler) TriggerReminder(c *gin.Context) {
	slot, err := model.ParseDoseSlot(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	task := scheduler.ReminderTaskName(slot)
	if err := h.scheduler.RunTask(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"task": task}))
}
