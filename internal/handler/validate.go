package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/anjali-yatham/Medisense/internal/model"
)

// RegisterValidations installs custom binding validators. Safe to call
// more than once.
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("doseslot", func(fl validator.FieldLevel) bool {
			return model.DoseSlot(fl.Field().String()).Valid()
		})
	}
}
