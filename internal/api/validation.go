package api

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"studio-booking-backend/internal/parse"
)

// RegisterValidators adds the custom binding rules used by request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("unit_label", validUnitLabel)
}

// validUnitLabel accepts strings shaped like a unit label, e.g. "NOI-001".
// Whether the unit exists is decided later against its studio.
func validUnitLabel(fl validator.FieldLevel) bool {
	_, err := parse.ParseUnit(fl.Field().String())
	return err == nil
}
