package validator

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared singleton; the validator caches struct metadata.
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	_ = Validate.RegisterValidation("notify_level", validateNotifyLevel)
	_ = Validate.RegisterValidation("clock", validateClock)
	_ = Validate.RegisterValidation("clock_optional", validateClockOptional)
}

func validateNotifyLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "all", "mentions", "nothing":
		return true
	}
	return false
}

// validateClock accepts "HH:MM" wall-clock values like quiet-hours bounds.
func validateClock(fl validator.FieldLevel) bool {
	return clockValid(fl.Field().String())
}

func validateClockOptional(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return clockValid(s)
}

func clockValid(s string) bool {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return false
	}
	return true
}
