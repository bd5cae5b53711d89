package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var seatIDRgx = regexp.MustCompile(`^[A-Za-z0-9_-]{1,16}$`)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("seat_id", validateSeatID)

	return validator
}

// validateSeatID only bounds the shape of a seat id. Whether the show has the seat is decided
// against the seat map, so labels like A1, 1A or VIP-1 all pass here.
func validateSeatID(fl validator.FieldLevel) bool {
	return seatIDRgx.MatchString(fl.Field().String())
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf(ErrMinItems, err.Param())
	case "max":
		return fmt.Sprintf(ErrMaxItems, err.Param())
	case "seat_id":
		return ErrSeatID
	default:
		return "is invalid"
	}
}

const (
	ErrMinItems = "must contain at least %s item(s)"
	ErrMaxItems = "must contain at most %s item(s)"
	ErrSeatID   = "must be 1 to 16 letters, digits, '-' or '_'"
)
