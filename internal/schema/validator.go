// Package schema validates inbound messages before they reach the
// reconciliation core.
package schema

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"pronunciation-practice-service/internal/models"
)

// ErrMalformed wraps every validation failure.
var ErrMalformed = errors.New("malformed message")

// Validator checks struct tags on inbound events and control messages.
// It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the service's custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("utf8", func(fl validator.FieldLevel) bool {
		return utf8.ValidString(fl.Field().String())
	})
	v.RegisterStructValidation(validateControlMessage, models.ControlMessage{})
	return &Validator{v: v}
}

// validateControlMessage requires a start message to name its sentence,
// either inline or by catalog ID.
func validateControlMessage(sl validator.StructLevel) {
	msg := sl.Current().Interface().(models.ControlMessage)
	if msg.Type == models.ControlStart && msg.Reference == "" && msg.SentenceID == "" {
		sl.ReportError(msg.Reference, "Reference", "reference", "required_without", "SentenceID")
	}
}

// Validate returns an error wrapping ErrMalformed if event fails its
// `validate` tags.
func (s *Validator) Validate(event any) error {
	if err := s.v.Struct(event); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// Reason returns a short label for metrics describing why err was returned
// by Validate.
func Reason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	if errors.Is(err, ErrMalformed) {
		return "invalid"
	}
	return "unknown"
}
