package core

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"wardalert/internal/types"
)

// Validator wraps go-playground/validator for request payloads.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// Engine returns the underlying validator so domain packages can apply
// their own error mapping.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// ValidateStructExcept validates s while skipping the named fields. A
// failure is returned as an AppError with the given code and the offending
// field names in details.
func (v *Validator) ValidateStructExcept(s any, code types.ErrorCode, message string, skip ...string) error {
	err := v.validate.StructExcept(s, skip...)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(code, message, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return types.NewAppErrorWithDetails(code, message, err, map[string]any{"fields": fields})
}
