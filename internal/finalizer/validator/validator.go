package validator

import (
	"fmt"
	"strings"

	"haulbid/pkg/logger"
	"haulbid/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Validator guards the shipment and event write boundary. A
// malformed winning bid must fail the transaction here rather than
// produce a half-described shipment.
type Validator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewValidator(log *logger.Logger) *Validator {
	return &Validator{
		validate: validator.New(),
		logger:   log,
	}
}

func (sv *Validator) ValidateShipment(shipment *model.Shipment) error {
	return sv.translate(sv.validate.Struct(shipment))
}

func (sv *Validator) ValidateEvent(event *model.Event) error {
	return sv.translate(sv.validate.Struct(event))
}

func (sv *Validator) translate(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var errs ValidationErrors
	for _, fieldErr := range validationErrs {
		errs = append(errs, ValidationError{
			Field:   fieldErr.Field(),
			Message: messageForTag(fieldErr),
		})
	}
	return errs
}

func messageForTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fieldErr.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fieldErr.Tag())
	}
}
