package validator

import (
	"errors"
	"fmt"
	"slotwise/pkg/logger"
	"slotwise/pkg/model"
	"slotwise/pkg/timemath"
	"strings"

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

type SchedulingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewSchedulingValidator(log *logger.Logger) *SchedulingValidator {
	v := validator.New()

	if err := v.RegisterValidation("time_of_day", validateTimeOfDay); err != nil {
		log.Fatal("Failed to register 'time_of_day' validator", "error", err)
	}

	log.Info("Scheduling validator initialized successfully")

	return &SchedulingValidator{
		validate: v,
		logger:   log,
	}
}

// validateTimeOfDay accepts any time string the scheduling core can parse.
// Stored records may carry legacy 12-hour values.
func validateTimeOfDay(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	_, err := timemath.Parse(s)
	return err == nil
}

func (v *SchedulingValidator) ValidateClient(c *model.Client) error {
	return v.translate(v.validate.Struct(c))
}

func (v *SchedulingValidator) ValidateSchedule(sc *model.Schedule) error {
	if err := v.translate(v.validate.Struct(sc)); err != nil {
		return err
	}
	return v.validateOrdering(sc.StartTime, sc.EndTime)
}

func (v *SchedulingValidator) ValidateProposal(p *model.Proposal) error {
	if err := v.translate(v.validate.Struct(p)); err != nil {
		return err
	}
	for i, slot := range p.Slots {
		if err := v.validateOrdering(slot.StartTime, slot.EndTime); err != nil {
			return ValidationErrors{{
				Field:   fmt.Sprintf("slots[%d]", i),
				Message: err.Error(),
			}}
		}
	}
	return nil
}

// ValidateSlots checks a bare slot list before it is attached to a proposal.
func (v *SchedulingValidator) ValidateSlots(slots []model.Slot) error {
	if len(slots) == 0 || len(slots) > model.MaxSlotsPerProposal {
		return ValidationErrors{{
			Field:   "slots",
			Message: fmt.Sprintf("must contain between 1 and %d slots", model.MaxSlotsPerProposal),
		}}
	}
	for i, slot := range slots {
		if err := v.translate(v.validate.Struct(slot)); err != nil {
			return ValidationErrors{{
				Field:   fmt.Sprintf("slots[%d]", i),
				Message: err.Error(),
			}}
		}
		if err := v.validateOrdering(slot.StartTime, slot.EndTime); err != nil {
			return ValidationErrors{{
				Field:   fmt.Sprintf("slots[%d]", i),
				Message: err.Error(),
			}}
		}
	}
	return nil
}

func (v *SchedulingValidator) ValidateWorkingConfig(wc *model.WorkingConfig) error {
	if err := v.translate(v.validate.Struct(wc)); err != nil {
		return err
	}
	return v.validateOrdering(wc.DayStart, wc.DayEnd)
}

func (v *SchedulingValidator) validateOrdering(start, end string) error {
	startMin, err := timemath.Parse(start)
	if err != nil {
		return ValidationErrors{{Field: "start_time", Message: "unrecognized time of day"}}
	}
	endMin, err := timemath.Parse(end)
	if err != nil {
		return ValidationErrors{{Field: "end_time", Message: "unrecognized time of day"}}
	}
	if endMin <= startMin {
		return ValidationErrors{{Field: "end_time", Message: "must be after start_time"}}
	}
	return nil
}

func (v *SchedulingValidator) translate(err error) error {
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return v.translateValidationErrors(validationErrs)
	}
	return err
}

func (v *SchedulingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a YYYY-MM-DD date", err.Field())
		case "time_of_day":
			message = fmt.Sprintf("%s must be a valid time of day", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be an E.164 phone number", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
