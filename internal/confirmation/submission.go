package confirmation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/booking-cascade/internal/cascade"
)

// Submission is the booking handed to the clinic once the patient confirms.
type Submission struct {
	SpecialtyID string `json:"specialty" validate:"required"`
	ProviderID  string `json:"provider" validate:"required"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string `json:"time" validate:"required,datetime=15:04"`
	PatientID   string `json:"patientId,omitempty"`
}

// SubmissionFromState copies the selected values out of a form snapshot.
func SubmissionFromState(state cascade.FormState, patientID string) Submission {
	return Submission{
		SpecialtyID: state.Specialty.Value,
		ProviderID:  state.Provider.Value,
		Date:        state.Date.Value,
		Time:        state.Time.Value,
		PatientID:   patientID,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateSubmission returns nil or a *ValidationError naming the offending fields.
func validateSubmission(v *validator.Validate, s Submission) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.Missing = append(verr.Missing, fe.Field())
		} else {
			verr.Invalid = append(verr.Invalid, fe.Field())
		}
	}
	return verr
}
