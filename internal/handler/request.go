package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/pavelanni/quizreport/internal/model"
)

// InputError is a client input problem mapped to a 4xx response.
type InputError struct {
	Status  int
	Message string
	Details string
}

func (e *InputError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

func badRequest(message, details string) *InputError {
	return &InputError{Status: http.StatusBadRequest, Message: message, Details: details}
}

// Decoder parses and validates submission bodies.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder creates a Decoder with the submission validation rules registered.
func NewDecoder() (*Decoder, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, err
	}
	return &Decoder{validate: v}, nil
}

// Decode reads one JSON submission from r and validates it. Client errors are
// returned as *InputError.
func (d *Decoder) Decode(r io.Reader) (model.Submission, error) {
	var sub model.Submission
	dec := json.NewDecoder(r)
	if err := dec.Decode(&sub); err != nil {
		if errors.Is(err, io.EOF) {
			return sub, badRequest("Missing required fields", "empty request body")
		}
		return sub, decodeError(err)
	}
	// The body must hold exactly one JSON value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
		return sub, decodeError(err)
	}
	return sub, d.Validate(sub)
}

func decodeError(err error) *InputError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &InputError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: "Request body too large",
			Details: fmt.Sprintf("limit is %d bytes", tooLarge.Limit),
		}
	}
	return badRequest("Invalid JSON body", err.Error())
}

// Validate checks required fields and value ranges.
func (d *Decoder) Validate(sub model.Submission) error {
	if err := d.validate.Struct(sub); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return badRequest("Invalid request", err.Error())
		}
		var missing, invalid []string
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required", "notblank":
				missing = append(missing, fe.Field())
			default:
				invalid = append(invalid, describe(fe))
			}
		}
		if len(missing) > 0 {
			return badRequest("Missing required fields", "missing: "+strings.Join(missing, ", "))
		}
		return badRequest("Invalid field values", strings.Join(invalid, "; "))
	}

	if sub.ScoreValue() > sub.TotalValue() {
		return badRequest("Invalid field values", "score must not exceed total")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
