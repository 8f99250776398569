package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"cardioserve/ml"
	"github.com/go-playground/validator/v10"
)

// PredictRequest is the predict body. Fields are pointers so that a missing
// field is told apart from a zero value.
type PredictRequest struct {
	Age            *int     `json:"Age" validate:"required"`
	Sex            *string  `json:"Sex" validate:"required"`
	ChestPainType  *string  `json:"ChestPainType" validate:"required"`
	RestingBP      *int     `json:"RestingBP" validate:"required"`
	Cholesterol    *int     `json:"Cholesterol" validate:"required"`
	FastingBS      *int     `json:"FastingBS" validate:"required"`
	RestingECG     *string  `json:"RestingECG" validate:"required"`
	MaxHR          *int     `json:"MaxHR" validate:"required"`
	ExerciseAngina *string  `json:"ExerciseAngina" validate:"required"`
	Oldpeak        *float64 `json:"Oldpeak" validate:"required"`
	ST_Slope       *string  `json:"ST_Slope" validate:"required"`
}

// SchemaError is a request body that does not match PredictRequest.
type SchemaError struct {
	Details []string
}

func (e *SchemaError) Error() string {
	return "request schema: " + strings.Join(e.Details, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodePredictRequest reads and validates the body. Schema violations are
// returned as *SchemaError; an oversized body as *http.MaxBytesError.
func decodePredictRequest(r *http.Request) (ml.PatientRecord, error) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return ml.PatientRecord{}, decodeError(err)
	}

	if err := validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			return ml.PatientRecord{}, err
		}
		details := make([]string, 0, len(validationErrs))
		for _, fieldErr := range validationErrs {
			details = append(details, fmt.Sprintf("%s: field %s", fieldErr.Field(), fieldErr.Tag()))
		}
		return ml.PatientRecord{}, &SchemaError{Details: details}
	}

	return req.Record(), nil
}

func decodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &maxBytesErr):
		return err
	case errors.As(err, &typeErr):
		return &SchemaError{Details: []string{fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)}}
	case errors.As(err, &syntaxErr):
		return &SchemaError{Details: []string{fmt.Sprintf("body: invalid JSON at offset %d", syntaxErr.Offset)}}
	case errors.Is(err, io.EOF):
		return &SchemaError{Details: []string{"body: required"}}
	default:
		return &SchemaError{Details: []string{"body: " + err.Error()}}
	}
}

// Record converts a validated request into a patient record.
func (req PredictRequest) Record() ml.PatientRecord {
	return ml.PatientRecord{
		Age:            *req.Age,
		Sex:            *req.Sex,
		ChestPainType:  *req.ChestPainType,
		RestingBP:      *req.RestingBP,
		Cholesterol:    *req.Cholesterol,
		FastingBS:      *req.FastingBS,
		RestingECG:     *req.RestingECG,
		MaxHR:          *req.MaxHR,
		ExerciseAngina: *req.ExerciseAngina,
		Oldpeak:        *req.Oldpeak,
		ST_Slope:       *req.ST_Slope,
	}
}
