package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SetAnchorRequest is the body of PUT /api/v1/anchors.
type SetAnchorRequest struct {
	Year      int    `json:"year" validate:"min=0"`
	Month     int    `json:"month" validate:"required,min=1,max=13"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
}

// NextAnchorRequest is the body of POST /api/v1/anchors/next.
type NextAnchorRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
}

// LeapRequest is the body of PUT /api/v1/years/{year}/leap. A null is_aviv
// resets the year to undecided.
type LeapRequest struct {
	IsAviv    *bool  `json:"is_aviv"`
	DecidedOn string `json:"decided_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ProjectionRequest is the body of PUT /api/v1/projections.
type ProjectionRequest struct {
	Year       int `json:"year" validate:"min=0"`
	Month      int `json:"month" validate:"required,min=1,max=13"`
	LengthDays int `json:"length_days" validate:"required,oneof=29 30"`
}

// LocationRequest is the body of PUT /api/v1/location.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
}

// PreferencesRequest is the body of PUT /api/v1/preferences.
type PreferencesRequest struct {
	MonthNamingMode   string `json:"month_naming_mode" validate:"required,oneof=numeric ordinal traditional"`
	FirstfruitsRule   string `json:"firstfruits_rule" validate:"required,oneof=fixed16 after_saturday after_sunday"`
	IncludeHanukkah   bool   `json:"include_hanukkah"`
	IncludePurim      bool   `json:"include_purim"`
	ProjectExtraMonth bool   `json:"project_extra_month"`
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// validateRequest runs the struct's validate tags.
func validateRequest(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "datetime":
		return name + " must be a YYYY-MM-DD date"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}

// decodeAndValidate decodes the body into v and validates it, writing a 400
// on failure. It reports whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := decodeJSON(w, r, v); err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	if err := validateRequest(v); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}
