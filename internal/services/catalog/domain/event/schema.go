package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
)

// NewValidator returns a validator with the catalog's custom tags:
// `entitytype` (known entity type) and `timecodes` (well-formed ranges).
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("entitytype", func(fl validator.FieldLevel) bool {
		return document.IsEntityType(fl.Field().String())
	})
	_ = v.RegisterValidation("analysiscat", func(fl validator.FieldLevel) bool {
		return document.IsAnalysisCategory(fl.Field().String())
	})
	_ = v.RegisterValidation("timecodes", func(fl validator.FieldLevel) bool {
		tcs, ok := fl.Field().Interface().(document.Timecodes)
		return ok && tcs.Valid()
	})
	return v
}

// StructSchema decodes data into T and validates its tags.
func StructSchema[T any](v *validator.Validate) Schema {
	return func(data []byte) error {
		var payload T
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if err := v.Struct(&payload); err != nil {
			return describe(err)
		}
		return nil
	}
}

// analysisCatsSchema checks AnalysisCatsAttributesSet data. Unknown fields
// are rejected since they would be dropped on apply.
func analysisCatsSchema(v *validator.Validate) Schema {
	return func(data []byte) error {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		var payload AnalysisCatsPayload
		if err := dec.Decode(&payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		if len(payload) == 0 {
			return errors.New("no entities given")
		}
		for _, id := range slices.Sorted(maps.Keys(payload)) {
			if strings.TrimSpace(id) == "" {
				return errors.New("entity id is empty")
			}
			fields := payload[id]
			if err := v.Struct(&fields); err != nil {
				return fmt.Errorf("%s: %w", id, describe(err))
			}
			for name := range fields.Attributes {
				if strings.TrimSpace(name) == "" {
					return fmt.Errorf("%s: attribute name is empty", id)
				}
			}
		}
		return nil
	}
}

func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
