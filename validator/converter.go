// Package validator converts ozzo-validation failures into errcode errors
package validator

import (
	"errors"

	"github.com/KOMKZ/go-yogan-tiercache/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validatable 可校验接口
type Validatable interface {
	Validate() error
}

// Validate runs v.Validate and converts ozzo errors into base carrying a "fields" map.
// Any other error is wrapped into base unchanged.
func Validate(v Validatable, base *errcode.LayeredError) error {
	err := v.Validate()
	if err == nil {
		return nil
	}

	var validationErrs validation.Errors
	if errors.As(err, &validationErrs) {
		return ConvertValidationError(validationErrs, base)
	}
	return base.Wrap(err)
}

// ConvertValidationError flattens nested validation.Errors into dotted field paths
//
//	{"memory": {"shards": "must be a power of two"}} -> {"memory.shards": "must be a power of two"}
func ConvertValidationError(validationErrs validation.Errors, base *errcode.LayeredError) error {
	fields := make(map[string]string)
	flatten("", validationErrs, fields)
	return base.WithData("fields", fields).Wrap(validationErrs)
}

func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		key := field
		if prefix != "" {
			key = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(fieldErr, &nested) {
			flatten(key, nested, out)
			continue
		}
		out[key] = fieldErr.Error()
	}
}
