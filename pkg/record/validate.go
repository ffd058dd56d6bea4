package record

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("row validation failed")

// FieldError describes why a single field failed validation.
type FieldError struct {
	Field  string
	Type   Type
	Value  any
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationError is returned when a raw row does not fit its schema.
// It carries every field error found in the row, in declaration order.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Error()
	}
	return fmt.Sprintf("row validation failed for %s: %s", e.Schema, strings.Join(parts, "; "))
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validate converts a raw row into a Record.
//
// With skip set, the record is built from the raw row as-is: no presence or
// type checks are made and every raw key is kept. Otherwise every declared
// field must be present and coercible to its type. Raw columns the schema
// does not declare are ignored, so one schema can serve wider queries.
func Validate(s Schema, raw map[string]any, skip bool) (Record, error) {
	if skip {
		return construct(s, raw), nil
	}

	rec := Record{
		schema: s.name,
		names:  make([]string, 0, len(s.fields)),
		values: make(map[string]any, len(s.fields)),
	}
	var fieldErrs []FieldError

	for _, f := range s.fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				reason := "field required"
				if present {
					reason = "field is null"
				}
				fieldErrs = append(fieldErrs, FieldError{Field: f.Name, Type: f.Type, Reason: reason})
				continue
			}
			rec.names = append(rec.names, f.Name)
			rec.values[f.Name] = nil
			continue
		}

		cv, err := coerce(f.Type, v)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: f.Name, Type: f.Type, Value: v, Reason: err.Error()})
			continue
		}
		rec.names = append(rec.names, f.Name)
		rec.values[f.Name] = cv
	}

	if len(fieldErrs) > 0 {
		return Record{}, &ValidationError{Schema: s.name, Errors: fieldErrs}
	}
	return rec, nil
}

// construct builds a record without validation. Declared fields come first
// in declaration order, followed by any extra raw keys sorted by name.
func construct(s Schema, raw map[string]any) Record {
	rec := Record{
		schema: s.name,
		names:  make([]string, 0, len(raw)),
		values: make(map[string]any, len(raw)),
	}
	for _, f := range s.fields {
		if v, ok := raw[f.Name]; ok {
			rec.names = append(rec.names, f.Name)
			rec.values[f.Name] = v
		}
	}
	var extra []string
	for k := range raw {
		if _, declared := s.index[k]; !declared {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		rec.names = append(rec.names, k)
		rec.values[k] = raw[k]
	}
	return rec
}
