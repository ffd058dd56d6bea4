package record

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Record is one validated (or, on the skip path, constructed) row.
type Record struct {
	schema string
	names  []string
	values map[string]any
}

// Schema returns the name of the schema the record was built for.
func (r Record) Schema() string { return r.schema }

// Fields returns the field names in order.
func (r Record) Fields() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of fields held by the record.
func (r Record) Len() int { return len(r.names) }

// Get returns the value of a field, or nil if the record has no such field.
func (r Record) Get(name string) any {
	return r.values[name]
}

// Lookup returns the value of a field and whether the record holds it.
func (r Record) Lookup(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Map returns a copy of the record as a plain map.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Record) String() string {
	return fmt.Sprintf("%s%v", r.schema, r.values)
}

// Decode copies the record into dest, which must be a pointer to a struct
// or a map. Struct fields are matched by their `db` tag, falling back to a
// case-insensitive match on the field name.
//
// Decoding is strict: a value whose type does not fit the destination field
// is an error. The one conversion made is RFC 3339 text into time.Time, so
// skipped rows from engines that return timestamps as text still decode. On
// the skip-validation path this is where malformed rows surface.
func (r Record) Decode(dest any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "db",
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:     dest,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for %s: %w", r.schema, err)
	}
	if err := dec.Decode(r.values); err != nil {
		return fmt.Errorf("failed to decode %s: %w", r.schema, err)
	}
	return nil
}

// As decodes a record into a new value of type T.
func As[T any](r Record) (T, error) {
	var out T
	if err := r.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// AllAs decodes every record into a slice of T. It stops at the first failure.
func AllAs[T any](rs []Record) ([]T, error) {
	out := make([]T, 0, len(rs))
	for i, r := range rs {
		v, err := As[T](r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
