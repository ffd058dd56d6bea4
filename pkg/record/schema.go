// Package record declares the shape of a result row and converts raw rows
// returned by the database into validated records.
//
// A Schema is an explicit field table (name, semantic type, required flag).
// Validation is a pure function of a raw row and a schema: no reflection over
// live objects is involved. Records can be decoded into Go structs afterwards
// with Record.Decode or As.
package record

import "fmt"

// Type is the semantic type of a record field.
type Type int

const (
	// Any accepts every value unchanged.
	Any Type = iota
	// String accepts text values.
	String
	// Int accepts integral values and normalizes them to int64.
	Int
	// Float accepts numeric values and normalizes them to float64.
	Float
	// Bool accepts booleans and their 0/1 and textual encodings.
	Bool
	// Time accepts time.Time values and common SQL/RFC3339 timestamp strings.
	Time
	// Bytes accepts binary values.
	Bytes
)

var typeNames = map[Type]string{
	Any:    "any",
	String: "string",
	Int:    "int",
	Float:  "float",
	Bool:   "bool",
	Time:   "time",
	Bytes:  "bytes",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Field describes one column of a record.
type Field struct {
	Name     string
	Type     Type
	Required bool
}

// Required returns a field that must be present and non-null.
func Required(name string, t Type) Field {
	return Field{Name: name, Type: t, Required: true}
}

// Optional returns a nullable field. A missing key or NULL validates to nil.
func Optional(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// Schema is the declared shape of one row. It is immutable once built.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
}

// New builds a schema from an ordered field list.
// It panics on an empty schema name, an empty field name or a duplicate
// field, since those are declaration errors.
func New(name string, fields ...Field) Schema {
	if name == "" {
		panic("record: schema name is required")
	}
	s := Schema{
		name:   name,
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			panic(fmt.Sprintf("record: schema %s: field %d has no name", name, i))
		}
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("record: schema %s: duplicate field %q", name, f.Name))
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s
}

// Name returns the schema name used in error messages and hook contexts.
func (s Schema) Name() string { return s.name }

// Fields returns a copy of the declared fields in declaration order.
func (s Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a declared field by name.
func (s Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Len returns the number of declared fields.
func (s Schema) Len() int { return len(s.fields) }

func (s Schema) String() string {
	return fmt.Sprintf("Schema[%s](%d fields)", s.name, len(s.fields))
}
