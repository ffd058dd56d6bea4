package record

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userSchema = New("User",
	Required("id", Int),
	Required("name", String),
	Optional("email", String),
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		raw        map[string]any
		want       map[string]any
		wantFields []string
		errFields  []string
	}{
		{
			name:       "all fields present",
			raw:        map[string]any{"id": int64(1), "name": "Alice", "email": "alice@example.com"},
			want:       map[string]any{"id": int64(1), "name": "Alice", "email": "alice@example.com"},
			wantFields: []string{"id", "name", "email"},
		},
		{
			name:       "optional field null",
			raw:        map[string]any{"id": int64(2), "name": "Bob", "email": nil},
			want:       map[string]any{"id": int64(2), "name": "Bob", "email": nil},
			wantFields: []string{"id", "name", "email"},
		},
		{
			name:       "optional field missing",
			raw:        map[string]any{"id": int64(2), "name": "Bob"},
			want:       map[string]any{"id": int64(2), "name": "Bob", "email": nil},
			wantFields: []string{"id", "name", "email"},
		},
		{
			name:       "extra columns ignored",
			raw:        map[string]any{"id": int64(3), "name": "Carol", "email": nil, "password_hash": "x"},
			want:       map[string]any{"id": int64(3), "name": "Carol", "email": nil},
			wantFields: []string{"id", "name", "email"},
		},
		{
			name:       "coerces text and int widths",
			raw:        map[string]any{"id": "42", "name": []byte("Dave")},
			want:       map[string]any{"id": int64(42), "name": "Dave", "email": nil},
			wantFields: []string{"id", "name", "email"},
		},
		{
			name:      "missing required field",
			raw:       map[string]any{"id": int64(1)},
			errFields: []string{"name"},
		},
		{
			name:      "required field null",
			raw:       map[string]any{"id": nil, "name": "Alice"},
			errFields: []string{"id"},
		},
		{
			name:      "collects every field error",
			raw:       map[string]any{"id": "abc", "email": 12},
			errFields: []string{"id", "name", "email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Validate(userSchema, tt.raw, false)
			if len(tt.errFields) > 0 {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))

				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "User", verr.Schema)

				got := make([]string, len(verr.Errors))
				for i, fe := range verr.Errors {
					got[i] = fe.Field
				}
				assert.Equal(t, tt.errFields, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "User", rec.Schema())
			assert.Equal(t, tt.want, rec.Map())
			assert.Equal(t, tt.wantFields, rec.Fields())
		})
	}
}

func TestValidate_SkipValidation(t *testing.T) {
	raw := map[string]any{"id": int64(1), "zeta": true, "alpha": "x"}

	// Same input: the checked path rejects it, the skip path constructs it.
	_, err := Validate(userSchema, raw, false)
	require.Error(t, err)

	rec, err := Validate(userSchema, raw, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "alpha", "zeta"}, rec.Fields())
	assert.Equal(t, int64(1), rec.Get("id"))
	assert.Nil(t, rec.Get("name"))

	_, ok := rec.Lookup("name")
	assert.False(t, ok)
}

// decimal mimics driver numerics that only format through a pointer.
type decimal struct {
	value int64
	scale int
}

func (d *decimal) String() string {
	s := strconv.FormatInt(d.value, 10)
	if d.scale == 0 {
		return s
	}
	return s[:len(s)-d.scale] + "." + s[len(s)-d.scale:]
}

type label string

func (l label) String() string { return string(l) }

func TestCoerce(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		typ     Type
		in      any
		want    any
		wantErr bool
	}{
		{"int from int32", Int, int32(7), int64(7), false},
		{"int from uint64", Int, uint64(7), int64(7), false},
		{"int from integral float", Int, 3.0, int64(3), false},
		{"int from fractional float", Int, 3.5, nil, true},
		{"int from bad string", Int, "seven", nil, true},
		{"int from bool", Int, true, nil, true},
		{"int from big int", Int, big.NewInt(42), int64(42), false},
		{"int from overflowing big int", Int, new(big.Int).Lsh(big.NewInt(1), 64), nil, true},
		{"int from nil big int", Int, (*big.Int)(nil), nil, true},
		{"int from integral decimal", Int, decimal{value: 12}, int64(12), false},
		{"int from scaled decimal", Int, decimal{value: 1234, scale: 2}, nil, true},
		{"int from stringer", Int, label("17"), int64(17), false},
		{"int from non-numeric stringer", Int, label("x"), nil, true},
		{"int from time rejected", Int, ts, nil, true},
		{"float from int", Float, int64(2), 2.0, false},
		{"float from big int", Float, new(big.Int).Lsh(big.NewInt(1), 70), math.Ldexp(1, 70), false},
		{"float from decimal", Float, decimal{value: 1234, scale: 2}, 12.34, false},
		{"float from stringer pointer", Float, &decimal{value: 5, scale: 1}, 0.5, false},
		{"float from string", Float, " 2.5 ", 2.5, false},
		{"string from int rejected", String, 5, nil, true},
		{"bool from 1", Bool, int64(1), true, false},
		{"bool from 0", Bool, int64(0), false, false},
		{"bool from 2", Bool, int64(2), nil, true},
		{"bool from text", Bool, "true", true, false},
		{"time passthrough", Time, ts, ts, false},
		{"time from sqlite text", Time, "2024-01-02 03:04:05", ts, false},
		{"time from rfc3339", Time, "2024-01-02T03:04:05Z", ts, false},
		{"time from garbage", Time, "yesterday", nil, true},
		{"bytes from string", Bytes, "ab", []byte("ab"), false},
		{"any passthrough", Any, struct{}{}, struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.typ, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if want, ok := tt.want.(time.Time); ok {
				assert.True(t, want.Equal(got.(time.Time)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_Panics(t *testing.T) {
	assert.Panics(t, func() { New("") })
	assert.Panics(t, func() { New("T", Field{Type: Int}) })
	assert.Panics(t, func() { New("T", Required("a", Int), Optional("a", String)) })
}

func TestSchema_Accessors(t *testing.T) {
	assert.Equal(t, "User", userSchema.Name())
	assert.Equal(t, 3, userSchema.Len())

	f, ok := userSchema.Field("email")
	require.True(t, ok)
	assert.False(t, f.Required)
	assert.Equal(t, String, f.Type)

	fields := userSchema.Fields()
	fields[0].Name = "mutated"
	assert.Equal(t, "id", userSchema.Fields()[0].Name, "Fields must return a copy")
}
