package toolsx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterValidate(t *testing.T) {
	cases := []struct {
		name    string
		f       Filter
		wantErr bool
	}{
		{"ok eq", Filter{Field: "id", Op: OpEq, Value: "x"}, false},
		{"empty field", Filter{Field: "", Op: OpEq, Value: "x"}, true},
		{"unsupported op", Filter{Field: "id", Op: "regex", Value: "x"}, true},
		{"in requires list", Filter{Field: "id", Op: OpIn, Value: "x"}, true},
		{"in with list ok", Filter{Field: "id", Op: OpIn, Value: []any{"a", "b"}}, false},
		{"not_in rejects list", Filter{Field: "id", Op: OpNotIn, Value: []any{"a"}}, true},
		{"is_null ignores value", Filter{Field: "id", Op: OpIsNull, Value: nil}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.f.Validate()
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAllShortCircuits(t *testing.T) {
	err := ValidateAll([]Filter{
		{Field: "id", Op: OpEq, Value: "x"},
		{Field: "", Op: OpEq, Value: "y"},
	})
	assert.Error(t, err)
}
