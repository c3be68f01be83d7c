package pgutils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want string
	}{
		{"empty", nil, "[]"},
		{"single", []float32{0.5}, "[0.5]"},
		{"several", []float32{0.1, -0.25, 1}, "[0.1,-0.25,1]"},
		{"zero", []float32{0, 0}, "[0,0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatVector(tt.in))
		})
	}
}

func TestErrorCodeDetection(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)`)))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.False(t, IsUniqueViolation(nil))

	assert.True(t, IsInvalidTsQuery(errors.New(`ERROR: syntax error in tsquery: "and or" (SQLSTATE 42601)`)))
	assert.False(t, IsInvalidTsQuery(errors.New("SQLSTATE 23505")))
}
