package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampInt(t *testing.T) {
	assert.Equal(t, 5, ClampInt(5, 1, 10))
	assert.Equal(t, 1, ClampInt(0, 1, 10))
	assert.Equal(t, 10, ClampInt(99, 1, 10))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 8, ClampLimit(0, 8, 100), "zero falls back to default")
	assert.Equal(t, 8, ClampLimit(-3, 8, 100))
	assert.Equal(t, 100, ClampLimit(500, 8, 100))
	assert.Equal(t, 42, ClampLimit(42, 8, 100))
}
