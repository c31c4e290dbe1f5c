package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, "a"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 50, Clamp(0, 50, 1, 200))
	assert.Equal(t, 200, Clamp(500, 50, 1, 200))
	assert.Equal(t, 20, Clamp(20, 50, 1, 200))
	assert.Equal(t, 1, Clamp(-3, -3, 1, 200))
}
