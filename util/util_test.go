package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMin(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(2, Min(2, 3))
	assert.Equal(2, Min(3, 2))
	assert.Equal(2, Min(2, 2))
}

func TestRoundUp(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(4, RoundUp(10, 3))
	assert.Equal(3, RoundUp(9, 3), "exact division")
	assert.Equal(0, RoundUp(0, 3))
	assert.Equal(5, RoundUp(128*4+127, 128))
	assert.Equal(5, RoundUp(128*4+1, 128), "round up by sz-1")
}
