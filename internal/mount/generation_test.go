package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextGeneration_MonotonicCounterBits(t *testing.T) {
	a := NextGeneration()
	b := NextGeneration()
	assert.NotEqual(t, a, b)
	assert.Equal(t, a&0xFFFF+1, b&0xFFFF)
}

func TestNextGeneration_EncodesCurrentPID(t *testing.T) {
	g := NextGeneration()
	pidBits := g >> 48
	assert.NotZero(t, pidBits)
}
