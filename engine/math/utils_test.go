package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(1), Clamp(uint32(0), 1, 4096))
	assert.Equal(t, uint32(4096), Clamp(uint32(9000), 1, 4096))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), -1, 1))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(256), AlignUp(uint64(80), 256))
	assert.Equal(t, uint64(256), AlignUp(uint64(256), 256))
	assert.Equal(t, uint64(80), AlignUp(uint64(80), 0))
	assert.Equal(t, uint32(64), AlignUp(uint32(33), 32))
}
