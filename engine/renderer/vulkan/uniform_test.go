package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func TestFrameUniformsRoundTrip(t *testing.T) {
	dev, ctx := newTestContext(t)
	uniforms, err := NewFrameUniforms(ctx, 100, 2)
	require.NoError(t, err)
	defer uniforms.Destroy()

	require.Len(t, uniforms.Buffers, 2)
	assert.False(t, uniforms.Buffers[0].Allocation.HostCoherent(), "plain host visible memory needs flushing")

	data := []byte("projection and view matrices")
	require.NoError(t, uniforms.Write(0, data))
	require.NoError(t, uniforms.Flush(0))

	got, err := dev.ReadBuffer(uniforms.Buffers[0].Handle)
	require.NoError(t, err)
	assert.Equal(t, data, got[:len(data)])

	info, err := uniforms.DescriptorInfo(1)
	require.NoError(t, err)
	assert.Equal(t, uniforms.Buffers[1].Handle, info.Buffer)
	assert.Equal(t, uint64(0), info.Offset)
	assert.Equal(t, uint64(100), info.Range)

	assert.Empty(t, dev.ValidationErrors(), "flush ranges respect the atom size")
}

func TestFrameUniformsUnflushedWriteIsInvisible(t *testing.T) {
	dev, ctx := newTestContext(t)
	uniforms, err := NewFrameUniforms(ctx, 64, 2)
	require.NoError(t, err)
	defer uniforms.Destroy()

	require.NoError(t, uniforms.Write(1, []byte{9, 9, 9, 9}))
	got, err := dev.ReadBuffer(uniforms.Buffers[1].Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, got[:4])

	// Flushing another frame does not publish it either.
	require.NoError(t, uniforms.Flush(0))
	got, err = dev.ReadBuffer(uniforms.Buffers[1].Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, got[:4])

	require.NoError(t, uniforms.Flush(1))
	got, err = dev.ReadBuffer(uniforms.Buffers[1].Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9}, got[:4])
}

func TestFrameUniformsBounds(t *testing.T) {
	_, ctx := newTestContext(t)
	uniforms, err := NewFrameUniforms(ctx, 16, 2)
	require.NoError(t, err)
	defer uniforms.Destroy()

	assert.True(t, core.IsInvariantViolation(uniforms.Write(2, []byte{1})))
	assert.True(t, core.IsInvariantViolation(uniforms.Flush(5)))
	assert.True(t, core.IsInvariantViolation(uniforms.Write(0, make([]byte, 17))))
}
