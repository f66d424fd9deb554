package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

var (
	vertexStage   = vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	fragmentStage = vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
)

func globalLayout(t *testing.T, ctx *VulkanContext) *DescriptorSetLayout {
	t.Helper()
	layout, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vertexStage, 1).
		AddBinding(1, vk.DescriptorTypeCombinedImageSampler, fragmentStage, 1).
		Build()
	require.NoError(t, err)
	return layout
}

func TestDescriptorLayoutDuplicateBinding(t *testing.T) {
	_, ctx := newTestContext(t)
	_, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vertexStage, 1).
		AddBinding(0, vk.DescriptorTypeCombinedImageSampler, fragmentStage, 1).
		Build()
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.True(t, errors.Is(err, core.ErrDuplicateBinding))
}

func TestDescriptorLayoutCountDefaultsToOne(t *testing.T) {
	_, ctx := newTestContext(t)
	layout, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(3, vk.DescriptorTypeUniformBuffer, vertexStage, 0).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()
	assert.Equal(t, uint32(1), layout.Bindings[3].Count)
}

func TestDescriptorPoolExhaustion(t *testing.T) {
	dev, ctx := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 2).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 2).
		SetMaxSets(10).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	uniforms, err := NewFrameUniforms(ctx, 64, 3)
	require.NoError(t, err)
	defer uniforms.Destroy()
	tex := newTestTexture(t, ctx)
	defer tex.Destroy()

	build := func(frame uint32) (DescriptorSetHandle, error) {
		info, err := uniforms.DescriptorInfo(frame)
		require.NoError(t, err)
		return NewDescriptorWriter(layout, pool).
			WriteBuffer(0, info).
			WriteTextures(1, tex).
			Build()
	}

	first, err := build(0)
	require.NoError(t, err)
	second, err := build(1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, uint32(0), pool.Remaining(vk.DescriptorTypeUniformBuffer))
	assert.Equal(t, uint32(2), pool.AllocatedSets())

	_, err = build(2)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.True(t, errors.Is(err, core.ErrPoolExhausted))
	assert.Equal(t, uint32(2), pool.AllocatedSets())

	// Earlier sets keep their contents.
	for i, set := range []DescriptorSetHandle{first, second} {
		writes := dev.DescriptorWrites(set)
		require.Len(t, writes, 2)
		assert.Equal(t, uniforms.Buffers[i].Handle, writes[0].BufferInfo[0].Buffer)
		assert.Equal(t, tex.Image.View, writes[1].ImageInfo[0].View)
	}
	assert.Empty(t, dev.ValidationErrors())
}

// A {UB:2, CIS:2} pool against a UB + CIS[2] layout holds two sets. The
// third allocation fails and leaves the first two alone.
func TestDescriptorPoolTwoSetScenario(t *testing.T) {
	dev, ctx := newTestContext(t)
	layout, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vertexStage, 1).
		AddBinding(1, vk.DescriptorTypeCombinedImageSampler, fragmentStage, 2).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 2).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 2).
		SetMaxSets(2).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	uniforms, err := NewFrameUniforms(ctx, 64, 2)
	require.NoError(t, err)
	defer uniforms.Destroy()
	nature := newTestTexture(t, ctx)
	defer nature.Destroy()
	background := newTestTexture(t, ctx)
	defer background.Destroy()

	sets := make([]DescriptorSetHandle, 0, 2)
	for frame := uint32(0); frame < 2; frame++ {
		info, err := uniforms.DescriptorInfo(frame)
		require.NoError(t, err)
		set, err := NewDescriptorWriter(layout, pool).
			WriteBuffer(0, info).
			WriteTextures(1, nature, background).
			Build()
		require.NoError(t, err, "set %d", frame)
		sets = append(sets, set)
	}
	before := make([]map[uint32]DescriptorWrite, len(sets))
	for i, set := range sets {
		before[i] = dev.DescriptorWrites(set)
	}

	_, err = pool.Allocate(layout)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.True(t, errors.Is(err, core.ErrPoolExhausted))
	assert.Equal(t, uint32(2), pool.AllocatedSets())

	for i, set := range sets {
		writes := dev.DescriptorWrites(set)
		assert.Equal(t, before[i], writes)
		assert.Equal(t, uniforms.Buffers[i].Handle, writes[0].BufferInfo[0].Buffer)
		require.Len(t, writes[1].ImageInfo, 2)
		assert.Equal(t, nature.Image.View, writes[1].ImageInfo[0].View)
		assert.Equal(t, background.Image.View, writes[1].ImageInfo[1].View)
	}
	assert.Empty(t, dev.ValidationErrors())
}

func TestDescriptorPoolMaxSets(t *testing.T) {
	_, ctx := newTestContext(t)
	layout, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vertexStage, 1).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 10).
		SetMaxSets(1).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	_, err = pool.Allocate(layout)
	require.NoError(t, err)
	_, err = pool.Allocate(layout)
	assert.True(t, errors.Is(err, core.ErrPoolExhausted))
}

func TestDescriptorArrayedBindingUsesOneSlot(t *testing.T) {
	dev, ctx := newTestContext(t)
	layout, err := NewDescriptorSetLayoutBuilder(ctx).
		AddBinding(0, vk.DescriptorTypeCombinedImageSampler, fragmentStage, 2).
		Build()
	require.NoError(t, err)
	defer layout.Destroy()

	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 1).
		SetMaxSets(4).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	a := newTestTexture(t, ctx)
	defer a.Destroy()
	b := newTestTexture(t, ctx)
	defer b.Destroy()

	set, err := NewDescriptorWriter(layout, pool).WriteTextures(0, a, b).Build()
	require.NoError(t, err)
	writes := dev.DescriptorWrites(set)
	require.Len(t, writes[0].ImageInfo, 2)
	assert.Equal(t, b.Sampler, writes[0].ImageInfo[1].Sampler)
	assert.Equal(t, uint32(0), pool.Remaining(vk.DescriptorTypeCombinedImageSampler))
}

func TestDescriptorWriterValidation(t *testing.T) {
	_, ctx := newTestContext(t)
	layout := globalLayout(t, ctx)
	defer layout.Destroy()
	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 4).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 4).
		SetMaxSets(4).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()

	uniforms, err := NewFrameUniforms(ctx, 64, 1)
	require.NoError(t, err)
	defer uniforms.Destroy()
	info, err := uniforms.DescriptorInfo(0)
	require.NoError(t, err)
	tex := newTestTexture(t, ctx)
	defer tex.Destroy()

	// Buffer into an image binding.
	_, err = NewDescriptorWriter(layout, pool).WriteBuffer(1, info).Build()
	assert.True(t, core.IsInvariantViolation(err))

	// Binding the layout does not have.
	_, err = NewDescriptorWriter(layout, pool).WriteBuffer(7, info).Build()
	assert.True(t, core.IsInvariantViolation(err))

	// Same binding twice.
	_, err = NewDescriptorWriter(layout, pool).WriteBuffer(0, info).WriteBuffer(0, info).Build()
	assert.True(t, core.IsInvariantViolation(err))

	// Texture not ready.
	dead := newTestTexture(t, ctx)
	dead.Destroy()
	_, err = NewDescriptorWriter(layout, pool).WriteTextures(1, dead).Build()
	assert.True(t, core.IsInvariantViolation(err))

	// None of the failures consumed pool capacity.
	assert.Equal(t, uint32(0), pool.AllocatedSets())

	set, err := NewDescriptorWriter(layout, pool).WriteBuffer(0, info).WriteTextures(1, tex).Build()
	require.NoError(t, err)
	assert.NoError(t, NewDescriptorWriter(layout, pool).WriteTextures(1, tex).Overwrite(set))
	assert.True(t, core.IsInvariantViolation(NewDescriptorWriter(layout, pool).Overwrite(NullHandle)))
}
