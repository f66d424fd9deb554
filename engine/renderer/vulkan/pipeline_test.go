package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func TestGraphicsPipelineDraw(t *testing.T) {
	dev, ctx := newTestContext(t)
	sc, err := NewHeadlessSwapchain(dev, 800, 600, 2)
	require.NoError(t, err)
	defer sc.Destroy()
	fc, err := NewFrameCycle(ctx, sc, 2)
	require.NoError(t, err)
	defer fc.Destroy()

	layout := globalLayout(t, ctx)
	defer layout.Destroy()
	pool, err := NewDescriptorPoolBuilder(ctx).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, 2).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 2).
		SetMaxSets(2).
		Build()
	require.NoError(t, err)
	defer pool.Destroy()
	uniforms, err := NewFrameUniforms(ctx, 128, 2)
	require.NoError(t, err)
	defer uniforms.Destroy()
	tex := newTestTexture(t, ctx)
	defer tex.Destroy()

	sets := make([]DescriptorSetHandle, 2)
	for i := range sets {
		info, err := uniforms.DescriptorInfo(uint32(i))
		require.NoError(t, err)
		sets[i], err = NewDescriptorWriter(layout, pool).WriteBuffer(0, info).WriteTextures(1, tex).Build()
		require.NoError(t, err)
	}
	require.NoError(t, fc.BindGlobalState(uniforms, sets))

	pipeline, err := NewGraphicsPipeline(ctx, &VulkanPipelineConfig{
		RenderPass: fc.RenderPass(),
		Stride:     20,
		Attributes: []VertexAttribute{
			{Location: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Format: vk.FormatR32g32Sfloat, Offset: 12},
		},
		DescriptorSetLayouts: []*DescriptorSetLayout{layout},
		VertexShader:         fakeSPIRV(),
		FragmentShader:       fakeSPIRV(),
		PushConstantSize:     64,
		PushConstantStages:   vertexStage,
	})
	require.NoError(t, err)
	defer pipeline.Destroy()

	for n := 0; n < 4; n++ {
		cb, err := fc.BeginFrame()
		require.NoError(t, err)
		slot := fc.CurrentSlot()
		require.NoError(t, uniforms.Write(slot.Index, make([]byte, 128)))
		require.NoError(t, uniforms.Flush(slot.Index))

		require.NoError(t, fc.BeginSwapchainRenderPass(cb))
		require.NoError(t, pipeline.Bind(cb))
		require.NoError(t, pipeline.BindDescriptorSets(cb, 0, slot.GlobalSet))
		require.NoError(t, pipeline.PushConstants(cb, make([]byte, 64)))
		assert.True(t, core.IsInvariantViolation(pipeline.PushConstants(cb, make([]byte, 65))))
		ctx.Device.CmdDrawIndexed(cb.Handle, 6)
		require.NoError(t, fc.EndSwapchainRenderPass(cb))
		require.NoError(t, fc.EndFrame())
	}
	require.NoError(t, ctx.WaitIdle())
	assert.Equal(t, 4, dev.DrawCount())
	assert.Empty(t, dev.ValidationErrors())
}

func TestGraphicsPipelineLimits(t *testing.T) {
	dev, ctx := newTestContext(t)
	sc, err := NewHeadlessSwapchain(dev, 800, 600, 2)
	require.NoError(t, err)
	defer sc.Destroy()

	_, err = NewGraphicsPipeline(ctx, &VulkanPipelineConfig{
		RenderPass:       sc.RenderPass(),
		VertexShader:     fakeSPIRV(),
		FragmentShader:   fakeSPIRV(),
		PushConstantSize: 256,
	})
	assert.True(t, errors.Is(err, core.ErrCapabilityMissing))

	_, err = NewGraphicsPipeline(ctx, &VulkanPipelineConfig{
		RenderPass:     sc.RenderPass(),
		VertexShader:   []byte{1, 2, 3},
		FragmentShader: fakeSPIRV(),
	})
	assert.True(t, core.IsFatal(err), "invalid shader code")
}
