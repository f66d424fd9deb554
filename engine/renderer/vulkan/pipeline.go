package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

/**
 * @brief Holds a graphics pipeline and its layout.
 */
type VulkanPipeline struct {
	context *VulkanContext

	/** @brief The internal pipeline handle. */
	Handle PipelineHandle
	/** @brief The pipeline layout. */
	PipelineLayout PipelineLayoutHandle
	/** @brief Stages the push constant range is visible to. */
	PushConstantStages vk.ShaderStageFlags
	PushConstantSize   uint32
}

type VulkanPipelineConfig struct {
	/** @brief The renderpass to associate with the pipeline. */
	RenderPass RenderPassHandle
	/** @brief The stride of the vertex data to be used. */
	Stride uint32
	/** @brief An array of attributes. */
	Attributes []VertexAttribute
	/** @brief Descriptor set layouts in set index order. */
	DescriptorSetLayouts []*DescriptorSetLayout
	/** @brief SPIR-V code of the vertex and fragment stages. */
	VertexShader   []byte
	FragmentShader []byte
	/** @brief Size of the single push constant range at offset 0, 0 for none. */
	PushConstantSize   uint32
	PushConstantStages vk.ShaderStageFlags
}

// NewGraphicsPipeline checks the configuration against the device limits
// before anything is created.
func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	if err := ValidateDeviceCapabilities(context.Capabilities, config.PushConstantSize, uint32(len(config.DescriptorSetLayouts))); err != nil {
		return nil, err
	}
	layouts := make([]DescriptorSetLayoutHandle, len(config.DescriptorSetLayouts))
	for i, l := range config.DescriptorSetLayouts {
		layouts[i] = l.Handle
	}

	outPipeline := &VulkanPipeline{
		context:            context,
		PushConstantStages: config.PushConstantStages,
		PushConstantSize:   config.PushConstantSize,
	}
	err := context.LockPool.SafeCall(PipelineManagement, func() error {
		var err error
		outPipeline.Handle, outPipeline.PipelineLayout, err = context.Device.CreatePipeline(PipelineCreateInfo{
			RenderPass:         config.RenderPass,
			SetLayouts:         layouts,
			PushConstantSize:   config.PushConstantSize,
			PushConstantStages: config.PushConstantStages,
			VertexShader:       config.VertexShader,
			FragmentShader:     config.FragmentShader,
			VertexStride:       config.Stride,
			Attributes:         config.Attributes,
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating graphics pipeline")
	}
	core.LogDebug("graphics pipeline created")
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy() {
	if pipeline.Handle == NullHandle {
		return
	}
	_ = pipeline.context.LockPool.SafeCall(PipelineManagement, func() error {
		pipeline.context.Device.DestroyPipeline(pipeline.Handle, pipeline.PipelineLayout)
		return nil
	})
	pipeline.Handle = NullHandle
	pipeline.PipelineLayout = NullHandle
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) error {
	if !commandBuffer.Recording() {
		return errors.AssertionFailedf("bind pipeline on command buffer in state %s", commandBuffer.State)
	}
	pipeline.context.Device.CmdBindPipeline(commandBuffer.Handle, pipeline.Handle)
	return nil
}

func (pipeline *VulkanPipeline) BindDescriptorSets(commandBuffer *VulkanCommandBuffer, firstSet uint32, sets ...DescriptorSetHandle) error {
	if !commandBuffer.Recording() {
		return errors.AssertionFailedf("bind descriptor sets on command buffer in state %s", commandBuffer.State)
	}
	pipeline.context.Device.CmdBindDescriptorSets(commandBuffer.Handle, pipeline.PipelineLayout, firstSet, sets)
	return nil
}

// PushConstants writes data at offset 0 of the push constant range.
func (pipeline *VulkanPipeline) PushConstants(commandBuffer *VulkanCommandBuffer, data []byte) error {
	if uint32(len(data)) > pipeline.PushConstantSize {
		return errors.AssertionFailedf("push constant data of %d bytes exceeds the range of %d", len(data), pipeline.PushConstantSize)
	}
	if !commandBuffer.Recording() {
		return errors.AssertionFailedf("push constants on command buffer in state %s", commandBuffer.State)
	}
	pipeline.context.Device.CmdPushConstants(commandBuffer.Handle, pipeline.PipelineLayout, pipeline.PushConstantStages, 0, data)
	return nil
}
