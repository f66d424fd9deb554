package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

// LayoutTransition is one row of the supported transition table.
type LayoutTransition struct {
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
}

// LookupLayoutTransition returns the access masks and stages for old→new.
// Pairs outside the table are invariant violations.
func LookupLayoutTransition(oldLayout, newLayout vk.ImageLayout) (LayoutTransition, error) {
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		return LayoutTransition{
			SrcAccess: 0,
			DstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}, nil
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		return LayoutTransition{
			SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
			SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		}, nil
	}
	err := errors.AssertionFailedf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	return LayoutTransition{}, core.AsFatal(err, core.ErrUnsupportedLayoutTransition)
}

// TransferEngine performs blocking one-shot uploads on the graphics queue.
// Every operation records into its own single-use command buffer and waits
// for the queue to idle before returning.
type TransferEngine struct {
	context *VulkanContext
}

func NewTransferEngine(context *VulkanContext) *TransferEngine {
	return &TransferEngine{context: context}
}

// CreateStagingBuffer returns a mapped host-visible, host-coherent buffer
// usable as a transfer source.
func (t *TransferEngine) CreateStagingBuffer(size uint64) (*VulkanBuffer, error) {
	b, err := NewVulkanBuffer(
		t.context,
		size,
		1,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		MemoryHostVisible|MemoryHostCoherent,
		0,
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating staging buffer")
	}
	if err := b.Map(); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (t *TransferEngine) oneShot(op string, record func(cb *VulkanCommandBuffer)) error {
	cb, err := AllocateAndBeginSingleUse(t.context)
	if err != nil {
		return errors.Wrap(err, op)
	}
	record(cb)
	if err := cb.EndSingleUse(); err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}

func (t *TransferEngine) CopyBufferToBuffer(src, dst *VulkanBuffer, size uint64) error {
	if size > src.BufferSize || size > dst.BufferSize {
		return errors.AssertionFailedf("copy of %d bytes exceeds source (%d) or destination (%d)", size, src.BufferSize, dst.BufferSize)
	}
	return t.oneShot("copying buffer", func(cb *VulkanCommandBuffer) {
		t.context.Device.CmdCopyBuffer(cb.Handle, src.Handle, dst.Handle, BufferCopy{Size: size})
	})
}

// CopyBufferToImage copies tightly packed texels into dst, which must
// already be in the transfer destination layout.
func (t *TransferEngine) CopyBufferToImage(src *VulkanBuffer, dst *VulkanImage, width, height uint32) error {
	if dst.Layout != vk.ImageLayoutTransferDstOptimal {
		return errors.AssertionFailedf("copy into image %d in layout %d", dst.Handle, dst.Layout)
	}
	return t.oneShot("copying buffer to image", func(cb *VulkanCommandBuffer) {
		t.context.Device.CmdCopyBufferToImage(cb.Handle, src.Handle, dst.Handle, vk.ImageLayoutTransferDstOptimal, width, height)
	})
}

// TransitionImageLayout records one image barrier from oldLayout to newLayout.
// Nothing is recorded for unsupported pairs.
func (t *TransferEngine) TransitionImageLayout(image *VulkanImage, format vk.Format, oldLayout, newLayout vk.ImageLayout) error {
	transition, err := LookupLayoutTransition(oldLayout, newLayout)
	if err != nil {
		return err
	}
	if image.Layout != oldLayout {
		return errors.AssertionFailedf("image %d is in layout %d, not %d", image.Handle, image.Layout, oldLayout)
	}
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if format == vk.FormatD32Sfloat || format == vk.FormatD24UnormS8Uint || format == vk.FormatD32SfloatS8Uint {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	err = t.oneShot("transitioning image layout", func(cb *VulkanCommandBuffer) {
		t.context.Device.CmdPipelineBarrier(cb.Handle, transition.SrcStage, transition.DstStage, ImageBarrier{
			Image:         image.Handle,
			OldLayout:     oldLayout,
			NewLayout:     newLayout,
			SrcAccessMask: transition.SrcAccess,
			DstAccessMask: transition.DstAccess,
			AspectMask:    aspect,
		})
	})
	if err != nil {
		return err
	}
	image.Layout = newLayout
	return nil
}
