package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

// FrameUniforms owns one persistently mapped uniform buffer per frame slot.
// The host writes only the slot of the frame being recorded; the slot fence
// guarantees the GPU is done reading it.
type FrameUniforms struct {
	Buffers      []*VulkanBuffer
	InstanceSize uint64
}

func NewFrameUniforms(context *VulkanContext, instanceSize uint64, frames uint32) (*FrameUniforms, error) {
	u := &FrameUniforms{InstanceSize: instanceSize}
	for i := uint32(0); i < frames; i++ {
		b, err := NewVulkanBuffer(
			context,
			instanceSize,
			1,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			MemoryHostVisible,
			context.Capabilities.Limits.MinUniformBufferOffsetAlignment,
		)
		if err != nil {
			u.Destroy()
			return nil, errors.Wrapf(err, "creating uniform buffer for frame %d", i)
		}
		u.Buffers = append(u.Buffers, b)
		if err := b.Map(); err != nil {
			u.Destroy()
			return nil, err
		}
	}
	return u, nil
}

func (u *FrameUniforms) buffer(frame uint32) (*VulkanBuffer, error) {
	if int(frame) >= len(u.Buffers) {
		return nil, errors.AssertionFailedf("frame %d out of range [0, %d)", frame, len(u.Buffers))
	}
	return u.Buffers[frame], nil
}

// Write copies data into the buffer of frame. Call Flush before submitting.
func (u *FrameUniforms) Write(frame uint32, data []byte) error {
	b, err := u.buffer(frame)
	if err != nil {
		return err
	}
	return b.WriteToIndex(data, 0)
}

func (u *FrameUniforms) Flush(frame uint32) error {
	b, err := u.buffer(frame)
	if err != nil {
		return err
	}
	return b.FlushIndex(0)
}

func (u *FrameUniforms) DescriptorInfo(frame uint32) (DescriptorBufferInfo, error) {
	b, err := u.buffer(frame)
	if err != nil {
		return DescriptorBufferInfo{}, err
	}
	return b.DescriptorInfoForIndex(0), nil
}

func (u *FrameUniforms) Destroy() {
	for _, b := range u.Buffers {
		b.Destroy()
	}
	u.Buffers = nil
}
