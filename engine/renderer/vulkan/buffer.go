package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	amath "github.com/saeedelsayed/vulkan-playground/engine/math"
)

// VulkanBuffer holds InstanceCount elements, each AlignmentSize bytes apart.
type VulkanBuffer struct {
	context *VulkanContext

	Handle     BufferHandle
	Allocation *VulkanAllocation

	InstanceSize  uint64
	InstanceCount uint32
	AlignmentSize uint64
	BufferSize    uint64
	Usage         vk.BufferUsageFlags

	mapped []byte
}

func alignment(instanceSize, minOffsetAlignment uint64) uint64 {
	if minOffsetAlignment > 0 {
		return amath.AlignUp(instanceSize, minOffsetAlignment)
	}
	return instanceSize
}

// NewVulkanBuffer creates the buffer and binds freshly allocated memory with
// the given properties to it.
func NewVulkanBuffer(
	context *VulkanContext,
	instanceSize uint64,
	instanceCount uint32,
	usage vk.BufferUsageFlags,
	properties vk.MemoryPropertyFlags,
	minOffsetAlignment uint64,
) (*VulkanBuffer, error) {
	if instanceSize == 0 || instanceCount == 0 {
		return nil, errors.AssertionFailedf("buffer needs a positive size, got %d x %d", instanceSize, instanceCount)
	}
	b := &VulkanBuffer{
		context:       context,
		InstanceSize:  instanceSize,
		InstanceCount: instanceCount,
		AlignmentSize: alignment(instanceSize, minOffsetAlignment),
		Usage:         usage,
	}
	b.BufferSize = b.AlignmentSize * uint64(instanceCount)

	var reqs MemoryRequirements
	err := context.LockPool.SafeCall(BufferManagement, func() error {
		var err error
		b.Handle, reqs, err = context.Device.CreateBuffer(b.BufferSize, usage)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating buffer")
	}

	b.Allocation, err = AllocateBufferMemory(context, b.Handle, reqs, properties)
	if err != nil {
		context.Device.DestroyBuffer(b.Handle)
		return nil, err
	}
	return b, nil
}

// Map maps the whole buffer. A buffer is mapped at most once.
func (b *VulkanBuffer) Map() error {
	if b.mapped != nil {
		return errors.AssertionFailedf("buffer %d is already mapped", b.Handle)
	}
	data, err := b.context.Device.MapMemory(b.Allocation.Memory, b.Allocation.Offset, b.BufferSize)
	if err != nil {
		return errors.Wrapf(err, "mapping buffer %d", b.Handle)
	}
	b.mapped = data
	return nil
}

func (b *VulkanBuffer) Mapped() bool {
	return b.mapped != nil
}

func (b *VulkanBuffer) Unmap() {
	if b.mapped == nil {
		return
	}
	b.context.Device.UnmapMemory(b.Allocation.Memory)
	b.mapped = nil
}

// WriteToBuffer copies data into the mapped range starting at offset.
func (b *VulkanBuffer) WriteToBuffer(data []byte, offset uint64) error {
	if b.mapped == nil {
		return errors.AssertionFailedf("write to unmapped buffer %d", b.Handle)
	}
	if offset+uint64(len(data)) > b.BufferSize {
		return errors.AssertionFailedf("write of %d bytes at %d overruns buffer of %d bytes", len(data), offset, b.BufferSize)
	}
	copy(b.mapped[offset:], data)
	return nil
}

// WriteToIndex writes one element; data must not exceed the instance size.
func (b *VulkanBuffer) WriteToIndex(data []byte, index uint32) error {
	if uint64(len(data)) > b.InstanceSize {
		return errors.AssertionFailedf("element of %d bytes exceeds instance size %d", len(data), b.InstanceSize)
	}
	if index >= b.InstanceCount {
		return errors.AssertionFailedf("index %d out of range [0, %d)", index, b.InstanceCount)
	}
	return b.WriteToBuffer(data, uint64(index)*b.AlignmentSize)
}

// Flush makes host writes in [offset, offset+size) visible to the device.
// The range is widened to the non-coherent atom size. Coherent memory needs
// no flush and the call is a no-op.
func (b *VulkanBuffer) Flush(size, offset uint64) error {
	if b.mapped == nil {
		return errors.AssertionFailedf("flush of unmapped buffer %d", b.Handle)
	}
	if b.Allocation.HostCoherent() {
		return nil
	}
	if size == WholeSize {
		size = b.BufferSize - offset
	}
	atom := b.context.Capabilities.Limits.NonCoherentAtomSize
	start := b.Allocation.Offset + offset
	end := start + size
	if atom > 1 {
		start -= start % atom
		end = amath.AlignUp(end, atom)
	}
	if end > b.Allocation.Offset+b.Allocation.Size {
		end = b.Allocation.Offset + b.Allocation.Size
	}
	if err := b.context.Device.FlushMappedMemoryRange(b.Allocation.Memory, start, end-start); err != nil {
		return errors.Wrapf(err, "flushing buffer %d", b.Handle)
	}
	return nil
}

func (b *VulkanBuffer) FlushIndex(index uint32) error {
	return b.Flush(b.AlignmentSize, uint64(index)*b.AlignmentSize)
}

func (b *VulkanBuffer) DescriptorInfo(size, offset uint64) DescriptorBufferInfo {
	if size == WholeSize {
		size = b.BufferSize - offset
	}
	return DescriptorBufferInfo{Buffer: b.Handle, Offset: offset, Range: size}
}

func (b *VulkanBuffer) DescriptorInfoForIndex(index uint32) DescriptorBufferInfo {
	return b.DescriptorInfo(b.InstanceSize, uint64(index)*b.AlignmentSize)
}

// Destroy unmaps and releases the buffer and its memory. Safe to call twice.
func (b *VulkanBuffer) Destroy() {
	if b == nil || b.Handle == NullHandle {
		return
	}
	b.Unmap()
	_ = b.context.LockPool.SafeCall(BufferManagement, func() error {
		b.context.Device.DestroyBuffer(b.Handle)
		return nil
	})
	b.Allocation.Free(b.context)
	b.Handle = NullHandle
}
