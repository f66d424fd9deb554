package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

const (
	MemoryDeviceLocal  = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	MemoryHostVisible  = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)
	MemoryHostCoherent = vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
)

// FindMemoryType returns the first memory type allowed by typeFilter whose
// property flags contain every flag in properties.
func FindMemoryType(caps DeviceCapabilities, typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	for i, t := range caps.MemoryTypes {
		if typeFilter&(1<<uint32(i)) != 0 && t.PropertyFlags&properties == properties {
			return uint32(i), nil
		}
	}
	core.LogWarn("unable to find suitable memory type (filter=%#x, properties=%#x)", typeFilter, uint32(properties))
	return 0, core.Fatalf(core.ErrNoSuitableMemoryType, "no memory type matches filter %#x with properties %#x", typeFilter, uint32(properties))
}

// ValidateMemoryCapabilities checks that the memory types the core relies
// on exist at all.
func ValidateMemoryCapabilities(caps DeviceCapabilities) error {
	all := ^uint32(0)
	required := []vk.MemoryPropertyFlags{
		MemoryDeviceLocal,
		MemoryHostVisible | MemoryHostCoherent,
		MemoryHostVisible,
	}
	for _, props := range required {
		if _, err := FindMemoryType(caps, all, props); err != nil {
			return errors.Wrapf(err, "device %s", caps.Name)
		}
	}
	return nil
}

// ValidateDeviceCapabilities runs before any pool or buffer is built.
// pushConstantSize and boundSets describe what the pipelines will ask for.
func ValidateDeviceCapabilities(caps DeviceCapabilities, pushConstantSize, boundSets uint32) error {
	if err := ValidateMemoryCapabilities(caps); err != nil {
		return err
	}
	if pushConstantSize > caps.Limits.MaxPushConstantsSize {
		return core.Fatalf(core.ErrCapabilityMissing,
			"push constant size %d exceeds the device limit of %d", pushConstantSize, caps.Limits.MaxPushConstantsSize)
	}
	if boundSets > caps.Limits.MaxBoundDescriptorSets {
		return core.Fatalf(core.ErrCapabilityMissing,
			"%d bound descriptor sets exceed the device limit of %d", boundSets, caps.Limits.MaxBoundDescriptorSets)
	}
	return nil
}

// VulkanAllocation is one device memory object bound to exactly one buffer or image.
type VulkanAllocation struct {
	Memory     MemoryHandle
	Offset     uint64
	Size       uint64
	TypeIndex  uint32
	Properties vk.MemoryPropertyFlags

	bound bool
}

func allocate(context *VulkanContext, reqs MemoryRequirements, properties vk.MemoryPropertyFlags) (*VulkanAllocation, error) {
	index, err := FindMemoryType(context.Capabilities, reqs.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}
	var mem MemoryHandle
	err = context.LockPool.SafeCall(MemoryManagement, func() error {
		var err error
		mem, err = context.Device.AllocateMemory(reqs.Size, index)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %d bytes from memory type %d", reqs.Size, index)
	}
	return &VulkanAllocation{
		Memory:     mem,
		Size:       reqs.Size,
		TypeIndex:  index,
		Properties: context.Capabilities.MemoryTypes[index].PropertyFlags,
	}, nil
}

func (a *VulkanAllocation) markBound() error {
	if a.bound {
		return errors.AssertionFailedf("allocation %d is already bound", a.Memory)
	}
	a.bound = true
	return nil
}

// AllocateBufferMemory allocates memory for buffer and binds it.
// On failure nothing is left allocated.
func AllocateBufferMemory(context *VulkanContext, buffer BufferHandle, reqs MemoryRequirements, properties vk.MemoryPropertyFlags) (*VulkanAllocation, error) {
	a, err := allocate(context, reqs, properties)
	if err != nil {
		return nil, err
	}
	if err := a.BindBuffer(context, buffer); err != nil {
		a.Free(context)
		return nil, err
	}
	return a, nil
}

// AllocateImageMemory allocates memory for image and binds it.
func AllocateImageMemory(context *VulkanContext, image ImageHandle, reqs MemoryRequirements, properties vk.MemoryPropertyFlags) (*VulkanAllocation, error) {
	a, err := allocate(context, reqs, properties)
	if err != nil {
		return nil, err
	}
	if err := a.BindImage(context, image); err != nil {
		a.Free(context)
		return nil, err
	}
	return a, nil
}

func (a *VulkanAllocation) BindBuffer(context *VulkanContext, buffer BufferHandle) error {
	if err := a.markBound(); err != nil {
		return err
	}
	if err := context.Device.BindBufferMemory(buffer, a.Memory, a.Offset); err != nil {
		a.bound = false
		return errors.Wrap(err, "binding buffer memory")
	}
	return nil
}

func (a *VulkanAllocation) BindImage(context *VulkanContext, image ImageHandle) error {
	if err := a.markBound(); err != nil {
		return err
	}
	if err := context.Device.BindImageMemory(image, a.Memory, a.Offset); err != nil {
		a.bound = false
		return errors.Wrap(err, "binding image memory")
	}
	return nil
}

// HostCoherent reports whether writes through a mapping need no flush.
func (a *VulkanAllocation) HostCoherent() bool {
	return a.Properties&MemoryHostCoherent != 0
}

// Free releases the memory. The caller guarantees the GPU no longer uses it.
func (a *VulkanAllocation) Free(context *VulkanContext) {
	if a == nil || a.Memory == NullHandle {
		return
	}
	_ = context.LockPool.SafeCall(MemoryManagement, func() error {
		context.Device.FreeMemory(a.Memory)
		return nil
	})
	a.Memory = NullHandle
	a.bound = false
}
