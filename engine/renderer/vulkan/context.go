package vulkan

import (
	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

// VulkanContext is passed to every constructor of the frame core.
type VulkanContext struct {
	Device       Device
	Capabilities DeviceCapabilities
	LockPool     *VulkanLockPool

	// Queue family used for graphics, transfer and present.
	QueueFamily uint32
}

// NewVulkanContext queries and validates the capabilities of device once.
// Nothing else is created here.
func NewVulkanContext(device Device, queueFamily uint32) (*VulkanContext, error) {
	caps := device.Capabilities()
	if err := ValidateMemoryCapabilities(caps); err != nil {
		return nil, err
	}
	lp := NewVulkanLockPool()
	lp.SetQueueFamily(queueFamily)

	core.LogInfo("using device %s (%d memory types)", caps.Name, len(caps.MemoryTypes))
	return &VulkanContext{
		Device:       device,
		Capabilities: caps,
		LockPool:     lp,
		QueueFamily:  queueFamily,
	}, nil
}

// Submit serializes access to the queue.
func (vc *VulkanContext) Submit(info SubmitInfo, fence FenceHandle) error {
	return vc.LockPool.SafeQueueCall(vc.QueueFamily, func() error {
		return vc.Device.QueueSubmit(info, fence)
	})
}

func (vc *VulkanContext) QueueWaitIdle() error {
	return vc.LockPool.SafeQueueCall(vc.QueueFamily, func() error {
		return vc.Device.QueueWaitIdle()
	})
}

// WaitIdle drains the device. It must precede any release of in-flight resources.
func (vc *VulkanContext) WaitIdle() error {
	return vc.LockPool.SafeQueueCall(vc.QueueFamily, func() error {
		return vc.Device.WaitIdle()
	})
}
