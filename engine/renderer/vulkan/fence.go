package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

type VulkanFence struct {
	context *VulkanContext

	Handle     FenceHandle
	IsSignaled bool
}

func NewVulkanFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		context: context,
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}
	err := context.LockPool.SafeCall(SynchronizationManagement, func() error {
		var err error
		fence.Handle, err = context.Device.CreateFence(createSignaled)
		return err
	})
	if err != nil {
		core.LogError("failed to create fence: %s", err)
		return nil, errors.Wrap(err, "creating fence")
	}
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle == NullHandle {
		return
	}
	_ = vf.context.LockPool.SafeCall(SynchronizationManagement, func() error {
		vf.context.Device.DestroyFence(vf.Handle)
		return nil
	})
	vf.Handle = NullHandle
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled. A fence already known to be
// signaled returns immediately.
func (vf *VulkanFence) Wait(timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	if err := vf.context.Device.WaitForFence(vf.Handle, timeoutNs); err != nil {
		switch {
		case errors.Is(err, core.ErrDeviceLost):
			core.LogError("fence wait: device lost")
		default:
			core.LogWarn("fence wait failed: %s", err)
		}
		return err
	}
	vf.IsSignaled = true
	return nil
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return errors.AssertionFailedf("reset of fence %d that was not waited", vf.Handle)
	}
	if err := vf.context.Device.ResetFence(vf.Handle); err != nil {
		core.LogError("failed to reset fence: %s", err)
		return err
	}
	vf.IsSignaled = false
	return nil
}
