package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_IN_RENDER_PASS:
		return "in_render_pass"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording_ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	default:
		return "not_allocated"
	}
}

type VulkanCommandBuffer struct {
	context *VulkanContext

	Handle CommandBufferHandle
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext) (*VulkanCommandBuffer, error) {
	cb := &VulkanCommandBuffer{
		context: context,
		State:   COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}
	err := context.LockPool.SafeCall(CommandBufferManagement, func() error {
		var err error
		cb.Handle, err = context.Device.AllocateCommandBuffer()
		return err
	})
	if err != nil {
		core.LogError("failed to allocate command buffer: %s", err)
		return nil, errors.Wrap(err, "allocating command buffer")
	}
	cb.State = COMMAND_BUFFER_STATE_READY
	return cb, nil
}

func (v *VulkanCommandBuffer) expect(op string, states ...VulkanCommandBufferState) error {
	for _, s := range states {
		if v.State == s {
			return nil
		}
	}
	return errors.AssertionFailedf("%s on command buffer %d in state %s", op, v.Handle, v.State)
}

func (v *VulkanCommandBuffer) Free() {
	if v.State == COMMAND_BUFFER_STATE_NOT_ALLOCATED {
		return
	}
	_ = v.context.LockPool.SafeCall(CommandBufferManagement, func() error {
		v.context.Device.FreeCommandBuffer(v.Handle)
		return nil
	})
	v.Handle = NullHandle
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	if err := v.expect("begin", COMMAND_BUFFER_STATE_READY); err != nil {
		return err
	}
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if err := v.context.Device.BeginCommandBuffer(v.Handle, flags); err != nil {
		return errors.Wrap(err, "beginning command buffer")
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := v.expect("end", COMMAND_BUFFER_STATE_RECORDING); err != nil {
		return err
	}
	if err := v.context.Device.EndCommandBuffer(v.Handle); err != nil {
		return errors.Wrap(err, "ending command buffer")
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) BeginRenderPass(info RenderPassBeginInfo) error {
	if err := v.expect("begin render pass", COMMAND_BUFFER_STATE_RECORDING); err != nil {
		return err
	}
	v.context.Device.CmdBeginRenderPass(v.Handle, info)
	v.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
	return nil
}

func (v *VulkanCommandBuffer) EndRenderPass() error {
	if err := v.expect("end render pass", COMMAND_BUFFER_STATE_IN_RENDER_PASS); err != nil {
		return err
	}
	v.context.Device.CmdEndRenderPass(v.Handle)
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

// Recording reports whether commands may be recorded right now.
func (v *VulkanCommandBuffer) Recording() bool {
	return v.State == COMMAND_BUFFER_STATE_RECORDING || v.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset returns a command buffer whose submission has completed to Ready.
func (v *VulkanCommandBuffer) Reset() error {
	if err := v.expect("reset", COMMAND_BUFFER_STATE_READY, COMMAND_BUFFER_STATE_SUBMITTED, COMMAND_BUFFER_STATE_RECORDING_ENDED); err != nil {
		return err
	}
	if err := v.context.Device.ResetCommandBuffer(v.Handle); err != nil {
		return errors.Wrap(err, "resetting command buffer")
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

/**
 * Allocates and begins recording a command buffer for a one-time submission.
 */
func AllocateAndBeginSingleUse(context *VulkanContext) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false, false); err != nil {
		cb.Free()
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse() error {
	defer v.Free()

	if err := v.End(); err != nil {
		return err
	}
	if err := v.context.Submit(SubmitInfo{CommandBuffer: v.Handle}, NullHandle); err != nil {
		return errors.Wrap(err, "submitting single use command buffer")
	}
	v.UpdateSubmitted()

	// Wait for it to finish
	if err := v.context.QueueWaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for queue idle")
	}
	return nil
}
