package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/components"
)

type FrameState int

const (
	FRAME_STATE_IDLE FrameState = iota
	FRAME_STATE_ACQUIRING
	FRAME_STATE_RECORDING
	FRAME_STATE_SUBMITTING
	FRAME_STATE_PRESENTING
)

func (s FrameState) String() string {
	switch s {
	case FRAME_STATE_IDLE:
		return "idle"
	case FRAME_STATE_ACQUIRING:
		return "acquiring"
	case FRAME_STATE_RECORDING:
		return "recording"
	case FRAME_STATE_SUBMITTING:
		return "submitting"
	default:
		return "presenting"
	}
}

/**
 * @brief Everything one frame in flight owns. Slot i is reused every F frames,
 * only after its fence has been waited.
 */
type FrameSlot struct {
	Index          uint32
	CommandBuffer  *VulkanCommandBuffer
	ImageAvailable SemaphoreHandle
	RenderFinished SemaphoreHandle
	InFlight       *VulkanFence

	// Filled in by BindGlobalState.
	Uniform   *VulkanBuffer
	GlobalSet DescriptorSetHandle
}

// FrameInfo is handed to render views while a frame is recorded.
type FrameInfo struct {
	FrameIndex          uint32
	FrameTime           float32
	CommandBuffer       *VulkanCommandBuffer
	Camera              *components.Camera
	GlobalDescriptorSet DescriptorSetHandle
}

/**
 * @brief Drives acquire, record, submit and present over F frame slots.
 * Single threaded: every method must be called from the render thread.
 */
type FrameCycle struct {
	context   *VulkanContext
	swapchain Swapchain

	slots        []*FrameSlot
	currentFrame uint32
	imageIndex   uint32
	state        FrameState

	// Fence of the slot that last rendered into each swapchain image.
	imagesInFlight []*VulkanFence

	framebufferResized bool
	width, height      uint32

	ClearColor [4]float32
}

func NewFrameCycle(context *VulkanContext, swapchain Swapchain, framesInFlight uint32) (*FrameCycle, error) {
	if framesInFlight < 1 || framesInFlight > VULKAN_MAX_FRAMES_IN_FLIGHT {
		return nil, errors.AssertionFailedf("frames in flight must be within [1, %d], got %d", VULKAN_MAX_FRAMES_IN_FLIGHT, framesInFlight)
	}
	extent := swapchain.Extent()
	fc := &FrameCycle{
		context:        context,
		swapchain:      swapchain,
		imagesInFlight: make([]*VulkanFence, swapchain.ImageCount()),
		width:          extent.Width,
		height:         extent.Height,
		ClearColor:     [4]float32{0.0, 0.0, 0.2, 1.0},
	}
	for i := uint32(0); i < framesInFlight; i++ {
		slot, err := fc.createSlot(i)
		if err != nil {
			fc.Destroy()
			return nil, errors.Wrapf(err, "creating frame slot %d", i)
		}
		fc.slots = append(fc.slots, slot)
	}
	core.LogDebug("frame cycle created with %d frames in flight", framesInFlight)
	return fc, nil
}

func (fc *FrameCycle) createSlot(index uint32) (*FrameSlot, error) {
	slot := &FrameSlot{Index: index}
	var err error
	if slot.CommandBuffer, err = NewVulkanCommandBuffer(fc.context); err != nil {
		return nil, err
	}
	err = fc.context.LockPool.SafeCall(SynchronizationManagement, func() error {
		var err error
		if slot.ImageAvailable, err = fc.context.Device.CreateSemaphore(); err != nil {
			return err
		}
		slot.RenderFinished, err = fc.context.Device.CreateSemaphore()
		return err
	})
	if err == nil {
		// Created signaled so the first wait on every slot returns at once.
		slot.InFlight, err = NewVulkanFence(fc.context, true)
	}
	if err != nil {
		fc.destroySlot(slot)
		return nil, err
	}
	return slot, nil
}

func (fc *FrameCycle) destroySlot(slot *FrameSlot) {
	if slot.CommandBuffer != nil {
		slot.CommandBuffer.Free()
	}
	_ = fc.context.LockPool.SafeCall(SynchronizationManagement, func() error {
		if slot.ImageAvailable != NullHandle {
			fc.context.Device.DestroySemaphore(slot.ImageAvailable)
			slot.ImageAvailable = NullHandle
		}
		if slot.RenderFinished != NullHandle {
			fc.context.Device.DestroySemaphore(slot.RenderFinished)
			slot.RenderFinished = NullHandle
		}
		return nil
	})
	if slot.InFlight != nil {
		slot.InFlight.Destroy()
	}
}

// BindGlobalState attaches one uniform buffer and one descriptor set to each slot.
func (fc *FrameCycle) BindGlobalState(uniforms *FrameUniforms, sets []DescriptorSetHandle) error {
	if len(uniforms.Buffers) != len(fc.slots) || len(sets) != len(fc.slots) {
		return errors.AssertionFailedf("global state for %d buffers and %d sets, frame cycle has %d slots", len(uniforms.Buffers), len(sets), len(fc.slots))
	}
	for i, slot := range fc.slots {
		slot.Uniform = uniforms.Buffers[i]
		slot.GlobalSet = sets[i]
	}
	return nil
}

/**
 * @brief Waits for the current slot, acquires an image and starts recording.
 * Returns a nil command buffer and no error when the frame has to be skipped
 * because the swapchain was stale or the window has no area; the frame
 * index is not advanced in that case.
 */
func (fc *FrameCycle) BeginFrame() (*VulkanCommandBuffer, error) {
	if fc.state != FRAME_STATE_IDLE {
		return nil, errors.AssertionFailedf("begin frame while a frame is %s", fc.state)
	}
	if fc.width == 0 || fc.height == 0 {
		return nil, nil
	}
	slot := fc.slots[fc.currentFrame]

	// Wait for the execution of the previous use of this slot to complete.
	if err := slot.InFlight.Wait(VULKAN_FENCE_TIMEOUT); err != nil {
		return nil, err
	}

	fc.state = FRAME_STATE_ACQUIRING
	imageIndex, err := fc.swapchain.AcquireNextImage(slot.ImageAvailable)
	if err != nil {
		fc.state = FRAME_STATE_IDLE
		if core.IsTransient(err) {
			core.LogDebug("swapchain out of date on acquire, recreating")
			return nil, fc.recreateSwapchain()
		}
		return nil, err
	}
	fc.imageIndex = imageIndex

	// Make sure no earlier frame is still rendering into this image.
	if prev := fc.imagesInFlight[imageIndex]; prev != nil && prev != slot.InFlight {
		if err := prev.Wait(VULKAN_FENCE_TIMEOUT); err != nil {
			fc.state = FRAME_STATE_IDLE
			return nil, err
		}
	}
	fc.imagesInFlight[imageIndex] = slot.InFlight

	// Only reset once an image is guaranteed to be submitted against it.
	// Reset refuses a fence that was not waited since its last submission.
	if err := slot.InFlight.Reset(); err != nil {
		fc.state = FRAME_STATE_IDLE
		return nil, err
	}

	cb := slot.CommandBuffer
	if err := cb.Reset(); err != nil {
		fc.state = FRAME_STATE_IDLE
		return nil, err
	}
	if err := cb.Begin(false, false, false); err != nil {
		fc.state = FRAME_STATE_IDLE
		return nil, err
	}
	fc.state = FRAME_STATE_RECORDING
	return cb, nil
}

func (fc *FrameCycle) checkRecording(cb *VulkanCommandBuffer, op string) error {
	if fc.state != FRAME_STATE_RECORDING {
		return errors.AssertionFailedf("%s while the frame is %s", op, fc.state)
	}
	if cb != fc.slots[fc.currentFrame].CommandBuffer {
		return errors.AssertionFailedf("%s with a command buffer that does not belong to frame %d", op, fc.currentFrame)
	}
	return nil
}

// BeginSwapchainRenderPass clears the acquired image and sets a full viewport and scissor.
func (fc *FrameCycle) BeginSwapchainRenderPass(cb *VulkanCommandBuffer) error {
	if err := fc.checkRecording(cb, "begin swapchain render pass"); err != nil {
		return err
	}
	extent := fc.swapchain.Extent()
	err := cb.BeginRenderPass(RenderPassBeginInfo{
		RenderPass:   fc.swapchain.RenderPass(),
		Framebuffer:  fc.swapchain.Framebuffer(fc.imageIndex),
		Extent:       extent,
		ClearColor:   fc.ClearColor,
		ClearDepth:   1.0,
		ClearStencil: 0,
	})
	if err != nil {
		return err
	}
	fc.context.Device.CmdSetViewportScissor(cb.Handle, extent)
	return nil
}

func (fc *FrameCycle) EndSwapchainRenderPass(cb *VulkanCommandBuffer) error {
	if err := fc.checkRecording(cb, "end swapchain render pass"); err != nil {
		return err
	}
	return cb.EndRenderPass()
}

/**
 * @brief Ends recording, submits and presents the current frame, then
 * advances to the next slot. A stale swapchain, or a resize requested
 * since the last frame, recreates the swapchain here. Only fatal errors
 * are returned.
 */
func (fc *FrameCycle) EndFrame() error {
	if fc.state != FRAME_STATE_RECORDING {
		return errors.AssertionFailedf("end frame without a frame in progress (state %s)", fc.state)
	}
	slot := fc.slots[fc.currentFrame]
	cb := slot.CommandBuffer
	if err := cb.End(); err != nil {
		core.LogError("ending frame command buffer failed: %s", err)
		return errors.CombineErrors(errors.Wrap(err, "ending frame command buffer"), fc.abandonFrame(slot))
	}

	fc.state = FRAME_STATE_SUBMITTING
	err := fc.context.Submit(SubmitInfo{
		CommandBuffer:  cb.Handle,
		WaitSemaphores: []SemaphoreHandle{slot.ImageAvailable},
		// Color writes wait for the image; earlier stages may run ahead.
		WaitStages:       []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		SignalSemaphores: []SemaphoreHandle{slot.RenderFinished},
	}, slot.InFlight.Handle)
	if err != nil {
		core.LogError("queue submit failed: %s", err)
		return errors.CombineErrors(errors.Wrap(err, "submitting frame"), fc.abandonFrame(slot))
	}
	cb.UpdateSubmitted()

	fc.state = FRAME_STATE_PRESENTING
	err = fc.swapchain.Present(slot.RenderFinished, fc.imageIndex)

	fc.currentFrame = (fc.currentFrame + 1) % uint32(len(fc.slots))
	fc.state = FRAME_STATE_IDLE

	switch {
	case core.IsTransient(err) || (err == nil && fc.framebufferResized):
		if err != nil {
			core.LogDebug("swapchain out of date on present, recreating")
		}
		return fc.recreateSwapchain()
	case err != nil:
		return err
	}
	return nil
}

/**
 * @brief Drops a frame that was recorded but never submitted. Its fence was
 * reset and its image semaphore signaled, so the slot is rebuilt before the
 * next BeginFrame can wait on it. The frame index does not advance.
 */
func (fc *FrameCycle) abandonFrame(slot *FrameSlot) error {
	fc.state = FRAME_STATE_IDLE
	if err := fc.context.WaitIdle(); err != nil {
		return err
	}
	for i, fence := range fc.imagesInFlight {
		if fence == slot.InFlight {
			fc.imagesInFlight[i] = nil
		}
	}
	uniform, set := slot.Uniform, slot.GlobalSet
	fc.destroySlot(slot)
	fresh, err := fc.createSlot(slot.Index)
	if err != nil {
		return errors.Wrapf(err, "rebuilding frame slot %d", slot.Index)
	}
	fresh.Uniform, fresh.GlobalSet = uniform, set
	fc.slots[slot.Index] = fresh
	core.LogWarn("frame slot %d rebuilt after an unsubmitted frame", slot.Index)
	return nil
}

func (fc *FrameCycle) recreateSwapchain() error {
	// Detect if the window is too small to be drawn to.
	if fc.width == 0 || fc.height == 0 {
		core.LogDebug("swapchain recreation deferred, window has no area")
		return nil
	}
	if err := fc.context.WaitIdle(); err != nil {
		return err
	}
	if err := fc.swapchain.Recreate(fc.width, fc.height); err != nil {
		return err
	}
	extent := fc.swapchain.Extent()
	fc.width, fc.height = extent.Width, extent.Height
	fc.imagesInFlight = make([]*VulkanFence, fc.swapchain.ImageCount())
	fc.framebufferResized = false
	core.LogDebug("swapchain recreated at %dx%d", extent.Width, extent.Height)
	return nil
}

// Resize records the new framebuffer size. The swapchain is rebuilt at the
// end of the next frame.
func (fc *FrameCycle) Resize(width, height uint32) {
	fc.width, fc.height = width, height
	fc.framebufferResized = true
}

func (fc *FrameCycle) FramebufferResized() bool {
	return fc.framebufferResized
}

func (fc *FrameCycle) FrameIndex() uint32 {
	return fc.currentFrame
}

func (fc *FrameCycle) ImageIndex() uint32 {
	return fc.imageIndex
}

func (fc *FrameCycle) FramesInFlight() uint32 {
	return uint32(len(fc.slots))
}

func (fc *FrameCycle) InProgress() bool {
	return fc.state != FRAME_STATE_IDLE
}

func (fc *FrameCycle) State() FrameState {
	return fc.state
}

func (fc *FrameCycle) AspectRatio() float32 {
	return fc.swapchain.AspectRatio()
}

func (fc *FrameCycle) RenderPass() RenderPassHandle {
	return fc.swapchain.RenderPass()
}

func (fc *FrameCycle) Extent() Extent2D {
	return fc.swapchain.Extent()
}

func (fc *FrameCycle) Slot(index uint32) *FrameSlot {
	if int(index) >= len(fc.slots) {
		return nil
	}
	return fc.slots[index]
}

func (fc *FrameCycle) CurrentSlot() *FrameSlot {
	return fc.slots[fc.currentFrame]
}

// Destroy drains the device and releases every slot. The swapchain is owned by the caller.
func (fc *FrameCycle) Destroy() {
	if err := fc.context.WaitIdle(); err != nil {
		core.LogWarn("wait idle before frame cycle destroy: %s", err)
	}
	for _, slot := range fc.slots {
		fc.destroySlot(slot)
	}
	fc.slots = nil
	fc.imagesInFlight = nil
}
