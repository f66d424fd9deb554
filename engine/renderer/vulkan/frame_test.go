package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func newTestFrameCycle(t *testing.T, frames, images uint32) (*HeadlessDevice, *HeadlessSwapchain, *FrameCycle) {
	t.Helper()
	dev, ctx := newTestContext(t)
	sc, err := NewHeadlessSwapchain(dev, 800, 600, images)
	require.NoError(t, err)
	fc, err := NewFrameCycle(ctx, sc, frames)
	require.NoError(t, err)
	t.Cleanup(func() {
		fc.Destroy()
		sc.Destroy()
	})
	return dev, sc, fc
}

func runFrame(t *testing.T, fc *FrameCycle) {
	t.Helper()
	cb, err := fc.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, cb)
	require.NoError(t, fc.BeginSwapchainRenderPass(cb))
	require.NoError(t, fc.EndSwapchainRenderPass(cb))
	require.NoError(t, fc.EndFrame())
}

func TestFrameCycleRejectsBadFrameCount(t *testing.T) {
	dev, ctx := newTestContext(t)
	sc, err := NewHeadlessSwapchain(dev, 800, 600, 2)
	require.NoError(t, err)
	defer sc.Destroy()

	for _, n := range []uint32{0, VULKAN_MAX_FRAMES_IN_FLIGHT + 1} {
		_, err := NewFrameCycle(ctx, sc, n)
		assert.True(t, core.IsInvariantViolation(err), "frames in flight %d", n)
	}
}

func TestFrameIndexCycles(t *testing.T) {
	dev, _, fc := newTestFrameCycle(t, 2, 2)

	var seen []uint32
	for n := 0; n < 10; n++ {
		seen = append(seen, fc.FrameIndex())
		runFrame(t, fc)
	}
	assert.Equal(t, []uint32{0, 1, 0, 1, 0, 1, 0, 1, 0, 1}, seen)
	assert.Equal(t, uint32(0), fc.FrameIndex())
	assert.LessOrEqual(t, dev.MaxOutstanding(), 2)
	assert.Empty(t, dev.ValidationErrors())
}

func TestFrameSlotFenceWaitedBeforeReuse(t *testing.T) {
	for _, images := range []uint32{2, 3} {
		dev, _, fc := newTestFrameCycle(t, 2, images)
		for n := 0; n < 12; n++ {
			runFrame(t, fc)
		}

		// Between two submissions signalling the same fence there is a wait on it.
		lastSubmit := make(map[FenceHandle]int)
		for i, op := range dev.Ops() {
			if op.Kind != OpSubmit || op.Fence == NullHandle {
				continue
			}
			if prev, ok := lastSubmit[op.Fence]; ok {
				waited := false
				for _, between := range dev.Ops()[prev+1 : i] {
					if between.Kind == OpWaitFence && FenceHandle(between.Handle) == op.Fence {
						waited = true
						break
					}
				}
				assert.True(t, waited, "fence %d reused without a wait (%d images)", op.Fence, images)
			}
			lastSubmit[op.Fence] = i
		}
		assert.LessOrEqual(t, dev.MaxOutstanding(), 2)
		assert.Empty(t, dev.ValidationErrors())
	}
}

func TestFrameCycleSingleFrameInFlight(t *testing.T) {
	dev, _, fc := newTestFrameCycle(t, 1, 3)
	for n := 0; n < 5; n++ {
		assert.Equal(t, uint32(0), fc.FrameIndex())
		runFrame(t, fc)
	}
	assert.Equal(t, 1, dev.MaxOutstanding())
}

func TestAcquireOutOfDateRecreates(t *testing.T) {
	dev, sc, fc := newTestFrameCycle(t, 2, 2)
	runFrame(t, fc)
	require.Equal(t, uint32(1), fc.FrameIndex())

	sc.InjectOutOfDate()
	cb, err := fc.BeginFrame()
	require.NoError(t, err)
	assert.Nil(t, cb, "frame skipped")
	assert.Equal(t, uint32(1), fc.FrameIndex(), "index does not advance on a skipped frame")
	assert.Equal(t, 1, sc.Recreations())
	assert.False(t, fc.InProgress())

	runFrame(t, fc)
	assert.Equal(t, uint32(0), fc.FrameIndex())
	assert.Empty(t, dev.ValidationErrors())
}

func TestPresentOutOfDateRecreates(t *testing.T) {
	dev, sc, fc := newTestFrameCycle(t, 2, 2)

	sc.InjectPresentOutOfDate()
	runFrame(t, fc)
	assert.Equal(t, 1, sc.Recreations())
	assert.Equal(t, uint32(1), fc.FrameIndex(), "the presented frame still counts")

	for n := 0; n < 4; n++ {
		runFrame(t, fc)
	}
	assert.Equal(t, 1, sc.Recreations())
	assert.Empty(t, dev.ValidationErrors())
}

func TestResizeRecreatesAtEndOfFrame(t *testing.T) {
	_, sc, fc := newTestFrameCycle(t, 2, 2)
	fc.Resize(1024, 768)
	assert.True(t, fc.FramebufferResized())

	runFrame(t, fc)
	assert.Equal(t, 1, sc.Recreations())
	assert.False(t, fc.FramebufferResized())
	assert.Equal(t, Extent2D{Width: 1024, Height: 768}, fc.Extent())
	assert.InDelta(t, float32(1024)/768, fc.AspectRatio(), 1e-6)
}

func TestZeroAreaWindowSkipsFrames(t *testing.T) {
	dev, sc, fc := newTestFrameCycle(t, 2, 2)
	fc.Resize(0, 0)
	dev.ResetOps()

	cb, err := fc.BeginFrame()
	require.NoError(t, err)
	assert.Nil(t, cb)
	assert.Empty(t, dev.Ops(), "nothing reaches the device while minimized")

	fc.Resize(640, 480)
	runFrame(t, fc)
	assert.Equal(t, 1, sc.Recreations())
	assert.Equal(t, Extent2D{Width: 640, Height: 480}, sc.Extent())
}

func TestFrameCycleMisuse(t *testing.T) {
	_, _, fc := newTestFrameCycle(t, 2, 2)

	assert.True(t, core.IsInvariantViolation(fc.EndFrame()), "end without begin")

	cb, err := fc.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, cb)
	assert.Equal(t, FRAME_STATE_RECORDING, fc.State())

	_, err = fc.BeginFrame()
	assert.True(t, core.IsInvariantViolation(err), "begin twice")

	other := fc.Slot(1).CommandBuffer
	assert.True(t, core.IsInvariantViolation(fc.BeginSwapchainRenderPass(other)))

	require.NoError(t, fc.EndFrame())
	assert.Equal(t, FRAME_STATE_IDLE, fc.State())
	assert.Nil(t, fc.Slot(2))
}

func TestFrameSlotFenceResetRequiresWait(t *testing.T) {
	_, _, fc := newTestFrameCycle(t, 2, 2)
	runFrame(t, fc)

	// Slot 0 has a submission the cycle has not waited on yet.
	fence := fc.Slot(0).InFlight
	assert.False(t, fence.IsSignaled)
	assert.True(t, core.IsInvariantViolation(fence.Reset()))

	require.NoError(t, fence.Wait(VULKAN_FENCE_TIMEOUT))
	assert.NoError(t, fence.Reset())
}

// endFailingDevice fails EndCommandBuffer while fail is set.
type endFailingDevice struct {
	*HeadlessDevice
	fail *bool
}

func (d endFailingDevice) EndCommandBuffer(cb CommandBufferHandle) error {
	if *d.fail {
		return resultError("vkEndCommandBuffer", vk.ErrorOutOfDeviceMemory)
	}
	return d.HeadlessDevice.EndCommandBuffer(cb)
}

func TestFrameCycleRecoversFromFailedEnd(t *testing.T) {
	dev := NewHeadlessDevice()
	fail := false
	ctx, err := NewVulkanContext(endFailingDevice{dev, &fail}, 0)
	require.NoError(t, err)
	sc, err := NewHeadlessSwapchain(dev, 320, 240, 2)
	require.NoError(t, err)
	defer sc.Destroy()
	fc, err := NewFrameCycle(ctx, sc, 2)
	require.NoError(t, err)
	defer fc.Destroy()

	runFrame(t, fc)
	broken := fc.Slot(1)
	cb, err := fc.BeginFrame()
	require.NoError(t, err)
	require.NotNil(t, cb)

	fail = true
	err = fc.EndFrame()
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.False(t, core.IsInvariantViolation(err), "the device error surfaces, not a state assertion")
	assert.Equal(t, FRAME_STATE_IDLE, fc.State())
	assert.Equal(t, uint32(1), fc.FrameIndex())
	assert.NotSame(t, broken, fc.Slot(1), "the slot was rebuilt")

	fail = false
	for n := 0; n < 4; n++ {
		runFrame(t, fc)
	}
	assert.Equal(t, uint32(1), fc.FrameIndex())
	assert.LessOrEqual(t, dev.MaxOutstanding(), 2)
	assert.Empty(t, dev.ValidationErrors())
}

func TestFrameCycleReleasesEverything(t *testing.T) {
	dev, ctx := newTestContext(t)
	baseline := dev.LiveObjects()
	sc, err := NewHeadlessSwapchain(dev, 320, 240, 3)
	require.NoError(t, err)
	fc, err := NewFrameCycle(ctx, sc, 3)
	require.NoError(t, err)
	for n := 0; n < 7; n++ {
		runFrame(t, fc)
	}
	fc.Destroy()
	sc.Destroy()
	assert.Equal(t, baseline, dev.LiveObjects())
	assert.Equal(t, 0, dev.Outstanding())
	assert.Empty(t, dev.ValidationErrors())
}
