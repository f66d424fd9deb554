package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

// HeadlessSwapchain presents into off-screen framebuffers of a
// HeadlessDevice. Images are handed out round robin. Stale results can be
// scripted to exercise recreation.
type HeadlessSwapchain struct {
	device *HeadlessDevice

	extent       Extent2D
	imageCount   uint32
	renderPass   RenderPassHandle
	framebuffers []FramebufferHandle
	next         uint32

	staleAcquires int
	stalePresents int
	recreations   int
}

func NewHeadlessSwapchain(device *HeadlessDevice, width, height, imageCount uint32) (*HeadlessSwapchain, error) {
	if width == 0 || height == 0 || imageCount == 0 {
		return nil, errors.AssertionFailedf("headless swapchain needs a positive extent and image count, got %dx%d x%d", width, height, imageCount)
	}
	sc := &HeadlessSwapchain{
		device:     device,
		extent:     Extent2D{Width: width, Height: height},
		imageCount: imageCount,
		renderPass: device.createRenderPass(),
	}
	sc.createFramebuffers()
	return sc, nil
}

func (s *HeadlessSwapchain) createFramebuffers() {
	s.framebuffers = make([]FramebufferHandle, s.imageCount)
	for i := range s.framebuffers {
		s.framebuffers[i] = s.device.createFramebuffer(s.renderPass)
	}
}

func (s *HeadlessSwapchain) destroyFramebuffers() {
	for _, fb := range s.framebuffers {
		s.device.destroyFramebuffer(fb)
	}
	s.framebuffers = nil
}

// InjectOutOfDate makes the next acquire report a stale surface.
func (s *HeadlessSwapchain) InjectOutOfDate() {
	s.staleAcquires++
}

// InjectPresentOutOfDate makes the next present report a stale surface.
func (s *HeadlessSwapchain) InjectPresentOutOfDate() {
	s.stalePresents++
}

// Recreations counts successful Recreate calls.
func (s *HeadlessSwapchain) Recreations() int {
	return s.recreations
}

func (s *HeadlessSwapchain) AcquireNextImage(imageAvailable SemaphoreHandle) (uint32, error) {
	if s.staleAcquires > 0 {
		s.staleAcquires--
		return 0, resultError("vkAcquireNextImageKHR", vk.ErrorOutOfDate)
	}
	if err := s.device.acquire(imageAvailable); err != nil {
		return 0, err
	}
	index := s.next
	s.next = (s.next + 1) % s.imageCount
	return index, nil
}

func (s *HeadlessSwapchain) Present(renderFinished SemaphoreHandle, imageIndex uint32) error {
	if imageIndex >= s.imageCount {
		return errors.AssertionFailedf("present of image %d, swapchain has %d", imageIndex, s.imageCount)
	}
	if err := s.device.present(renderFinished); err != nil {
		return err
	}
	if s.stalePresents > 0 {
		s.stalePresents--
		return resultError("vkQueuePresentKHR", vk.ErrorOutOfDate)
	}
	return nil
}

func (s *HeadlessSwapchain) Recreate(width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.AssertionFailedf("swapchain recreate with zero extent %dx%d", width, height)
	}
	s.destroyFramebuffers()
	s.extent = Extent2D{Width: width, Height: height}
	s.next = 0
	s.createFramebuffers()
	s.recreations++
	core.LogDebug("headless swapchain recreated: %dx%d", width, height)
	return nil
}

func (s *HeadlessSwapchain) RenderPass() RenderPassHandle {
	return s.renderPass
}

func (s *HeadlessSwapchain) Framebuffer(imageIndex uint32) FramebufferHandle {
	if int(imageIndex) >= len(s.framebuffers) {
		return NullHandle
	}
	return s.framebuffers[imageIndex]
}

func (s *HeadlessSwapchain) Extent() Extent2D {
	return s.extent
}

func (s *HeadlessSwapchain) AspectRatio() float32 {
	return float32(s.extent.Width) / float32(s.extent.Height)
}

func (s *HeadlessSwapchain) ImageCount() uint32 {
	return s.imageCount
}

func (s *HeadlessSwapchain) Destroy() {
	s.destroyFramebuffers()
	if s.renderPass != NullHandle {
		s.device.destroyRenderPass(s.renderPass)
		s.renderPass = NullHandle
	}
}
