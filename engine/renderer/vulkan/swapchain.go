package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
	amath "github.com/saeedelsayed/vulkan-playground/engine/math"
)

// Swapchain is the presentation surface driven by the frame cycle.
//
// AcquireNextImage and Present report a stale surface as a transient error;
// the caller recreates and carries on. The render pass returned by
// RenderPass stays valid across Recreate.
type Swapchain interface {
	AcquireNextImage(imageAvailable SemaphoreHandle) (uint32, error)
	Present(renderFinished SemaphoreHandle, imageIndex uint32) error
	Recreate(width, height uint32) error

	RenderPass() RenderPassHandle
	Framebuffer(imageIndex uint32) FramebufferHandle
	Extent() Extent2D
	AspectRatio() float32
	ImageCount() uint32

	Destroy()
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

type VulkanSwapchain struct {
	context *VulkanContext
	device  *VulkanDevice

	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Images      []vk.Image
	Views       []vk.ImageView
	VSync       bool

	DepthAttachment *VulkanImage

	renderPass RenderPassHandle
	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer

	extent Extent2D
}

func NewVulkanSwapchain(context *VulkanContext, device *VulkanDevice, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	sc := &VulkanSwapchain{
		context: context,
		device:  device,
		VSync:   vsync,
	}
	if err := sc.create(width, height); err != nil {
		sc.Destroy()
		return nil, err
	}

	rp, err := createMainRenderPass(device, sc.ImageFormat.Format, device.DepthFormat)
	if err != nil {
		sc.Destroy()
		return nil, err
	}
	sc.renderPass = rp
	if err := sc.regenerateFramebuffers(); err != nil {
		sc.Destroy()
		return nil, err
	}
	core.LogInfo("swapchain created: %dx%d, %d images", sc.extent.Width, sc.extent.Height, len(sc.Images))
	return sc, nil
}

func (vs *VulkanSwapchain) create(width, height uint32) error {
	support, err := vs.device.querySwapchainSupport()
	if err != nil {
		return err
	}
	if support.FormatCount == 0 || support.PresentModeCount == 0 {
		return core.Fatalf(core.ErrCapabilityMissing, "surface reports no formats or present modes")
	}
	support.Capabilities.Deref()

	// Choose a swap surface format.
	vs.ImageFormat = support.Formats[0]
	for _, format := range support.Formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			vs.ImageFormat = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	if !vs.VSync {
		for _, mode := range support.PresentModes {
			if mode == vk.PresentModeMailbox {
				presentMode = mode
				break
			}
		}
	}

	caps := support.Capabilities
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	swapchainExtent := vk.Extent2D{Width: width, Height: height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = caps.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	swapchainExtent.Width = amath.Clamp(swapchainExtent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	swapchainExtent.Height = amath.Clamp(swapchainExtent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vs.device.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
	}
	if vs.device.GraphicsQueueIndex != vs.device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{vs.device.GraphicsQueueIndex, vs.device.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if err := resultError("vkCreateSwapchainKHR", vk.CreateSwapchain(vs.device.LogicalDevice, &createInfo, nil, &handle)); err != nil {
		return err
	}
	vs.Handle = handle
	vs.extent = Extent2D{Width: swapchainExtent.Width, Height: swapchainExtent.Height}

	var count uint32
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(vs.device.LogicalDevice, vs.Handle, &count, nil)); err != nil {
		return err
	}
	vs.Images = make([]vk.Image, count)
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(vs.device.LogicalDevice, vs.Handle, &count, vs.Images)); err != nil {
		return err
	}

	// Views
	vs.Views = make([]vk.ImageView, 0, count)
	for _, img := range vs.Images {
		view, err := vs.device.createRawImageView(img, vs.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		vs.Views = append(vs.Views, view)
	}

	// Depth resources
	depth, err := NewVulkanImage(vs.context, ImageCreateInfo{
		Width:  vs.extent.Width,
		Height: vs.extent.Height,
		Format: vs.device.DepthFormat,
		Tiling: vk.ImageTilingOptimal,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	}, MemoryDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "creating depth attachment")
	}
	vs.DepthAttachment = depth
	return depth.CreateView(vk.ImageAspectFlags(vk.ImageAspectDepthBit))
}

func (vs *VulkanSwapchain) regenerateFramebuffers() error {
	vs.Framebuffers = make([]*VulkanFramebuffer, 0, len(vs.Views))
	depthView := vs.device.imageView(vs.DepthAttachment.View)
	for _, view := range vs.Views {
		fb, err := NewVulkanFramebuffer(vs.device, vs.renderPass, vs.extent, []vk.ImageView{view, depthView})
		if err != nil {
			return err
		}
		vs.Framebuffers = append(vs.Framebuffers, fb)
	}
	return nil
}

// destroySwapchain releases everything that depends on the surface size.
// The render pass survives.
func (vs *VulkanSwapchain) destroySwapchain() {
	for _, fb := range vs.Framebuffers {
		fb.Destroy(vs.device)
	}
	vs.Framebuffers = nil
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy()
		vs.DepthAttachment = nil
	}
	// Only destroy the views, not the images, since those are owned by the swapchain.
	for _, view := range vs.Views {
		vk.DestroyImageView(vs.device.LogicalDevice, view, nil)
	}
	vs.Views = nil
	vs.Images = nil
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(vs.device.LogicalDevice, vs.Handle, nil)
		vs.Handle = vk.NullSwapchain
	}
}

func (vs *VulkanSwapchain) AcquireNextImage(imageAvailable SemaphoreHandle) (uint32, error) {
	var index uint32
	result := vk.AcquireNextImage(vs.device.LogicalDevice, vs.Handle, VULKAN_FENCE_TIMEOUT, vs.device.semaphore(imageAvailable), vk.NullFence, &index)
	switch result {
	case vk.Success:
		return index, nil
	case vk.Suboptimal:
		// The image is still usable and the semaphore was signaled.
		core.LogDebug("swapchain suboptimal on acquire, image %d", index)
		return index, nil
	default:
		return 0, resultError("vkAcquireNextImageKHR", result)
	}
}

func (vs *VulkanSwapchain) Present(renderFinished SemaphoreHandle, imageIndex uint32) error {
	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vs.device.semaphore(renderFinished)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	return vs.context.LockPool.SafeQueueCall(vs.device.PresentQueueIndex, func() error {
		return resultError("vkQueuePresentKHR", vk.QueuePresent(vs.device.PresentQueue, &presentInfo))
	})
}

// Recreate rebuilds the swapchain for a new surface size. The device must be idle.
func (vs *VulkanSwapchain) Recreate(width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.AssertionFailedf("swapchain recreate with zero extent %dx%d", width, height)
	}
	vs.destroySwapchain()
	if err := vs.create(width, height); err != nil {
		return err
	}
	if err := vs.regenerateFramebuffers(); err != nil {
		return err
	}
	core.LogDebug("swapchain recreated: %dx%d", vs.extent.Width, vs.extent.Height)
	return nil
}

func (vs *VulkanSwapchain) RenderPass() RenderPassHandle {
	return vs.renderPass
}

func (vs *VulkanSwapchain) Framebuffer(imageIndex uint32) FramebufferHandle {
	if int(imageIndex) >= len(vs.Framebuffers) {
		return NullHandle
	}
	return vs.Framebuffers[imageIndex].Handle
}

func (vs *VulkanSwapchain) Extent() Extent2D {
	return vs.extent
}

func (vs *VulkanSwapchain) AspectRatio() float32 {
	if vs.extent.Height == 0 {
		return 1
	}
	return float32(vs.extent.Width) / float32(vs.extent.Height)
}

func (vs *VulkanSwapchain) ImageCount() uint32 {
	return uint32(len(vs.Images))
}

func (vs *VulkanSwapchain) Destroy() {
	vs.destroySwapchain()
	if vs.renderPass != NullHandle {
		vs.device.destroyRenderPass(vs.renderPass)
		vs.renderPass = NullHandle
	}
}
