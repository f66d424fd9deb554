package renderer

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/vulkan"
)

// Surface is what the window system hands to the Vulkan backend.
type Surface interface {
	GetInstanceProcAddress() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferSize() (uint32, uint32)
}

type RendererType uint8

const (
	Vulkan RendererType = iota
	// Software device without a window.
	Headless
)

func (t RendererType) String() string {
	if t == Headless {
		return "headless"
	}
	return "vulkan"
}

// Image count most drivers hand out for a FIFO swapchain.
const headlessSwapchainImages = 3

/**
 * @brief The device and the swapchain factory of one renderer type.
 */
type backend struct {
	rendererType RendererType
	device       vulkan.Device
	queueFamily  uint32

	vulkanDevice   *vulkan.VulkanDevice
	headlessDevice *vulkan.HeadlessDevice
}

func newBackend(config Config, surface Surface) (*backend, error) {
	if config.Headless || surface == nil {
		dev := vulkan.NewHeadlessDevice()
		return &backend{
			rendererType:   Headless,
			device:         dev,
			headlessDevice: dev,
		}, nil
	}

	dev, err := vulkan.NewVulkanDevice(vulkan.VulkanDeviceConfig{
		ApplicationName:     config.ApplicationName,
		GetInstanceProcAddr: surface.GetInstanceProcAddress(),
		RequiredExtensions:  surface.RequiredInstanceExtensions(),
		Validation:          config.Validation,
		CreateSurface:       surface.CreateSurface,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating vulkan device")
	}
	return &backend{
		rendererType: Vulkan,
		device:       dev,
		queueFamily:  dev.GraphicsQueueIndex,
		vulkanDevice: dev,
	}, nil
}

func (b *backend) newSwapchain(context *vulkan.VulkanContext, width, height uint32, vsync bool) (vulkan.Swapchain, error) {
	if b.rendererType == Headless {
		return vulkan.NewHeadlessSwapchain(b.headlessDevice, width, height, headlessSwapchainImages)
	}
	return vulkan.NewVulkanSwapchain(context, b.vulkanDevice, width, height, vsync)
}

func (b *backend) destroy() {
	if b.device == nil {
		return
	}
	b.device.Destroy()
	b.device = nil
	core.LogDebug("%s device destroyed", b.rendererType)
}
