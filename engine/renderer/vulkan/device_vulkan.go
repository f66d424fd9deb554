package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

// VulkanDeviceConfig carries what the platform layer provides to bring a device up.
type VulkanDeviceConfig struct {
	ApplicationName string
	// Loader entry point, usually glfw.GetVulkanGetInstanceProcAddress().
	GetInstanceProcAddr unsafe.Pointer
	// Instance extensions the window system needs.
	RequiredExtensions []string
	Validation         bool
	// Creates the presentation surface once the instance exists.
	CreateSurface func(instance vk.Instance) (vk.Surface, error)
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

type vulkanMemory struct {
	handle vk.DeviceMemory
	size   uint64
}

type vulkanDescriptorSet struct {
	handle vk.DescriptorSet
	pool   DescriptorPoolHandle
}

type vulkanPipeline struct {
	handle vk.Pipeline
	layout PipelineLayoutHandle
}

/**
 * @brief A Device backed by a real GPU through goki/vulkan. Every Vulkan
 * object is kept in a handle table so the core only ever sees opaque handles.
 */
type VulkanDevice struct {
	Instance       vk.Instance
	debugCallback  vk.DebugReportCallback
	Surface        vk.Surface
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	GraphicsQueue      vk.Queue
	PresentQueue       vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	caps DeviceCapabilities

	buffers         *handleTable[vk.Buffer]
	memories        *handleTable[vulkanMemory]
	images          *handleTable[vk.Image]
	views           *handleTable[vk.ImageView]
	samplers        *handleTable[vk.Sampler]
	setLayouts      *handleTable[vk.DescriptorSetLayout]
	pools           *handleTable[vk.DescriptorPool]
	sets            *handleTable[vulkanDescriptorSet]
	pipelines       *handleTable[vulkanPipeline]
	pipelineLayouts *handleTable[vk.PipelineLayout]
	renderPasses    *handleTable[vk.RenderPass]
	framebuffers    *handleTable[vk.Framebuffer]
	commandBuffers  *handleTable[vk.CommandBuffer]
	fences          *handleTable[vk.Fence]
	semaphores      *handleTable[vk.Semaphore]
}

func NewVulkanDevice(config VulkanDeviceConfig) (*VulkanDevice, error) {
	if config.GetInstanceProcAddr == nil {
		return nil, core.Fatalf(core.ErrCapabilityMissing, "GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(config.GetInstanceProcAddr)
	if err := vk.Init(); err != nil {
		return nil, core.AsFatal(errors.Wrap(err, "initializing vulkan loader"), nil)
	}

	d := &VulkanDevice{
		buffers:         newHandleTable[vk.Buffer](),
		memories:        newHandleTable[vulkanMemory](),
		images:          newHandleTable[vk.Image](),
		views:           newHandleTable[vk.ImageView](),
		samplers:        newHandleTable[vk.Sampler](),
		setLayouts:      newHandleTable[vk.DescriptorSetLayout](),
		pools:           newHandleTable[vk.DescriptorPool](),
		sets:            newHandleTable[vulkanDescriptorSet](),
		pipelines:       newHandleTable[vulkanPipeline](),
		pipelineLayouts: newHandleTable[vk.PipelineLayout](),
		renderPasses:    newHandleTable[vk.RenderPass](),
		framebuffers:    newHandleTable[vk.Framebuffer](),
		commandBuffers:  newHandleTable[vk.CommandBuffer](),
		fences:          newHandleTable[vk.Fence](),
		semaphores:      newHandleTable[vk.Semaphore](),
	}

	if err := d.createInstance(config); err != nil {
		d.Destroy()
		return nil, err
	}

	// Surface
	core.LogDebug("creating Vulkan surface...")
	surface, err := config.CreateSurface(d.Instance)
	if err != nil {
		d.Destroy()
		return nil, core.AsFatal(errors.Wrap(err, "creating surface"), nil)
	}
	d.Surface = surface

	if err := d.selectPhysicalDevice(); err != nil {
		d.Destroy()
		return nil, err
	}
	if err := d.createLogicalDevice(); err != nil {
		d.Destroy()
		return nil, err
	}
	if !d.detectDepthFormat() {
		d.Destroy()
		return nil, core.Fatalf(core.ErrCapabilityMissing, "no supported depth format")
	}
	d.caps = d.queryCapabilities()
	return d, nil
}

func (d *VulkanDevice) createInstance(config VulkanDeviceConfig) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(config.ApplicationName),
		PEngineName:        VulkanSafeString(VULKAN_ENGINE_NAME),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	requiredExtensions = append(requiredExtensions, config.RequiredExtensions...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1 // VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	}
	if config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	for _, ext := range requiredExtensions {
		core.LogDebug("required extension: %s", ext)
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers.
	requiredLayers := []string{}
	if config.Validation {
		core.LogInfo("validation layers enabled, enumerating...")
		requiredLayers = []string{"VK_LAYER_KHRONOS_validation"}

		var count uint32
		if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
			return err
		}
		available := make([]vk.LayerProperties, count)
		if err := resultError("vkEnumerateInstanceLayerProperties", vk.EnumerateInstanceLayerProperties(&count, available)); err != nil {
			return err
		}
		for _, name := range requiredLayers {
			found := false
			for j := range available {
				available[j].Deref()
				if cString(available[j].LayerName[:]) == name {
					found = true
					break
				}
			}
			if !found {
				return core.Fatalf(core.ErrCapabilityMissing, "required validation layer is missing: %s", name)
			}
		}
		core.LogInfo("all required validation layers are present")
	}
	createInfo.EnabledLayerCount = uint32(len(requiredLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredLayers)

	var instance vk.Instance
	if err := resultError("vkCreateInstance", vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		core.LogError("failed to create the Vulkan instance: %s", err)
		return err
	}
	d.Instance = instance
	if err := vk.InitInstance(d.Instance); err != nil {
		return core.AsFatal(errors.Wrap(err, "loading instance functions"), nil)
	}
	core.LogInfo("Vulkan instance created")

	// Debugger
	if config.Validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := resultError("vkCreateDebugReportCallbackEXT", vk.CreateDebugReportCallback(d.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			return err
		}
		d.debugCallback = dbg
		core.LogDebug("Vulkan debugger created")
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (d *VulkanDevice) selectPhysicalDevice() error {
	var count uint32
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.Instance, &count, nil)); err != nil {
		return err
	}
	if count == 0 {
		return core.Fatalf(core.ErrCapabilityMissing, "no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if err := resultError("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(d.Instance, &count, physicalDevices)); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	// Prefer a discrete GPU, fall back to anything that meets the requirements.
	for _, discrete := range []bool{true, false} {
		requirements.DiscreteGPU = discrete
		for _, pd := range physicalDevices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(pd, &properties)
			properties.Deref()

			queueInfo, ok := d.physicalDeviceMeetsRequirements(pd, &properties, &requirements)
			if !ok {
				continue
			}

			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(pd, &features)
			features.Deref()
			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
			memory.Deref()

			d.PhysicalDevice = pd
			d.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
			d.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
			// Keep a copy of properties, features and memory info for later use.
			d.Properties = properties
			d.Features = features
			d.Memory = memory
			d.logSelectedDevice()
			return nil
		}
	}
	return core.Fatalf(core.ErrCapabilityMissing, "no physical devices were found which meet the requirements")
}

func (d *VulkanDevice) logSelectedDevice() {
	core.LogInfo("selected device: '%s'", cString(d.Properties.DeviceName[:]))
	switch d.Properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU")
	default:
		core.LogInfo("GPU type is Unknown")
	}
	core.LogInfo("GPU driver version: %d.%d.%d",
		vk.Version(d.Properties.DriverVersion).Major(),
		vk.Version(d.Properties.DriverVersion).Minor(),
		vk.Version(d.Properties.DriverVersion).Patch())
	core.LogInfo("Vulkan API version: %d.%d.%d",
		vk.Version(d.Properties.ApiVersion).Major(),
		vk.Version(d.Properties.ApiVersion).Minor(),
		vk.Version(d.Properties.ApiVersion).Patch())

	// Memory information
	for j := uint32(0); j < d.Memory.MemoryHeapCount; j++ {
		heap := d.Memory.MemoryHeaps[j]
		heap.Deref()
		sizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("local GPU memory: %.2f GiB", sizeGib)
		} else {
			core.LogInfo("shared system memory: %.2f GiB", sizeGib)
		}
	}
}

func (d *VulkanDevice) physicalDeviceMeetsRequirements(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}
	name := cString(properties.DeviceName[:])

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("device %s is not a discrete GPU, skipping", name)
		return info, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		graphics := queueFamilies[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), d.Surface, &supportsPresent); res != vk.Success {
			return info, false
		}
		present := supportsPresent == vk.True

		// A family that does both is preferred; it avoids concurrent sharing.
		if graphics && present {
			info.GraphicsFamilyIndex = int32(i)
			info.PresentFamilyIndex = int32(i)
			break
		}
		if graphics && info.GraphicsFamilyIndex < 0 {
			info.GraphicsFamilyIndex = int32(i)
		}
		if present && info.PresentFamilyIndex < 0 {
			info.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("device %s: graphics family %d, present family %d", name, info.GraphicsFamilyIndex, info.PresentFamilyIndex)
	if (requirements.Graphics && info.GraphicsFamilyIndex < 0) || (requirements.Present && info.PresentFamilyIndex < 0) {
		return info, false
	}

	// Query swapchain support.
	support, err := querySwapchainSupport(device, d.Surface)
	if err != nil || support.FormatCount < 1 || support.PresentModeCount < 1 {
		core.LogDebug("required swapchain support not present on %s, skipping", name)
		return info, false
	}

	// Device extensions.
	available, err := deviceExtensions(device)
	if err != nil {
		return info, false
	}
	for _, ext := range requirements.DeviceExtensionNames {
		if _, ok := available[ext]; !ok {
			core.LogDebug("required extension not found: '%s', skipping %s", ext, name)
			return info, false
		}
	}
	return info, true
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if err := resultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	exts := make([]vk.ExtensionProperties, count)
	if err := resultError("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(device, "", &count, exts)); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, count)
	for i := range exts {
		exts[i].Deref()
		out[cString(exts[i].ExtensionName[:])] = struct{}{}
	}
	return out, nil
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (*VulkanSwapchainSupportInfo, error) {
	info := &VulkanSwapchainSupportInfo{}
	// Surface capabilities
	if err := resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &info.Capabilities)); err != nil {
		return nil, err
	}
	// Surface formats
	if err := resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &info.FormatCount, nil)); err != nil {
		return nil, err
	}
	if info.FormatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, info.FormatCount)
		if err := resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &info.FormatCount, info.Formats)); err != nil {
			return nil, err
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}
	// Present modes
	if err := resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &info.PresentModeCount, nil)); err != nil {
		return nil, err
	}
	if info.PresentModeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, info.PresentModeCount)
		if err := resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &info.PresentModeCount, info.PresentModes)); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func (d *VulkanDevice) querySwapchainSupport() (*VulkanSwapchainSupportInfo, error) {
	return querySwapchainSupport(d.PhysicalDevice, d.Surface)
}

func (d *VulkanDevice) createLogicalDevice() error {
	core.LogInfo("creating logical device...")

	// Do not create additional queues for shared indices.
	indices := []uint32{d.GraphicsQueueIndex}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		indices = append(indices, d.PresentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	// Request anisotropy only where the device has it.
	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if d.Features.SamplerAnisotropy == vk.True {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(d.PhysicalDevice)
	if err != nil {
		return err
	}
	if _, ok := available["VK_KHR_portability_subset"]; ok {
		core.LogInfo("adding required extension 'VK_KHR_portability_subset'")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}
	var device vk.Device
	if err := resultError("vkCreateDevice", vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, nil, &device)); err != nil {
		return err
	}
	d.LogicalDevice = device
	core.LogInfo("logical device created")

	// Get queues.
	var graphics, present vk.Queue
	vk.GetDeviceQueue(d.LogicalDevice, d.GraphicsQueueIndex, 0, &graphics)
	vk.GetDeviceQueue(d.LogicalDevice, d.PresentQueueIndex, 0, &present)
	d.GraphicsQueue, d.PresentQueue = graphics, present

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := resultError("vkCreateCommandPool", vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, nil, &pool)); err != nil {
		return err
	}
	d.GraphicsCommandPool = pool
	core.LogDebug("graphics command pool created")
	return nil
}

func (d *VulkanDevice) detectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			d.DepthFormat = candidate
			return true
		}
	}
	return false
}

func (d *VulkanDevice) queryCapabilities() DeviceCapabilities {
	limits := d.Properties.Limits
	limits.Deref()
	caps := DeviceCapabilities{
		Name: cString(d.Properties.DeviceName[:]),
		Limits: DeviceLimits{
			MaxPushConstantsSize:            limits.MaxPushConstantsSize,
			MaxBoundDescriptorSets:          limits.MaxBoundDescriptorSets,
			MaxImageDimension2D:             limits.MaxImageDimension2D,
			MinUniformBufferOffsetAlignment: uint64(limits.MinUniformBufferOffsetAlignment),
			NonCoherentAtomSize:             uint64(limits.NonCoherentAtomSize),
			MaxSamplerAnisotropy:            limits.MaxSamplerAnisotropy,
		},
		SamplerAnisotropy: d.Features.SamplerAnisotropy == vk.True,
		DepthFormat:       d.DepthFormat,
	}
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		t := d.Memory.MemoryTypes[i]
		t.Deref()
		caps.MemoryTypes = append(caps.MemoryTypes, MemoryType{
			PropertyFlags: t.PropertyFlags,
			HeapIndex:     t.HeapIndex,
		})
	}
	return caps
}

func (d *VulkanDevice) Capabilities() DeviceCapabilities {
	return d.caps
}

// Destroy releases the device, surface, debugger and instance. Everything
// created through the device must already be gone.
func (d *VulkanDevice) Destroy() {
	if d.LogicalDevice != nil {
		vk.DeviceWaitIdle(d.LogicalDevice)
		if n := d.liveObjects(); n > 0 {
			core.LogWarn("destroying device with %d live objects", n)
		}
		if d.GraphicsCommandPool != vk.CommandPool(vk.NullHandle) {
			core.LogDebug("destroying command pools...")
			vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, nil)
			d.GraphicsCommandPool = vk.CommandPool(vk.NullHandle)
		}
		core.LogDebug("destroying logical device...")
		vk.DestroyDevice(d.LogicalDevice, nil)
		d.LogicalDevice = nil
	}
	d.GraphicsQueue, d.PresentQueue = nil, nil
	// Physical devices are not destroyed.
	d.PhysicalDevice = nil

	if d.Surface != vk.NullSurface {
		core.LogDebug("destroying Vulkan surface...")
		vk.DestroySurface(d.Instance, d.Surface, nil)
		d.Surface = vk.NullSurface
	}
	if d.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(d.Instance, d.debugCallback, nil)
		d.debugCallback = vk.NullDebugReportCallback
	}
	if d.Instance != nil {
		core.LogDebug("destroying Vulkan instance...")
		vk.DestroyInstance(d.Instance, nil)
		d.Instance = nil
	}
}

func (d *VulkanDevice) liveObjects() int {
	return d.buffers.len() + d.memories.len() + d.images.len() + d.views.len() +
		d.samplers.len() + d.setLayouts.len() + d.pools.len() + d.pipelines.len() +
		d.renderPasses.len() + d.framebuffers.len() + d.commandBuffers.len() +
		d.fences.len() + d.semaphores.len()
}
