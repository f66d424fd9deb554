package vulkan

import (
	"sync"

	vk "github.com/goki/vulkan"
)

// Opaque handles handed out by a Device. Zero is never a valid handle.
type (
	BufferHandle              uint64
	MemoryHandle              uint64
	ImageHandle               uint64
	ImageViewHandle           uint64
	SamplerHandle             uint64
	DescriptorSetLayoutHandle uint64
	DescriptorPoolHandle      uint64
	DescriptorSetHandle       uint64
	PipelineHandle            uint64
	PipelineLayoutHandle      uint64
	RenderPassHandle          uint64
	FramebufferHandle         uint64
	CommandBufferHandle       uint64
	FenceHandle               uint64
	SemaphoreHandle           uint64
)

const NullHandle = 0

type MemoryType struct {
	PropertyFlags vk.MemoryPropertyFlags
	HeapIndex     uint32
}

type DeviceLimits struct {
	MaxPushConstantsSize            uint32
	MaxBoundDescriptorSets          uint32
	MaxImageDimension2D             uint32
	MinUniformBufferOffsetAlignment uint64
	NonCoherentAtomSize             uint64
	MaxSamplerAnisotropy            float32
}

// DeviceCapabilities is what the core reads from the device before building
// pools and buffers.
type DeviceCapabilities struct {
	Name              string
	MemoryTypes       []MemoryType
	Limits            DeviceLimits
	SamplerAnisotropy bool
	DepthFormat       vk.Format
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

type ImageCreateInfo struct {
	Width  uint32
	Height uint32
	Format vk.Format
	Tiling vk.ImageTiling
	Usage  vk.ImageUsageFlags
}

type SamplerCreateInfo struct {
	MagFilter        vk.Filter
	MinFilter        vk.Filter
	AddressMode      vk.SamplerAddressMode
	AnisotropyEnable bool
	MaxAnisotropy    float32
}

type DescriptorBinding struct {
	Binding    uint32
	Type       vk.DescriptorType
	StageFlags vk.ShaderStageFlags
	Count      uint32
}

type DescriptorPoolSize struct {
	Type  vk.DescriptorType
	Count uint32
}

type DescriptorBufferInfo struct {
	Buffer BufferHandle
	Offset uint64
	Range  uint64
}

type DescriptorImageInfo struct {
	View    ImageViewHandle
	Sampler SamplerHandle
	Layout  vk.ImageLayout
}

type DescriptorWrite struct {
	Set        DescriptorSetHandle
	Binding    uint32
	Type       vk.DescriptorType
	BufferInfo []DescriptorBufferInfo
	ImageInfo  []DescriptorImageInfo
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

type ImageBarrier struct {
	Image         ImageHandle
	OldLayout     vk.ImageLayout
	NewLayout     vk.ImageLayout
	SrcAccessMask vk.AccessFlags
	DstAccessMask vk.AccessFlags
	AspectMask    vk.ImageAspectFlags
}

type Extent2D struct {
	Width  uint32
	Height uint32
}

type RenderPassBeginInfo struct {
	RenderPass   RenderPassHandle
	Framebuffer  FramebufferHandle
	Extent       Extent2D
	ClearColor   [4]float32
	ClearDepth   float32
	ClearStencil uint32
}

type SubmitInfo struct {
	CommandBuffer    CommandBufferHandle
	WaitSemaphores   []SemaphoreHandle
	WaitStages       []vk.PipelineStageFlags
	SignalSemaphores []SemaphoreHandle
}

type VertexAttribute struct {
	Location uint32
	Format   vk.Format
	Offset   uint32
}

type PipelineCreateInfo struct {
	RenderPass         RenderPassHandle
	SetLayouts         []DescriptorSetLayoutHandle
	PushConstantSize   uint32
	PushConstantStages vk.ShaderStageFlags
	VertexShader       []byte
	FragmentShader     []byte
	VertexStride       uint32
	Attributes         []VertexAttribute
}

// Device is the Vulkan-shaped surface the frame core is written against.
// VulkanDevice drives a real GPU through goki/vulkan; HeadlessDevice is a
// software device used by tests and the headless run mode.
//
// Failures are returned already translated into the core error kinds.
type Device interface {
	Capabilities() DeviceCapabilities

	CreateBuffer(size uint64, usage vk.BufferUsageFlags) (BufferHandle, MemoryRequirements, error)
	DestroyBuffer(buffer BufferHandle)
	CreateImage(info ImageCreateInfo) (ImageHandle, MemoryRequirements, error)
	DestroyImage(image ImageHandle)

	AllocateMemory(size uint64, memoryTypeIndex uint32) (MemoryHandle, error)
	FreeMemory(memory MemoryHandle)
	BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error
	BindImageMemory(image ImageHandle, memory MemoryHandle, offset uint64) error
	MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error)
	UnmapMemory(memory MemoryHandle)
	FlushMappedMemoryRange(memory MemoryHandle, offset, size uint64) error

	CreateImageView(image ImageHandle, format vk.Format, aspect vk.ImageAspectFlags) (ImageViewHandle, error)
	DestroyImageView(view ImageViewHandle)
	CreateSampler(info SamplerCreateInfo) (SamplerHandle, error)
	DestroySampler(sampler SamplerHandle)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayoutHandle, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayoutHandle)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize, flags vk.DescriptorPoolCreateFlags) (DescriptorPoolHandle, error)
	DestroyDescriptorPool(pool DescriptorPoolHandle)
	AllocateDescriptorSet(pool DescriptorPoolHandle, layout DescriptorSetLayoutHandle) (DescriptorSetHandle, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipeline(info PipelineCreateInfo) (PipelineHandle, PipelineLayoutHandle, error)
	DestroyPipeline(pipeline PipelineHandle, layout PipelineLayoutHandle)

	AllocateCommandBuffer() (CommandBufferHandle, error)
	FreeCommandBuffer(cb CommandBufferHandle)
	BeginCommandBuffer(cb CommandBufferHandle, flags vk.CommandBufferUsageFlags) error
	EndCommandBuffer(cb CommandBufferHandle) error
	ResetCommandBuffer(cb CommandBufferHandle) error

	CmdCopyBuffer(cb CommandBufferHandle, src, dst BufferHandle, region BufferCopy)
	CmdCopyBufferToImage(cb CommandBufferHandle, src BufferHandle, dst ImageHandle, layout vk.ImageLayout, width, height uint32)
	CmdPipelineBarrier(cb CommandBufferHandle, srcStage, dstStage vk.PipelineStageFlags, barrier ImageBarrier)
	CmdBeginRenderPass(cb CommandBufferHandle, info RenderPassBeginInfo)
	CmdEndRenderPass(cb CommandBufferHandle)
	CmdSetViewportScissor(cb CommandBufferHandle, extent Extent2D)
	CmdBindPipeline(cb CommandBufferHandle, pipeline PipelineHandle)
	CmdBindDescriptorSets(cb CommandBufferHandle, layout PipelineLayoutHandle, firstSet uint32, sets []DescriptorSetHandle)
	CmdPushConstants(cb CommandBufferHandle, layout PipelineLayoutHandle, stages vk.ShaderStageFlags, offset uint32, data []byte)
	CmdBindVertexBuffer(cb CommandBufferHandle, buffer BufferHandle, offset uint64)
	CmdBindIndexBuffer(cb CommandBufferHandle, buffer BufferHandle, offset uint64)
	CmdDrawIndexed(cb CommandBufferHandle, indexCount uint32)

	QueueSubmit(info SubmitInfo, fence FenceHandle) error
	QueueWaitIdle() error
	WaitIdle() error

	CreateFence(signaled bool) (FenceHandle, error)
	DestroyFence(fence FenceHandle)
	WaitForFence(fence FenceHandle, timeoutNs uint64) error
	ResetFence(fence FenceHandle) error
	CreateSemaphore() (SemaphoreHandle, error)
	DestroySemaphore(semaphore SemaphoreHandle)

	Destroy()
}

// handleTable maps opaque handles to backend objects.
type handleTable[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]T
}

func newHandleTable[T any]() *handleTable[T] {
	return &handleTable[T]{items: make(map[uint64]T)}
}

func (t *handleTable[T]) add(v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.items[t.next] = v
	return t.next
}

func (t *handleTable[T]) get(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	return v, ok
}

func (t *handleTable[T]) remove(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.items[h]
	delete(t.items, h)
	return v, ok
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// removeIf drops every entry matching pred and returns the removed values.
func (t *handleTable[T]) removeIf(pred func(T) bool) []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []T
	for h, v := range t.items {
		if pred(v) {
			out = append(out, v)
			delete(t.items, h)
		}
	}
	return out
}
