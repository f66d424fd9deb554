package vulkan

import (
	"sync"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
	amath "github.com/saeedelsayed/vulkan-playground/engine/math"
)

// WholeSize selects the remainder of a memory object, as VK_WHOLE_SIZE does.
const WholeSize = ^uint64(0)

type OpKind int

const (
	OpAcquire OpKind = iota
	OpWaitFence
	OpResetFence
	OpBeginCommandBuffer
	OpSubmit
	OpPresent
	OpQueueWaitIdle
	OpDeviceWaitIdle
	OpFlush
)

func (k OpKind) String() string {
	switch k {
	case OpAcquire:
		return "acquire"
	case OpWaitFence:
		return "wait_fence"
	case OpResetFence:
		return "reset_fence"
	case OpBeginCommandBuffer:
		return "begin_command_buffer"
	case OpSubmit:
		return "submit"
	case OpPresent:
		return "present"
	case OpQueueWaitIdle:
		return "queue_wait_idle"
	case OpDeviceWaitIdle:
		return "device_wait_idle"
	case OpFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// DeviceOp is one entry of the headless device's operation log.
type DeviceOp struct {
	Kind   OpKind
	Handle uint64
	// Fence signalled by a submission.
	Fence FenceHandle
}

type headlessMemory struct {
	size      uint64
	typeIndex uint32
	coherent  bool
	data      []byte
	host      []byte
	mapped    bool
}

type headlessBuffer struct {
	size   uint64
	usage  vk.BufferUsageFlags
	memory MemoryHandle
	offset uint64
}

type headlessImage struct {
	info   ImageCreateInfo
	size   uint64
	memory MemoryHandle
	offset uint64
	layout vk.ImageLayout
}

type headlessPool struct {
	maxSets  uint32
	capacity map[vk.DescriptorType]uint32
	used     map[vk.DescriptorType]uint32
	sets     []DescriptorSetHandle
}

type headlessSet struct {
	pool   DescriptorPoolHandle
	layout DescriptorSetLayoutHandle
	writes map[uint32]DescriptorWrite
}

type headlessCommand struct {
	name string
	exec func() error
}

type headlessCommandBuffer struct {
	recording    bool
	ended        bool
	pending      bool
	inRenderPass bool
	pipeline     PipelineHandle
	commands     []headlessCommand
}

type headlessSubmission struct {
	cb     CommandBufferHandle
	fence  FenceHandle
	signal []SemaphoreHandle
}

type headlessPipeline struct {
	info   PipelineCreateInfo
	layout PipelineLayoutHandle
}

// HeadlessDevice is a software implementation of Device. Submitted work
// stays pending until its fence is waited on or the queue idles, which is
// the furthest a real GPU may lag behind the CPU. Mapped memory without the
// host-coherent property only reaches the device on flush.
type HeadlessDevice struct {
	mu   sync.Mutex
	caps DeviceCapabilities
	next uint64

	memories       map[MemoryHandle]*headlessMemory
	buffers        map[BufferHandle]*headlessBuffer
	images         map[ImageHandle]*headlessImage
	views          map[ImageViewHandle]ImageHandle
	samplers       map[SamplerHandle]SamplerCreateInfo
	layouts        map[DescriptorSetLayoutHandle][]DescriptorBinding
	pools          map[DescriptorPoolHandle]*headlessPool
	sets           map[DescriptorSetHandle]*headlessSet
	pipelines      map[PipelineHandle]*headlessPipeline
	renderPasses   map[RenderPassHandle]struct{}
	framebuffers   map[FramebufferHandle]RenderPassHandle
	commandBuffers map[CommandBufferHandle]*headlessCommandBuffer
	fences         map[FenceHandle]bool
	semaphores     map[SemaphoreHandle]bool

	queue          []*headlessSubmission
	maxOutstanding int
	draws          int
	ops            []DeviceOp
	validation     []error
	destroyed      bool
}

type HeadlessOption func(*HeadlessDevice)

// WithCapabilities replaces the default memory types and limits.
func WithCapabilities(caps DeviceCapabilities) HeadlessOption {
	return func(d *HeadlessDevice) {
		d.caps = caps
	}
}

// DefaultHeadlessCapabilities describes a small discrete GPU. The first
// host-visible memory type is cached but not coherent, so plain host-visible
// requests must flush.
func DefaultHeadlessCapabilities() DeviceCapabilities {
	return DeviceCapabilities{
		Name: "anima headless device",
		MemoryTypes: []MemoryType{
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), HeapIndex: 0},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCachedBit), HeapIndex: 1},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit), HeapIndex: 1},
		},
		Limits: DeviceLimits{
			MaxPushConstantsSize:            128,
			MaxBoundDescriptorSets:          4,
			MaxImageDimension2D:             4096,
			MinUniformBufferOffsetAlignment: 64,
			NonCoherentAtomSize:             64,
			MaxSamplerAnisotropy:            16,
		},
		SamplerAnisotropy: true,
		DepthFormat:       vk.FormatD32Sfloat,
	}
}

func NewHeadlessDevice(opts ...HeadlessOption) *HeadlessDevice {
	d := &HeadlessDevice{
		caps:           DefaultHeadlessCapabilities(),
		memories:       make(map[MemoryHandle]*headlessMemory),
		buffers:        make(map[BufferHandle]*headlessBuffer),
		images:         make(map[ImageHandle]*headlessImage),
		views:          make(map[ImageViewHandle]ImageHandle),
		samplers:       make(map[SamplerHandle]SamplerCreateInfo),
		layouts:        make(map[DescriptorSetLayoutHandle][]DescriptorBinding),
		pools:          make(map[DescriptorPoolHandle]*headlessPool),
		sets:           make(map[DescriptorSetHandle]*headlessSet),
		pipelines:      make(map[PipelineHandle]*headlessPipeline),
		renderPasses:   make(map[RenderPassHandle]struct{}),
		framebuffers:   make(map[FramebufferHandle]RenderPassHandle),
		commandBuffers: make(map[CommandBufferHandle]*headlessCommandBuffer),
		fences:         make(map[FenceHandle]bool),
		semaphores:     make(map[SemaphoreHandle]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	core.LogDebug("headless device created with %d memory types", len(d.caps.MemoryTypes))
	return d
}

func (d *HeadlessDevice) handle() uint64 {
	d.next++
	return d.next
}

func (d *HeadlessDevice) invalid(format string, args ...interface{}) {
	err := errors.AssertionFailedf(format, args...)
	core.LogError("headless validation: %s", err)
	d.validation = append(d.validation, err)
}

func (d *HeadlessDevice) log(op DeviceOp) {
	d.ops = append(d.ops, op)
}

func (d *HeadlessDevice) Capabilities() DeviceCapabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caps
}

func (d *HeadlessDevice) allTypeBits() uint32 {
	return uint32(1)<<uint32(len(d.caps.MemoryTypes)) - 1
}

func (d *HeadlessDevice) CreateBuffer(size uint64, usage vk.BufferUsageFlags) (BufferHandle, MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size == 0 {
		return NullHandle, MemoryRequirements{}, errors.AssertionFailedf("buffer size must be positive")
	}
	h := BufferHandle(d.handle())
	d.buffers[h] = &headlessBuffer{size: size, usage: usage}
	return h, MemoryRequirements{
		Size:           amath.AlignUp(size, d.caps.Limits.NonCoherentAtomSize),
		Alignment:      d.caps.Limits.MinUniformBufferOffsetAlignment,
		MemoryTypeBits: d.allTypeBits(),
	}, nil
}

func (d *HeadlessDevice) DestroyBuffer(buffer BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, buffer)
}

func formatSize(format vk.Format) uint64 {
	switch format {
	case vk.FormatR8Unorm:
		return 1
	default:
		return 4
	}
}

func (d *HeadlessDevice) CreateImage(info ImageCreateInfo) (ImageHandle, MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.Width == 0 || info.Height == 0 {
		return NullHandle, MemoryRequirements{}, errors.AssertionFailedf("image extent must be positive, got %dx%d", info.Width, info.Height)
	}
	if info.Width > d.caps.Limits.MaxImageDimension2D || info.Height > d.caps.Limits.MaxImageDimension2D {
		return NullHandle, MemoryRequirements{}, resultError("vkCreateImage", vk.ErrorOutOfDeviceMemory)
	}
	size := uint64(info.Width) * uint64(info.Height) * formatSize(info.Format)
	h := ImageHandle(d.handle())
	d.images[h] = &headlessImage{info: info, size: size, layout: vk.ImageLayoutUndefined}
	return h, MemoryRequirements{Size: size, Alignment: 256, MemoryTypeBits: d.allTypeBits()}, nil
}

func (d *HeadlessDevice) DestroyImage(image ImageHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.images, image)
}

func (d *HeadlessDevice) AllocateMemory(size uint64, memoryTypeIndex uint32) (MemoryHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(memoryTypeIndex) >= len(d.caps.MemoryTypes) {
		return NullHandle, errors.AssertionFailedf("memory type %d out of range", memoryTypeIndex)
	}
	flags := d.caps.MemoryTypes[memoryTypeIndex].PropertyFlags
	h := MemoryHandle(d.handle())
	d.memories[h] = &headlessMemory{
		size:      size,
		typeIndex: memoryTypeIndex,
		coherent:  flags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) != 0,
		data:      make([]byte, size),
	}
	return h, nil
}

func (d *HeadlessDevice) FreeMemory(memory MemoryHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.memories, memory)
}

func (d *HeadlessDevice) BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buffer]
	if !ok {
		return errors.AssertionFailedf("bind of unknown buffer %d", buffer)
	}
	m, ok := d.memories[memory]
	if !ok {
		return errors.AssertionFailedf("bind of unknown memory %d", memory)
	}
	if b.memory != NullHandle {
		return errors.AssertionFailedf("buffer %d already bound", buffer)
	}
	if offset+b.size > m.size {
		return errors.AssertionFailedf("buffer %d does not fit memory %d", buffer, memory)
	}
	b.memory, b.offset = memory, offset
	return nil
}

func (d *HeadlessDevice) BindImageMemory(image ImageHandle, memory MemoryHandle, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[image]
	if !ok {
		return errors.AssertionFailedf("bind of unknown image %d", image)
	}
	m, ok := d.memories[memory]
	if !ok {
		return errors.AssertionFailedf("bind of unknown memory %d", memory)
	}
	if img.memory != NullHandle {
		return errors.AssertionFailedf("image %d already bound", image)
	}
	if offset+img.size > m.size {
		return errors.AssertionFailedf("image %d does not fit memory %d", image, memory)
	}
	img.memory, img.offset = memory, offset
	return nil
}

func (d *HeadlessDevice) MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.memories[memory]
	if !ok {
		return nil, errors.AssertionFailedf("map of unknown memory %d", memory)
	}
	if d.caps.MemoryTypes[m.typeIndex].PropertyFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return nil, resultError("vkMapMemory", vk.ErrorMemoryMapFailed)
	}
	if m.mapped {
		return nil, errors.AssertionFailedf("memory %d is already mapped", memory)
	}
	if size == WholeSize {
		size = m.size - offset
	}
	if offset+size > m.size {
		return nil, errors.AssertionFailedf("map range [%d, %d) exceeds memory %d", offset, offset+size, memory)
	}
	m.mapped = true
	if m.coherent {
		return m.data[offset : offset+size : offset+size], nil
	}
	m.host = append([]byte(nil), m.data...)
	return m.host[offset : offset+size : offset+size], nil
}

func (d *HeadlessDevice) UnmapMemory(memory MemoryHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.memories[memory]; ok {
		m.mapped = false
		m.host = nil
	}
}

func (d *HeadlessDevice) FlushMappedMemoryRange(memory MemoryHandle, offset, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpFlush, Handle: uint64(memory)})
	m, ok := d.memories[memory]
	if !ok || !m.mapped {
		return errors.AssertionFailedf("flush of unmapped memory %d", memory)
	}
	if size == WholeSize {
		size = m.size - offset
	}
	atom := d.caps.Limits.NonCoherentAtomSize
	if atom != 0 && (offset%atom != 0 || (size%atom != 0 && offset+size != m.size)) {
		d.invalid("flush range [%d, %d) is not aligned to the non-coherent atom size %d", offset, offset+size, atom)
	}
	if offset+size > m.size {
		return errors.AssertionFailedf("flush range [%d, %d) exceeds memory %d", offset, offset+size, memory)
	}
	if !m.coherent {
		copy(m.data[offset:offset+size], m.host[offset:offset+size])
	}
	return nil
}

func (d *HeadlessDevice) CreateImageView(image ImageHandle, format vk.Format, aspect vk.ImageAspectFlags) (ImageViewHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[image]
	if !ok {
		return NullHandle, errors.AssertionFailedf("view of unknown image %d", image)
	}
	if img.memory == NullHandle {
		return NullHandle, errors.AssertionFailedf("view of image %d without bound memory", image)
	}
	if img.info.Format != format {
		d.invalid("view format %d does not match image format %d", format, img.info.Format)
	}
	h := ImageViewHandle(d.handle())
	d.views[h] = image
	return h, nil
}

func (d *HeadlessDevice) DestroyImageView(view ImageViewHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.views, view)
}

func (d *HeadlessDevice) CreateSampler(info SamplerCreateInfo) (SamplerHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if info.AnisotropyEnable && (!d.caps.SamplerAnisotropy || info.MaxAnisotropy > d.caps.Limits.MaxSamplerAnisotropy) {
		d.invalid("sampler anisotropy %.1f not supported", info.MaxAnisotropy)
	}
	h := SamplerHandle(d.handle())
	d.samplers[h] = info
	return h, nil
}

func (d *HeadlessDevice) DestroySampler(sampler SamplerHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.samplers, sampler)
}

func (d *HeadlessDevice) CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayoutHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[uint32]bool, len(bindings))
	for _, b := range bindings {
		if seen[b.Binding] {
			return NullHandle, errors.AssertionFailedf("binding %d declared twice", b.Binding)
		}
		seen[b.Binding] = true
	}
	h := DescriptorSetLayoutHandle(d.handle())
	d.layouts[h] = append([]DescriptorBinding(nil), bindings...)
	return h, nil
}

func (d *HeadlessDevice) DestroyDescriptorSetLayout(layout DescriptorSetLayoutHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.layouts, layout)
}

func (d *HeadlessDevice) CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize, flags vk.DescriptorPoolCreateFlags) (DescriptorPoolHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := &headlessPool{
		maxSets:  maxSets,
		capacity: make(map[vk.DescriptorType]uint32),
		used:     make(map[vk.DescriptorType]uint32),
	}
	for _, s := range sizes {
		p.capacity[s.Type] += s.Count
	}
	h := DescriptorPoolHandle(d.handle())
	d.pools[h] = p
	return h, nil
}

func (d *HeadlessDevice) DestroyDescriptorPool(pool DescriptorPoolHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return
	}
	for _, s := range p.sets {
		delete(d.sets, s)
	}
	delete(d.pools, pool)
}

// AllocateDescriptorSet consumes one slot per binding of the layout,
// regardless of the binding's array count.
func (d *HeadlessDevice) AllocateDescriptorSet(pool DescriptorPoolHandle, layout DescriptorSetLayoutHandle) (DescriptorSetHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[pool]
	if !ok {
		return NullHandle, errors.AssertionFailedf("allocation from unknown pool %d", pool)
	}
	bindings, ok := d.layouts[layout]
	if !ok {
		return NullHandle, errors.AssertionFailedf("allocation with unknown layout %d", layout)
	}
	if uint32(len(p.sets)) >= p.maxSets {
		return NullHandle, resultError("vkAllocateDescriptorSets", vk.ErrorOutOfPoolMemory)
	}
	need := make(map[vk.DescriptorType]uint32)
	for _, b := range bindings {
		need[b.Type]++
	}
	for t, n := range need {
		if p.used[t]+n > p.capacity[t] {
			return NullHandle, resultError("vkAllocateDescriptorSets", vk.ErrorOutOfPoolMemory)
		}
	}
	for t, n := range need {
		p.used[t] += n
	}
	h := DescriptorSetHandle(d.handle())
	p.sets = append(p.sets, h)
	d.sets[h] = &headlessSet{pool: pool, layout: layout, writes: make(map[uint32]DescriptorWrite)}
	return h, nil
}

func (d *HeadlessDevice) UpdateDescriptorSets(writes []DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		s, ok := d.sets[w.Set]
		if !ok {
			d.invalid("write to unknown descriptor set %d", w.Set)
			continue
		}
		for _, info := range w.BufferInfo {
			if _, ok := d.buffers[info.Buffer]; !ok {
				d.invalid("descriptor write references unknown buffer %d", info.Buffer)
			}
		}
		for _, info := range w.ImageInfo {
			if _, ok := d.views[info.View]; !ok {
				d.invalid("descriptor write references unknown image view %d", info.View)
			}
			if _, ok := d.samplers[info.Sampler]; !ok {
				d.invalid("descriptor write references unknown sampler %d", info.Sampler)
			}
		}
		s.writes[w.Binding] = w
	}
}

func (d *HeadlessDevice) CreatePipeline(info PipelineCreateInfo) (PipelineHandle, PipelineLayoutHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.renderPasses[info.RenderPass]; !ok {
		return NullHandle, NullHandle, errors.AssertionFailedf("pipeline references unknown render pass %d", info.RenderPass)
	}
	for _, l := range info.SetLayouts {
		if _, ok := d.layouts[l]; !ok {
			return NullHandle, NullHandle, errors.AssertionFailedf("pipeline references unknown set layout %d", l)
		}
	}
	if uint32(len(info.SetLayouts)) > d.caps.Limits.MaxBoundDescriptorSets {
		return NullHandle, NullHandle, core.Fatalf(core.ErrCapabilityMissing, "pipeline binds %d sets, device allows %d", len(info.SetLayouts), d.caps.Limits.MaxBoundDescriptorSets)
	}
	if info.PushConstantSize > d.caps.Limits.MaxPushConstantsSize {
		return NullHandle, NullHandle, core.Fatalf(core.ErrCapabilityMissing, "push constants of %d bytes exceed the device limit of %d", info.PushConstantSize, d.caps.Limits.MaxPushConstantsSize)
	}
	for _, code := range [][]byte{info.VertexShader, info.FragmentShader} {
		if err := loaders.ValidateSPIRV(code); err != nil {
			return NullHandle, NullHandle, core.AsFatal(err, nil)
		}
	}
	layout := PipelineLayoutHandle(d.handle())
	h := PipelineHandle(d.handle())
	d.pipelines[h] = &headlessPipeline{info: info, layout: layout}
	return h, layout, nil
}

func (d *HeadlessDevice) DestroyPipeline(pipeline PipelineHandle, layout PipelineLayoutHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pipelines, pipeline)
}

func (d *HeadlessDevice) AllocateCommandBuffer() (CommandBufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := CommandBufferHandle(d.handle())
	d.commandBuffers[h] = &headlessCommandBuffer{}
	return h, nil
}

func (d *HeadlessDevice) FreeCommandBuffer(cb CommandBufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.commandBuffers[cb]; ok && c.pending {
		d.invalid("command buffer %d freed while pending", cb)
	}
	delete(d.commandBuffers, cb)
}

func (d *HeadlessDevice) BeginCommandBuffer(cb CommandBufferHandle, flags vk.CommandBufferUsageFlags) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpBeginCommandBuffer, Handle: uint64(cb)})
	c, ok := d.commandBuffers[cb]
	if !ok {
		return errors.AssertionFailedf("begin of unknown command buffer %d", cb)
	}
	if c.pending {
		return errors.AssertionFailedf("command buffer %d is still pending on the GPU", cb)
	}
	if c.recording {
		return errors.AssertionFailedf("command buffer %d is already recording", cb)
	}
	c.recording, c.ended, c.inRenderPass = true, false, false
	c.pipeline = NullHandle
	c.commands = c.commands[:0]
	return nil
}

func (d *HeadlessDevice) EndCommandBuffer(cb CommandBufferHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commandBuffers[cb]
	if !ok || !c.recording {
		return errors.AssertionFailedf("end of command buffer %d that is not recording", cb)
	}
	if c.inRenderPass {
		return errors.AssertionFailedf("command buffer %d ended inside a render pass", cb)
	}
	c.recording, c.ended = false, true
	return nil
}

func (d *HeadlessDevice) ResetCommandBuffer(cb CommandBufferHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.commandBuffers[cb]
	if !ok {
		return errors.AssertionFailedf("reset of unknown command buffer %d", cb)
	}
	if c.pending {
		return errors.AssertionFailedf("command buffer %d reset while pending", cb)
	}
	c.recording, c.ended, c.inRenderPass = false, false, false
	c.commands = c.commands[:0]
	return nil
}

// record appends a deferred command; recording rules are checked immediately.
func (d *HeadlessDevice) record(cb CommandBufferHandle, name string, exec func() error) *headlessCommandBuffer {
	c, ok := d.commandBuffers[cb]
	if !ok || !c.recording {
		d.invalid("%s recorded into command buffer %d that is not recording", name, cb)
		return nil
	}
	c.commands = append(c.commands, headlessCommand{name: name, exec: exec})
	return c
}

func (d *HeadlessDevice) bufferBytes(h BufferHandle) ([]byte, error) {
	b, ok := d.buffers[h]
	if !ok || b.memory == NullHandle {
		return nil, errors.AssertionFailedf("buffer %d is not bound", h)
	}
	m, ok := d.memories[b.memory]
	if !ok {
		return nil, errors.AssertionFailedf("memory of buffer %d was freed", h)
	}
	return m.data[b.offset : b.offset+b.size], nil
}

func (d *HeadlessDevice) imageBytes(h ImageHandle) (*headlessImage, []byte, error) {
	img, ok := d.images[h]
	if !ok || img.memory == NullHandle {
		return nil, nil, errors.AssertionFailedf("image %d is not bound", h)
	}
	m, ok := d.memories[img.memory]
	if !ok {
		return nil, nil, errors.AssertionFailedf("memory of image %d was freed", h)
	}
	return img, m.data[img.offset : img.offset+img.size], nil
}

func (d *HeadlessDevice) CmdCopyBuffer(cb CommandBufferHandle, src, dst BufferHandle, region BufferCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "copy_buffer", func() error {
		s, err := d.bufferBytes(src)
		if err != nil {
			return err
		}
		t, err := d.bufferBytes(dst)
		if err != nil {
			return err
		}
		if region.SrcOffset+region.Size > uint64(len(s)) || region.DstOffset+region.Size > uint64(len(t)) {
			return errors.AssertionFailedf("copy region of %d bytes out of bounds", region.Size)
		}
		copy(t[region.DstOffset:region.DstOffset+region.Size], s[region.SrcOffset:region.SrcOffset+region.Size])
		return nil
	})
}

func (d *HeadlessDevice) CmdCopyBufferToImage(cb CommandBufferHandle, src BufferHandle, dst ImageHandle, layout vk.ImageLayout, width, height uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "copy_buffer_to_image", func() error {
		s, err := d.bufferBytes(src)
		if err != nil {
			return err
		}
		img, t, err := d.imageBytes(dst)
		if err != nil {
			return err
		}
		if layout != vk.ImageLayoutTransferDstOptimal || img.layout != vk.ImageLayoutTransferDstOptimal {
			return errors.AssertionFailedf("copy into image %d in layout %d, expected transfer destination", dst, img.layout)
		}
		n := uint64(width) * uint64(height) * formatSize(img.info.Format)
		if n > uint64(len(s)) || n > uint64(len(t)) {
			return errors.AssertionFailedf("copy of %dx%d texels out of bounds", width, height)
		}
		copy(t[:n], s[:n])
		return nil
	})
}

func (d *HeadlessDevice) CmdPipelineBarrier(cb CommandBufferHandle, srcStage, dstStage vk.PipelineStageFlags, barrier ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "pipeline_barrier", func() error {
		img, ok := d.images[barrier.Image]
		if !ok {
			return errors.AssertionFailedf("barrier on unknown image %d", barrier.Image)
		}
		if barrier.OldLayout != vk.ImageLayoutUndefined && barrier.OldLayout != img.layout {
			return errors.AssertionFailedf("barrier expects layout %d but image %d is in %d", barrier.OldLayout, barrier.Image, img.layout)
		}
		img.layout = barrier.NewLayout
		return nil
	})
}

func (d *HeadlessDevice) CmdBeginRenderPass(cb CommandBufferHandle, info RenderPassBeginInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rp, ok := d.framebuffers[info.Framebuffer]; !ok || rp != info.RenderPass {
		d.invalid("framebuffer %d is not compatible with render pass %d", info.Framebuffer, info.RenderPass)
	}
	if c := d.record(cb, "begin_render_pass", func() error { return nil }); c != nil {
		if c.inRenderPass {
			d.invalid("render pass begun twice in command buffer %d", cb)
		}
		c.inRenderPass = true
	}
}

func (d *HeadlessDevice) CmdEndRenderPass(cb CommandBufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.record(cb, "end_render_pass", func() error { return nil }); c != nil {
		if !c.inRenderPass {
			d.invalid("render pass ended outside a render pass in command buffer %d", cb)
		}
		c.inRenderPass = false
	}
}

func (d *HeadlessDevice) CmdSetViewportScissor(cb CommandBufferHandle, extent Extent2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "set_viewport_scissor", func() error { return nil })
}

func (d *HeadlessDevice) CmdBindPipeline(cb CommandBufferHandle, pipeline PipelineHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pipelines[pipeline]; !ok {
		d.invalid("bind of unknown pipeline %d", pipeline)
	}
	if c := d.record(cb, "bind_pipeline", func() error { return nil }); c != nil {
		c.pipeline = pipeline
	}
}

func (d *HeadlessDevice) CmdBindDescriptorSets(cb CommandBufferHandle, layout PipelineLayoutHandle, firstSet uint32, sets []DescriptorSetHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range sets {
		if _, ok := d.sets[s]; !ok {
			d.invalid("bind of unknown descriptor set %d", s)
		}
	}
	if firstSet+uint32(len(sets)) > d.caps.Limits.MaxBoundDescriptorSets {
		d.invalid("binding %d sets exceeds the device limit of %d", firstSet+uint32(len(sets)), d.caps.Limits.MaxBoundDescriptorSets)
	}
	d.record(cb, "bind_descriptor_sets", func() error { return nil })
}

func (d *HeadlessDevice) CmdPushConstants(cb CommandBufferHandle, layout PipelineLayoutHandle, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset+uint32(len(data)) > d.caps.Limits.MaxPushConstantsSize {
		d.invalid("push constants of %d bytes exceed the device limit of %d", offset+uint32(len(data)), d.caps.Limits.MaxPushConstantsSize)
	}
	d.record(cb, "push_constants", func() error { return nil })
}

func (d *HeadlessDevice) CmdBindVertexBuffer(cb CommandBufferHandle, buffer BufferHandle, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buffer]; !ok {
		d.invalid("bind of unknown vertex buffer %d", buffer)
	}
	d.record(cb, "bind_vertex_buffer", func() error { return nil })
}

func (d *HeadlessDevice) CmdBindIndexBuffer(cb CommandBufferHandle, buffer BufferHandle, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buffer]; !ok {
		d.invalid("bind of unknown index buffer %d", buffer)
	}
	d.record(cb, "bind_index_buffer", func() error { return nil })
}

func (d *HeadlessDevice) CmdDrawIndexed(cb CommandBufferHandle, indexCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.record(cb, "draw_indexed", func() error {
		d.draws++
		return nil
	})
	if c != nil && (!c.inRenderPass || c.pipeline == NullHandle) {
		d.invalid("draw recorded outside a render pass or without a pipeline")
	}
}

func (d *HeadlessDevice) pendingIndex(fence FenceHandle) int {
	for i, s := range d.queue {
		if s.fence == fence {
			return i
		}
	}
	return -1
}

func (d *HeadlessDevice) signalPending(sem SemaphoreHandle) bool {
	for _, s := range d.queue {
		for _, sig := range s.signal {
			if sig == sem {
				return true
			}
		}
	}
	return false
}

func (d *HeadlessDevice) QueueSubmit(info SubmitInfo, fence FenceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpSubmit, Handle: uint64(info.CommandBuffer), Fence: fence})
	c, ok := d.commandBuffers[info.CommandBuffer]
	if !ok || !c.ended {
		return errors.AssertionFailedf("submit of command buffer %d that was not ended", info.CommandBuffer)
	}
	if c.pending {
		return errors.AssertionFailedf("command buffer %d submitted twice", info.CommandBuffer)
	}
	if fence != NullHandle {
		signaled, ok := d.fences[fence]
		if !ok {
			return errors.AssertionFailedf("submit with unknown fence %d", fence)
		}
		if signaled || d.pendingIndex(fence) >= 0 {
			return errors.AssertionFailedf("fence %d must be reset before it is submitted", fence)
		}
	}
	for _, sem := range info.WaitSemaphores {
		if !d.semaphores[sem] && !d.signalPending(sem) {
			return errors.AssertionFailedf("submission waits on semaphore %d that nothing will signal", sem)
		}
		d.semaphores[sem] = false
	}
	c.pending = true
	d.queue = append(d.queue, &headlessSubmission{
		cb:     info.CommandBuffer,
		fence:  fence,
		signal: append([]SemaphoreHandle(nil), info.SignalSemaphores...),
	})
	if len(d.queue) > d.maxOutstanding {
		d.maxOutstanding = len(d.queue)
	}
	return nil
}

// retire executes queued submissions in order up to and including index n.
func (d *HeadlessDevice) retire(n int) {
	for i := 0; i <= n && len(d.queue) > 0; i++ {
		s := d.queue[0]
		d.queue = d.queue[1:]
		if c, ok := d.commandBuffers[s.cb]; ok {
			for _, cmd := range c.commands {
				if err := cmd.exec(); err != nil {
					d.invalid("%s: %s", cmd.name, err)
				}
			}
			c.pending = false
		}
		if s.fence != NullHandle {
			d.fences[s.fence] = true
		}
		for _, sem := range s.signal {
			d.semaphores[sem] = true
		}
	}
}

func (d *HeadlessDevice) QueueWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpQueueWaitIdle})
	d.retire(len(d.queue) - 1)
	return nil
}

func (d *HeadlessDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpDeviceWaitIdle})
	d.retire(len(d.queue) - 1)
	return nil
}

func (d *HeadlessDevice) CreateFence(signaled bool) (FenceHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := FenceHandle(d.handle())
	d.fences[h] = signaled
	return h, nil
}

func (d *HeadlessDevice) DestroyFence(fence FenceHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pendingIndex(fence) >= 0 {
		d.invalid("fence %d destroyed while pending", fence)
	}
	delete(d.fences, fence)
}

func (d *HeadlessDevice) WaitForFence(fence FenceHandle, timeoutNs uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpWaitFence, Handle: uint64(fence)})
	signaled, ok := d.fences[fence]
	if !ok {
		return errors.AssertionFailedf("wait on unknown fence %d", fence)
	}
	if signaled {
		return nil
	}
	idx := d.pendingIndex(fence)
	if idx < 0 {
		return resultError("vkWaitForFences", vk.Timeout)
	}
	d.retire(idx)
	return nil
}

func (d *HeadlessDevice) ResetFence(fence FenceHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpResetFence, Handle: uint64(fence)})
	if _, ok := d.fences[fence]; !ok {
		return errors.AssertionFailedf("reset of unknown fence %d", fence)
	}
	if d.pendingIndex(fence) >= 0 {
		return errors.AssertionFailedf("fence %d reset while its submission is pending", fence)
	}
	d.fences[fence] = false
	return nil
}

func (d *HeadlessDevice) CreateSemaphore() (SemaphoreHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := SemaphoreHandle(d.handle())
	d.semaphores[h] = false
	return h, nil
}

func (d *HeadlessDevice) DestroySemaphore(semaphore SemaphoreHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, semaphore)
}

func (d *HeadlessDevice) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	if len(d.queue) > 0 {
		d.invalid("device destroyed with %d submissions pending", len(d.queue))
	}
	d.destroyed = true
}

// acquire signals the image available semaphore on behalf of the presentation engine.
func (d *HeadlessDevice) acquire(sem SemaphoreHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpAcquire, Handle: uint64(sem)})
	signaled, ok := d.semaphores[sem]
	if !ok {
		return errors.AssertionFailedf("acquire with unknown semaphore %d", sem)
	}
	if signaled {
		return errors.AssertionFailedf("acquire with semaphore %d that is already signaled", sem)
	}
	d.semaphores[sem] = true
	return nil
}

// present consumes the render finished semaphore, now or when its submission retires.
func (d *HeadlessDevice) present(sem SemaphoreHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(DeviceOp{Kind: OpPresent, Handle: uint64(sem)})
	if d.semaphores[sem] {
		d.semaphores[sem] = false
		return nil
	}
	for _, s := range d.queue {
		for i, sig := range s.signal {
			if sig == sem {
				s.signal = append(s.signal[:i], s.signal[i+1:]...)
				return nil
			}
		}
	}
	return errors.AssertionFailedf("present waits on semaphore %d that nothing will signal", sem)
}

func (d *HeadlessDevice) createRenderPass() RenderPassHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := RenderPassHandle(d.handle())
	d.renderPasses[h] = struct{}{}
	return h
}

func (d *HeadlessDevice) destroyRenderPass(rp RenderPassHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.renderPasses, rp)
}

func (d *HeadlessDevice) createFramebuffer(rp RenderPassHandle) FramebufferHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := FramebufferHandle(d.handle())
	d.framebuffers[h] = rp
	return h
}

func (d *HeadlessDevice) destroyFramebuffer(fb FramebufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.framebuffers, fb)
}

// Ops returns a copy of the operation log.
func (d *HeadlessDevice) Ops() []DeviceOp {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DeviceOp(nil), d.ops...)
}

func (d *HeadlessDevice) ResetOps() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = nil
}

// Outstanding is the number of submissions the GPU has not retired.
func (d *HeadlessDevice) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *HeadlessDevice) MaxOutstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOutstanding
}

func (d *HeadlessDevice) ValidationErrors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.validation...)
}

func (d *HeadlessDevice) DrawCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

// ReadImage returns a copy of the texels the device holds for image.
func (d *HeadlessDevice) ReadImage(image ImageHandle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, b, err := d.imageBytes(image)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (d *HeadlessDevice) ImageLayout(image ImageHandle) vk.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.images[image]; ok {
		return img.layout
	}
	return vk.ImageLayoutUndefined
}

// DescriptorWrites returns the last write per binding of set.
func (d *HeadlessDevice) DescriptorWrites(set DescriptorSetHandle) map[uint32]DescriptorWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]DescriptorWrite)
	if s, ok := d.sets[set]; ok {
		for k, v := range s.writes {
			out[k] = v
		}
	}
	return out
}

// LiveObjects counts resources that have not been destroyed.
func (d *HeadlessDevice) LiveObjects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.memories) + len(d.buffers) + len(d.images) + len(d.views) + len(d.samplers) +
		len(d.layouts) + len(d.pools) + len(d.pipelines) + len(d.renderPasses) + len(d.framebuffers) +
		len(d.commandBuffers) + len(d.fences) + len(d.semaphores)
}

// ReadBuffer returns a copy of what the device sees in buffer, ignoring
// unflushed host writes.
func (d *HeadlessDevice) ReadBuffer(buffer BufferHandle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.bufferBytes(buffer)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
