package vulkan

import (
	"sort"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

/**
 * @brief An immutable descriptor set layout: binding index to type, stages and count.
 */
type DescriptorSetLayout struct {
	context *VulkanContext

	Handle   DescriptorSetLayoutHandle
	Bindings map[uint32]DescriptorBinding
}

/**
 * @brief Collects bindings. Nothing is created until Build.
 */
type DescriptorSetLayoutBuilder struct {
	context  *VulkanContext
	bindings map[uint32]DescriptorBinding
	err      error
}

func NewDescriptorSetLayoutBuilder(context *VulkanContext) *DescriptorSetLayoutBuilder {
	return &DescriptorSetLayoutBuilder{
		context:  context,
		bindings: make(map[uint32]DescriptorBinding),
	}
}

/**
 * @brief Adds a binding. A count of 0 is treated as 1. Declaring the same
 * binding index twice makes Build fail.
 */
func (b *DescriptorSetLayoutBuilder) AddBinding(binding uint32, descriptorType vk.DescriptorType, stages vk.ShaderStageFlags, count uint32) *DescriptorSetLayoutBuilder {
	if _, exists := b.bindings[binding]; exists {
		if b.err == nil {
			b.err = core.Fatalf(core.ErrDuplicateBinding, "binding %d already in use", binding)
		}
		return b
	}
	if count == 0 {
		count = 1
	}
	b.bindings[binding] = DescriptorBinding{
		Binding:    binding,
		Type:       descriptorType,
		StageFlags: stages,
		Count:      count,
	}
	return b
}

func (b *DescriptorSetLayoutBuilder) Build() (*DescriptorSetLayout, error) {
	if b.err != nil {
		return nil, b.err
	}
	list := make([]DescriptorBinding, 0, len(b.bindings))
	for _, binding := range b.bindings {
		list = append(list, binding)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Binding < list[j].Binding })

	var handle DescriptorSetLayoutHandle
	err := b.context.LockPool.SafeCall(DescriptorManagement, func() error {
		var err error
		handle, err = b.context.Device.CreateDescriptorSetLayout(list)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating descriptor set layout")
	}

	bindings := make(map[uint32]DescriptorBinding, len(b.bindings))
	for k, v := range b.bindings {
		bindings[k] = v
	}
	return &DescriptorSetLayout{context: b.context, Handle: handle, Bindings: bindings}, nil
}

func (l *DescriptorSetLayout) Destroy() {
	if l == nil || l.Handle == NullHandle {
		return
	}
	_ = l.context.LockPool.SafeCall(DescriptorManagement, func() error {
		l.context.Device.DestroyDescriptorSetLayout(l.Handle)
		return nil
	})
	l.Handle = NullHandle
}

/**
 * @brief A descriptor pool of fixed capacity. Capacity is counted in binding
 * slots per type: a set consumes one slot of a type for every binding of
 * that type in its layout, whatever the binding's array count.
 */
type DescriptorPool struct {
	context *VulkanContext

	Handle   DescriptorPoolHandle
	MaxSets  uint32
	Flags    vk.DescriptorPoolCreateFlags
	capacity map[vk.DescriptorType]uint32
	used     map[vk.DescriptorType]uint32
	sets     uint32
}

type DescriptorPoolBuilder struct {
	context *VulkanContext
	sizes   []DescriptorPoolSize
	maxSets uint32
	flags   vk.DescriptorPoolCreateFlags
}

func NewDescriptorPoolBuilder(context *VulkanContext) *DescriptorPoolBuilder {
	return &DescriptorPoolBuilder{context: context, maxSets: 1000}
}

func (b *DescriptorPoolBuilder) AddPoolSize(descriptorType vk.DescriptorType, count uint32) *DescriptorPoolBuilder {
	b.sizes = append(b.sizes, DescriptorPoolSize{Type: descriptorType, Count: count})
	return b
}

func (b *DescriptorPoolBuilder) SetMaxSets(count uint32) *DescriptorPoolBuilder {
	b.maxSets = count
	return b
}

func (b *DescriptorPoolBuilder) SetPoolFlags(flags vk.DescriptorPoolCreateFlags) *DescriptorPoolBuilder {
	b.flags = flags
	return b
}

func (b *DescriptorPoolBuilder) Build() (*DescriptorPool, error) {
	if b.maxSets == 0 {
		return nil, errors.AssertionFailedf("descriptor pool needs at least one set")
	}
	p := &DescriptorPool{
		context:  b.context,
		MaxSets:  b.maxSets,
		Flags:    b.flags,
		capacity: make(map[vk.DescriptorType]uint32),
		used:     make(map[vk.DescriptorType]uint32),
	}
	for _, s := range b.sizes {
		p.capacity[s.Type] += s.Count
	}
	err := b.context.LockPool.SafeCall(DescriptorManagement, func() error {
		var err error
		p.Handle, err = b.context.Device.CreateDescriptorPool(b.maxSets, b.sizes, b.flags)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating descriptor pool")
	}
	return p, nil
}

// Remaining returns the free slots for descriptorType.
func (p *DescriptorPool) Remaining(descriptorType vk.DescriptorType) uint32 {
	return p.capacity[descriptorType] - p.used[descriptorType]
}

func (p *DescriptorPool) AllocatedSets() uint32 {
	return p.sets
}

/**
 * @brief Allocates one set. Exhaustion is decided from the pool's own
 * accounting before the device is asked, so a failed allocation never
 * touches sets allocated earlier.
 */
func (p *DescriptorPool) Allocate(layout *DescriptorSetLayout) (DescriptorSetHandle, error) {
	if p.sets >= p.MaxSets {
		core.LogWarn("descriptor pool %d exhausted: %d of %d sets in use", p.Handle, p.sets, p.MaxSets)
		return NullHandle, core.Fatalf(core.ErrPoolExhausted, "descriptor pool %d has no sets left (max %d)", p.Handle, p.MaxSets)
	}
	need := make(map[vk.DescriptorType]uint32)
	for _, b := range layout.Bindings {
		need[b.Type]++
	}
	for t, n := range need {
		if p.used[t]+n > p.capacity[t] {
			core.LogWarn("descriptor pool %d exhausted for type %d: %d of %d in use", p.Handle, t, p.used[t], p.capacity[t])
			return NullHandle, core.Fatalf(core.ErrPoolExhausted, "descriptor pool %d cannot hold %d more descriptors of type %d", p.Handle, n, t)
		}
	}

	var set DescriptorSetHandle
	err := p.context.LockPool.SafeCall(DescriptorManagement, func() error {
		var err error
		set, err = p.context.Device.AllocateDescriptorSet(p.Handle, layout.Handle)
		return err
	})
	if err != nil {
		return NullHandle, errors.Wrap(err, "allocating descriptor set")
	}
	for t, n := range need {
		p.used[t] += n
	}
	p.sets++
	return set, nil
}

// Destroy frees the pool and every set allocated from it.
func (p *DescriptorPool) Destroy() {
	if p == nil || p.Handle == NullHandle {
		return
	}
	_ = p.context.LockPool.SafeCall(DescriptorManagement, func() error {
		p.context.Device.DestroyDescriptorPool(p.Handle)
		return nil
	})
	p.Handle = NullHandle
}

/**
 * @brief Accumulates writes for one set against a layout and pool.
 */
type DescriptorWriter struct {
	layout *DescriptorSetLayout
	pool   *DescriptorPool
	writes []DescriptorWrite
	err    error
}

func NewDescriptorWriter(layout *DescriptorSetLayout, pool *DescriptorPool) *DescriptorWriter {
	return &DescriptorWriter{layout: layout, pool: pool}
}

func isBufferDescriptor(t vk.DescriptorType) bool {
	switch t {
	case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer,
		vk.DescriptorTypeUniformBufferDynamic, vk.DescriptorTypeStorageBufferDynamic:
		return true
	}
	return false
}

func isImageDescriptor(t vk.DescriptorType) bool {
	switch t {
	case vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeSampledImage,
		vk.DescriptorTypeStorageImage, vk.DescriptorTypeSampler:
		return true
	}
	return false
}

func (w *DescriptorWriter) fail(err error) *DescriptorWriter {
	if w.err == nil {
		w.err = err
	}
	return w
}

func (w *DescriptorWriter) binding(binding uint32, count int) (DescriptorBinding, error) {
	desc, ok := w.layout.Bindings[binding]
	if !ok {
		return desc, errors.AssertionFailedf("layout does not contain binding %d", binding)
	}
	if uint32(count) != desc.Count {
		return desc, errors.AssertionFailedf("binding %d expects %d descriptors, got %d", binding, desc.Count, count)
	}
	for _, existing := range w.writes {
		if existing.Binding == binding {
			return desc, errors.AssertionFailedf("binding %d written twice", binding)
		}
	}
	return desc, nil
}

func (w *DescriptorWriter) WriteBuffer(binding uint32, info DescriptorBufferInfo) *DescriptorWriter {
	desc, err := w.binding(binding, 1)
	if err != nil {
		return w.fail(err)
	}
	if !isBufferDescriptor(desc.Type) {
		return w.fail(errors.AssertionFailedf("binding %d of type %d does not take a buffer", binding, desc.Type))
	}
	w.writes = append(w.writes, DescriptorWrite{
		Binding:    binding,
		Type:       desc.Type,
		BufferInfo: []DescriptorBufferInfo{info},
	})
	return w
}

func (w *DescriptorWriter) WriteImage(binding uint32, infos []DescriptorImageInfo) *DescriptorWriter {
	desc, err := w.binding(binding, len(infos))
	if err != nil {
		return w.fail(err)
	}
	if !isImageDescriptor(desc.Type) {
		return w.fail(errors.AssertionFailedf("binding %d of type %d does not take an image", binding, desc.Type))
	}
	for i, info := range infos {
		if info.View == NullHandle || info.Sampler == NullHandle {
			return w.fail(errors.AssertionFailedf("binding %d element %d has no view or sampler", binding, i))
		}
	}
	w.writes = append(w.writes, DescriptorWrite{
		Binding:   binding,
		Type:      desc.Type,
		ImageInfo: append([]DescriptorImageInfo(nil), infos...),
	})
	return w
}

// WriteTextures writes one element per texture. Every texture must be ready.
func (w *DescriptorWriter) WriteTextures(binding uint32, textures ...*Texture) *DescriptorWriter {
	infos := make([]DescriptorImageInfo, 0, len(textures))
	for _, t := range textures {
		info, err := t.DescriptorInfo()
		if err != nil {
			return w.fail(err)
		}
		infos = append(infos, info)
	}
	return w.WriteImage(binding, infos)
}

/**
 * @brief Validates every write, allocates a set and updates it in one batch.
 */
func (w *DescriptorWriter) Build() (DescriptorSetHandle, error) {
	if w.err != nil {
		return NullHandle, w.err
	}
	set, err := w.pool.Allocate(w.layout)
	if err != nil {
		return NullHandle, err
	}
	w.flush(set)
	return set, nil
}

/**
 * @brief Rewrites an existing set in one batch. The set must not be in use by
 * any pending frame.
 */
func (w *DescriptorWriter) Overwrite(set DescriptorSetHandle) error {
	if w.err != nil {
		return w.err
	}
	if set == NullHandle {
		return errors.AssertionFailedf("overwrite of a null descriptor set")
	}
	w.flush(set)
	return nil
}

func (w *DescriptorWriter) flush(set DescriptorSetHandle) {
	writes := make([]DescriptorWrite, len(w.writes))
	for i, write := range w.writes {
		write.Set = set
		writes[i] = write
	}
	ctx := w.pool.context
	_ = ctx.LockPool.SafeCall(DescriptorManagement, func() error {
		ctx.Device.UpdateDescriptorSets(writes)
		return nil
	})
}
