package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func (d *VulkanDevice) semaphore(h SemaphoreHandle) vk.Semaphore {
	s, _ := d.semaphores.get(uint64(h))
	return s
}

func (d *VulkanDevice) imageView(h ImageViewHandle) vk.ImageView {
	v, _ := d.views.get(uint64(h))
	return v
}

func (d *VulkanDevice) CreateBuffer(size uint64, usage vk.BufferUsageFlags) (BufferHandle, MemoryRequirements, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive, // NOTE: Only used in one queue.
	}
	var buffer vk.Buffer
	if err := resultError("vkCreateBuffer", vk.CreateBuffer(d.LogicalDevice, &bufferInfo, nil, &buffer)); err != nil {
		return NullHandle, MemoryRequirements{}, err
	}
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, buffer, &reqs)
	reqs.Deref()
	return BufferHandle(d.buffers.add(buffer)), MemoryRequirements{
		Size:           uint64(reqs.Size),
		Alignment:      uint64(reqs.Alignment),
		MemoryTypeBits: reqs.MemoryTypeBits,
	}, nil
}

func (d *VulkanDevice) DestroyBuffer(buffer BufferHandle) {
	if b, ok := d.buffers.remove(uint64(buffer)); ok {
		vk.DestroyBuffer(d.LogicalDevice, b, nil)
	}
}

func (d *VulkanDevice) CreateImage(info ImageCreateInfo) (ImageHandle, MemoryRequirements, error) {
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        info.Format,
		Tiling:        info.Tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         info.Usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var image vk.Image
	if err := resultError("vkCreateImage", vk.CreateImage(d.LogicalDevice, &imageCreateInfo, nil, &image)); err != nil {
		return NullHandle, MemoryRequirements{}, err
	}
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, image, &reqs)
	reqs.Deref()
	return ImageHandle(d.images.add(image)), MemoryRequirements{
		Size:           uint64(reqs.Size),
		Alignment:      uint64(reqs.Alignment),
		MemoryTypeBits: reqs.MemoryTypeBits,
	}, nil
}

func (d *VulkanDevice) DestroyImage(image ImageHandle) {
	if img, ok := d.images.remove(uint64(image)); ok {
		vk.DestroyImage(d.LogicalDevice, img, nil)
	}
}

func (d *VulkanDevice) AllocateMemory(size uint64, memoryTypeIndex uint32) (MemoryHandle, error) {
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryTypeIndex,
	}
	var memory vk.DeviceMemory
	if err := resultError("vkAllocateMemory", vk.AllocateMemory(d.LogicalDevice, &allocateInfo, nil, &memory)); err != nil {
		return NullHandle, err
	}
	return MemoryHandle(d.memories.add(vulkanMemory{handle: memory, size: size})), nil
}

func (d *VulkanDevice) FreeMemory(memory MemoryHandle) {
	if m, ok := d.memories.remove(uint64(memory)); ok {
		vk.FreeMemory(d.LogicalDevice, m.handle, nil)
	}
}

func (d *VulkanDevice) BindBufferMemory(buffer BufferHandle, memory MemoryHandle, offset uint64) error {
	b, ok := d.buffers.get(uint64(buffer))
	m, mok := d.memories.get(uint64(memory))
	if !ok || !mok {
		return resultError("vkBindBufferMemory", vk.ErrorInitializationFailed)
	}
	return resultError("vkBindBufferMemory", vk.BindBufferMemory(d.LogicalDevice, b, m.handle, vk.DeviceSize(offset)))
}

func (d *VulkanDevice) BindImageMemory(image ImageHandle, memory MemoryHandle, offset uint64) error {
	img, ok := d.images.get(uint64(image))
	m, mok := d.memories.get(uint64(memory))
	if !ok || !mok {
		return resultError("vkBindImageMemory", vk.ErrorInitializationFailed)
	}
	return resultError("vkBindImageMemory", vk.BindImageMemory(d.LogicalDevice, img, m.handle, vk.DeviceSize(offset)))
}

func (d *VulkanDevice) MapMemory(memory MemoryHandle, offset, size uint64) ([]byte, error) {
	m, ok := d.memories.get(uint64(memory))
	if !ok {
		return nil, resultError("vkMapMemory", vk.ErrorMemoryMapFailed)
	}
	var data unsafe.Pointer
	if err := resultError("vkMapMemory", vk.MapMemory(d.LogicalDevice, m.handle, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (d *VulkanDevice) UnmapMemory(memory MemoryHandle) {
	if m, ok := d.memories.get(uint64(memory)); ok {
		vk.UnmapMemory(d.LogicalDevice, m.handle)
	}
}

func (d *VulkanDevice) FlushMappedMemoryRange(memory MemoryHandle, offset, size uint64) error {
	m, ok := d.memories.get(uint64(memory))
	if !ok {
		return resultError("vkFlushMappedMemoryRanges", vk.ErrorMemoryMapFailed)
	}
	// The last range may end at the allocation size, which need not be atom aligned.
	if offset+size > m.size {
		size = m.size - offset
	}
	mappedRange := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: m.handle,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}
	return resultError("vkFlushMappedMemoryRanges", vk.FlushMappedMemoryRanges(d.LogicalDevice, 1, []vk.MappedMemoryRange{mappedRange}))
}

func (d *VulkanDevice) createRawImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := resultError("vkCreateImageView", vk.CreateImageView(d.LogicalDevice, &viewCreateInfo, nil, &view)); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (d *VulkanDevice) CreateImageView(image ImageHandle, format vk.Format, aspect vk.ImageAspectFlags) (ImageViewHandle, error) {
	img, ok := d.images.get(uint64(image))
	if !ok {
		return NullHandle, resultError("vkCreateImageView", vk.ErrorInitializationFailed)
	}
	view, err := d.createRawImageView(img, format, aspect)
	if err != nil {
		return NullHandle, err
	}
	return ImageViewHandle(d.views.add(view)), nil
}

func (d *VulkanDevice) DestroyImageView(view ImageViewHandle) {
	if v, ok := d.views.remove(uint64(view)); ok {
		vk.DestroyImageView(d.LogicalDevice, v, nil)
	}
}

func (d *VulkanDevice) CreateSampler(info SamplerCreateInfo) (SamplerHandle, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               info.MagFilter,
		MinFilter:               info.MinFilter,
		AddressModeU:            info.AddressMode,
		AddressModeV:            info.AddressMode,
		AddressModeW:            info.AddressMode,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if info.AnisotropyEnable {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = info.MaxAnisotropy
	}
	var sampler vk.Sampler
	if err := resultError("vkCreateSampler", vk.CreateSampler(d.LogicalDevice, &samplerInfo, nil, &sampler)); err != nil {
		return NullHandle, err
	}
	return SamplerHandle(d.samplers.add(sampler)), nil
}

func (d *VulkanDevice) DestroySampler(sampler SamplerHandle) {
	if s, ok := d.samplers.remove(uint64(sampler)); ok {
		vk.DestroySampler(d.LogicalDevice, s, nil)
	}
}

func (d *VulkanDevice) CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayoutHandle, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: b.Count,
			StageFlags:      b.StageFlags,
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := resultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutInfo, nil, &layout)); err != nil {
		return NullHandle, err
	}
	return DescriptorSetLayoutHandle(d.setLayouts.add(layout)), nil
}

func (d *VulkanDevice) DestroyDescriptorSetLayout(layout DescriptorSetLayoutHandle) {
	if l, ok := d.setLayouts.remove(uint64(layout)); ok {
		vk.DestroyDescriptorSetLayout(d.LogicalDevice, l, nil)
	}
}

func (d *VulkanDevice) CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize, flags vk.DescriptorPoolCreateFlags) (DescriptorPoolHandle, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{Type: s.Type, DescriptorCount: s.Count}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       maxSets,
		Flags:         flags,
	}
	var pool vk.DescriptorPool
	if err := resultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.LogicalDevice, &poolInfo, nil, &pool)); err != nil {
		return NullHandle, err
	}
	return DescriptorPoolHandle(d.pools.add(pool)), nil
}

func (d *VulkanDevice) DestroyDescriptorPool(pool DescriptorPoolHandle) {
	p, ok := d.pools.remove(uint64(pool))
	if !ok {
		return
	}
	// Sets go away with their pool.
	d.sets.removeIf(func(s vulkanDescriptorSet) bool { return s.pool == pool })
	vk.DestroyDescriptorPool(d.LogicalDevice, p, nil)
}

func (d *VulkanDevice) AllocateDescriptorSet(pool DescriptorPoolHandle, layout DescriptorSetLayoutHandle) (DescriptorSetHandle, error) {
	p, ok := d.pools.get(uint64(pool))
	l, lok := d.setLayouts.get(uint64(layout))
	if !ok || !lok {
		return NullHandle, resultError("vkAllocateDescriptorSets", vk.ErrorInitializationFailed)
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l},
	}
	var set vk.DescriptorSet
	if err := resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.LogicalDevice, &allocateInfo, &set)); err != nil {
		return NullHandle, err
	}
	return DescriptorSetHandle(d.sets.add(vulkanDescriptorSet{handle: set, pool: pool})), nil
}

func (d *VulkanDevice) UpdateDescriptorSets(writes []DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := d.sets.get(uint64(w.Set))
		if !ok {
			core.LogError("descriptor write to unknown set %d", w.Set)
			continue
		}
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.handle,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorType:  w.Type,
		}
		if len(w.BufferInfo) > 0 {
			infos := make([]vk.DescriptorBufferInfo, len(w.BufferInfo))
			for i, bi := range w.BufferInfo {
				b, _ := d.buffers.get(uint64(bi.Buffer))
				infos[i] = vk.DescriptorBufferInfo{
					Buffer: b,
					Offset: vk.DeviceSize(bi.Offset),
					Range:  vk.DeviceSize(bi.Range),
				}
			}
			write.DescriptorCount = uint32(len(infos))
			write.PBufferInfo = infos
		} else {
			infos := make([]vk.DescriptorImageInfo, len(w.ImageInfo))
			for i, ii := range w.ImageInfo {
				v, _ := d.views.get(uint64(ii.View))
				s, _ := d.samplers.get(uint64(ii.Sampler))
				infos[i] = vk.DescriptorImageInfo{
					ImageView:   v,
					Sampler:     s,
					ImageLayout: ii.Layout,
				}
			}
			write.DescriptorCount = uint32(len(infos))
			write.PImageInfo = infos
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
}

func (d *VulkanDevice) createShaderModule(code []byte) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	if err := loaders.ValidateSPIRV(code); err != nil {
		return module, core.AsFatal(err, nil)
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    loaders.BytesToBytecode(code),
	}
	if err := resultError("vkCreateShaderModule", vk.CreateShaderModule(d.LogicalDevice, &createInfo, nil, &module)); err != nil {
		return module, err
	}
	return module, nil
}

func (d *VulkanDevice) CreatePipeline(info PipelineCreateInfo) (PipelineHandle, PipelineLayoutHandle, error) {
	renderPass, ok := d.renderPasses.get(uint64(info.RenderPass))
	if !ok {
		return NullHandle, NullHandle, resultError("vkCreateGraphicsPipelines", vk.ErrorInitializationFailed)
	}
	setLayouts := make([]vk.DescriptorSetLayout, 0, len(info.SetLayouts))
	for _, h := range info.SetLayouts {
		l, ok := d.setLayouts.get(uint64(h))
		if !ok {
			return NullHandle, NullHandle, resultError("vkCreatePipelineLayout", vk.ErrorInitializationFailed)
		}
		setLayouts = append(setLayouts, l)
	}

	// Shader modules are only needed until the pipeline exists.
	vertModule, err := d.createShaderModule(info.VertexShader)
	if err != nil {
		return NullHandle, NullHandle, err
	}
	defer vk.DestroyShaderModule(d.LogicalDevice, vertModule, nil)
	fragModule, err := d.createShaderModule(info.FragmentShader)
	if err != nil {
		return NullHandle, NullHandle, err
	}
	defer vk.DestroyShaderModule(d.LogicalDevice, fragModule, nil)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  VulkanSafeString("main"),
		},
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	if info.PushConstantSize > 0 {
		pipelineLayoutCreateInfo.PushConstantRangeCount = 1
		pipelineLayoutCreateInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: info.PushConstantStages,
			Offset:     0,
			Size:       info.PushConstantSize,
		}}
	}
	var pipelineLayout vk.PipelineLayout
	if err := resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, nil, &pipelineLayout)); err != nil {
		return NullHandle, NullHandle, err
	}

	// Viewport and scissor are dynamic, set per frame from the swap chain extent.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}
	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(info.Attributes))
	for i, a := range info.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Binding:  0,
			Location: a.Location,
			Format:   a.Format,
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}
	if info.VertexStride > 0 {
		vertexInputInfo.VertexBindingDescriptionCount = 1
		vertexInputInfo.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    info.VertexStride,
			InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
		}}
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              pipelineLayout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}
	pipelines := make([]vk.Pipeline, 1)
	if err := resultError("vkCreateGraphicsPipelines", vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, nil, pipelines)); err != nil {
		vk.DestroyPipelineLayout(d.LogicalDevice, pipelineLayout, nil)
		return NullHandle, NullHandle, err
	}

	layoutHandle := PipelineLayoutHandle(d.pipelineLayouts.add(pipelineLayout))
	pipelineHandle := PipelineHandle(d.pipelines.add(vulkanPipeline{handle: pipelines[0], layout: layoutHandle}))
	core.LogDebug("graphics pipeline created")
	return pipelineHandle, layoutHandle, nil
}

func (d *VulkanDevice) DestroyPipeline(pipeline PipelineHandle, layout PipelineLayoutHandle) {
	if p, ok := d.pipelines.remove(uint64(pipeline)); ok {
		vk.DestroyPipeline(d.LogicalDevice, p.handle, nil)
	}
	if l, ok := d.pipelineLayouts.remove(uint64(layout)); ok {
		vk.DestroyPipelineLayout(d.LogicalDevice, l, nil)
	}
}

func (d *VulkanDevice) CreateFence(signaled bool) (FenceHandle, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := resultError("vkCreateFence", vk.CreateFence(d.LogicalDevice, &fenceCreateInfo, nil, &fence)); err != nil {
		return NullHandle, err
	}
	return FenceHandle(d.fences.add(fence)), nil
}

func (d *VulkanDevice) DestroyFence(fence FenceHandle) {
	if f, ok := d.fences.remove(uint64(fence)); ok {
		vk.DestroyFence(d.LogicalDevice, f, nil)
	}
}

func (d *VulkanDevice) WaitForFence(fence FenceHandle, timeoutNs uint64) error {
	f, ok := d.fences.get(uint64(fence))
	if !ok {
		return resultError("vkWaitForFences", vk.ErrorInitializationFailed)
	}
	return resultError("vkWaitForFences", vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{f}, vk.True, timeoutNs))
}

func (d *VulkanDevice) ResetFence(fence FenceHandle) error {
	f, ok := d.fences.get(uint64(fence))
	if !ok {
		return resultError("vkResetFences", vk.ErrorInitializationFailed)
	}
	return resultError("vkResetFences", vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{f}))
}

func (d *VulkanDevice) CreateSemaphore() (SemaphoreHandle, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := resultError("vkCreateSemaphore", vk.CreateSemaphore(d.LogicalDevice, &semaphoreCreateInfo, nil, &semaphore)); err != nil {
		return NullHandle, err
	}
	return SemaphoreHandle(d.semaphores.add(semaphore)), nil
}

func (d *VulkanDevice) DestroySemaphore(semaphore SemaphoreHandle) {
	if s, ok := d.semaphores.remove(uint64(semaphore)); ok {
		vk.DestroySemaphore(d.LogicalDevice, s, nil)
	}
}
