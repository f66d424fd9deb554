package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func (d *VulkanDevice) commandBuffer(h CommandBufferHandle) (vk.CommandBuffer, bool) {
	cb, ok := d.commandBuffers.get(uint64(h))
	if !ok {
		core.LogError("unknown command buffer %d", h)
	}
	return cb, ok
}

func (d *VulkanDevice) AllocateCommandBuffer() (CommandBufferHandle, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(d.LogicalDevice, &allocateInfo, buffers)); err != nil {
		return NullHandle, err
	}
	return CommandBufferHandle(d.commandBuffers.add(buffers[0])), nil
}

func (d *VulkanDevice) FreeCommandBuffer(cb CommandBufferHandle) {
	if b, ok := d.commandBuffers.remove(uint64(cb)); ok {
		vk.FreeCommandBuffers(d.LogicalDevice, d.GraphicsCommandPool, 1, []vk.CommandBuffer{b})
	}
}

func (d *VulkanDevice) BeginCommandBuffer(cb CommandBufferHandle, flags vk.CommandBufferUsageFlags) error {
	b, ok := d.commandBuffer(cb)
	if !ok {
		return resultError("vkBeginCommandBuffer", vk.ErrorInitializationFailed)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	return resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(b, &beginInfo))
}

func (d *VulkanDevice) EndCommandBuffer(cb CommandBufferHandle) error {
	b, ok := d.commandBuffer(cb)
	if !ok {
		return resultError("vkEndCommandBuffer", vk.ErrorInitializationFailed)
	}
	return resultError("vkEndCommandBuffer", vk.EndCommandBuffer(b))
}

func (d *VulkanDevice) ResetCommandBuffer(cb CommandBufferHandle) error {
	b, ok := d.commandBuffer(cb)
	if !ok {
		return resultError("vkResetCommandBuffer", vk.ErrorInitializationFailed)
	}
	return resultError("vkResetCommandBuffer", vk.ResetCommandBuffer(b, 0))
}

func (d *VulkanDevice) CmdCopyBuffer(cb CommandBufferHandle, src, dst BufferHandle, region BufferCopy) {
	b, ok := d.commandBuffer(cb)
	s, sok := d.buffers.get(uint64(src))
	t, tok := d.buffers.get(uint64(dst))
	if !ok || !sok || !tok {
		return
	}
	vk.CmdCopyBuffer(b, s, t, 1, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(region.SrcOffset),
		DstOffset: vk.DeviceSize(region.DstOffset),
		Size:      vk.DeviceSize(region.Size),
	}})
}

func (d *VulkanDevice) CmdCopyBufferToImage(cb CommandBufferHandle, src BufferHandle, dst ImageHandle, layout vk.ImageLayout, width, height uint32) {
	b, ok := d.commandBuffer(cb)
	s, sok := d.buffers.get(uint64(src))
	img, iok := d.images.get(uint64(dst))
	if !ok || !sok || !iok {
		return
	}
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(b, s, img, layout, 1, []vk.BufferImageCopy{region})
}

func (d *VulkanDevice) CmdPipelineBarrier(cb CommandBufferHandle, srcStage, dstStage vk.PipelineStageFlags, barrier ImageBarrier) {
	b, ok := d.commandBuffer(cb)
	img, iok := d.images.get(uint64(barrier.Image))
	if !ok || !iok {
		return
	}
	imageBarrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           barrier.OldLayout,
		NewLayout:           barrier.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SrcAccessMask:       barrier.SrcAccessMask,
		DstAccessMask:       barrier.DstAccessMask,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     barrier.AspectMask,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(b, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{imageBarrier})
}

func (d *VulkanDevice) CmdBeginRenderPass(cb CommandBufferHandle, info RenderPassBeginInfo) {
	b, ok := d.commandBuffer(cb)
	pass, pok := d.renderPasses.get(uint64(info.RenderPass))
	fb, fok := d.framebuffers.get(uint64(info.Framebuffer))
	if !ok || !pok || !fok {
		return
	}
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(info.ClearColor[:])
	clearValues[1].SetDepthStencil(info.ClearDepth, info.ClearStencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(b, &beginInfo, vk.SubpassContentsInline)
}

func (d *VulkanDevice) CmdEndRenderPass(cb CommandBufferHandle) {
	if b, ok := d.commandBuffer(cb); ok {
		vk.CmdEndRenderPass(b)
	}
}

func (d *VulkanDevice) CmdSetViewportScissor(cb CommandBufferHandle, extent Extent2D) {
	b, ok := d.commandBuffer(cb)
	if !ok {
		return
	}
	// Dynamic state
	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}
	vk.CmdSetViewport(b, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(b, 0, 1, []vk.Rect2D{scissor})
}

func (d *VulkanDevice) CmdBindPipeline(cb CommandBufferHandle, pipeline PipelineHandle) {
	b, ok := d.commandBuffer(cb)
	p, pok := d.pipelines.get(uint64(pipeline))
	if !ok || !pok {
		return
	}
	vk.CmdBindPipeline(b, vk.PipelineBindPointGraphics, p.handle)
}

func (d *VulkanDevice) CmdBindDescriptorSets(cb CommandBufferHandle, layout PipelineLayoutHandle, firstSet uint32, sets []DescriptorSetHandle) {
	b, ok := d.commandBuffer(cb)
	l, lok := d.pipelineLayouts.get(uint64(layout))
	if !ok || !lok {
		return
	}
	vkSets := make([]vk.DescriptorSet, 0, len(sets))
	for _, h := range sets {
		s, ok := d.sets.get(uint64(h))
		if !ok {
			core.LogError("binding unknown descriptor set %d", h)
			return
		}
		vkSets = append(vkSets, s.handle)
	}
	vk.CmdBindDescriptorSets(b, vk.PipelineBindPointGraphics, l, firstSet, uint32(len(vkSets)), vkSets, 0, nil)
}

func (d *VulkanDevice) CmdPushConstants(cb CommandBufferHandle, layout PipelineLayoutHandle, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	b, ok := d.commandBuffer(cb)
	l, lok := d.pipelineLayouts.get(uint64(layout))
	if !ok || !lok || len(data) == 0 {
		return
	}
	vk.CmdPushConstants(b, l, stages, offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *VulkanDevice) CmdBindVertexBuffer(cb CommandBufferHandle, buffer BufferHandle, offset uint64) {
	b, ok := d.commandBuffer(cb)
	buf, bok := d.buffers.get(uint64(buffer))
	if !ok || !bok {
		return
	}
	vk.CmdBindVertexBuffers(b, 0, 1, []vk.Buffer{buf}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (d *VulkanDevice) CmdBindIndexBuffer(cb CommandBufferHandle, buffer BufferHandle, offset uint64) {
	b, ok := d.commandBuffer(cb)
	buf, bok := d.buffers.get(uint64(buffer))
	if !ok || !bok {
		return
	}
	vk.CmdBindIndexBuffer(b, buf, vk.DeviceSize(offset), vk.IndexTypeUint32)
}

func (d *VulkanDevice) CmdDrawIndexed(cb CommandBufferHandle, indexCount uint32) {
	if b, ok := d.commandBuffer(cb); ok {
		vk.CmdDrawIndexed(b, indexCount, 1, 0, 0, 0)
	}
}

func (d *VulkanDevice) QueueSubmit(info SubmitInfo, fence FenceHandle) error {
	b, ok := d.commandBuffer(info.CommandBuffer)
	if !ok {
		return resultError("vkQueueSubmit", vk.ErrorInitializationFailed)
	}
	wait := make([]vk.Semaphore, len(info.WaitSemaphores))
	for i, h := range info.WaitSemaphores {
		wait[i] = d.semaphore(h)
	}
	signal := make([]vk.Semaphore, len(info.SignalSemaphores))
	for i, h := range info.SignalSemaphores {
		signal[i] = d.semaphore(h)
	}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{b},
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    info.WaitStages,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}
	f := vk.NullFence
	if fence != NullHandle {
		if v, ok := d.fences.get(uint64(fence)); ok {
			f = v
		}
	}
	return resultError("vkQueueSubmit", vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, f))
}

func (d *VulkanDevice) QueueWaitIdle() error {
	return resultError("vkQueueWaitIdle", vk.QueueWaitIdle(d.GraphicsQueue))
}

func (d *VulkanDevice) WaitIdle() error {
	return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.LogicalDevice))
}
