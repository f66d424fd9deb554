package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanFramebuffer struct {
	Handle      FramebufferHandle
	Attachments []vk.ImageView
	RenderPass  RenderPassHandle
}

func NewVulkanFramebuffer(device *VulkanDevice, renderPass RenderPassHandle, extent Extent2D, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	pass, ok := device.renderPasses.get(uint64(renderPass))
	if !ok {
		return nil, resultError("vkCreateFramebuffer", vk.ErrorInitializationFailed)
	}
	fb := &VulkanFramebuffer{
		// Take a copy of the attachments.
		Attachments: append([]vk.ImageView(nil), attachments...),
		RenderPass:  renderPass,
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var pFramebuffer vk.Framebuffer
	if err := resultError("vkCreateFramebuffer", vk.CreateFramebuffer(device.LogicalDevice, &createInfo, nil, &pFramebuffer)); err != nil {
		return nil, err
	}
	fb.Handle = FramebufferHandle(device.framebuffers.add(pFramebuffer))
	return fb, nil
}

func (vfb *VulkanFramebuffer) Destroy(device *VulkanDevice) {
	if f, ok := device.framebuffers.remove(uint64(vfb.Handle)); ok {
		vk.DestroyFramebuffer(device.LogicalDevice, f, nil)
	}
	vfb.Attachments = nil
	vfb.Handle = NullHandle
	vfb.RenderPass = NullHandle
}
