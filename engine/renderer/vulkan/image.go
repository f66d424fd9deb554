package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

type VulkanImage struct {
	context *VulkanContext

	Handle     ImageHandle
	Allocation *VulkanAllocation
	View       ImageViewHandle
	Width      uint32
	Height     uint32
	Format     vk.Format
	Tiling     vk.ImageTiling
	Usage      vk.ImageUsageFlags

	// Layout is the layout the image will be in once every recorded
	// transition has executed. Only the transfer engine changes it.
	Layout vk.ImageLayout
}

// NewVulkanImage creates a 2D image and binds memory with the given properties.
func NewVulkanImage(context *VulkanContext, info ImageCreateInfo, properties vk.MemoryPropertyFlags) (*VulkanImage, error) {
	limit := context.Capabilities.Limits.MaxImageDimension2D
	if limit > 0 && (info.Width > limit || info.Height > limit) {
		return nil, errors.Newf("image of %dx%d exceeds the device limit of %d", info.Width, info.Height, limit)
	}
	img := &VulkanImage{
		context: context,
		Width:   info.Width,
		Height:  info.Height,
		Format:  info.Format,
		Tiling:  info.Tiling,
		Usage:   info.Usage,
		Layout:  vk.ImageLayoutUndefined,
	}

	var reqs MemoryRequirements
	err := context.LockPool.SafeCall(ImageManagement, func() error {
		var err error
		img.Handle, reqs, err = context.Device.CreateImage(info)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating image")
	}

	img.Allocation, err = AllocateImageMemory(context, img.Handle, reqs, properties)
	if err != nil {
		context.Device.DestroyImage(img.Handle)
		return nil, err
	}
	return img, nil
}

func (vi *VulkanImage) CreateView(aspect vk.ImageAspectFlags) error {
	if vi.View != NullHandle {
		return errors.AssertionFailedf("image %d already has a view", vi.Handle)
	}
	view, err := vi.context.Device.CreateImageView(vi.Handle, vi.Format, aspect)
	if err != nil {
		return errors.Wrapf(err, "creating view for image %d", vi.Handle)
	}
	vi.View = view
	return nil
}

// Destroy releases the view, the image and its memory in that order.
func (vi *VulkanImage) Destroy() {
	if vi == nil || vi.Handle == NullHandle {
		return
	}
	_ = vi.context.LockPool.SafeCall(ImageManagement, func() error {
		if vi.View != NullHandle {
			vi.context.Device.DestroyImageView(vi.View)
			vi.View = NullHandle
		}
		vi.context.Device.DestroyImage(vi.Handle)
		return nil
	})
	vi.Allocation.Free(vi.context)
	vi.Handle = NullHandle
}
