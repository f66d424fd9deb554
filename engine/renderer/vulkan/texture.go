package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

type TextureState int

const (
	TEXTURE_STATE_CREATED TextureState = iota
	TEXTURE_STATE_STAGING_UPLOADED
	TEXTURE_STATE_TRANSFER_DST
	TEXTURE_STATE_COPIED
	TEXTURE_STATE_SHADER_READ_ONLY
	TEXTURE_STATE_VIEW_CREATED
	TEXTURE_STATE_SAMPLER_CREATED
	TEXTURE_STATE_READY
	TEXTURE_STATE_DESTROYED
)

func (s TextureState) String() string {
	switch s {
	case TEXTURE_STATE_CREATED:
		return "created"
	case TEXTURE_STATE_STAGING_UPLOADED:
		return "staging_uploaded"
	case TEXTURE_STATE_TRANSFER_DST:
		return "transfer_dst"
	case TEXTURE_STATE_COPIED:
		return "copied"
	case TEXTURE_STATE_SHADER_READ_ONLY:
		return "shader_read_only"
	case TEXTURE_STATE_VIEW_CREATED:
		return "view_created"
	case TEXTURE_STATE_SAMPLER_CREATED:
		return "sampler_created"
	case TEXTURE_STATE_READY:
		return "ready"
	default:
		return "destroyed"
	}
}

const (
	TextureFormat = vk.FormatR8g8b8a8Srgb
	// Upper bound for sampler anisotropy when the device supports it.
	textureMaxAnisotropy float32 = 16
)

// Texture is a sampled 2D image uploaded once from decoded RGBA8 texels.
type Texture struct {
	context *VulkanContext

	ID     uuid.UUID
	Name   string
	Width  uint32
	Height uint32

	Image   *VulkanImage
	Sampler SamplerHandle

	state TextureState
}

// NewTexture decodes the file at path and uploads it.
func NewTexture(context *VulkanContext, transfer *TransferEngine, path string) (*Texture, error) {
	data, err := loaders.DecodeImage(path)
	if err != nil {
		return nil, err
	}
	return NewTextureFromImage(context, transfer, path, data)
}

// NewTextureFromImage runs the whole upload sequence. Either a Ready texture
// is returned or everything created along the way has been released.
func NewTextureFromImage(context *VulkanContext, transfer *TransferEngine, name string, data *loaders.ImageData) (*Texture, error) {
	t := &Texture{
		context: context,
		ID:      uuid.New(),
		Name:    name,
		Width:   data.Width,
		Height:  data.Height,
		state:   TEXTURE_STATE_CREATED,
	}
	if err := t.upload(transfer, data); err != nil {
		core.LogError("texture %s failed at state %s: %s", name, t.state, err)
		t.Destroy()
		return nil, errors.Wrapf(err, "creating texture %s", name)
	}
	core.LogInfo("texture %s (%s) ready, %dx%d", name, t.ID, t.Width, t.Height)
	return t, nil
}

func (t *Texture) advance(next TextureState) error {
	if next != t.state+1 {
		return errors.AssertionFailedf("texture %s cannot move from %s to %s", t.Name, t.state, next)
	}
	t.state = next
	return nil
}

func (t *Texture) upload(transfer *TransferEngine, data *loaders.ImageData) error {
	if data.Width == 0 || data.Height == 0 {
		return core.Fatalf(core.ErrTextureDecode, "texture has zero dimensions %dx%d", data.Width, data.Height)
	}
	if uint64(len(data.Pixels)) != data.Size() {
		return errors.AssertionFailedf("texture holds %d bytes, expected %d", len(data.Pixels), data.Size())
	}
	limit := t.context.Capabilities.Limits.MaxImageDimension2D
	if data.Width > limit || data.Height > limit {
		return core.Fatalf(core.ErrCapabilityMissing, "texture of %dx%d exceeds max image dimension %d", data.Width, data.Height, limit)
	}

	staging, err := transfer.CreateStagingBuffer(data.Size())
	if err != nil {
		return err
	}
	defer staging.Destroy()
	if err := staging.WriteToBuffer(data.Pixels, 0); err != nil {
		return err
	}
	if err := t.advance(TEXTURE_STATE_STAGING_UPLOADED); err != nil {
		return err
	}

	t.Image, err = NewVulkanImage(t.context, ImageCreateInfo{
		Width:  data.Width,
		Height: data.Height,
		Format: TextureFormat,
		Tiling: vk.ImageTilingOptimal,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
	}, MemoryDeviceLocal)
	if err != nil {
		return err
	}
	if err := transfer.TransitionImageLayout(t.Image, TextureFormat, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}
	if err := t.advance(TEXTURE_STATE_TRANSFER_DST); err != nil {
		return err
	}

	if err := transfer.CopyBufferToImage(staging, t.Image, data.Width, data.Height); err != nil {
		return err
	}
	if err := t.advance(TEXTURE_STATE_COPIED); err != nil {
		return err
	}

	if err := transfer.TransitionImageLayout(t.Image, TextureFormat, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		return err
	}
	if err := t.advance(TEXTURE_STATE_SHADER_READ_ONLY); err != nil {
		return err
	}

	if err := t.Image.CreateView(vk.ImageAspectFlags(vk.ImageAspectColorBit)); err != nil {
		return err
	}
	if err := t.advance(TEXTURE_STATE_VIEW_CREATED); err != nil {
		return err
	}

	info := SamplerCreateInfo{
		MagFilter:   vk.FilterLinear,
		MinFilter:   vk.FilterLinear,
		AddressMode: vk.SamplerAddressModeRepeat,
	}
	if t.context.Capabilities.SamplerAnisotropy {
		info.AnisotropyEnable = true
		info.MaxAnisotropy = textureMaxAnisotropy
		if limit := t.context.Capabilities.Limits.MaxSamplerAnisotropy; limit < info.MaxAnisotropy {
			info.MaxAnisotropy = limit
		}
	}
	err = t.context.LockPool.SafeCall(SamplerManagement, func() error {
		var err error
		t.Sampler, err = t.context.Device.CreateSampler(info)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "creating sampler")
	}
	if err := t.advance(TEXTURE_STATE_SAMPLER_CREATED); err != nil {
		return err
	}
	return t.advance(TEXTURE_STATE_READY)
}

func (t *Texture) State() TextureState {
	return t.state
}

func (t *Texture) Ready() bool {
	return t.state == TEXTURE_STATE_READY
}

// DescriptorInfo describes the texture for a combined image sampler binding.
func (t *Texture) DescriptorInfo() (DescriptorImageInfo, error) {
	if !t.Ready() {
		return DescriptorImageInfo{}, errors.AssertionFailedf("texture %s is %s, not ready", t.Name, t.state)
	}
	return DescriptorImageInfo{
		View:    t.Image.View,
		Sampler: t.Sampler,
		Layout:  vk.ImageLayoutShaderReadOnlyOptimal,
	}, nil
}

// Destroy releases sampler, view, image and memory in that order. Only call
// it once no submitted frame references the texture.
func (t *Texture) Destroy() {
	if t == nil || t.state == TEXTURE_STATE_DESTROYED {
		return
	}
	if t.Sampler != NullHandle {
		_ = t.context.LockPool.SafeCall(SamplerManagement, func() error {
			t.context.Device.DestroySampler(t.Sampler)
			return nil
		})
		t.Sampler = NullHandle
	}
	t.Image.Destroy()
	t.Image = nil
	t.state = TEXTURE_STATE_DESTROYED
	core.LogDebug("texture %s (%s) destroyed", t.Name, t.ID)
}
