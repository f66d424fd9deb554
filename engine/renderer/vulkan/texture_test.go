package vulkan

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func writePNG(t *testing.T, dir, name string, width, height int) (string, []byte) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 60), B: 200, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path, img.Pix
}

// samplerFailingDevice fails the last step of the texture upload.
type samplerFailingDevice struct {
	*HeadlessDevice
}

func (d samplerFailingDevice) CreateSampler(info SamplerCreateInfo) (SamplerHandle, error) {
	return NullHandle, resultError("vkCreateSampler", vk.ErrorOutOfDeviceMemory)
}

func TestTextureUpload(t *testing.T) {
	dev, ctx := newTestContext(t)
	baseline := dev.LiveObjects()
	path, pixels := writePNG(t, t.TempDir(), "wall.png", 4, 2)

	tex, err := NewTexture(ctx, NewTransferEngine(ctx), path)
	require.NoError(t, err)
	assert.True(t, tex.Ready())
	assert.Equal(t, TEXTURE_STATE_READY, tex.State())
	assert.Equal(t, uint32(4), tex.Width)
	assert.Equal(t, uint32(2), tex.Height)

	got, err := dev.ReadImage(tex.Image.Handle)
	require.NoError(t, err)
	assert.Equal(t, pixels, got)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, dev.ImageLayout(tex.Image.Handle))

	// Image, memory, view and sampler. The staging buffer is gone.
	assert.Equal(t, baseline+4, dev.LiveObjects())

	info, err := tex.DescriptorInfo()
	require.NoError(t, err)
	assert.Equal(t, tex.Image.View, info.View)
	assert.Equal(t, tex.Sampler, info.Sampler)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, info.Layout)

	tex.Destroy()
	tex.Destroy()
	assert.Equal(t, TEXTURE_STATE_DESTROYED, tex.State())
	assert.Equal(t, baseline, dev.LiveObjects())
	assert.Empty(t, dev.ValidationErrors())

	_, err = tex.DescriptorInfo()
	assert.True(t, core.IsInvariantViolation(err))
}

func TestTextureIsIdempotentPerFile(t *testing.T) {
	dev, ctx := newTestContext(t)
	transfer := NewTransferEngine(ctx)
	path, _ := writePNG(t, t.TempDir(), "brick.png", 5, 3)

	a, err := NewTexture(ctx, transfer, path)
	require.NoError(t, err)
	defer a.Destroy()
	b, err := NewTexture(ctx, transfer, path)
	require.NoError(t, err)
	defer b.Destroy()

	assert.NotEqual(t, a.Image.Handle, b.Image.Handle)
	assert.Equal(t, a.Width, b.Width)
	assert.Equal(t, a.Height, b.Height)
	pixelsA, err := dev.ReadImage(a.Image.Handle)
	require.NoError(t, err)
	pixelsB, err := dev.ReadImage(b.Image.Handle)
	require.NoError(t, err)
	assert.Equal(t, pixelsA, pixelsB)
}

func TestTextureUploadRollsBack(t *testing.T) {
	dev := NewHeadlessDevice()
	ctx, err := NewVulkanContext(samplerFailingDevice{dev}, 0)
	require.NoError(t, err)
	baseline := dev.LiveObjects()

	_, err = NewTextureFromImage(ctx, NewTransferEngine(ctx), "broken", checkerImage(8, 8))
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.Equal(t, baseline, dev.LiveObjects(), "nothing created along the way survives")
	assert.Equal(t, 0, dev.Outstanding())
}

func TestTextureRejectsBadInput(t *testing.T) {
	dev, ctx := newTestContext(t)
	transfer := NewTransferEngine(ctx)
	baseline := dev.LiveObjects()

	_, err := NewTextureFromImage(ctx, transfer, "empty", &loaders.ImageData{})
	assert.True(t, errors.Is(err, core.ErrTextureDecode))

	_, err = NewTextureFromImage(ctx, transfer, "huge", &loaders.ImageData{Width: 8192, Height: 1, Pixels: make([]byte, 8192*4)})
	assert.True(t, errors.Is(err, core.ErrCapabilityMissing))

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = NewTexture(ctx, transfer, garbage)
	assert.True(t, errors.Is(err, core.ErrTextureDecode))

	_, err = NewTexture(ctx, transfer, filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, core.IsFatal(err))

	assert.Equal(t, baseline, dev.LiveObjects())
}
