package vulkan

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
)

func newTestContext(t *testing.T, opts ...HeadlessOption) (*HeadlessDevice, *VulkanContext) {
	t.Helper()
	dev := NewHeadlessDevice(opts...)
	ctx, err := NewVulkanContext(dev, 0)
	require.NoError(t, err)
	return dev, ctx
}

// fakeSPIRV is the smallest byte slice that passes module validation.
func fakeSPIRV() []byte {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code, 0x07230203)
	return code
}

func checkerImage(width, height uint32) *loaders.ImageData {
	data := &loaders.ImageData{Width: width, Height: height}
	data.Pixels = make([]byte, data.Size())
	for i := range data.Pixels {
		data.Pixels[i] = byte(i * 7)
	}
	return data
}

func newTestTexture(t *testing.T, ctx *VulkanContext) *Texture {
	t.Helper()
	tex, err := NewTextureFromImage(ctx, NewTransferEngine(ctx), "checker", checkerImage(4, 4))
	require.NoError(t, err)
	return tex
}
