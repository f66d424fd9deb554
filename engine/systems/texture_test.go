package systems

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/assets"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/vulkan"
)

func writeSolidPNG(t *testing.T, path string, size int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

type textureFixture struct {
	dev *vulkan.HeadlessDevice
	ts  *TextureSystem
	dir string
}

func newTextureFixture(t *testing.T, max uint32) *textureFixture {
	t.Helper()
	dev := vulkan.NewHeadlessDevice()
	ctx, err := vulkan.NewVulkanContext(dev, 0)
	require.NoError(t, err)
	js, err := NewJobSystem(2, 4)
	require.NoError(t, err)
	am, err := assets.NewAssetManager(nil)
	require.NoError(t, err)
	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: max}, js, am, ctx, vulkan.NewTransferEngine(ctx))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ts.Shutdown()
		_ = js.Shutdown()
		_ = am.Shutdown()
	})
	return &textureFixture{dev: dev, ts: ts, dir: t.TempDir()}
}

func TestTextureSystemLoadTextures(t *testing.T) {
	f := newTextureFixture(t, 4)
	nature := filepath.Join(f.dir, "nature.png")
	background := filepath.Join(f.dir, "background.png")
	writeSolidPNG(t, nature, 2, color.RGBA{R: 200, A: 255})
	writeSolidPNG(t, background, 4, color.RGBA{B: 100, A: 255})

	textures, err := f.ts.LoadTextures([]string{nature, background})
	require.NoError(t, err)
	require.Len(t, textures, 2)
	assert.Equal(t, uint32(2), textures[0].Width)
	assert.Equal(t, uint32(4), textures[1].Width)
	assert.True(t, textures[0].Ready())

	got, err := f.ts.Acquire(background)
	require.NoError(t, err)
	assert.Same(t, textures[1], got)
	assert.Equal(t, textures, f.ts.Textures())

	pixels, err := f.dev.ReadImage(textures[0].Image.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 0, 0, 255}, pixels[:4])

	_, err = f.ts.LoadTextures([]string{nature})
	assert.Error(t, err, "already loaded")
	_, err = f.ts.LoadTextures([]string{"a.png", "b.png", "c.png"})
	assert.Error(t, err, "over the maximum")
	_, err = f.ts.Acquire("missing.png")
	assert.Error(t, err)
}

func TestTextureSystemLoadFailureRegistersNothing(t *testing.T) {
	f := newTextureFixture(t, 4)
	good := filepath.Join(f.dir, "good.png")
	writeSolidPNG(t, good, 2, color.RGBA{G: 1, A: 255})
	bad := filepath.Join(f.dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o644))

	_, err := f.ts.LoadTextures([]string{good, bad})
	require.Error(t, err)
	assert.Equal(t, 0, f.ts.Count())
}

func TestTextureSystemReload(t *testing.T) {
	f := newTextureFixture(t, 4)
	nature := filepath.Join(f.dir, "nature.png")
	writeSolidPNG(t, nature, 2, color.RGBA{R: 10, A: 255})
	loaded, err := f.ts.LoadTextures([]string{nature})
	require.NoError(t, err)
	old := loaded[0]

	var rebound []*vulkan.Texture
	f.ts.SetReplaceHook(func(textures []*vulkan.Texture) error {
		rebound = textures
		return nil
	})

	writeSolidPNG(t, nature, 4, color.RGBA{R: 90, A: 255})
	replaced, err := f.ts.Reload(nature)
	require.NoError(t, err)
	assert.True(t, replaced)
	require.Len(t, rebound, 1)
	assert.Equal(t, uint32(4), rebound[0].Width)
	assert.Equal(t, vulkan.TEXTURE_STATE_DESTROYED, old.State())

	current, err := f.ts.Acquire(nature)
	require.NoError(t, err)
	assert.Same(t, rebound[0], current)

	replaced, err = f.ts.Reload(filepath.Join(f.dir, "unknown.png"))
	assert.NoError(t, err)
	assert.False(t, replaced)
}

func TestTextureSystemReloadKeepsOldTextureOnFailure(t *testing.T) {
	f := newTextureFixture(t, 4)
	nature := filepath.Join(f.dir, "nature.png")
	writeSolidPNG(t, nature, 2, color.RGBA{R: 10, A: 255})
	loaded, err := f.ts.LoadTextures([]string{nature})
	require.NoError(t, err)

	// Truncated write.
	require.NoError(t, os.WriteFile(nature, []byte{0x89, 'P', 'N'}, 0o644))
	replaced, err := f.ts.Reload(nature)
	assert.Error(t, err)
	assert.False(t, replaced)
	assert.True(t, loaded[0].Ready())

	writeSolidPNG(t, nature, 2, color.RGBA{R: 20, A: 255})
	f.ts.SetReplaceHook(func([]*vulkan.Texture) error {
		return errors.New("frame in progress")
	})
	replaced, err = f.ts.Reload(nature)
	assert.Error(t, err)
	assert.False(t, replaced)
	current, err := f.ts.Acquire(nature)
	require.NoError(t, err)
	assert.Same(t, loaded[0], current)
	assert.True(t, current.Ready())
}
