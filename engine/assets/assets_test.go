package assets

import (
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func writePNG(t *testing.T, path string, size int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, size, size))))
	require.NoError(t, f.Close())
}

func assetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "shaders"), 0o755))
	writePNG(t, filepath.Join(dir, "nature.png"), 2)

	spv := make([]byte, 8)
	binary.LittleEndian.PutUint32(spv, 0x07230203)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "world.vert.spv"), spv, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("notes"), 0o644))
	return dir
}

func TestAssetManagerIndexAndLoad(t *testing.T) {
	dir := assetDir(t)
	am, err := NewAssetManager(nil)
	require.NoError(t, err)
	defer am.Shutdown()
	require.NoError(t, am.Initialize(false, dir))

	assert.Equal(t, 2, am.Count())
	info, ok := am.Lookup(filepath.Join(dir, "shaders", "world.vert.spv"))
	require.True(t, ok)
	assert.Equal(t, loaders.ResourceTypeShader, info.Type)
	assert.True(t, info.LastLoaded.IsZero())

	res, err := am.LoadAsset(filepath.Join(dir, "nature.png"))
	require.NoError(t, err)
	assert.Equal(t, "nature", res.Name)
	img, ok := res.Data.(*loaders.ImageData)
	require.True(t, ok)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint64(16), res.DataSize)
	info, _ = am.Lookup(filepath.Join(dir, "nature.png"))
	assert.False(t, info.LastLoaded.IsZero())

	require.NoError(t, am.UnloadAsset(res))
	assert.Nil(t, res.Data)

	shader, err := am.LoadAsset(filepath.Join(dir, "shaders", "world.vert.spv"))
	require.NoError(t, err)
	assert.Len(t, shader.Data, 8)

	_, err = am.LoadAsset(filepath.Join(dir, "README.txt"))
	assert.Error(t, err)
}

func TestAssetManagerReportsChangedTextures(t *testing.T) {
	dir := assetDir(t)
	bus := core.NewEventBus()
	var changed atomic.Value
	bus.Register(core.EVENT_CODE_TEXTURE_CHANGED, func(code core.SystemEventCode, sender interface{}, data core.EventContext) bool {
		changed.Store(data.Path)
		return true
	})

	am, err := NewAssetManager(bus)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(true, dir))

	path := filepath.Join(dir, "nature.png")
	writePNG(t, path, 4)
	require.Eventually(t, func() bool {
		bus.Dispatch()
		got, _ := changed.Load().(string)
		return got == path
	}, 5*time.Second, 20*time.Millisecond)

	// New directories are picked up too.
	sub := filepath.Join(dir, "more")
	require.NoError(t, os.Mkdir(sub, 0o755))
	rock := filepath.Join(sub, "rock.png")
	require.Eventually(t, func() bool {
		// The watch on sub is added asynchronously, so keep writing.
		if f, err := os.Create(rock); err == nil {
			_ = png.Encode(f, image.NewRGBA(image.Rect(0, 0, 1, 1)))
			_ = f.Close()
		}
		bus.Dispatch()
		got, _ := changed.Load().(string)
		return got == rock
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, ok := am.Lookup(path)
		return !ok
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())
}
