package renderer

import (
	"encoding/binary"
	gomath "math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/components"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/views"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/vulkan"
)

func newHeadlessRenderer(t *testing.T, frames uint32) *Renderer {
	t.Helper()
	r, err := New(Config{
		ApplicationName: "test",
		Width:           320,
		Height:          240,
		FramesInFlight:  frames,
		Headless:        true,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, Headless, r.Type())
	require.NotNil(t, r.HeadlessDevice())
	return r
}

func solidTexture(t *testing.T, r *Renderer, name string, c byte) *vulkan.Texture {
	t.Helper()
	tex, err := vulkan.NewTextureFromImage(r.Context, r.Transfer, name, &loaders.ImageData{
		Width: 2, Height: 2, Pixels: []byte{
			c, c, c, 255, c, c, c, 255,
			c, c, c, 255, c, c, c, 255,
		},
	})
	require.NoError(t, err)
	return tex
}

func spirv() []byte {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code, 0x07230203)
	return code
}

func float32At(b []byte, offset int) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b[offset:]))
}

func TestRendererDrawsFrames(t *testing.T) {
	r := newHeadlessRenderer(t, 2)
	dev := r.HeadlessDevice()

	a := solidTexture(t, r, "a", 10)
	b := solidTexture(t, r, "b", 20)
	require.NoError(t, r.InitializeGlobalState([]*vulkan.Texture{a, b}))

	view, err := views.NewWorldView(r.Context, views.WorldViewConfig{
		RenderPass:     r.RenderPass(),
		GlobalLayout:   r.GlobalLayout(),
		VertexShader:   spirv(),
		FragmentShader: spirv(),
	})
	require.NoError(t, err)
	r.RegisterView(view)

	model, err := views.NewModel(r.Context, r.Transfer, views.ModelBuilder{
		Vertices: make([]views.Vertex, 3),
		Indices:  []uint32{0, 1, 2},
	})
	require.NoError(t, err)

	camera := components.NewCamera()
	camera.SetPosition(mgl32.Vec3{0, 0, 3})
	packet := &RenderPacket{
		DeltaTime: 1.0 / 60,
		Camera:    camera,
		Objects:   []*views.GameObject{views.NewGameObject(model)},
	}
	for n := 0; n < 5; n++ {
		require.NoError(t, r.DrawFrame(packet))
	}
	require.NoError(t, r.WaitIdle())
	assert.Equal(t, 5, dev.DrawCount())
	assert.LessOrEqual(t, dev.MaxOutstanding(), 2)

	// Frame 4 ran on slot 0.
	ubo, err := dev.ReadBuffer(r.FrameCycle().Slot(0).Uniform.Handle)
	require.NoError(t, err)
	want := camera.ProjectionView(r.FrameCycle().AspectRatio())
	assert.InDelta(t, want[0], float32At(ubo, 0), 1e-6)
	assert.InDelta(t, want[14], float32At(ubo, 14*4), 1e-6)
	assert.InDelta(t, r.LightDirection.Y(), float32At(ubo, 64+4), 1e-6)

	model.Destroy()
	r.ReleaseGlobalState()
	a.Destroy()
	b.Destroy()
	r.Shutdown()
	assert.Empty(t, dev.ValidationErrors())
}

func TestRendererRebindTextures(t *testing.T) {
	r := newHeadlessRenderer(t, 2)
	defer r.Shutdown()
	dev := r.HeadlessDevice()

	a := solidTexture(t, r, "a", 10)
	defer a.Destroy()
	b := solidTexture(t, r, "b", 20)
	defer b.Destroy()
	require.NoError(t, r.InitializeGlobalState([]*vulkan.Texture{a, b}))

	replacement := solidTexture(t, r, "a2", 30)
	defer replacement.Destroy()
	require.NoError(t, r.RebindTextures([]*vulkan.Texture{replacement, b}))
	for i := uint32(0); i < 2; i++ {
		writes := dev.DescriptorWrites(r.FrameCycle().Slot(i).GlobalSet)
		assert.Equal(t, replacement.Image.View, writes[1].ImageInfo[0].View)
		assert.Equal(t, b.Image.View, writes[1].ImageInfo[1].View)
		assert.Len(t, writes, 2, "the uniform binding is untouched")
	}

	assert.True(t, core.IsInvariantViolation(r.RebindTextures([]*vulkan.Texture{replacement})))
	assert.True(t, core.IsInvariantViolation(r.InitializeGlobalState([]*vulkan.Texture{a, b})))
}

func TestRendererGlobalStateTextureCount(t *testing.T) {
	r := newHeadlessRenderer(t, 2)
	defer r.Shutdown()
	a := solidTexture(t, r, "a", 10)
	defer a.Destroy()
	b := solidTexture(t, r, "b", 20)
	defer b.Destroy()
	c := solidTexture(t, r, "c", 30)
	defer c.Destroy()

	assert.True(t, core.IsInvariantViolation(r.InitializeGlobalState([]*vulkan.Texture{a})))
	assert.True(t, core.IsInvariantViolation(r.InitializeGlobalState([]*vulkan.Texture{a, b, c})))
	assert.Nil(t, r.GlobalLayout(), "a rejected texture list builds nothing")

	require.NoError(t, r.InitializeGlobalState([]*vulkan.Texture{a, b}))
	binding := r.GlobalLayout().Bindings[1]
	assert.Equal(t, uint32(GlobalTextureCount), binding.Count)
	frames := r.FrameCycle().FramesInFlight()
	// Both sets were taken out of a pool declared with one sampler array per frame.
	assert.Equal(t, GlobalTextureCount*frames-frames, r.globalPool.Remaining(vk.DescriptorTypeCombinedImageSampler))
}

func TestGlobalTextureCountMatchesWorldShader(t *testing.T) {
	source, err := os.ReadFile(filepath.Join("..", "..", "shaders", "world.frag"))
	require.NoError(t, err)
	match := regexp.MustCompile(`binding\s*=\s*1\)\s*uniform\s+sampler2D\s+\w+\[(\d+)\]`).FindSubmatch(source)
	require.NotNil(t, match, "world.frag declares no sampler array at binding 1")
	n, err := strconv.Atoi(string(match[1]))
	require.NoError(t, err)
	assert.Equal(t, GlobalTextureCount, n)
}

func TestRendererRequiresGlobalState(t *testing.T) {
	r := newHeadlessRenderer(t, 1)
	defer r.Shutdown()
	assert.True(t, core.IsInvariantViolation(r.DrawFrame(&RenderPacket{})))
	assert.True(t, core.IsInvariantViolation(r.InitializeGlobalState(nil)))
}

func TestRendererSkipsMinimizedFrames(t *testing.T) {
	r := newHeadlessRenderer(t, 2)
	defer r.Shutdown()
	a := solidTexture(t, r, "a", 10)
	defer a.Destroy()
	b := solidTexture(t, r, "b", 20)
	defer b.Destroy()
	require.NoError(t, r.InitializeGlobalState([]*vulkan.Texture{a, b}))

	r.OnResize(0, 0)
	require.NoError(t, r.DrawFrame(&RenderPacket{}))
	assert.Equal(t, uint32(0), r.FrameCycle().FrameIndex())

	r.OnResize(640, 480)
	require.NoError(t, r.DrawFrame(&RenderPacket{}))
	assert.Equal(t, uint32(1), r.FrameCycle().FrameIndex())
	assert.Equal(t, vulkan.Extent2D{Width: 640, Height: 480}, r.FrameCycle().Extent())
}
