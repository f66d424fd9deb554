package renderer

import (
	"encoding/binary"
	gomath "math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/components"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/views"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/vulkan"
)

// GlobalUniformSize is the std140 size of the global uniform block:
// mat4 projectionView followed by vec3 lightDirection.
const GlobalUniformSize = 80

// GlobalTextureCount is the length of the sampler array at binding 1. It has
// to match `textures[]` in shaders/world.frag.
const GlobalTextureCount = 2

type Config struct {
	ApplicationName string
	Width           uint32
	Height          uint32
	FramesInFlight  uint32
	Headless        bool
	Validation      bool
	VSync           bool
}

type RenderView interface {
	Render(info *vulkan.FrameInfo, objects []*views.GameObject) error
	Destroy()
}

type RenderPacket struct {
	DeltaTime float64
	Camera    *components.Camera
	Objects   []*views.GameObject
}

/**
 * @brief Owns the device, the frame cycle and the global binding state:
 * one uniform buffer and one descriptor set per frame in flight, sharing a
 * single layout and pool.
 */
type Renderer struct {
	config  Config
	backend *backend

	Context  *vulkan.VulkanContext
	Transfer *vulkan.TransferEngine

	swapchain vulkan.Swapchain
	frames    *vulkan.FrameCycle

	globalLayout *vulkan.DescriptorSetLayout
	globalPool   *vulkan.DescriptorPool
	uniforms     *vulkan.FrameUniforms
	globalSets   []vulkan.DescriptorSetHandle

	views          []RenderView
	LightDirection mgl32.Vec3
}

// New creates the device, swapchain and frame cycle. A nil surface or
// config.Headless selects the software device.
func New(config Config, surface Surface) (*Renderer, error) {
	b, err := newBackend(config, surface)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		config:         config,
		backend:        b,
		LightDirection: mgl32.Vec3{1, -3, 1}.Normalize(),
	}

	r.Context, err = vulkan.NewVulkanContext(b.device, b.queueFamily)
	if err != nil {
		r.Shutdown()
		return nil, err
	}
	r.Transfer = vulkan.NewTransferEngine(r.Context)

	width, height := config.Width, config.Height
	if surface != nil && !config.Headless {
		width, height = surface.FramebufferSize()
	}
	r.swapchain, err = b.newSwapchain(r.Context, width, height, config.VSync)
	if err != nil {
		r.Shutdown()
		return nil, errors.Wrap(err, "creating swapchain")
	}
	r.frames, err = vulkan.NewFrameCycle(r.Context, r.swapchain, config.FramesInFlight)
	if err != nil {
		r.Shutdown()
		return nil, err
	}
	core.LogInfo("%s renderer initialized, %d frames in flight", b.rendererType, config.FramesInFlight)
	return r, nil
}

/**
 * @brief Builds the global layout, pool, uniform buffers and one set per
 * frame slot. Binding 0 is the global uniform block, binding 1 an array of
 * the given textures.
 */
func (r *Renderer) InitializeGlobalState(textures []*vulkan.Texture) error {
	if r.globalLayout != nil {
		return errors.AssertionFailedf("global state initialized twice")
	}
	if len(textures) != GlobalTextureCount {
		return errors.AssertionFailedf("global state needs %d textures, got %d", GlobalTextureCount, len(textures))
	}
	frames := r.frames.FramesInFlight()

	var err error
	r.globalLayout, err = vulkan.NewDescriptorSetLayoutBuilder(r.Context).
		AddBinding(0, vk.DescriptorTypeUniformBuffer, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), 1).
		AddBinding(1, vk.DescriptorTypeCombinedImageSampler, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), GlobalTextureCount).
		Build()
	if err != nil {
		return err
	}
	// Sizes are in descriptors: every set takes the whole sampler array.
	r.globalPool, err = vulkan.NewDescriptorPoolBuilder(r.Context).
		SetMaxSets(frames).
		AddPoolSize(vk.DescriptorTypeUniformBuffer, frames).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, GlobalTextureCount*frames).
		Build()
	if err != nil {
		return err
	}
	r.uniforms, err = vulkan.NewFrameUniforms(r.Context, GlobalUniformSize, frames)
	if err != nil {
		return err
	}

	r.globalSets = make([]vulkan.DescriptorSetHandle, frames)
	for i := uint32(0); i < frames; i++ {
		info, err := r.uniforms.DescriptorInfo(i)
		if err != nil {
			return err
		}
		r.globalSets[i], err = vulkan.NewDescriptorWriter(r.globalLayout, r.globalPool).
			WriteBuffer(0, info).
			WriteTextures(1, textures...).
			Build()
		if err != nil {
			return errors.Wrapf(err, "building global descriptor set %d", i)
		}
	}
	return r.frames.BindGlobalState(r.uniforms, r.globalSets)
}

/**
 * @brief Points every global set at a new list of textures. No frame may be
 * in flight; callers wait for device idle first.
 */
func (r *Renderer) RebindTextures(textures []*vulkan.Texture) error {
	if r.globalLayout == nil {
		return errors.AssertionFailedf("rebind before the global state exists")
	}
	if len(textures) != GlobalTextureCount {
		return errors.AssertionFailedf("rebind of %d textures, layout holds %d", len(textures), GlobalTextureCount)
	}
	if r.frames.InProgress() {
		return errors.AssertionFailedf("rebind while a frame is recording")
	}
	for i, set := range r.globalSets {
		if err := vulkan.NewDescriptorWriter(r.globalLayout, r.globalPool).WriteTextures(1, textures...).Overwrite(set); err != nil {
			return errors.Wrapf(err, "rewriting global descriptor set %d", i)
		}
	}
	core.LogDebug("%d global descriptor sets rewritten", len(r.globalSets))
	return nil
}

func (r *Renderer) GlobalLayout() *vulkan.DescriptorSetLayout {
	return r.globalLayout
}

func (r *Renderer) RenderPass() vulkan.RenderPassHandle {
	return r.frames.RenderPass()
}

func (r *Renderer) FrameCycle() *vulkan.FrameCycle {
	return r.frames
}

func (r *Renderer) Type() RendererType {
	return r.backend.rendererType
}

// HeadlessDevice is nil unless the renderer runs on the software device.
func (r *Renderer) HeadlessDevice() *vulkan.HeadlessDevice {
	return r.backend.headlessDevice
}

func (r *Renderer) RegisterView(view RenderView) {
	r.views = append(r.views, view)
}

func (r *Renderer) OnResize(width, height uint32) {
	r.frames.Resize(width, height)
}

func (r *Renderer) globalUniforms(camera *components.Camera) []byte {
	out := make([]byte, GlobalUniformSize)
	projectionView := mgl32.Ident4()
	if camera != nil {
		projectionView = camera.ProjectionView(r.frames.AspectRatio())
	}
	for i, v := range projectionView {
		binary.LittleEndian.PutUint32(out[i*4:], gomath.Float32bits(v))
	}
	for i, v := range r.LightDirection {
		binary.LittleEndian.PutUint32(out[64+i*4:], gomath.Float32bits(v))
	}
	return out
}

/**
 * @brief Runs one iteration of the frame cycle. A skipped frame (stale
 * swapchain, zero sized window) returns nil. Any returned error is fatal.
 */
func (r *Renderer) DrawFrame(packet *RenderPacket) error {
	if r.uniforms == nil {
		return errors.AssertionFailedf("draw before the global state exists")
	}
	cb, err := r.frames.BeginFrame()
	if err != nil {
		return errors.Wrap(err, "beginning frame")
	}
	if cb == nil {
		return nil
	}

	slot := r.frames.CurrentSlot()
	if err := r.uniforms.Write(slot.Index, r.globalUniforms(packet.Camera)); err != nil {
		return err
	}
	if err := r.uniforms.Flush(slot.Index); err != nil {
		return err
	}

	if err := r.frames.BeginSwapchainRenderPass(cb); err != nil {
		return err
	}
	info := &vulkan.FrameInfo{
		FrameIndex:          slot.Index,
		FrameTime:           float32(packet.DeltaTime),
		CommandBuffer:       cb,
		Camera:              packet.Camera,
		GlobalDescriptorSet: slot.GlobalSet,
	}
	for _, view := range r.views {
		if err := view.Render(info, packet.Objects); err != nil {
			return errors.Wrap(err, "rendering view")
		}
	}
	if err := r.frames.EndSwapchainRenderPass(cb); err != nil {
		return err
	}
	if err := r.frames.EndFrame(); err != nil {
		return errors.Wrap(err, "ending frame")
	}
	return nil
}

func (r *Renderer) WaitIdle() error {
	if r.Context == nil {
		return nil
	}
	return r.Context.WaitIdle()
}

/**
 * @brief Destroys views, global sets, pool, layout and uniform buffers.
 * The device must be idle.
 */
func (r *Renderer) ReleaseGlobalState() {
	for i := len(r.views) - 1; i >= 0; i-- {
		r.views[i].Destroy()
	}
	r.views = nil
	if r.globalPool != nil {
		r.globalPool.Destroy()
		r.globalPool = nil
	}
	r.globalSets = nil
	if r.globalLayout != nil {
		r.globalLayout.Destroy()
		r.globalLayout = nil
	}
	if r.uniforms != nil {
		r.uniforms.Destroy()
		r.uniforms = nil
	}
}

// Shutdown drains the device and destroys the frame cycle, the swapchain and
// the device. Safe to call on a partially constructed renderer.
func (r *Renderer) Shutdown() {
	if err := r.WaitIdle(); err != nil {
		core.LogError("waiting for device idle on shutdown: %s", err)
	}
	r.ReleaseGlobalState()
	if r.frames != nil {
		r.frames.Destroy()
		r.frames = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
	r.backend.destroy()
	core.LogInfo("renderer shut down")
}
