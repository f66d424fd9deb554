package views

import (
	"encoding/binary"
	gomath "math"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/vulkan"
)

// Model and normal matrix, both mat4.
const pushConstantSize = 128

var nextObjectID atomic.Uint32

type TransformComponent struct {
	Translation mgl32.Vec3
	Scale       mgl32.Vec3
	// Euler angles in radians, applied in Y, X, Z order.
	Rotation mgl32.Vec3
}

// Mat4 is translate * Ry * Rx * Rz * scale.
func (t TransformComponent) Mat4() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation.X(), t.Translation.Y(), t.Translation.Z()).
		Mul4(mgl32.HomogRotate3DY(t.Rotation.Y())).
		Mul4(mgl32.HomogRotate3DX(t.Rotation.X())).
		Mul4(mgl32.HomogRotate3DZ(t.Rotation.Z())).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// NormalMatrix is the inverse transpose of the upper 3x3 of Mat4.
func (t TransformComponent) NormalMatrix() mgl32.Mat4 {
	return t.Mat4().Mat3().Inv().Transpose().Mat4()
}

type GameObject struct {
	ID        uint32
	Model     *Model
	Transform TransformComponent
}

func NewGameObject(model *Model) *GameObject {
	return &GameObject{
		ID:    nextObjectID.Add(1),
		Model: model,
		Transform: TransformComponent{
			Scale: mgl32.Vec3{1, 1, 1},
		},
	}
}

type WorldViewConfig struct {
	RenderPass     vulkan.RenderPassHandle
	GlobalLayout   *vulkan.DescriptorSetLayout
	VertexShader   []byte
	FragmentShader []byte
}

/**
 * @brief Draws textured game objects with the global descriptor set at set 0.
 */
type WorldView struct {
	pipeline *vulkan.VulkanPipeline
}

func NewWorldView(context *vulkan.VulkanContext, config WorldViewConfig) (*WorldView, error) {
	pipeline, err := vulkan.NewGraphicsPipeline(context, &vulkan.VulkanPipelineConfig{
		RenderPass:           config.RenderPass,
		Stride:               vertexStride,
		Attributes:           VertexAttributes(),
		DescriptorSetLayouts: []*vulkan.DescriptorSetLayout{config.GlobalLayout},
		VertexShader:         config.VertexShader,
		FragmentShader:       config.FragmentShader,
		PushConstantSize:     pushConstantSize,
		PushConstantStages:   vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating world view")
	}
	core.LogDebug("world view created")
	return &WorldView{pipeline: pipeline}, nil
}

// Render records one draw per object into the frame's command buffer.
func (v *WorldView) Render(info *vulkan.FrameInfo, objects []*GameObject) error {
	if len(objects) == 0 {
		return nil
	}
	cb := info.CommandBuffer
	if err := v.pipeline.Bind(cb); err != nil {
		return err
	}
	if err := v.pipeline.BindDescriptorSets(cb, 0, info.GlobalDescriptorSet); err != nil {
		return err
	}
	for _, obj := range objects {
		if obj.Model == nil {
			continue
		}
		if err := v.pipeline.PushConstants(cb, pushConstants(obj.Transform)); err != nil {
			return err
		}
		if err := obj.Model.Bind(cb); err != nil {
			return err
		}
		obj.Model.Draw(cb)
	}
	return nil
}

func (v *WorldView) Destroy() {
	if v.pipeline != nil {
		v.pipeline.Destroy()
		v.pipeline = nil
	}
}

func pushConstants(t TransformComponent) []byte {
	out := make([]byte, pushConstantSize)
	model, normal := t.Mat4(), t.NormalMatrix()
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], gomath.Float32bits(model[i]))
		binary.LittleEndian.PutUint32(out[64+i*4:], gomath.Float32bits(normal[i]))
	}
	return out
}
