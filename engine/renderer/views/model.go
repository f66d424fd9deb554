package views

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/saeedelsayed/vulkan-playground/engine/renderer/vulkan"
)

// Vertex is the interleaved layout consumed by the world shaders.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

const vertexStride = 44

// VertexAttributes describes Vertex at binding 0.
func VertexAttributes() []vulkan.VertexAttribute {
	return []vulkan.VertexAttribute{
		{Location: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Format: vk.FormatR32g32b32Sfloat, Offset: 24},
		{Location: 3, Format: vk.FormatR32g32Sfloat, Offset: 36},
	}
}

type ModelBuilder struct {
	Vertices []Vertex
	Indices  []uint32
}

/**
 * @brief Device local vertex and index buffers, filled once through staging.
 */
type Model struct {
	context *vulkan.VulkanContext

	VertexBuffer *vulkan.VulkanBuffer
	IndexBuffer  *vulkan.VulkanBuffer
	VertexCount  uint32
	IndexCount   uint32
}

func NewModel(context *vulkan.VulkanContext, transfer *vulkan.TransferEngine, builder ModelBuilder) (*Model, error) {
	if len(builder.Vertices) == 0 || len(builder.Indices) < 3 {
		return nil, errors.AssertionFailedf("model needs vertices and at least 3 indices, got %d and %d", len(builder.Vertices), len(builder.Indices))
	}
	m := &Model{
		context:     context,
		VertexCount: uint32(len(builder.Vertices)),
		IndexCount:  uint32(len(builder.Indices)),
	}
	var err error
	m.VertexBuffer, err = uploadBuffer(context, transfer, builder.Vertices, vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, errors.Wrap(err, "uploading vertices")
	}
	m.IndexBuffer, err = uploadBuffer(context, transfer, builder.Indices, vk.BufferUsageIndexBufferBit)
	if err != nil {
		m.Destroy()
		return nil, errors.Wrap(err, "uploading indices")
	}
	return m, nil
}

func uploadBuffer(context *vulkan.VulkanContext, transfer *vulkan.TransferEngine, data interface{}, usage vk.BufferUsageFlagBits) (*vulkan.VulkanBuffer, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return nil, errors.Wrap(err, "encoding buffer data")
	}
	size := uint64(buf.Len())

	staging, err := transfer.CreateStagingBuffer(size)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.WriteToBuffer(buf.Bytes(), 0); err != nil {
		return nil, err
	}

	dst, err := vulkan.NewVulkanBuffer(
		context,
		size,
		1,
		vk.BufferUsageFlags(usage|vk.BufferUsageTransferDstBit),
		vulkan.MemoryDeviceLocal,
		0,
	)
	if err != nil {
		return nil, err
	}
	if err := transfer.CopyBufferToBuffer(staging, dst, size); err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

func (m *Model) Bind(commandBuffer *vulkan.VulkanCommandBuffer) error {
	if !commandBuffer.Recording() {
		return errors.AssertionFailedf("bind model on command buffer in state %s", commandBuffer.State)
	}
	m.context.Device.CmdBindVertexBuffer(commandBuffer.Handle, m.VertexBuffer.Handle, 0)
	m.context.Device.CmdBindIndexBuffer(commandBuffer.Handle, m.IndexBuffer.Handle, 0)
	return nil
}

func (m *Model) Draw(commandBuffer *vulkan.VulkanCommandBuffer) {
	m.context.Device.CmdDrawIndexed(commandBuffer.Handle, m.IndexCount)
}

func (m *Model) Destroy() {
	if m.VertexBuffer != nil {
		m.VertexBuffer.Destroy()
		m.VertexBuffer = nil
	}
	if m.IndexBuffer != nil {
		m.IndexBuffer.Destroy()
		m.IndexBuffer = nil
	}
}
