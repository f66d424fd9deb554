package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

func TestLookupLayoutTransition(t *testing.T) {
	tr, err := LookupLayoutTransition(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	require.NoError(t, err)
	assert.Equal(t, vk.AccessFlags(0), tr.SrcAccess)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), tr.DstAccess)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), tr.SrcStage)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), tr.DstStage)

	tr, err = LookupLayoutTransition(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	require.NoError(t, err)
	assert.Equal(t, vk.AccessFlags(vk.AccessTransferWriteBit), tr.SrcAccess)
	assert.Equal(t, vk.AccessFlags(vk.AccessShaderReadBit), tr.DstAccess)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTransferBit), tr.SrcStage)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit), tr.DstStage)
}

func TestLookupLayoutTransitionUnsupported(t *testing.T) {
	pairs := [][2]vk.ImageLayout{
		{vk.ImageLayoutUndefined, vk.ImageLayoutShaderReadOnlyOptimal},
		{vk.ImageLayoutShaderReadOnlyOptimal, vk.ImageLayoutTransferDstOptimal},
		{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferDstOptimal},
		{vk.ImageLayoutUndefined, vk.ImageLayoutPresentSrc},
	}
	for _, p := range pairs {
		_, err := LookupLayoutTransition(p[0], p[1])
		require.Error(t, err)
		assert.True(t, core.IsFatal(err))
		assert.True(t, errors.Is(err, core.ErrUnsupportedLayoutTransition))
	}
}

func TestUnsupportedTransitionRecordsNothing(t *testing.T) {
	dev, ctx := newTestContext(t)
	img, err := NewVulkanImage(ctx, ImageCreateInfo{
		Width:  2,
		Height: 2,
		Format: TextureFormat,
		Tiling: vk.ImageTilingOptimal,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageSampledBit),
	}, MemoryDeviceLocal)
	require.NoError(t, err)
	defer img.Destroy()

	dev.ResetOps()
	err = NewTransferEngine(ctx).TransitionImageLayout(img, TextureFormat, vk.ImageLayoutUndefined, vk.ImageLayoutShaderReadOnlyOptimal)
	assert.True(t, errors.Is(err, core.ErrUnsupportedLayoutTransition))
	assert.Empty(t, dev.Ops())
	assert.Equal(t, vk.ImageLayoutUndefined, img.Layout)
}

func TestCopyBufferToBufferIsBlocking(t *testing.T) {
	dev, ctx := newTestContext(t)
	transfer := NewTransferEngine(ctx)
	baseline := dev.LiveObjects()

	staging, err := transfer.CreateStagingBuffer(16)
	require.NoError(t, err)
	assert.True(t, staging.Allocation.HostCoherent())
	require.NoError(t, staging.WriteToBuffer([]byte("vertex data"), 0))

	dst, err := NewVulkanBuffer(ctx, 16, 1,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit|vk.BufferUsageVertexBufferBit), MemoryDeviceLocal, 0)
	require.NoError(t, err)

	require.NoError(t, transfer.CopyBufferToBuffer(staging, dst, 16))
	assert.Equal(t, 0, dev.Outstanding(), "the copy completed before returning")

	got, err := dev.ReadBuffer(dst.Handle)
	require.NoError(t, err)
	assert.Equal(t, []byte("vertex data"), got[:11])

	assert.True(t, core.IsInvariantViolation(transfer.CopyBufferToBuffer(staging, dst, 32)))

	staging.Destroy()
	dst.Destroy()
	assert.Equal(t, baseline, dev.LiveObjects(), "one-shot command buffers are freed")
	assert.Empty(t, dev.ValidationErrors())
}

func TestCopyBufferToImageRequiresTransferLayout(t *testing.T) {
	_, ctx := newTestContext(t)
	transfer := NewTransferEngine(ctx)

	staging, err := transfer.CreateStagingBuffer(16)
	require.NoError(t, err)
	defer staging.Destroy()
	img, err := NewVulkanImage(ctx, ImageCreateInfo{
		Width:  2,
		Height: 2,
		Format: TextureFormat,
		Tiling: vk.ImageTilingOptimal,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
	}, MemoryDeviceLocal)
	require.NoError(t, err)
	defer img.Destroy()

	assert.True(t, core.IsInvariantViolation(transfer.CopyBufferToImage(staging, img, 2, 2)))
}
