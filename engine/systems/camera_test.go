package systems

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saeedelsayed/vulkan-playground/engine/renderer/components"
)

func TestCameraSystemAcquireRelease(t *testing.T) {
	_, err := NewCameraSystem(&CameraSystemConfig{})
	require.Error(t, err)

	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 1})
	require.NoError(t, err)

	def, err := cs.Acquire(components.DEFAULT_CAMERA_NAME)
	require.NoError(t, err)
	assert.Same(t, cs.GetDefault(), def)

	orbit, err := cs.Acquire("orbit")
	require.NoError(t, err)
	again, err := cs.Acquire("orbit")
	require.NoError(t, err)
	assert.Same(t, orbit, again)

	_, err = cs.Acquire("second")
	assert.Error(t, err, "only one named camera fits")

	orbit.SetPosition(mgl32.Vec3{1, 2, 3})
	cs.Release("orbit")
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, orbit.GetPosition(), "still referenced")
	cs.Release("orbit")
	assert.Equal(t, mgl32.Vec3{}, orbit.GetPosition())

	fresh, err := cs.Acquire("second")
	require.NoError(t, err)
	assert.NotSame(t, orbit, fresh)

	cs.Release(components.DEFAULT_CAMERA_NAME)
	cs.Release("never-acquired")
	require.NoError(t, cs.Shutdown())
}
