package systems

import (
	"github.com/cockroachdb/errors"

	"github.com/saeedelsayed/vulkan-playground/engine/assets"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer"
)

type SystemManager struct {
	JobSystem     *JobSystem
	TextureSystem *TextureSystem
	CameraSystem  *CameraSystem
}

func NewSystemManager(workers int, r *renderer.Renderer, am *assets.AssetManager) (*SystemManager, error) {
	js, err := NewJobSystem(workers, workers*2)
	if err != nil {
		return nil, err
	}
	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 16,
	})
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: 64,
	}, js, am, r.Context, r.Transfer)
	if err != nil {
		_ = js.Shutdown()
		return nil, err
	}
	ts.SetReplaceHook(r.RebindTextures)

	return &SystemManager{
		JobSystem:     js,
		TextureSystem: ts,
		CameraSystem:  cs,
	}, nil
}

// Shutdown releases the textures, so the renderer must be idle and its
// global state released first.
func (sm *SystemManager) Shutdown() error {
	var errs error
	if err := sm.TextureSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.CameraSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	return errs
}
