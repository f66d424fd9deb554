package systems

import (
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/saeedelsayed/vulkan-playground/engine/assets"
	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
	"github.com/saeedelsayed/vulkan-playground/engine/renderer/vulkan"
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
}

// TextureReplaceFunc receives the full texture list, in binding order, after
// one of them has been reloaded. Returning an error rejects the replacement.
type TextureReplaceFunc func(textures []*vulkan.Texture) error

/**
 * @brief Keeps the textures bound by the global descriptor sets. Files are
 * decoded on the job system; uploads happen on the calling goroutine.
 */
type TextureSystem struct {
	config *TextureSystemConfig

	context  *vulkan.VulkanContext
	transfer *vulkan.TransferEngine

	jobSystem    *JobSystem
	assetManager *assets.AssetManager

	textures  []*vulkan.Texture
	lookup    map[string]int
	onReplace TextureReplaceFunc
}

func NewTextureSystem(config *TextureSystemConfig, js *JobSystem, am *assets.AssetManager, context *vulkan.VulkanContext, transfer *vulkan.TransferEngine) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := errors.New("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &TextureSystem{
		config:       config,
		context:      context,
		transfer:     transfer,
		jobSystem:    js,
		assetManager: am,
		lookup:       make(map[string]int),
	}, nil
}

// SetReplaceHook installs the function that rebinds descriptor sets after a
// reload.
func (ts *TextureSystem) SetReplaceHook(fn TextureReplaceFunc) {
	ts.onReplace = fn
}

func (ts *TextureSystem) decode(path string) (*loaders.ImageData, error) {
	res, err := ts.assetManager.LoadAsset(path)
	if err != nil {
		return nil, err
	}
	data, ok := res.Data.(*loaders.ImageData)
	if !ok {
		return nil, core.Fatalf(core.ErrTextureDecode, "%s is not an image", path)
	}
	return data, nil
}

/**
 * @brief Decodes every path in parallel and uploads the results in order.
 * Nothing is registered unless all of them succeed.
 */
func (ts *TextureSystem) LoadTextures(files []string) ([]*vulkan.Texture, error) {
	if uint32(len(ts.textures)+len(files)) > ts.config.MaxTextureCount {
		return nil, errors.Newf("loading %d textures exceeds the maximum of %d", len(files), ts.config.MaxTextureCount)
	}
	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = filepath.Clean(file)
		if _, ok := ts.lookup[paths[i]]; ok {
			return nil, errors.Newf("texture %s is already loaded", paths[i])
		}
	}

	decoded := make([]*loaders.ImageData, len(paths))
	var mu sync.Mutex
	jobs := make([]JobTask, len(paths))
	for i, path := range paths {
		i, path := i, path
		jobs[i] = JobTask{
			Name: "decode " + filepath.Base(path),
			OnStart: func() (interface{}, error) {
				return ts.decode(path)
			},
			OnComplete: func(result interface{}) {
				mu.Lock()
				decoded[i] = result.(*loaders.ImageData)
				mu.Unlock()
			},
		}
	}
	if err := ts.jobSystem.RunAll(jobs); err != nil {
		return nil, err
	}

	created := make([]*vulkan.Texture, 0, len(paths))
	for i, path := range paths {
		tex, err := vulkan.NewTextureFromImage(ts.context, ts.transfer, path, decoded[i])
		if err != nil {
			for _, t := range created {
				t.Destroy()
			}
			return nil, err
		}
		created = append(created, tex)
	}
	for i, tex := range created {
		ts.lookup[paths[i]] = len(ts.textures)
		ts.textures = append(ts.textures, tex)
	}
	return created, nil
}

// Acquire returns the texture loaded from path.
func (ts *TextureSystem) Acquire(path string) (*vulkan.Texture, error) {
	idx, ok := ts.lookup[filepath.Clean(path)]
	if !ok {
		return nil, errors.Newf("texture %s is not loaded", path)
	}
	return ts.textures[idx], nil
}

// Textures returns the loaded textures in load order.
func (ts *TextureSystem) Textures() []*vulkan.Texture {
	return append([]*vulkan.Texture(nil), ts.textures...)
}

func (ts *TextureSystem) Count() int {
	return len(ts.textures)
}

/**
 * @brief Replaces a loaded texture with the current contents of its file.
 * The device is idled first so no frame in flight still samples the old
 * image. On any failure the old texture stays bound.
 * @return true if the path belongs to a loaded texture and was replaced.
 */
func (ts *TextureSystem) Reload(path string) (bool, error) {
	path = filepath.Clean(path)
	idx, ok := ts.lookup[path]
	if !ok {
		return false, nil
	}

	data, err := ts.decode(path)
	if err != nil {
		core.LogWarn("keeping previous %s: %s", path, err)
		return false, err
	}
	if err := ts.context.WaitIdle(); err != nil {
		return false, err
	}
	tex, err := vulkan.NewTextureFromImage(ts.context, ts.transfer, path, data)
	if err != nil {
		core.LogWarn("keeping previous %s: %s", path, err)
		return false, err
	}

	next := ts.Textures()
	next[idx] = tex
	if ts.onReplace != nil {
		if err := ts.onReplace(next); err != nil {
			core.LogWarn("keeping previous %s: %s", path, err)
			tex.Destroy()
			return false, err
		}
	}
	old := ts.textures[idx]
	ts.textures = next
	old.Destroy()
	core.LogInfo("texture %s reloaded", path)
	return true, nil
}

// Shutdown destroys every texture. The device must be idle.
func (ts *TextureSystem) Shutdown() error {
	for _, t := range ts.textures {
		t.Destroy()
	}
	ts.textures = nil
	ts.lookup = make(map[string]int)
	return nil
}
