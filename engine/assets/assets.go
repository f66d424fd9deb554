package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/saeedelsayed/vulkan-playground/engine/assets/loaders"
	"github.com/saeedelsayed/vulkan-playground/engine/core"
)

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Indexes the asset directories, loads assets through the registered
 * loaders and reports changed files on the event bus.
 */
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	bus      *core.EventBus
	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	running  bool
	isClosed bool
}

func NewAssetManager(bus *core.EventBus) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}

	am := &AssetManager{
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[loaders.ResourceType]Loader),
		bus:      bus,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	am.registerLoader(loaders.ResourceTypeShader, &loaders.BinaryLoader{})
	am.registerLoader(loaders.ResourceTypeImage, &loaders.ImageLoader{})
	return am, nil
}

// Initialize indexes every file under the given directories. With watch set,
// changes to indexed files are reported until Shutdown. Call it once.
func (am *AssetManager) Initialize(watch bool, dirs ...string) error {
	for _, dir := range dirs {
		if err := am.watchRecursive(filepath.Clean(dir), watch); err != nil {
			return errors.Wrapf(err, "indexing %s", dir)
		}
	}
	if watch {
		am.running = true
		go am.start()
	}
	core.LogDebug("asset manager indexed %d files", am.Count())
	return nil
}

func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// LoadAsset loads the file at path with the loader for its type.
func (am *AssetManager) LoadAsset(path string) (*loaders.Resource, error) {
	path = filepath.Clean(path)
	assetType := determineAssetType(path)
	loader, ok := am.loaders[assetType]
	if !ok {
		return nil, errors.Newf("no loader registered for %s", path)
	}

	res, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: assetType, LastLoaded: time.Now()}
	am.mutex.Unlock()
	return res, nil
}

func (am *AssetManager) UnloadAsset(res *loaders.Resource) error {
	loader, ok := am.loaders[res.Type]
	if !ok {
		return errors.Newf("no loader registered for resource type %s", res.Type)
	}
	return loader.Unload(res)
}

// Lookup returns the index entry of an asset.
func (am *AssetManager) Lookup(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.Clean(path)]
	return info, ok
}

func (am *AssetManager) Count() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("file watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	name := filepath.Clean(e.Name)
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(name); err == nil && s.IsDir() {
			if err := am.watchRecursive(name, true); err != nil {
				core.LogWarn("watching new directory %s: %s", name, err)
			}
			return
		}
	}
	// Can't stat a deleted path, so drop it from the index either way.
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		am.removeAsset(name)
		return
	}
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	assetType := am.indexFile(name)
	if assetType == loaders.ResourceTypeImage && am.bus != nil {
		core.LogDebug("texture %s changed on disk", name)
		am.bus.Fire(core.EVENT_CODE_TEXTURE_CHANGED, am, core.EventContext{Path: name})
	}
}

// watchRecursive indexes the files below path and, if watch is set, adds
// every directory to the watch list.
func (am *AssetManager) watchRecursive(path string, watch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if !watch {
				return nil
			}
			return am.fsnotify.Add(walkPath)
		}
		am.indexFile(walkPath)
		return nil
	})
}

func (am *AssetManager) indexFile(path string) loaders.ResourceType {
	assetType := determineAssetType(path)
	if assetType == loaders.ResourceTypeNone {
		return assetType
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	am.assets[path] = info
	return assetType
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
}

// Shutdown stops the watcher goroutine and closes the watcher.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	if am.running {
		<-am.stopped
	}
	return am.fsnotify.Close()
}

func determineAssetType(path string) loaders.ResourceType {
	if loaders.IsImagePath(path) {
		return loaders.ResourceTypeImage
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return loaders.ResourceTypeShader
	default:
		return loaders.ResourceTypeNone
	}
}
