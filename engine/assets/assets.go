package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/tessera/engine/assets/loaders"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/systems"
)

// ShaderDir is where compiled SPIR-V modules live, relative to the assets directory.
const ShaderDir = "shaders"

type AssetInfo struct {
	Path       string
	Type       AssetType
	LastLoaded time.Time
}

/**
 * @brief Indexes the assets directory, serves shader binaries and watches
 * the configuration file and the shaders for changes. Changes are posted to
 * the event bus and delivered on the main loop.
 */
type AssetManager struct {
	dir        string
	configPath string
	bus        *core.EventBus

	assets  map[string]AssetInfo
	loaders map[AssetType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager(bus *core.EventBus) (*AssetManager, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &AssetManager{
		bus:      bus,
		assets:   make(map[string]AssetInfo),
		loaders:  make(map[AssetType]Loader),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
	}, nil
}

func (am *AssetManager) Initialize(assetsDir string) error {
	dir, err := filepath.Abs(assetsDir)
	if err != nil {
		return err
	}
	am.dir = dir

	// Register loaders
	am.registerLoader(AssetTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(AssetTypeConfig, &loaders.BinaryLoader{})

	if _, err := os.Stat(dir); err != nil {
		return core.ConfigurationError("assets.Initialize", fmt.Errorf("assets directory: %w", err))
	}
	if err := am.addRecursive(dir); err != nil {
		return err
	}

	am.wg.Add(1)
	go am.start()
	return nil
}

// WatchConfig reports changes of the configuration file at path. The parent
// directory is watched since editors often replace files instead of writing them.
func (am *AssetManager) WatchConfig(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	am.mutex.Lock()
	am.configPath = abs
	am.mutex.Unlock()
	return am.add(filepath.Dir(abs))
}

// Shader implements the shader source of the Vulkan binding.
func (am *AssetManager) Shader(name string) ([]byte, error) {
	res, err := am.LoadAsset(filepath.Join(ShaderDir, name), AssetTypeShader)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ValidateShaders loads every indexed SPIR-V module on the job system so a
// broken binary is reported before any pipeline is built.
func (am *AssetManager) ValidateShaders(js *systems.JobSystem) error {
	am.mutex.RLock()
	var jobs []systems.Job
	for path, info := range am.assets {
		if info.Type != AssetTypeShader {
			continue
		}
		path := path
		jobs = append(jobs, systems.Job{
			Name: filepath.Base(path),
			Run: func() error {
				_, err := am.LoadAsset(path, AssetTypeShader)
				return err
			},
		})
	}
	am.mutex.RUnlock()

	if err := js.RunAll(jobs); err != nil {
		return core.ConfigurationError("assets.ValidateShaders", err)
	}
	core.LogDebug("%d shader modules validated", len(jobs))
	return nil
}

// LoadAsset reads name, relative to the assets directory, with the loader of assetType.
func (am *AssetManager) LoadAsset(name string, assetType AssetType) (*loaders.Resource, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(am.dir, name)
	}

	am.mutex.RLock()
	loader, loaderExists := am.loaders[assetType]
	am.mutex.RUnlock()
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %d", assetType)
	}

	res, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{
		Path:       path,
		Type:       assetType,
		LastLoaded: time.Now(),
	}
	am.mutex.Unlock()
	return res, nil
}

func (am *AssetManager) Asset(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	return am.fsnotify.Close()
}

// Add starts watching the named file or directory (non-recursively).
func (am *AssetManager) add(name string) error {
	if am.closed() {
		return errors.New("asset watcher already closed")
	}
	return am.fsnotify.Add(name)
}

// AddRecursive starts watching the named directory and all sub-directories.
func (am *AssetManager) addRecursive(name string) error {
	if am.closed() {
		return errors.New("asset watcher already closed")
	}
	return am.watchRecursive(name, false)
}

func (am *AssetManager) closed() bool {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return am.isClosed
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType AssetType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

func (am *AssetManager) start() {
	defer am.wg.Done()
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
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			am.watchRecursive(e.Name, false)
			return
		}
	}
	if e.Op&fsnotify.Remove != 0 {
		am.removeAsset(e.Name)
		return
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	am.mutex.RLock()
	isConfig := am.configPath != "" && filepath.Clean(e.Name) == am.configPath
	am.mutex.RUnlock()

	switch {
	case isConfig:
		res, err := am.LoadAsset(e.Name, AssetTypeConfig)
		if err != nil {
			core.LogWarn("unable to read changed configuration %s: %s", e.Name, err)
			return
		}
		am.bus.Post(core.EventContext{
			Type: core.EVENT_CODE_CONFIG_RELOADED,
			Data: &core.ConfigEvent{Path: e.Name, Payload: res.Data},
		})
	case determineAssetType(e.Name) == AssetTypeShader:
		am.handleFileEvent(e.Name)
		// compilers write in several steps; only complete modules are announced
		if _, err := am.LoadAsset(e.Name, AssetTypeShader); err != nil {
			core.LogWarn("ignoring changed shader %s: %s", e.Name, err)
			return
		}
		am.bus.Post(core.EventContext{
			Type: core.EVENT_CODE_SHADER_CHANGED,
			Data: &core.AssetEvent{Path: e.Name},
		})
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (am *AssetManager) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return am.fsnotify.Remove(walkPath)
			}
			return am.fsnotify.Add(walkPath)
		}
		am.handleFileEvent(walkPath)
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) handleFileEvent(path string) {
	assetType := determineAssetType(path)
	if assetType == AssetTypeNone {
		return
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()
	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	am.assets[path] = info
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

func determineAssetType(path string) AssetType {
	switch filepath.Ext(path) {
	case ".spv":
		return AssetTypeShader
	case ".toml":
		return AssetTypeConfig
	default:
		return AssetTypeNone
	}
}
