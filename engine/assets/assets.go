package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/umbra/engine/core"
)

type ShaderInfo struct {
	Path         string
	LastCompiled time.Time
}

/**
 * @brief Watches a shader directory and recompiles sources when they change
 * on disk. Recompiled paths are queued until the renderer drains them.
 */
type ShaderWatcher struct {
	compiler *ShaderCompiler

	shaders map[string]ShaderInfo
	changed map[string]struct{}
	mutex   sync.Mutex

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewShaderWatcher(compiler *ShaderCompiler) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ShaderWatcher{
		compiler: compiler,
		shaders:  make(map[string]ShaderInfo),
		changed:  make(map[string]struct{}),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Initialize compiles every stale shader under dir and starts watching it.
func (sw *ShaderWatcher) Initialize(dir string) error {
	if err := sw.watchRecursive(dir, false); err != nil {
		return err
	}
	go sw.start()
	return nil
}

func (sw *ShaderWatcher) Shutdown() {
	sw.mutex.Lock()
	if sw.isClosed {
		sw.mutex.Unlock()
		return
	}
	sw.isClosed = true
	sw.mutex.Unlock()

	close(sw.done)
	<-sw.stopped
}

// Changed returns, and forgets, the shader sources recompiled since the last call.
func (sw *ShaderWatcher) Changed() []string {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	out := make([]string, 0, len(sw.changed))
	for p := range sw.changed {
		out = append(out, p)
	}
	clear(sw.changed)
	sort.Strings(out)
	return out
}

// Shaders lists the sources currently known to the watcher.
func (sw *ShaderWatcher) Shaders() []ShaderInfo {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	out := make([]ShaderInfo, 0, len(sw.shaders))
	for _, s := range sw.shaders {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (sw *ShaderWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := sw.watchRecursive(e.Name, false); err != nil {
						core.LogError("failed to watch `%s`: %s", e.Name, err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				sw.handleFileEvent(e.Name, true)
			}
			// a removed path cannot be stat'ed, so it is dropped from both the
			// index and the watch list whatever it was
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				sw.removeShader(e.Name)
				_ = sw.fsnotify.Remove(e.Name)
			}

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("shader watcher: %s", err)

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under path to the watch list and
// compiles the sources it finds on the way.
func (sw *ShaderWatcher) watchRecursive(path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if unWatch {
				return sw.fsnotify.Remove(walkPath)
			}
			return sw.fsnotify.Add(walkPath)
		}
		sw.handleFileEvent(walkPath, false)
		return nil
	})
}

// handleFileEvent compiles a shader source if its artifact is stale. When
// notify is set a successful compile is queued for Changed.
func (sw *ShaderWatcher) handleFileEvent(path string, notify bool) {
	if !sw.compiler.IsShaderSource(path) {
		return
	}
	stale, err := NeedsCompile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			core.LogError("shader watcher: %s", err)
		}
		return
	}

	sw.mutex.Lock()
	info, known := sw.shaders[path]
	sw.mutex.Unlock()
	if !stale && known {
		return
	}
	if stale {
		// compile errors are logged by the compiler; the previous artifact stays in use
		if err := sw.compiler.Compile(path); err != nil {
			return
		}
		info.LastCompiled = time.Now()
	}
	info.Path = path

	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	sw.shaders[path] = info
	if stale && notify {
		sw.changed[path] = struct{}{}
	}
}

func (sw *ShaderWatcher) removeShader(path string) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	delete(sw.shaders, path)
	delete(sw.changed, path)
}
