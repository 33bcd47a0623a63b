// Package plugin implements the in-process native plugin ABI: a
// manifest.json naming a shared library and the functions it exports,
// loaded with the platform's native dynamic-library API, and called
// through a small JSON request/response protocol so the VM never has
// to know the native calling convention of whatever produced the
// library.
package plugin

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"mainstage/internal/ir"
	"mainstage/internal/mserrors"
)

// nativeLib is the platform-specific half of the ABI: open a shared
// library, resolve its two required exports, and round-trip one JSON
// call through them. loader_unix.go and loader_windows.go each provide
// an openNativeLib implementing this.
type nativeLib interface {
	CallJSON(function string, requestJSON []byte) ([]byte, error)
	Close() error
}

type loadedPlugin struct {
	id       uuid.UUID
	manifest *Manifest
	lib      nativeLib
}

// Registry owns every plugin loaded into this process and dispatches
// calls by exported function name. It satisfies vm.PluginCaller.
type Registry struct {
	mu      sync.RWMutex
	byFunc  map[string]*loadedPlugin
	byPath  map[string]*loadedPlugin
	loading singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{
		byFunc: make(map[string]*loadedPlugin),
		byPath: make(map[string]*loadedPlugin),
	}
}

// LoadManifest opens the plugin described at manifestPath and makes
// its exported functions callable. Concurrent LoadManifest calls for
// the same path collapse into a single dlopen/LoadLibrary via
// singleflight, so starting several workspaces that all depend on the
// same plugin doesn't race to open it twice.
func (r *Registry) LoadManifest(manifestPath string) error {
	r.mu.RLock()
	_, already := r.byPath[manifestPath]
	r.mu.RUnlock()
	if already {
		return nil
	}

	_, err, _ := r.loading.Do(manifestPath, func() (interface{}, error) {
		r.mu.RLock()
		_, already := r.byPath[manifestPath]
		r.mu.RUnlock()
		if already {
			return nil, nil
		}

		m, err := readManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		lib, err := openNativeLib(m.libraryPath(manifestPath))
		if err != nil {
			return nil, fmt.Errorf("load plugin %q: %w", m.Name, err)
		}

		p := &loadedPlugin{id: uuid.New(), manifest: m, lib: lib}
		r.mu.Lock()
		r.byPath[manifestPath] = p
		for _, fn := range m.Functions {
			r.byFunc[fn] = p
		}
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

// Call implements vm.PluginCaller. found is false whenever no loaded
// plugin exports name, letting the VM fall through to an
// unknown-symbol error instead of a plugin-specific one.
func (r *Registry) Call(name string, args []ir.Value) (ir.Value, bool, error) {
	r.mu.RLock()
	p, ok := r.byFunc[name]
	r.mu.RUnlock()
	if !ok {
		return ir.Value{}, false, nil
	}

	reqJSON, err := encodeCall(name, args)
	if err != nil {
		return ir.Value{}, true, mserrors.PluginCallFailed(p.manifest.Name, name, err)
	}
	respJSON, err := p.lib.CallJSON(name, reqJSON)
	if err != nil {
		return ir.Value{}, true, mserrors.PluginCallFailed(p.manifest.Name, name, err)
	}
	v, err := decodeResult(respJSON)
	if err != nil {
		return ir.Value{}, true, mserrors.PluginCallFailed(p.manifest.Name, name, err)
	}
	return v, true, nil
}

// Close releases every loaded plugin's native handle. It attempts to
// close every plugin even after a failure, and returns only the first
// error it met; later errors are dropped.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for path, p := range r.byPath {
		if err := p.lib.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unload plugin %q: %w", path, err)
		}
	}
	return firstErr
}
