//go:build unix

package plugin

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef char* (*call_json_fn)(const char*, const char*);
typedef void (*free_fn)(char*);

static char* mainstage_invoke(call_json_fn fn, const char* name, const char* args) {
	return fn(name, args);
}

static void mainstage_free(free_fn fn, char* p) {
	fn(p);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// unixLib loads a plugin through dlopen/dlsym/dlclose, the POSIX
// dynamic-loading API available on Linux and macOS alike.
type unixLib struct {
	handle unsafe.Pointer
	callFn C.call_json_fn
	freeFn C.free_fn
}

func openNativeLib(path string) (nativeLib, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW)
	if handle == nil {
		return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(C.dlerror()))
	}

	callSym := C.CString("plugin_call_json")
	defer C.free(unsafe.Pointer(callSym))
	callPtr := C.dlsym(handle, callSym)
	if callPtr == nil {
		C.dlclose(handle)
		return nil, fmt.Errorf("%s: missing export plugin_call_json: %s", path, C.GoString(C.dlerror()))
	}

	freeSym := C.CString("plugin_free")
	defer C.free(unsafe.Pointer(freeSym))
	freePtr := C.dlsym(handle, freeSym)
	if freePtr == nil {
		C.dlclose(handle)
		return nil, fmt.Errorf("%s: missing export plugin_free: %s", path, C.GoString(C.dlerror()))
	}

	return &unixLib{
		handle: handle,
		callFn: C.call_json_fn(callPtr),
		freeFn: C.free_fn(freePtr),
	}, nil
}

func (l *unixLib) CallJSON(function string, requestJSON []byte) ([]byte, error) {
	cname := C.CString(function)
	defer C.free(unsafe.Pointer(cname))
	creq := C.CString(string(requestJSON))
	defer C.free(unsafe.Pointer(creq))

	resultPtr := C.mainstage_invoke(l.callFn, cname, creq)
	if resultPtr == nil {
		return nil, fmt.Errorf("plugin_call_json returned null")
	}
	result := []byte(C.GoString(resultPtr))
	C.mainstage_free(l.freeFn, resultPtr)
	return result, nil
}

func (l *unixLib) Close() error {
	if C.dlclose(l.handle) != 0 {
		return fmt.Errorf("dlclose: %s", C.GoString(C.dlerror()))
	}
	return nil
}
