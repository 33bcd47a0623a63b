//go:build windows

package plugin

import (
	"fmt"
	"syscall"
	"unsafe"
)

// windowsLib loads a plugin through LoadLibrary/GetProcAddress via the
// standard library's syscall.DLL wrapper.
type windowsLib struct {
	dll      *syscall.DLL
	callProc *syscall.Proc
	freeProc *syscall.Proc
}

func openNativeLib(path string) (nativeLib, error) {
	dll, err := syscall.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("LoadDLL %s: %w", path, err)
	}
	callProc, err := dll.FindProc("plugin_call_json")
	if err != nil {
		dll.Release()
		return nil, fmt.Errorf("%s: missing export plugin_call_json: %w", path, err)
	}
	freeProc, err := dll.FindProc("plugin_free")
	if err != nil {
		dll.Release()
		return nil, fmt.Errorf("%s: missing export plugin_free: %w", path, err)
	}
	return &windowsLib{dll: dll, callProc: callProc, freeProc: freeProc}, nil
}

func (l *windowsLib) CallJSON(function string, requestJSON []byte) ([]byte, error) {
	cname, err := syscall.BytePtrFromString(function)
	if err != nil {
		return nil, err
	}
	creq, err := syscall.BytePtrFromString(string(requestJSON))
	if err != nil {
		return nil, err
	}

	ret, _, callErr := l.callProc.Call(
		uintptr(unsafe.Pointer(cname)),
		uintptr(unsafe.Pointer(creq)),
	)
	if ret == 0 {
		return nil, fmt.Errorf("plugin_call_json returned null: %w", callErr)
	}

	result := readCString(ret)
	l.freeProc.Call(ret)
	return result, nil
}

// readCString copies a null-terminated C string out of plugin memory
// addressed by ptr. The plugin owns that memory until freeProc runs,
// so this copies before the caller releases it.
func readCString(ptr uintptr) []byte {
	var out []byte
	for i := uintptr(0); ; i++ {
		b := *(*byte)(unsafe.Pointer(ptr + i))
		if b == 0 {
			break
		}
		out = append(out, b)
	}
	return out
}

func (l *windowsLib) Close() error {
	return l.dll.Release()
}
