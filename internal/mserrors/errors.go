// Package mserrors implements a small error taxonomy: load errors
// (fatal to VM startup), compile/verify errors (fatal to compilation,
// tagged with the offending op index), runtime errors (returned from
// the VM's Run, which stops execution; none is turned into a Str
// value), and host I/O errors (a diagnostic-prefixed Str returned
// alongside a well-typed Value).
//
// Each error is an *Error carrying a message plus structured context
// (an op index, a symbol name). Where an error wraps an underlying
// cause, the cause is annotated with a stack via
// github.com/pkg/errors.WithStack and stays reachable through the
// standard errors.Unwrap / errors.Is / errors.As.
package mserrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the four error categories.
type Kind string

const (
	KindLoad    Kind = "load"
	KindCompile Kind = "compile"
	KindRuntime Kind = "runtime"
	KindHostIO  Kind = "host_io"
)

// Error wraps an underlying cause with a taxonomy Kind, so embedders
// can distinguish e.g. a step-limit abort from an ordinary runtime Str
// error.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: errors.WithStack(cause)}
}

// ---- Load errors (MSBC loader) ----

func BadMagic(got [4]byte) error {
	return newErr(KindLoad, "invalid MSBC magic %q", got[:])
}

func UnsupportedVersion(v uint32) error {
	return newErr(KindLoad, "unsupported MSBC version %d", v)
}

func Truncated(where string) error {
	return newErr(KindLoad, "truncated MSBC stream reading %s", where)
}

func UnknownOpcode(code byte, opIndex int) error {
	return newErr(KindLoad, "unknown opcode 0x%02x at op index %d", code, opIndex)
}

func UnresolvedLabel(name string, opIndex int) error {
	return newErr(KindLoad, "CallLabel target %q unresolved at op index %d", name, opIndex)
}

// ---- Compile/verify errors (optimizer verifier) ----

func UseBeforeDef(reg uint32, opIndex int) error {
	return newErr(KindCompile, "register r%d read before write at op index %d", reg, opIndex)
}

func InvalidBranchTarget(opIndex, target int) error {
	return newErr(KindCompile, "op index %d branches to invalid target %d", opIndex, target)
}

func UnresolvedCallLabel(label int, opIndex int) error {
	return newErr(KindCompile, "CallLabel L%d at op index %d has no matching Label op", label, opIndex)
}

// ErrOptimizeSweepLimit is returned when the fixed-point pipeline
// exceeds its sweep cap without converging.
var ErrOptimizeSweepLimit = newErr(KindCompile, "optimizer exceeded sweep limit without reaching a fixed point")

// ---- Runtime errors (VM execution) ----

func UnknownSymbol(name string) error {
	return newErr(KindRuntime, "unknown host symbol or plugin function %q", name)
}

func DivByZero(opName string) error {
	return newErr(KindRuntime, "%s by zero", opName)
}

// ErrStepLimit terminates VM execution outright rather than degrading
// to Null, the same as a load error.
var ErrStepLimit = newErr(KindRuntime, "step limit exceeded")

func PluginCallFailed(plugin, fn string, cause error) error {
	return wrapErr(KindRuntime, cause, "plugin %q call %q failed", plugin, fn)
}

// ---- Host I/O errors (host builtins) ----

func GlobError(pattern string, cause error) error {
	return wrapErr(KindHostIO, cause, "glob error for pattern %q", pattern)
}

func ReadError(path string, cause error) error {
	return wrapErr(KindHostIO, cause, "read error for %s", path)
}

func WriteError(path string, cause error) error {
	return wrapErr(KindHostIO, cause, "write error for %s", path)
}
