// Package host implements the built-in callables every program can
// reach without a plugin: say, fmt, ask, read, write. Each is
// registered under its bare name in a vm.HostFunc table.
package host

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mainstage/internal/ir"
	"mainstage/internal/mserrors"
	"mainstage/internal/vm"
)

// Host carries the builtins' I/O dependencies so tests can redirect
// stdout/stdin without touching the process-wide streams.
type Host struct {
	Stdout io.Writer
	Stdin  *bufio.Reader
}

// New builds a Host wired to the process's real stdout/stdin.
func New() *Host {
	return &Host{Stdout: os.Stdout, Stdin: bufio.NewReader(os.Stdin)}
}

// Table returns the name->callable map a vm.VM dispatches host calls
// against.
func (h *Host) Table() map[string]vm.HostFunc {
	return map[string]vm.HostFunc{
		"say":   h.say,
		"fmt":   h.fmtFn,
		"ask":   h.ask,
		"read":  h.read,
		"write": h.write,
	}
}

// say prints every argument's display form space-separated, followed
// by a newline, and always returns Null: output is the point, not a
// value other code should consume.
func (h *Host) say(_ *vm.VM, args []ir.Value) (ir.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(h.Stdout, strings.Join(parts, " "))
	return ir.Null(), nil
}

// fmtFn substitutes each "{}" placeholder in its first (template)
// argument, in order, with the display form of a following argument.
// Extra placeholders beyond the argument count are left as "{}";
// extra arguments beyond the placeholder count are ignored.
func (h *Host) fmtFn(_ *vm.VM, args []ir.Value) (ir.Value, error) {
	if len(args) == 0 {
		return ir.Str(""), nil
	}
	tmpl := args[0].String()
	rest := args[1:]
	var b strings.Builder
	argi := 0
	for {
		idx := strings.Index(tmpl, "{}")
		if idx < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:idx])
		if argi < len(rest) {
			b.WriteString(rest[argi].String())
			argi++
		} else {
			b.WriteString("{}")
		}
		tmpl = tmpl[idx+2:]
	}
	return ir.Str(b.String()), nil
}

// ask writes an optional prompt (its only argument, if any) without a
// trailing newline, then reads one line from stdin with its line
// terminator stripped and attempts to parse it as Bool, then Int, then
// Float, falling back to the raw Str when none match. EOF reads as an
// empty string rather than an error, since a script built around ask
// shouldn't crash just because its input ran out.
func (h *Host) ask(_ *vm.VM, args []ir.Value) (ir.Value, error) {
	if len(args) > 0 {
		fmt.Fprint(h.Stdout, args[0].String())
	}
	line, err := h.Stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return ir.Str(""), nil
	}
	return parseAskLine(strings.TrimRight(line, "\r\n")), nil
}

// parseAskLine implements ask's Bool -> Int -> Float -> raw Str parse
// chain. Only the exact literal spellings "true"/"false" parse as Bool,
// so a plain "1" or "0" falls through to Int rather than Bool.
func parseAskLine(s string) ir.Value {
	switch s {
	case "true":
		return ir.Bool(true)
	case "false":
		return ir.Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ir.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ir.Float(f)
	}
	return ir.Str(s)
}

// read resolves its argument against the filesystem and always returns
// an Array of Str file contents. The argument is either a single
// path/pattern or an Array of them; glob wildcards expand via
// filepath.Glob, and a plain path falls back to a literal single-file
// match. A pattern matching zero files contributes no items to the
// result rather than an error. A glob or read failure is reported by
// returning a one-element Array holding an error Str, rather than
// aborting the VM, since missing/unreadable input is routine for a
// script scanning a directory, not exceptional.
func (h *Host) read(_ *vm.VM, args []ir.Value) (ir.Value, error) {
	if len(args) == 0 {
		return ir.Array(nil), nil
	}

	contents := make([]ir.Value, 0)
	for _, pattern := range readPatterns(args[0]) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return ir.Array([]ir.Value{ir.Str(mserrors.GlobError(pattern, err).Error())}), nil
		}
		if len(matches) == 0 {
			if info, statErr := os.Stat(pattern); statErr == nil && !info.IsDir() {
				matches = []string{pattern}
			}
		}
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				return ir.Array([]ir.Value{ir.Str(mserrors.ReadError(path, err).Error())}), nil
			}
			contents = append(contents, ir.Str(string(data)))
		}
	}
	return ir.Array(contents), nil
}

// readPatterns normalizes read's argument into a list of path/pattern
// strings, accepting either a scalar or an Array of scalars.
func readPatterns(v ir.Value) []string {
	if v.Kind == ir.KindArray {
		out := make([]string, len(v.A))
		for i, e := range v.A {
			out[i] = e.String()
		}
		return out
	}
	return []string{v.String()}
}

// write writes its second argument's display form to the path named
// by its first, creating or truncating the file. Success is Bool(true);
// failure is an error Str, following the same degrade-to-value
// convention as read rather than aborting the VM.
func (h *Host) write(_ *vm.VM, args []ir.Value) (ir.Value, error) {
	if len(args) < 2 {
		return ir.Str("write requires a path and content"), nil
	}
	path := args[0].String()
	content := args[1].String()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return ir.Str(mserrors.WriteError(path, err).Error()), nil
	}
	return ir.Bool(true), nil
}
