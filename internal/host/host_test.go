package host

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mainstage/internal/ir"
)

func newTestHost(stdin string) (*Host, *bytes.Buffer) {
	var out bytes.Buffer
	h := &Host{Stdout: &out, Stdin: bufio.NewReader(strings.NewReader(stdin))}
	return h, &out
}

func TestSayJoinsArgsWithNewline(t *testing.T) {
	h, out := newTestHost("")
	if _, err := h.say(nil, []ir.Value{ir.Str("hello"), ir.Int(42)}); err != nil {
		t.Fatalf("say: %v", err)
	}
	if out.String() != "hello 42\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestFmtSubstitutesPlaceholders(t *testing.T) {
	h, _ := newTestHost("")
	v, err := h.fmtFn(nil, []ir.Value{ir.Str("{} plus {} is {}"), ir.Int(1), ir.Int(2), ir.Int(3)})
	if err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if v.Kind != ir.KindStr || v.S != "1 plus 2 is 3" {
		t.Fatalf("got %v", v)
	}
}

func TestFmtLeavesExtraPlaceholders(t *testing.T) {
	h, _ := newTestHost("")
	v, err := h.fmtFn(nil, []ir.Value{ir.Str("{} and {}"), ir.Int(1)})
	if err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if v.S != "1 and {}" {
		t.Fatalf("got %q", v.S)
	}
}

func TestAskReadsLineAndPrintsPrompt(t *testing.T) {
	h, out := newTestHost("Ada\n")
	v, err := h.ask(nil, []ir.Value{ir.Str("name? ")})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.Kind != ir.KindStr || v.S != "Ada" {
		t.Fatalf("got %v", v)
	}
	if out.String() != "name? " {
		t.Fatalf("expected prompt to be echoed without newline, got %q", out.String())
	}
}

func TestAskOnEOFReturnsEmptyString(t *testing.T) {
	h, _ := newTestHost("")
	v, err := h.ask(nil, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.Kind != ir.KindStr || v.S != "" {
		t.Fatalf("expected empty string on EOF, got %v", v)
	}
}

func TestAskParsesBool(t *testing.T) {
	h, _ := newTestHost("true\n")
	v, err := h.ask(nil, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.Kind != ir.KindBool || !v.B {
		t.Fatalf("expected Bool(true), got %v", v)
	}
}

func TestAskParsesInt(t *testing.T) {
	h, _ := newTestHost("42\n")
	v, err := h.ask(nil, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.Kind != ir.KindInt || v.I != 42 {
		t.Fatalf("expected Int(42), got %v", v)
	}
}

func TestAskParsesFloat(t *testing.T) {
	h, _ := newTestHost("3.5\n")
	v, err := h.ask(nil, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.Kind != ir.KindFloat || v.F != 3.5 {
		t.Fatalf("expected Float(3.5), got %v", v)
	}
}

func TestAskFallsBackToStr(t *testing.T) {
	h, _ := newTestHost("Ada Lovelace\n")
	v, err := h.ask(nil, nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if v.Kind != ir.KindStr || v.S != "Ada Lovelace" {
		t.Fatalf("expected the raw Str, got %v", v)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	h, _ := newTestHost("")
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	v, err := h.write(nil, []ir.Value{ir.Str(path), ir.Str("contents")})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if v.Kind != ir.KindBool || !v.B {
		t.Fatalf("expected write to report success, got %v", v)
	}

	got, err := h.read(nil, []ir.Value{ir.Str(path)})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != ir.KindArray || len(got.A) != 1 || got.A[0].S != "contents" {
		t.Fatalf("expected read to return [\"contents\"], got %v", got)
	}
}

func TestReadGlobPattern(t *testing.T) {
	h, _ := newTestHost("")
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	got, err := h.read(nil, []ir.Value{ir.Str(filepath.Join(dir, "*.txt"))})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != ir.KindArray || len(got.A) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
}

func TestReadNoMatchesReturnsEmptyArray(t *testing.T) {
	h, _ := newTestHost("")
	got, err := h.read(nil, []ir.Value{ir.Str("/no/such/path/*.nope")})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != ir.KindArray || len(got.A) != 0 {
		t.Fatalf("expected an empty array for a pattern matching zero files, got %v", got)
	}
}

func TestReadAcceptsArrayOfPatterns(t *testing.T) {
	h, _ := newTestHost("")
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	got, err := h.read(nil, []ir.Value{ir.Array([]ir.Value{
		ir.Str(filepath.Join(dir, "a.txt")),
		ir.Str(filepath.Join(dir, "b.txt")),
		ir.Str(filepath.Join(dir, "*.nope")),
	})})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != ir.KindArray || len(got.A) != 2 {
		t.Fatalf("expected 2 items from the matching entries and none from the zero-match pattern, got %v", got)
	}
}

func TestReadGlobErrorWrapsInArray(t *testing.T) {
	h, _ := newTestHost("")
	got, err := h.read(nil, []ir.Value{ir.Str("[")})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != ir.KindArray || len(got.A) != 1 || got.A[0].Kind != ir.KindStr {
		t.Fatalf("expected a one-element array wrapping the glob error, got %v", got)
	}
}

func TestWriteFailureReturnsErrorStr(t *testing.T) {
	h, _ := newTestHost("")
	v, err := h.write(nil, []ir.Value{ir.Str("/no/such/dir/out.txt"), ir.Str("x")})
	if err != nil {
		t.Fatalf("write should degrade to a Str rather than error, got: %v", err)
	}
	if v.Kind != ir.KindStr {
		t.Fatalf("expected an error Str, got %v", v)
	}
}
