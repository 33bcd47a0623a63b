// cmd/mainstage/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"

	"mainstage/internal/host"
	"mainstage/internal/ir"
	"mainstage/internal/lower"
	"mainstage/internal/msbc"
	"mainstage/internal/optimize"
	"mainstage/internal/parser"
	"mainstage/internal/plugin"
	"mainstage/internal/vm"
)

// fatalf reports a fatal error, coloring the "error:" prefix red when
// stderr is a real terminal rather than a redirected file or pipe.
func fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31merror:\x1b[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	os.Exit(1)
}

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}

	switch args[0] {
	case "--help", "-h", "help":
		usage()
	case "--version", "-v", "version":
		fmt.Println("mainstage", version)
	case "run":
		runCmd(args[1:])
	case "build":
		buildCmd(args[1:])
	case "exec":
		execCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`mainstage - compile and run workspace scripts

Usage:
  mainstage run <file.ms> [--plugin manifest.json]... [--dump-ir]
  mainstage build <file.ms> -o <file.msbc> [--dump-ir]
  mainstage exec <file.msbc> [--plugin manifest.json]... [--dump-ir]
`)
}

// parseRunFlags splits a source/bytecode filename from repeated
// --plugin manifest flags and the --dump-ir debug flag.
func parseRunFlags(args []string) (filename string, manifests []string, dumpIR bool) {
	for i := 0; i < len(args); i++ {
		if args[i] == "--plugin" && i+1 < len(args) {
			manifests = append(manifests, args[i+1])
			i++
			continue
		}
		if strings.HasPrefix(args[i], "--plugin=") {
			manifests = append(manifests, strings.TrimPrefix(args[i], "--plugin="))
			continue
		}
		if args[i] == "--dump-ir" {
			dumpIR = true
			continue
		}
		if filename == "" {
			filename = args[i]
		}
	}
	return filename, manifests, dumpIR
}

func loadPlugins(manifests []string) *plugin.Registry {
	if len(manifests) == 0 {
		return nil
	}
	reg := plugin.NewRegistry()
	for _, m := range manifests {
		if err := reg.LoadManifest(m); err != nil {
			fatalf("load plugin %s: %v", m, err)
		}
	}
	return reg
}

func runCmd(args []string) {
	filename, manifests, dumpIR := parseRunFlags(args)
	if filename == "" {
		fatalf("no filename provided to run command")
	}
	source, err := os.ReadFile(filename)
	if err != nil {
		fatalf("could not read file: %v", err)
	}

	prog, err := parser.ParseSource(string(source))
	if err != nil {
		fatalf("parse error: %v", err)
	}
	mod, err := lower.Lower(prog)
	if err != nil {
		fatalf("lowering error: %v", err)
	}
	mod, err = optimize.Run(mod)
	if err != nil {
		fatalf("optimize error: %v", err)
	}
	if dumpIR {
		pretty.Println(mod)
	}

	execute(mod, manifests)
}

func buildCmd(args []string) {
	var filename, out string
	var dumpIR bool
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" && i+1 < len(args) {
			out = args[i+1]
			i++
			continue
		}
		if args[i] == "--dump-ir" {
			dumpIR = true
			continue
		}
		if filename == "" {
			filename = args[i]
		}
	}
	if filename == "" {
		fatalf("no filename provided to build command")
	}
	if out == "" {
		out = strings.TrimSuffix(filename, ".ms") + ".msbc"
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		fatalf("could not read file: %v", err)
	}
	prog, err := parser.ParseSource(string(source))
	if err != nil {
		fatalf("parse error: %v", err)
	}
	mod, err := lower.Lower(prog)
	if err != nil {
		fatalf("lowering error: %v", err)
	}
	mod, err = optimize.Run(mod)
	if err != nil {
		fatalf("optimize error: %v", err)
	}
	if dumpIR {
		pretty.Println(mod)
	}
	data, err := msbc.Encode(mod)
	if err != nil {
		fatalf("encode error: %v", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fatalf("could not write %s: %v", out, err)
	}
	fmt.Printf("wrote %s (%s, %d ops)\n", out, humanize.Bytes(uint64(len(data))), len(mod.Ops))
}

func execCmd(args []string) {
	filename, manifests, dumpIR := parseRunFlags(args)
	if filename == "" {
		fatalf("no filename provided to exec command")
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		fatalf("could not read file: %v", err)
	}
	fmt.Printf("loaded %s (%s)\n", filename, humanize.Bytes(uint64(len(data))))
	mod, err := msbc.Load(data)
	if err != nil {
		fatalf("load error: %v", err)
	}
	if dumpIR {
		pretty.Println(mod)
	}
	execute(mod, manifests)
}

func execute(mod *ir.Module, manifests []string) {
	h := host.New()
	reg := loadPlugins(manifests)
	var caller vm.PluginCaller
	if reg != nil {
		caller = reg
		defer reg.Close()
	}

	machine := vm.New(mod, h.Table(), caller, vm.DefaultStepLimit)
	result, err := machine.Run()
	if err != nil {
		fatalf("runtime error: %v", err)
	}
	if result.Kind != ir.KindNull {
		fmt.Println(result.String())
	}
}
