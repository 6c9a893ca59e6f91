// aoc CLI - run aoc programs, build bytecode caches and serve the editor protocol
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/aoc/compiler"
	"github.com/chazu/aoc/manifest"
	"github.com/chazu/aoc/pkg/bytecode"
	"github.com/chazu/aoc/server"
	"github.com/chazu/aoc/vm"
)

func main() {
	verbosity := flag.Int("verbose", 0, "Log verbosity, used by the language server")
	logFile := flag.String("log", "", "Write logs to a file instead of stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: aoc [options] [command] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run [file]    Run a .aoc script or .aocb bytecode file (default)\n")
		fmt.Fprintf(os.Stderr, "  build <file>  Compile a .aoc script into a .aocb bytecode file\n")
		fmt.Fprintf(os.Stderr, "  lsp           Start the language server on stdio\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  aoc day01.aoc            # Run a script\n")
		fmt.Fprintf(os.Stderr, "  aoc run                  # Run the entry point from aoc.toml\n")
		fmt.Fprintf(os.Stderr, "  aoc build day01.aoc      # Write day01.aocb next to the source\n")
		fmt.Fprintf(os.Stderr, "  aoc run day01.aocb       # Run compiled bytecode\n")
		fmt.Fprintf(os.Stderr, "  aoc -verbose 1 lsp       # Language server with request logging\n")
	}
	flag.Parse()

	var logPath *string
	if *logFile != "" {
		logPath = logFile
	}
	commonlog.Configure(*verbosity, logPath)

	args := flag.Args()
	command := "run"
	if len(args) > 0 {
		switch args[0] {
		case "run", "build", "lsp":
			command = args[0]
			args = args[1:]
		}
	}

	switch command {
	case "run":
		if len(args) > 1 {
			usageError("run takes at most one file")
		}
		var file string
		if len(args) == 1 {
			file = args[0]
		}
		runFile(file)

	case "build":
		if len(args) != 1 {
			usageError("build takes exactly one .aoc file")
		}
		buildFile(args[0])

	case "lsp":
		if len(args) != 0 {
			usageError("lsp takes no arguments")
		}
		runLSP()
	}
}

// runFile executes a script or bytecode file. Without a path it falls back to
// the entry point configured in the project manifest.
func runFile(path string) {
	m := loadManifest(path)

	if path == "" {
		if m == nil || m.EntryPath() == "" {
			usageError("no input file and no entry point in aoc.toml")
		}
		path = m.EntryPath()
	}

	if strings.HasSuffix(path, ".aocb") {
		runBytecodeFile(path)
		return
	}

	program := parseFile(path)
	code := compileProgram(program, m)

	if _, err := vm.New().Run(code); err != nil {
		exitRuntimeError(err)
	}
}

// buildFile compiles a .aoc source file into a .aocb bytecode file next to it.
func buildFile(path string) {
	program := parseFile(path)
	code := compileProgram(program, loadManifest(path))

	encoded, err := code.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := strings.TrimSuffix(path, ".aoc") + ".aocb"
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s\n", out)
}

// runBytecodeFile loads and executes a compiled .aocb file.
func runBytecodeFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read input file: %v\n", err)
		os.Exit(1)
	}

	code, err := bytecode.Decode(data)
	if err != nil {
		fmt.Printf("Failed to load bytecode file: %v\n", err)
		os.Exit(1)
	}

	if _, err := vm.New().Run(code); err != nil {
		exitRuntimeError(err)
	}
}

// runLSP starts the language server on stdio, backed by a persistent
// workspace symbol index when one can be opened.
func runLSP() {
	path := indexPath()

	index, err := server.OpenIndex(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot open symbol index at %s: %v\n", path, err)
		if index, err = server.OpenIndex(":memory:"); err != nil {
			index = nil
		}
	}

	if err := server.NewLSP(index).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// indexPath picks where the symbol index lives: .aoc/index.db in the manifest
// directory, or under the home directory outside a project.
func indexPath() string {
	var dir string
	if m := loadManifest(""); m != nil {
		dir = filepath.Join(m.Dir, ".aoc")
	} else if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".aoc")
	} else {
		return ":memory:"
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ":memory:"
	}
	return filepath.Join(dir, "index.db")
}

// parseFile reads and parses a source file, exiting on the first error.
func parseFile(path string) *compiler.Program {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read input file: %v\n", err)
		os.Exit(1)
	}

	program, err := compiler.Parse(string(data))
	if err != nil {
		exitSyntaxError(err)
	}
	return program
}

// compileProgram compiles an AST with the manifest's import roots applied.
func compileProgram(program *compiler.Program, m *manifest.Manifest) *bytecode.Bytecode {
	c := bytecode.NewCompiler()
	if m != nil {
		c.SearchRoots = m.SearchRootPaths()
	}

	code, err := c.Compile(program)
	if err != nil {
		exitRuntimeError(err)
	}
	return code
}

// loadManifest finds the project manifest for path, or for the working
// directory when path is empty. A missing manifest is not an error.
func loadManifest(path string) *manifest.Manifest {
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}

	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return nil
	}
	return m
}

// exitSyntaxError prints a parse error with its source position and exits.
func exitSyntaxError(err error) {
	pos := errorPosition(err)
	fmt.Printf("Syntax error on line %d, character %d:\n  %v\n", pos.Line, pos.Character, err)
	os.Exit(1)
}

// exitRuntimeError prints a compile or execution error with its source
// position and exits.
func exitRuntimeError(err error) {
	pos := errorPosition(err)
	fmt.Printf("Runtime error on line %d, character %d:\n  %v\n", pos.Line, pos.Character, err)
	os.Exit(1)
}

// errorPosition extracts the start position carried by pipeline errors.
func errorPosition(err error) compiler.Position {
	var parseErr *compiler.Error
	if errors.As(err, &parseErr) {
		return parseErr.Range.Start
	}

	var runtimeErr *bytecode.Error
	if errors.As(err, &runtimeErr) {
		return runtimeErr.Range.Start
	}
	return compiler.Position{}
}

// usageError reports a bad invocation and exits.
func usageError(message string) {
	fmt.Fprintf(os.Stderr, "aoc: %s\n\n", message)
	flag.Usage()
	os.Exit(2)
}
