// Package testbin builds a small unstripped Go program for tests that need a
// real ELF file with a symbol table. Test binaries themselves are linked with
// -s -w and carry no .symtab.
package testbin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Package is the symbol prefix of the fixture's own functions.
const Package = "main."

// Funcs lists functions the fixture is guaranteed to define.
var Funcs = []string{"main.main", "main.sum", "main.classify"}

const source = `package main

import "os"

//go:noinline
func sum(xs []int) int {
	t := 0
	for _, x := range xs {
		t += x
	}
	return t
}

//go:noinline
func classify(n int) int {
	switch {
	case n < 0:
		return -1
	case n == 0:
		return 0
	}
	return 1
}

func main() {
	os.Exit(classify(sum([]int{len(os.Args), 2, 3})) - 1)
}
`

// Supported reports whether the host produces ELF binaries the disassembler
// can decode.
func Supported() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	switch runtime.GOARCH {
	case "amd64", "386", "arm64":
		return true
	}
	return false
}

// Build compiles the fixture into dir and returns the binary path.
func Build(dir string) (string, error) {
	src := filepath.Join(dir, "src")
	if err := os.MkdirAll(src, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(src, "go.mod"), []byte("module fixture\n\ngo 1.21\n"), 0644); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(src, "main.go"), []byte(source), 0644); err != nil {
		return "", err
	}

	// go test puts $GOROOT/bin first on PATH.
	out := filepath.Join(dir, "fixture")
	cmd := exec.Command("go", "build", "-o", out, ".")
	cmd.Dir = src
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0", "GOFLAGS=", "GOWORK=off", "GOOS="+runtime.GOOS, "GOARCH="+runtime.GOARCH)
	if b, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("testbin: go build: %w\n%s", err, b)
	}
	return out, nil
}
