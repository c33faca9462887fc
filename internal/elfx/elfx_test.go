package elfx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gohoron/s2e2-gui/internal/testbin"
)

var fixture string

func TestMain(m *testing.M) {
	if !testbin.Supported() {
		os.Exit(m.Run())
	}
	dir, err := os.MkdirTemp("", "elfx")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fixture, err = testbin.Build(dir)
	if err != nil {
		os.RemoveAll(dir)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

// fixtureBinary returns the unstripped ELF built for this package's tests.
func fixtureBinary(t *testing.T) string {
	t.Helper()
	if fixture == "" {
		t.Skipf("no ELF fixture on %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	return fixture
}

func TestOpenFixture(t *testing.T) {
	ef, err := Open(fixtureBinary(t))
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if ef.FileSize() == 0 {
		t.Error("file size is 0")
	}
	if ef.Entry() == 0 {
		t.Error("entry point is 0")
	}
	if _, ok := ef.ExecSectionEnd(ef.Entry()); !ok {
		t.Errorf("entry 0x%x not in an executable section", ef.Entry())
	}
}

func TestFunctions(t *testing.T) {
	ef, err := Open(fixtureBinary(t))
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	funcs := ef.Functions()
	if len(funcs) == 0 {
		t.Fatal("no function symbols")
	}
	found := make(map[string]bool)
	for i, fn := range funcs {
		found[fn.Name] = true
		if i > 0 && funcs[i-1].Addr >= fn.Addr {
			t.Fatalf("functions not sorted/unique at %d: 0x%x then 0x%x", i, funcs[i-1].Addr, fn.Addr)
		}
		if fn.Name == "main.sum" {
			code, err := ef.ReadFunc(fn)
			if err != nil {
				t.Fatalf("ReadFunc: %v", err)
			}
			if uint64(len(code)) != fn.Size {
				t.Errorf("read %d bytes, want %d", len(code), fn.Size)
			}
		}
	}
	for _, name := range testbin.Funcs {
		if !found[name] {
			t.Errorf("%s not among function symbols", name)
		}
	}
}

func TestOpenRejectsNonELF(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "notelf")
	if err := os.WriteFile(tmp, []byte("not an ELF file at all"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(tmp)
	if !errors.Is(err, ErrNotELF) {
		t.Fatalf("err = %v, want ErrNotELF", err)
	}
}

func TestReadFuncZeroSize(t *testing.T) {
	ef, err := Open(fixtureBinary(t))
	if err != nil {
		t.Fatal(err)
	}
	defer ef.Close()

	if _, err := ef.ReadFunc(Func{Name: "x", Addr: ef.Entry()}); !errors.Is(err, ErrSymbolNoSize) {
		t.Errorf("err = %v, want ErrSymbolNoSize", err)
	}
}
