package disasm

import (
	"errors"
	"reflect"
	"testing"
)

const agjMain = `[{"name":"main","offset":4096,"ninstr":9,"size":40,"blocks":[
	{"offset":4096,"size":16,"jump":4120,"fail":4112,"ops":[]},
	{"offset":4112,"size":8,"jump":4128},
	{"offset":4120,"size":8,"jump":4128},
	{"offset":4128,"size":8}
]}]`

func TestParseR2Graph(t *testing.T) {
	g, err := ParseR2Graph([]byte(agjMain))
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "main" {
		t.Errorf("name = %q", g.Name)
	}
	labels := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		labels[i] = n.Label
	}
	if want := []string{"0x1000", "0x1010", "0x1018", "0x1020"}; !reflect.DeepEqual(labels, want) {
		t.Errorf("labels = %v, want %v", labels, want)
	}
	if !g.Nodes[0].Entry || !g.Nodes[3].Term {
		t.Errorf("entry/term flags wrong: %+v", g.Nodes)
	}
	want := []Edge{
		{From: "0x1000", To: "0x1018", Cond: "T"},
		{From: "0x1000", To: "0x1010", Cond: "F"},
		{From: "0x1010", To: "0x1020"},
		{From: "0x1018", To: "0x1020"},
	}
	if !reflect.DeepEqual(g.Edges, want) {
		t.Errorf("edges = %+v, want %+v", g.Edges, want)
	}
}

func TestParseR2GraphCount(t *testing.T) {
	for _, data := range []string{`[]`, `[{"name":"a","blocks":[]},{"name":"b","blocks":[]}]`} {
		if _, err := ParseR2Graph([]byte(data)); !errors.Is(err, ErrGraphCount) {
			t.Errorf("%s: err = %v, want ErrGraphCount", data, err)
		}
	}
	if _, err := ParseR2Graph([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestR2CoverBlocks(t *testing.T) {
	f, err := parseR2Func([]byte(agjMain))
	if err != nil {
		t.Fatal(err)
	}
	blocks := f.coverBlocks()
	if len(blocks) != 4 || blocks[1].Start != 0x1010 || blocks[1].Size != 8 {
		t.Errorf("blocks = %+v", blocks)
	}
}

func TestParseR2Offsets(t *testing.T) {
	tests := []struct {
		data string
		want []uint64
	}{
		{`["0x1000","0x1040"]`, []uint64{0x1000, 0x1040}},
		{`[4096, 4160]`, []uint64{0x1000, 0x1040}},
		{`[]`, []uint64{}},
	}
	for _, tt := range tests {
		got, err := ParseR2Offsets([]byte(tt.data))
		if err != nil {
			t.Fatalf("%s: %v", tt.data, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s: got %x, want %x", tt.data, got, tt.want)
		}
	}
	if _, err := ParseR2Offsets([]byte(`["main"]`)); err == nil {
		t.Error("expected error for non-hex entry")
	}
}

func TestParseR2Calls(t *testing.T) {
	data := `[
		{"type":"CALL","at":4100,"ref":8192,"name":"sym.helper"},
		{"type":"DATA","at":4104,"ref":12288,"name":"str.hello"},
		{"type":"CALL","at":4116,"ref":8192,"name":"sym.helper"},
		{"type":"CALL","at":4124,"ref":8448,"name":"sym.imp.puts"}
	]`
	got, err := ParseR2Calls([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if want := []uint64{0x2000, 0x2100}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}

	got, err = ParseR2Calls([]byte("\n"))
	if err != nil || got != nil {
		t.Errorf("empty reply: got %v, %v", got, err)
	}
	if _, err := ParseR2Calls([]byte(`{`)); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
