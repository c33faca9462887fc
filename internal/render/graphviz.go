package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Rasterizer turns DOT source into an image file.
type Rasterizer interface {
	Rasterize(ctx context.Context, src []byte, format, outPath string) error
}

// Graphviz rasterizes with the graphviz dot binary.
type Graphviz struct {
	Bin string // defaults to "dot"
}

// Rasterize invokes graphviz dot to produce the given format.
func (g Graphviz) Rasterize(ctx context.Context, src []byte, format, outPath string) error {
	bin := g.Bin
	if bin == "" {
		bin = "dot"
	}
	cmd := exec.CommandContext(ctx, bin, "-T"+format, "-o", outPath)
	cmd.Stdin = bytes.NewReader(src)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("render: %s: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("render: %s: %w", bin, err)
	}
	return nil
}
