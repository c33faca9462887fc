package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apex/log"

	"github.com/gohoron/s2e2-gui/internal/cover"
	"github.com/gohoron/s2e2-gui/internal/disasm"
)

// GraphSource yields the CFG description of a function.
type GraphSource interface {
	Graph(fn uint64) (*disasm.Graph, error)
}

// Options controls RenderAnnotatedGraphs.
type Options struct {
	Rasterizer Rasterizer
	Theme      Theme
	Format     string // image format, "png" by default
	Workers    int    // concurrent renders, 1 by default
	KeepDOT    bool   // also write func_0x<hex>.dot
}

func (o Options) withDefaults() Options {
	if o.Rasterizer == nil {
		o.Rasterizer = Graphviz{}
	}
	if o.Theme == (Theme{}) {
		o.Theme = NASA
	}
	if o.Format == "" {
		o.Format = "png"
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// RenderAnnotatedGraphs writes one image per function into outDir, with
// covered blocks highlighted, and returns the artifact names relative to
// outDir in function order. outDir must already exist. A function whose graph
// cannot be built or rasterized is logged and left out.
func RenderAnnotatedGraphs(ctx context.Context, src GraphSource, funcs []cover.Function, covered cover.Set, outDir string, opts Options) ([]string, error) {
	fi, err := os.Stat(outDir)
	if err != nil {
		return nil, fmt.Errorf("render: output dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("render: output dir %s is not a directory", outDir)
	}
	opts = opts.withDefaults()

	names := make([]string, len(funcs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				name, err := renderOne(ctx, src, funcs[i].Offset, covered, outDir, opts)
				if err != nil {
					log.WithField("func", fmt.Sprintf("0x%x", funcs[i].Offset)).Warnf("graph not rendered: %v", err)
					continue
				}
				names[i] = name
			}
		}()
	}

feed:
	for i := range funcs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

func renderOne(ctx context.Context, src GraphSource, fn uint64, covered cover.Set, outDir string, opts Options) (string, error) {
	g, err := src.Graph(fn)
	if err != nil {
		return "", err
	}
	Annotate(g, covered)
	dotSrc := []byte(CFGDOT(g, opts.Theme))

	if opts.KeepDOT {
		dotPath := filepath.Join(outDir, ArtifactName(fn, "dot"))
		if err := os.WriteFile(dotPath, dotSrc, 0644); err != nil {
			return "", fmt.Errorf("write %s: %w", dotPath, err)
		}
	}

	name := ArtifactName(fn, opts.Format)
	if err := opts.Rasterizer.Rasterize(ctx, dotSrc, opts.Format, filepath.Join(outDir, name)); err != nil {
		return "", err
	}
	return name, nil
}
