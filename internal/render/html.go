package render

import (
	"fmt"
	"io"
	"path"

	"github.com/gohoron/s2e2-gui/internal/cover"
)

// RunIndex is the data shown on a run's results page.
type RunIndex struct {
	Title           string
	KilledByTimeout bool
	HasS2EError     bool
	Intervals       int
	Summaries       []cover.FuncSummary
	Artifacts       map[uint64]string // function offset → image path relative to the page
	Callgraph       string            // optional call graph image relative to the page
}

// WriteIndexHTML writes a small HTML page summarizing the coverage of a run.
func WriteIndexHTML(w io.Writer, idx RunIndex) {
	var blocks, coveredBlocks, coveredFuncs int
	for _, s := range idx.Summaries {
		blocks += s.Blocks
		coveredBlocks += s.Covered
		if s.Covered > 0 {
			coveredFuncs++
		}
	}
	blockPct := 0.0
	if blocks > 0 {
		blockPct = float64(coveredBlocks) / float64(blocks) * 100
	}

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Helvetica Neue", Helvetica, Arial, sans-serif; font-size: 14px; color: #1A1A1A; background: #F5F5F5; margin: 2em; max-width: 900px; }
h1 { font-size: 18px; font-weight: 600; margin-bottom: 0.5em; }
h2 { font-size: 14px; font-weight: 600; margin-top: 1.5em; border-bottom: 1px solid #ddd; padding-bottom: 4px; }
table { border-collapse: collapse; margin: 0.5em 0; }
th, td { text-align: left; padding: 3px 12px 3px 0; font-size: 13px; }
th { font-weight: 600; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
a { color: #0B3D91; }
.warn { color: #FC3D21; }
.mbar { height: 6px; border-radius: 2px; display: inline-block; vertical-align: middle; background: #6E8B3D; }
.fn { font-family: "Courier New", monospace; font-size: 12px; }
</style>
</head>
<body>
`, htmlEscape(idx.Title))

	fmt.Fprintf(w, "<h1>%s</h1>\n", htmlEscape(idx.Title))

	if idx.KilledByTimeout {
		fmt.Fprintln(w, `<p class="warn">S2E was stopped by the timeout; coverage is partial.</p>`)
	}
	if idx.HasS2EError {
		fmt.Fprintln(w, `<p class="warn">S2E exited with an error.</p>`)
	}

	fmt.Fprintln(w, "<h2>Summary</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintf(w, "<tr><td>Translation blocks</td><td class=\"num\">%d</td></tr>\n", idx.Intervals)
	fmt.Fprintf(w, "<tr><td>Functions</td><td class=\"num\">%d</td></tr>\n", len(idx.Summaries))
	fmt.Fprintf(w, "<tr><td>Functions executed</td><td class=\"num\">%d</td></tr>\n", coveredFuncs)
	fmt.Fprintf(w, "<tr><td>Basic blocks</td><td class=\"num\">%d</td></tr>\n", blocks)
	fmt.Fprintf(w, "<tr><td>Basic blocks covered</td><td class=\"num\">%d (%.1f%%)</td></tr>\n", coveredBlocks, blockPct)
	fmt.Fprintln(w, "</table>")

	if idx.Callgraph != "" {
		fmt.Fprintf(w, "<p><a href=\"%s\">Call graph of executed functions</a></p>\n", htmlEscape(idx.Callgraph))
	}

	if len(idx.Summaries) == 0 {
		fmt.Fprintln(w, "</body></html>")
		return
	}

	fmt.Fprintln(w, "<h2>Functions</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th>Address</th><th>Function</th><th>Covered</th><th></th><th></th></tr>")
	for _, s := range idx.Summaries {
		barW := int(s.Percent())
		if s.Covered > 0 && barW < 2 {
			barW = 2
		}
		link := ""
		if p, ok := idx.Artifacts[s.Offset]; ok {
			link = fmt.Sprintf(`<a href="%s">[cfg]</a>`, htmlEscape(p))
		}
		fmt.Fprintf(w, "<tr><td class=\"fn\">0x%x</td><td class=\"fn\">%s</td><td class=\"num\">%d/%d</td><td><span class=\"mbar\" style=\"width:%dpx\"></span></td><td>%s</td></tr>\n",
			s.Offset, htmlEscape(truncLabel(s.Name, 60)), s.Covered, s.Blocks, barW, link)
	}
	fmt.Fprintln(w, "</table>")

	fmt.Fprintln(w, "</body></html>")
}

// ArtifactLinks maps function offsets to image paths under dir for the
// artifacts RenderAnnotatedGraphs produced.
func ArtifactLinks(funcs []cover.Function, names []string, dir, format string) map[uint64]string {
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	links := make(map[uint64]string)
	for _, fn := range funcs {
		name := ArtifactName(fn.Offset, format)
		if have[name] {
			links[fn.Offset] = path.Join(dir, name)
		}
	}
	return links
}
