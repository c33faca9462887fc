// Package render produces annotated Graphviz CFGs, rasterized images and an
// HTML results page for an S2E run.
package render

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNodeOffset parses a graph node label as a hexadecimal offset.
// Surrounding quotes and a 0x prefix are accepted. Labels such as "entry"
// report false.
func ParseNodeOffset(label string) (uint64, bool) {
	s := strings.TrimSpace(label)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if s == "" {
		return 0, false
	}
	off, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return off, true
}

// ArtifactName is the file name of the rendered graph of the function at fn.
func ArtifactName(fn uint64, format string) string {
	return fmt.Sprintf("func_0x%x.%s", fn, format)
}

func htmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
