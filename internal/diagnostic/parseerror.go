package diagnostic

import (
	"fmt"
	"strings"

	"github.com/bilusteknoloji/pipgrub/internal/reqfile"
)

// ParseError renders a requirements-file parse error with the offending
// line and a caret under the column the grammar violation starts at.
// source is the full text of the file named by err.File.
func ParseError(err *reqfile.ParseError, source string) string {
	lines := strings.Split(source, "\n")
	if err.Line < 1 || err.Line > len(lines) {
		return err.Error()
	}
	line := strings.TrimRight(lines[err.Line-1], "\r")

	col := err.Col
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s\n", err.File, err.Line, col, err.Msg)
	fmt.Fprintf(&b, "  %s\n", line)
	fmt.Fprintf(&b, "  %s^\n", strings.Repeat(" ", col-1))
	return strings.TrimRight(b.String(), "\n")
}
