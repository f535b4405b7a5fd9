package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// status writes a marked status line, colored unless --no-color is set
// or w is not a terminal
func status(w io.Writer, attr color.Attribute, mark, format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s\n", mark, fmt.Sprintf(format, args...))
	if noColor {
		_, _ = fmt.Fprint(w, line)
		return
	}
	_, _ = color.New(attr).Fprint(w, line)
}

func success(w io.Writer, format string, args ...interface{}) {
	status(w, color.FgGreen, "✓", format, args...)
}

func failure(w io.Writer, format string, args ...interface{}) {
	status(w, color.FgRed, "✗", format, args...)
}

func warning(w io.Writer, format string, args ...interface{}) {
	status(w, color.FgYellow, "⚠", format, args...)
}
