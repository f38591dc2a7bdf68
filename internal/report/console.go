package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dupe-sweep/internal/config"
)

// Console prints the user-facing status lines of a run.
// Styling is bound to the output writer, so anything that is not a
// terminal receives plain text.
type Console struct {
	out       io.Writer
	msgs      config.Messages
	errStyle  lipgloss.Style
	pathStyle lipgloss.Style
}

// NewConsole creates a console writing to out with the given message templates
func NewConsole(out io.Writer, msgs config.Messages) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:       out,
		msgs:      msgs,
		errStyle:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		pathStyle: r.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("12")),
	}
}

// Messages returns the templates in use
func (c *Console) Messages() config.Messages {
	return c.msgs
}

// Writer returns the underlying writer
func (c *Console) Writer() io.Writer {
	return c.out
}

// Info prints a status line as is
func (c *Console) Info(msg string) {
	fmt.Fprintln(c.out, msg)
}

// Infof prints a status line built from a message template
func (c *Console) Infof(template string, args ...any) {
	fmt.Fprintln(c.out, fill(template, args...))
}

// Error prints a status line in the error style
func (c *Console) Error(msg string) {
	fmt.Fprintln(c.out, c.errStyle.Render(msg))
}

// Errorf prints a templated status line in the error style
func (c *Console) Errorf(template string, args ...any) {
	fmt.Fprintln(c.out, c.errStyle.Render(fill(template, args...)))
}

// Path renders a path in the emphasis style used by confirmation prompts
func (c *Console) Path(p string) string {
	return c.pathStyle.Render(p)
}

// fill applies args to a template. Templates come from user config, so one
// without a verb is printed unchanged instead of growing %!(EXTRA ...) noise.
func fill(template string, args ...any) string {
	if len(args) == 0 || !strings.Contains(template, "%") {
		return template
	}
	return fmt.Sprintf(template, args...)
}
