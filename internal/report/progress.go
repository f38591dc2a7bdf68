package report

import (
	"fmt"
	"io"
	"iter"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

const barWidth = 50

// Reporter draws a single-line progress bar while a slice is iterated.
// It never changes what is iterated.
type Reporter struct {
	out     io.Writer
	enabled bool
	bar     progress.Model
}

// NewReporter creates a reporter that always draws on out when enabled
func NewReporter(out io.Writer, enabled bool) *Reporter {
	return &Reporter{
		out:     out,
		enabled: enabled && out != nil,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		),
	}
}

// ForTerminal creates a reporter that only draws when want is set and out is a terminal
func ForTerminal(out io.Writer, want bool) *Reporter {
	return NewReporter(out, want && IsTerminal(out))
}

// Disabled returns a pass-through reporter
func Disabled() *Reporter {
	return NewReporter(nil, false)
}

// IsTerminal reports whether w is attached to a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Bar is one progress line in flight
type Bar struct {
	r      *Reporter
	total  int
	done   int
	prefix string
	suffix string
	draw   bool
}

// Start draws a bar at 0% for total steps. A nil or disabled reporter, or a
// zero total, yields a bar that draws nothing.
func (r *Reporter) Start(total int, prefix, suffix string) *Bar {
	b := &Bar{r: r, total: total, prefix: prefix, suffix: suffix}
	b.draw = r != nil && r.enabled && total > 0
	b.render()
	return b
}

// Increment advances the bar by one step and redraws it
func (b *Bar) Increment() {
	if b.done < b.total {
		b.done++
	}
	b.render()
}

// Finish ends the line
func (b *Bar) Finish() {
	if b.draw {
		fmt.Fprintln(b.r.out)
		b.draw = false
	}
}

func (b *Bar) render() {
	if !b.draw {
		return
	}
	pct := float64(b.done) / float64(b.total)
	fmt.Fprintf(b.r.out, "\r%s %s %5.1f%% %s", b.prefix, b.r.bar.ViewAs(pct), pct*100, b.suffix)
}

// Track yields the index and value of every element of items, redrawing the
// bar after each one. A bar is drawn at 0% before the first element and a
// newline is written once iteration stops.
func Track[T any](r *Reporter, items []T, prefix, suffix string) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		bar := r.Start(len(items), prefix, suffix)
		defer bar.Finish()
		for i, item := range items {
			if !yield(i, item) {
				return
			}
			bar.Increment()
		}
	}
}
