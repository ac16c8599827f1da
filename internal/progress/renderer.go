package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/mattn/go-isatty"
)

var barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

// BarRenderer keeps one status line redrawn in place on a terminal. When
// out is not a terminal it prints a line per stage instead, so logs and CI
// output stay readable.
type BarRenderer struct {
	out   io.Writer
	start time.Time
	tty   bool
	cols  int

	last  Event
	drawn bool  // a status line is on screen
	stage Stage // last stage printed in plain mode
}

// NewBarRenderer creates a renderer for out, or stderr when out is nil.
func NewBarRenderer(out *os.File) *BarRenderer {
	if out == nil {
		out = os.Stderr
	}
	r := &BarRenderer{out: out, start: time.Now(), cols: 80}

	fd := out.Fd()
	r.tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if r.tty {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			r.cols = w
		}
	}
	return r
}

// Handle is a Callback.
func (r *BarRenderer) Handle(e Event) {
	e.Elapsed = time.Since(r.start)
	if e.Stage == StageComplete {
		e.Percent = 1
	}
	r.last = e

	if r.tty {
		r.redraw(e)
		return
	}
	if e.LineTotal > 0 && e.Stage == r.stage {
		return
	}
	r.stage = e.Stage
	fmt.Fprintf(r.out, "[%s] %s\n", clock(e.Elapsed), e.Message)
}

// Finish removes the status line and prints the run summary.
func (r *BarRenderer) Finish() {
	if r.drawn {
		fmt.Fprint(r.out, "\r\033[2K")
		r.drawn = false
	}
	for _, l := range summary(r.last) {
		fmt.Fprintln(r.out, l)
	}
}

// redraw overwrites the status line: label, bar, percent and elapsed time.
// The label is padded to a fixed width so the bar does not move.
func (r *BarRenderer) redraw(e Event) {
	label := e.Message
	if e.LineTotal > 0 {
		label = fmt.Sprintf("%s (%d/%d)", e.Message, e.LineNum, e.LineTotal)
	}
	label = fit(label, r.cols/3)
	tail := fmt.Sprintf("%3d%%  %s", int(e.Percent*100), clock(e.Elapsed))

	width := min(max(r.cols-len(tail)-lipgloss.Width(label)-8, 10), 50)
	fmt.Fprintf(r.out, "\r\033[2K  %s %s %s", label, barStyle.Render(renderBar(e.Percent, width)), tail)
	r.drawn = true
}

// summary is what stays on screen once a run ends.
func summary(e Event) []string {
	if e.Error != nil {
		return []string{"", "  Error: " + e.Error.Error()}
	}
	if e.Stage != StageComplete {
		return nil
	}
	if e.Duration == "" && e.SizeMB == 0 {
		// No audio was produced, e.g. a script-only run.
		if e.OutputFile == "" {
			return []string{"", fmt.Sprintf("  %s (%s)", e.Message, clock(e.Elapsed))}
		}
		return []string{"", fmt.Sprintf("  %s to %s (%s)", e.Message, e.OutputFile, clock(e.Elapsed))}
	}

	saved := "  Podcast saved to " + e.OutputFile
	if e.Duration != "" {
		saved += fmt.Sprintf(" (%s, %.1f MB)", e.Duration, e.SizeMB)
	} else {
		saved += fmt.Sprintf(" (%.1f MB)", e.SizeMB)
	}
	out := []string{"", saved}
	if e.Skipped > 0 {
		out = append(out, fmt.Sprintf("  %d line(s) could not be voiced and were skipped", e.Skipped))
	}
	if e.PermalinkURL != "" {
		out = append(out, "  Published: "+e.PermalinkURL)
	}
	return append(out, "  Total: "+clock(e.Elapsed))
}

// renderBar draws a [####....] bar; pct is clamped to 0..1.
func renderBar(pct float64, width int) string {
	pct = min(max(pct, 0), 1)
	filled := int(pct * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// fit pads or truncates s to exactly n runes.
func fit(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		if n <= 1 {
			return string(rs[:n])
		}
		return string(rs[:n-1]) + "…"
	}
	return s + strings.Repeat(" ", n-len(rs))
}

// clock formats d as M:SS.
func clock(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
