// Package output renders run summaries for the terminal.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"lifelog-migrate/pkg/domain"
	"lifelog-migrate/pkg/migrationservice"
	"lifelog-migrate/pkg/worker"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintln(f.w, dimStyle.Render("•")+" "+msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintln(f.w, partialStyle.Render("! "+msg))
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintln(f.w, errorStyle.Render("✗ "+msg))
}

func row(label string, value any) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprint(value))
}

// Plan prints the pre-flight analysis.
func (f *Formatter) Plan(p *migrationservice.Plan) {
	s := p.Stats
	lines := []string{
		titleStyle.Render("Import plan"),
		row("Window", p.Window.String()),
		row("Lifelogs", s.TotalLifelogs),
		row("Importable", s.Importable),
		row("Empty (skipped)", s.EmptyCount),
		row("Transcript segments", s.TotalSegments),
		row("Oversized (split)", fmt.Sprintf("%d (+%d conversations)", s.OversizedCount, s.ExtraConversations)),
		row("Omi conversations", s.TotalConversations),
		row("Workers", p.Workers),
		row("Rate limit", fmt.Sprintf("%d/min", p.RPM)),
		row("Estimated time", formatDuration(p.Estimate)),
	}
	if p.FetchErrors > 0 {
		lines = append(lines, row("Days with fetch errors", partialStyle.Render(fmt.Sprint(p.FetchErrors))))
	}
	fmt.Fprintln(f.w, boxStyle.Render(strings.Join(lines, "\n")))

	if r := p.Window.Range; r != nil {
		switch {
		case r.CeilingReached:
			f.Warning("Lifelogs reach back past the lookback ceiling; the earliest date was found day by day.")
		case !r.Complete:
			f.Warning("Date range may be incomplete; a lookup failed and older lifelogs could exist.")
		}
	}

	if len(s.Dates) > 0 {
		fmt.Fprintln(f.w, dimStyle.Render("Lifelogs per day:"))
		for _, d := range s.SortedDates() {
			fmt.Fprintf(f.w, "  %s  %d\n", d, s.Dates[d])
		}
	}
}

// Preview prints the dry-run sample conversion.
func (f *Formatter) Preview(p *migrationservice.Preview) {
	if p == nil {
		return
	}
	lines := []string{
		titleStyle.Render("Dry run: sample conversion"),
		row("Title", p.Title),
		row("Started", p.StartedAt),
		row("Segments", p.Segments),
		row("Conversations", p.Conversations),
	}
	if p.FirstSegment != "" {
		lines = append(lines, row("First segment", p.FirstSegment))
	} else {
		lines = append(lines, dimStyle.Render("No transcript; this lifelog would be skipped."))
	}
	fmt.Fprintln(f.w, boxStyle.Render(strings.Join(lines, "\n")))
	f.Info("Dry run complete. Nothing was uploaded.")
}

// Outcome prints one line per finished lifelog.
func (f *Formatter) Outcome(o domain.Outcome, total int) {
	var mark string
	switch o.Status {
	case domain.StatusSuccess:
		mark = successStyle.Render("✓")
	case domain.StatusPartial:
		mark = partialStyle.Render("◐")
	case domain.StatusFailed:
		mark = errorStyle.Render("✗")
	case domain.StatusInterrupted:
		mark = partialStyle.Render("⏸")
	default:
		mark = dimStyle.Render("-")
	}
	detail := dimStyle.Render(string(o.Status))
	if o.Total > 0 {
		detail = dimStyle.Render(fmt.Sprintf("%d/%d", o.Parts, o.Total))
	}
	fmt.Fprintf(f.w, "%s [%d/%d] %s %s\n", mark, o.Index+1, total, o.Title, detail)
}

// Tally prints the final counters.
func (f *Formatter) Tally(s worker.Summary) {
	lines := []string{
		titleStyle.Render("Import complete"),
		row("Processed", fmt.Sprintf("%d/%d", s.Processed, s.Total)),
		row("Successful", successStyle.Render(fmt.Sprint(s.Success))),
		row("Partial", partialStyle.Render(fmt.Sprint(s.Partial))),
		row("Failed", errorStyle.Render(fmt.Sprint(s.Failed))),
		row("Skipped", s.Skipped),
		row("Interrupted", s.Interrupted),
		row("Omi conversations", s.Conversations),
		row("Elapsed", fmt.Sprintf("%.1f min", s.Elapsed.Minutes())),
		row("Avg per conversation", fmt.Sprintf("%.1fs", s.AvgPerConversation().Seconds())),
	}
	fmt.Fprintln(f.w, boxStyle.Render(strings.Join(lines, "\n")))
}

// Table prints rows under headers with columns aligned.
func (f *Formatter) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}

	render := func(cells []string, style lipgloss.Style) string {
		// Cells beyond the header count are dropped.
		n := min(len(cells), len(widths))
		parts := make([]string, n)
		for i, c := range cells[:n] {
			parts[i] = style.Width(widths[i]).Render(c)
		}
		return strings.Join(parts, "  ")
	}
	fmt.Fprintln(f.w, render(headers, titleStyle))
	for _, r := range rows {
		fmt.Fprintln(f.w, render(r, lipgloss.NewStyle()))
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	return fmt.Sprintf("%.1f min", d.Minutes())
}
