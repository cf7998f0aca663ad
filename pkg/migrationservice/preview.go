package migrationservice

import (
	"fmt"

	"lifelog-migrate/pkg/transform"
)

// Preview shows how the first lifelog of a plan would be converted.
type Preview struct {
	Title         string
	StartedAt     string
	Segments      int
	Conversations int
	// FirstSegment is "SPEAKER_XX: text", text cut to 60 runes. Empty when
	// the lifelog has no transcript.
	FirstSegment string
}

// NewPreview converts plan's first lifelog without uploading it. It returns
// nil for an empty plan.
func NewPreview(plan *Plan, maxSegments int) *Preview {
	if plan == nil || len(plan.Lifelogs) == 0 {
		return nil
	}
	l := &plan.Lifelogs[0]
	conv := transform.Transform(l)

	p := &Preview{
		Title:         l.DisplayTitle(50),
		StartedAt:     truncate(l.StartTime, 19),
		Segments:      len(conv.TranscriptSegments),
		Conversations: transform.Chunks(len(conv.TranscriptSegments), maxSegments),
	}
	if !conv.IsEmpty() {
		first := conv.TranscriptSegments[0]
		p.FirstSegment = fmt.Sprintf("%s: %s", first.Speaker, truncate(first.Text, 60))
	}
	return p
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
