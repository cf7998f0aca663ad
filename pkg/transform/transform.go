// Package transform converts Limitless lifelogs into Omi conversations and
// splits conversations that exceed the destination segment limit.
package transform

import (
	"strings"

	"lifelog-migrate/pkg/domain"
)

// MaxSegments is the Omi limit on transcript segments per conversation.
const MaxSegments = 500

// Transform converts one lifelog into a conversation payload.
//
// Only blockquote blocks with non-blank text become segments. A lifelog
// with no such blocks yields a conversation with no segments; callers
// must skip it rather than upload it.
func Transform(l *domain.Lifelog) domain.Conversation {
	speakers := newSpeakerMap()
	segments := make([]domain.TranscriptSegment, 0, len(l.Contents))

	for _, block := range l.Contents {
		text, ok := retainedText(block)
		if !ok {
			continue
		}
		sp := speakers.Lookup(block.Speaker())
		segments = append(segments, domain.TranscriptSegment{
			Text:      text,
			Speaker:   sp.Label,
			SpeakerID: sp.Index,
			IsUser:    false,
			Start:     msToSeconds(block.StartOffsetMs),
			End:       msToSeconds(block.EndOffsetMs),
		})
	}

	return domain.Conversation{
		TranscriptSegments: segments,
		StartedAt:          l.StartTime,
		FinishedAt:         l.EndTime,
		Source:             domain.ConversationSource,
		Language:           domain.ConversationLanguage,
	}
}

// SegmentCount returns how many segments Transform would produce for l.
func SegmentCount(l *domain.Lifelog) int {
	n := 0
	for _, block := range l.Contents {
		if _, ok := retainedText(block); ok {
			n++
		}
	}
	return n
}

// Chunks returns how many conversations n segments are split into.
func Chunks(n, max int) int {
	if n <= 0 {
		return 0
	}
	if max <= 0 || n <= max {
		return 1
	}
	return (n + max - 1) / max
}

// Split partitions c into contiguous chunks of at most max segments.
// Payloads within the limit are returned unchanged as a single element.
func Split(c domain.Conversation, max int) []domain.Conversation {
	segments := c.TranscriptSegments
	if max <= 0 || len(segments) <= max {
		return []domain.Conversation{c}
	}

	out := make([]domain.Conversation, 0, Chunks(len(segments), max))
	for start := 0; start < len(segments); start += max {
		end := start + max
		if end > len(segments) {
			end = len(segments)
		}
		out = append(out, domain.Conversation{
			TranscriptSegments: segments[start:end:end],
			StartedAt:          c.StartedAt,
			FinishedAt:         c.FinishedAt,
			Source:             c.Source,
			Language:           c.Language,
		})
	}
	return out
}

// Payloads transforms and splits l in one step. An empty result means the
// lifelog has nothing to import.
func Payloads(l *domain.Lifelog, max int) []domain.Conversation {
	c := Transform(l)
	if c.IsEmpty() {
		return nil
	}
	return Split(c, max)
}

func retainedText(block domain.ContentBlock) (string, bool) {
	if !block.IsTranscript() {
		return "", false
	}
	text := strings.TrimSpace(block.Content)
	return text, text != ""
}

func msToSeconds(ms *float64) float64 {
	if ms == nil {
		return 0
	}
	return *ms / 1000.0
}
