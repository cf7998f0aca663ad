package domain

// BlockTypeBlockquote marks a content block that carries literal quoted speech.
// Headings and AI summaries use other types and are ignored by the transform.
const BlockTypeBlockquote = "blockquote"

// UnknownSpeaker is used when a content block has no speaker name.
const UnknownSpeaker = "Unknown"

// Lifelog represents one Limitless journaling entry.
//
// StartTime and EndTime are kept as the raw RFC 3339 strings returned by the
// API so they can be copied verbatim into destination payloads.
type Lifelog struct {
	ID        string         `json:"id"`
	Title     string         `json:"title,omitempty"`
	StartTime string         `json:"startTime,omitempty"`
	EndTime   string         `json:"endTime,omitempty"`
	Contents  []ContentBlock `json:"contents,omitempty"`
}

// ContentBlock is one line item within a lifelog.
type ContentBlock struct {
	Type          string   `json:"type"`
	Content       string   `json:"content"`
	SpeakerName   *string  `json:"speakerName,omitempty"`
	StartOffsetMs *float64 `json:"startOffsetMs,omitempty"`
	EndOffsetMs   *float64 `json:"endOffsetMs,omitempty"`
}

// IsTranscript reports whether the block carries quoted speech.
func (b ContentBlock) IsTranscript() bool {
	return b.Type == BlockTypeBlockquote
}

// Speaker returns the speaker display name, or UnknownSpeaker when absent.
func (b ContentBlock) Speaker() string {
	if b.SpeakerName == nil {
		return UnknownSpeaker
	}
	return *b.SpeakerName
}

// Date returns the calendar date portion (YYYY-MM-DD) of the start time,
// or an empty string when the start time is missing or too short.
func (l *Lifelog) Date() string {
	if len(l.StartTime) < 10 {
		return ""
	}
	return l.StartTime[:10]
}

// DisplayTitle returns the title truncated to max runes, or "Untitled".
func (l *Lifelog) DisplayTitle(max int) string {
	title := l.Title
	if title == "" {
		title = "Untitled"
	}
	r := []rune(title)
	if max > 0 && len(r) > max {
		return string(r[:max])
	}
	return title
}
