package domain

const (
	// ConversationSource is the provenance tag sent with every payload.
	ConversationSource = "phone"

	// ConversationLanguage is the language tag sent with every payload.
	ConversationLanguage = "en"
)

// TranscriptSegment is one utterance in the Omi from-segments format.
type TranscriptSegment struct {
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker"`
	SpeakerID int     `json:"speaker_id"`
	IsUser    bool    `json:"is_user"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// Conversation is the payload accepted by the Omi from-segments endpoint.
//
// When a lifelog is split, every chunk carries the original lifelog's
// StartedAt/FinishedAt, so the timestamps do not bound a chunk's segments.
type Conversation struct {
	TranscriptSegments []TranscriptSegment `json:"transcript_segments"`
	StartedAt          string              `json:"started_at,omitempty"`
	FinishedAt         string              `json:"finished_at,omitempty"`
	Source             string              `json:"source"`
	Language           string              `json:"language"`
}

// IsEmpty reports whether the conversation has no segments and must be skipped.
func (c *Conversation) IsEmpty() bool {
	return len(c.TranscriptSegments) == 0
}
