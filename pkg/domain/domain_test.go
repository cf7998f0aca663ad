package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifelogDecodesAPIShape(t *testing.T) {
	raw := `{"id":"l1","title":"Walk","startTime":"2025-01-15T09:00:00-08:00","endTime":"2025-01-15T09:30:00-08:00",
	"markdown":"ignored","contents":[
	  {"type":"blockquote","content":"hi","speakerName":"Ana","startOffsetMs":1500,"endOffsetMs":2500},
	  {"type":"blockquote","content":"anyone?"}]}`

	var l Lifelog
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	assert.Equal(t, "2025-01-15", l.Date())
	require.Len(t, l.Contents, 2)
	assert.Equal(t, "Ana", l.Contents[0].Speaker())
	assert.Equal(t, 1500.0, *l.Contents[0].StartOffsetMs)
	assert.Equal(t, UnknownSpeaker, l.Contents[1].Speaker())
	assert.Nil(t, l.Contents[1].EndOffsetMs)
}

func TestConversationWireNames(t *testing.T) {
	b, err := json.Marshal(Conversation{
		TranscriptSegments: []TranscriptSegment{{Text: "hi", Speaker: "SPEAKER_00", Start: 1.5, End: 2}},
		StartedAt:          "s",
		FinishedAt:         "f",
		Source:             ConversationSource,
		Language:           ConversationLanguage,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"transcript_segments":[{"text":"hi","speaker":"SPEAKER_00","speaker_id":0,"is_user":false,"start":1.5,"end":2}],
		"started_at":"s","finished_at":"f","source":"phone","language":"en"}`, string(b))
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Untitled", (&Lifelog{}).DisplayTitle(30))
	assert.Equal(t, "Café", (&Lifelog{Title: "Café au lait"}).DisplayTitle(4))
	assert.Equal(t, "Short", (&Lifelog{Title: "Short"}).DisplayTitle(30))
}

func TestDateTooShort(t *testing.T) {
	assert.Empty(t, (&Lifelog{StartTime: "2025-01"}).Date())
}

func TestOutcomeRow(t *testing.T) {
	o := Outcome{Index: 4, LifelogID: "l", Status: StatusPartial, Parts: 1, Total: 2,
		Errors: []error{errors.New("chunk 2/2: 500")}}
	row := o.Row("run-1")
	assert.Equal(t, "run-1", row.RunID)
	assert.Equal(t, "partial", row.Status)
	assert.Equal(t, []string{"chunk 2/2: 500"}, row.Errors)
	assert.Nil(t, (&Outcome{}).ErrorMessages())
}
