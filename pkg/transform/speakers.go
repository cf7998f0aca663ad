package transform

import "fmt"

// speakerLabel is the synthetic identity assigned to one speaker name.
type speakerLabel struct {
	Label string
	Index int
}

// speakerMap assigns SPEAKER_XX labels in first-seen order. A new map is
// built for every lifelog, so labels are never shared across lifelogs.
type speakerMap struct {
	byName map[string]speakerLabel
	order  []string
}

func newSpeakerMap() *speakerMap {
	return &speakerMap{byName: make(map[string]speakerLabel)}
}

// Lookup returns the label for name, assigning the next ordinal if unseen.
func (m *speakerMap) Lookup(name string) speakerLabel {
	if l, ok := m.byName[name]; ok {
		return l
	}
	l := speakerLabel{
		Label: fmt.Sprintf("SPEAKER_%02d", len(m.order)),
		Index: len(m.order),
	}
	m.byName[name] = l
	m.order = append(m.order, name)
	return l
}
