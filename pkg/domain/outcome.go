package domain

// Status classifies what happened to one lifelog during an import run.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	// StatusInterrupted means the run was cancelled before every chunk of
	// the lifelog was attempted. Chunks already uploaded are kept in Parts.
	StatusInterrupted Status = "interrupted"
)

// Outcome is the per-lifelog result of an import.
type Outcome struct {
	// Index is the lifelog's position in the submitted slice.
	Index int
	// LifelogID is the source identifier.
	LifelogID string
	Status    Status
	// Parts is the number of conversations successfully created.
	Parts int
	// Total is the number of conversations attempted after splitting.
	Total int
	// Title is truncated for reporting.
	Title string
	// Errors holds one entry per failed upload, in chunk order.
	Errors []error
}

// ErrorMessages returns the captured upload errors as strings.
func (o *Outcome) ErrorMessages() []string {
	if len(o.Errors) == 0 {
		return nil
	}
	out := make([]string, 0, len(o.Errors))
	for _, err := range o.Errors {
		out = append(out, err.Error())
	}
	return out
}
