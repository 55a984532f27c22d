// internal/models/chapter.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the routing key of a chapter. The zero value is the "new" state.
type Status string

const (
	StatusNew            Status = ""
	StatusWriterApproved Status = "writer_approved"
	StatusReviewed       Status = "reviewed"
	StatusPublished      Status = "published"
)

// AllStatuses lists every valid status in workflow order.
var AllStatuses = []Status{StatusNew, StatusWriterApproved, StatusReviewed, StatusPublished}

// ParseStatus validates s. "new" and the empty string both mean StatusNew.
func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(s) {
	case "", "new":
		return StatusNew, nil
	case string(StatusWriterApproved):
		return StatusWriterApproved, nil
	case string(StatusReviewed):
		return StatusReviewed, nil
	case string(StatusPublished):
		return StatusPublished, nil
	}
	return StatusNew, fmt.Errorf("unknown chapter status %q", s)
}

// String returns "new" for the zero status.
func (s Status) String() string {
	if s == StatusNew {
		return "new"
	}
	return string(s)
}

// UnmarshalJSON rejects statuses outside the enum.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("chapter status must be a string: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Chapter is the stored record. JSON keys match the document layout under chapters/<id>.
type Chapter struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Chapter string `json:"chapter,omitempty"` // path-like, e.g. "Book/Part 1/Chapter 3"
	Book    string `json:"book,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`

	AIVersion        string `json:"ai_version,omitempty"`
	WriterText       string `json:"writerText,omitempty"`
	ReviewerVersion  string `json:"reviewerVersion,omitempty"`
	ReviewerFeedback string `json:"reviewerFeedback,omitempty"`
	FinalVersion     string `json:"finalVersion,omitempty"`
	Rating           int    `json:"rating,omitempty"`

	Status       Status    `json:"status,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitzero"`
	LastModified time.Time `json:"lastModified,omitzero"`
	Revision     int64     `json:"revision"`
}

// HasDraft reports the implicit draft state: new with writer text saved.
func (c Chapter) HasDraft() bool {
	return c.Status == StatusNew && c.WriterText != ""
}

// Changed returns the most recent known modification time.
func (c Chapter) Changed() time.Time {
	if !c.LastModified.IsZero() {
		return c.LastModified
	}
	return c.Timestamp
}

// Snapshot is a point-in-time view of the whole chapter collection.
type Snapshot struct {
	Chapters []Chapter `json:"chapters"`
	TakenAt  time.Time `json:"taken_at"`
}

// Find returns the chapter with the given id.
func (s Snapshot) Find(id string) (Chapter, bool) {
	for _, ch := range s.Chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chapter{}, false
}
