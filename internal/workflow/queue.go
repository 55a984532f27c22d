// internal/workflow/queue.go
package workflow

import (
	"sort"

	"github.com/Corphon/BookFlow/internal/models"
)

// InQueue reports whether a chapter with status s belongs in role's work queue.
//
// The writer queue is everything not yet approved or published, so reviewed
// chapters stay visible to writers even though the writer has no legal action on them.
func InQueue(role models.Role, s models.Status) bool {
	switch role {
	case models.RoleWriter:
		return s != models.StatusPublished && s != models.StatusWriterApproved
	case models.RoleReviewer:
		return s == models.StatusWriterApproved
	case models.RoleEditor:
		return s == models.StatusReviewed
	case models.RoleReader:
		return s == models.StatusPublished
	}
	return false
}

// Queue filters chapters down to role's queue, newest first.
func Queue(role models.Role, chapters []models.Chapter) []models.Chapter {
	out := make([]models.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if InQueue(role, ch.Status) {
			out = append(out, ch)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Changed().After(out[j].Changed())
	})
	return out
}

// Draft is the pre-populated editable state when a role opens a chapter.
type Draft struct {
	Text     string `json:"text"`
	Feedback string `json:"feedback,omitempty"`
	Rating   int    `json:"rating,omitempty"`
}

// Seed returns the editable fields for role, carried forward from earlier stages.
func Seed(role models.Role, ch models.Chapter) Draft {
	switch role {
	case models.RoleWriter:
		return Draft{Text: firstNonEmpty(ch.WriterText, ch.AIVersion)}
	case models.RoleReviewer:
		return Draft{Text: ch.WriterText, Feedback: ch.ReviewerFeedback}
	case models.RoleEditor:
		return Draft{
			Text:   firstNonEmpty(ch.FinalVersion, ch.ReviewerVersion, ch.WriterText),
			Rating: ch.Rating,
		}
	}
	return Draft{}
}

// firstNonEmpty returns the first non-empty value, or "".
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
