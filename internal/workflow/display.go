// internal/workflow/display.go
package workflow

import (
	"strings"

	"github.com/Corphon/BookFlow/internal/models"
)

// Placeholders shown in place of missing data.
const (
	UntitledChapter    = "Untitled Chapter"
	NoOriginalContent  = "No original content available"
	NoAIVersion        = "No AI version available"
	NoWriterEdits      = "No writer edits available"
	NoWriterSubmission = "No writer submission"
	NoReviewerEdits    = "No reviewer edits"
	NoFeedback         = "No feedback provided"
	NoPublishedContent = "No content available."
	UnknownBook        = "Unknown Book"
)

// DisplayTitle is the last "/" segment of the chapter path, else the title, else a placeholder.
func DisplayTitle(ch models.Chapter) string {
	if ch.Chapter != "" {
		parts := strings.Split(ch.Chapter, "/")
		if last := parts[len(parts)-1]; last != "" {
			return last
		}
	}
	if ch.Title != "" {
		return ch.Title
	}
	return UntitledChapter
}

// View is a read-only rendering of a chapter with placeholders filled in.
type View struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Status           string         `json:"status"`
	Revision         int64          `json:"revision"`
	Original         string         `json:"original"`
	AIVersion        string         `json:"ai_version"`
	WriterText       string         `json:"writer_text"`
	WriterSubmission string         `json:"writer_submission"`
	ReviewerVersion  string         `json:"reviewer_version"`
	ReviewerFeedback string         `json:"reviewer_feedback"`
	Published        string         `json:"published"`
	Rating           int            `json:"rating,omitempty"`
	Chapter          models.Chapter `json:"chapter"`
}

// Render fills every display field, substituting placeholders for missing text.
func Render(ch models.Chapter) View {
	return View{
		ID:               ch.ID,
		Title:            DisplayTitle(ch),
		Status:           ch.Status.String(),
		Revision:         ch.Revision,
		Original:         orPlaceholder(ch.Content, NoOriginalContent),
		AIVersion:        orPlaceholder(ch.AIVersion, NoAIVersion),
		WriterText:       orPlaceholder(ch.WriterText, NoWriterEdits),
		WriterSubmission: orPlaceholder(ch.WriterText, NoWriterSubmission),
		ReviewerVersion:  orPlaceholder(ch.ReviewerVersion, NoReviewerEdits),
		ReviewerFeedback: orPlaceholder(ch.ReviewerFeedback, NoFeedback),
		Published:        orPlaceholder(ch.FinalVersion, NoPublishedContent),
		Rating:           ch.Rating,
		Chapter:          ch,
	}
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}
