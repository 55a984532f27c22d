// internal/workflow/machine.go
package workflow

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Corphon/BookFlow/internal/errors"
	"github.com/Corphon/BookFlow/internal/models"
)

// Action is a role-triggered event on a chapter.
type Action string

const (
	ActionIngest       Action = "ingest"
	ActionSaveDraft    Action = "save_draft"
	ActionApprove      Action = "approve"
	ActionSubmitReview Action = "submit_review"
	ActionPublish      Action = "publish"
)

// Field names a writable chapter field, using its stored key.
type Field string

const (
	FieldTitle            Field = "title"
	FieldChapter          Field = "chapter"
	FieldBook             Field = "book"
	FieldURL              Field = "url"
	FieldContent          Field = "content"
	FieldAIVersion        Field = "ai_version"
	FieldWriterText       Field = "writerText"
	FieldReviewerVersion  Field = "reviewerVersion"
	FieldReviewerFeedback Field = "reviewerFeedback"
	FieldFinalVersion     Field = "finalVersion"
	FieldRating           Field = "rating"
)

// Transition is one row of the state machine.
type Transition struct {
	From   models.Status
	Action Action
	Role   models.Role
	Fields []Field
	To     models.Status
}

func (t Transition) owns(f Field) bool {
	for _, owned := range t.Fields {
		if owned == f {
			return true
		}
	}
	return false
}

// transitions is the complete set of legal moves. Anything else is rejected.
var transitions = []Transition{
	{
		From:   models.StatusNew,
		Action: ActionIngest,
		Role:   models.RoleReader,
		Fields: []Field{FieldTitle, FieldChapter, FieldBook, FieldURL, FieldContent, FieldAIVersion},
		To:     models.StatusNew,
	},
	{
		From:   models.StatusNew,
		Action: ActionSaveDraft,
		Role:   models.RoleWriter,
		Fields: []Field{FieldWriterText},
		To:     models.StatusNew,
	},
	{
		From:   models.StatusNew,
		Action: ActionApprove,
		Role:   models.RoleWriter,
		Fields: []Field{FieldWriterText},
		To:     models.StatusWriterApproved,
	},
	{
		From:   models.StatusWriterApproved,
		Action: ActionSubmitReview,
		Role:   models.RoleReviewer,
		Fields: []Field{FieldReviewerVersion, FieldReviewerFeedback},
		To:     models.StatusReviewed,
	},
	{
		From:   models.StatusReviewed,
		Action: ActionPublish,
		Role:   models.RoleEditor,
		Fields: []Field{FieldFinalVersion, FieldRating},
		To:     models.StatusPublished,
	},
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// Lookup finds the transition for action taken from status.
func Lookup(from models.Status, action Action) (Transition, error) {
	for _, t := range transitions {
		if t.From == from && t.Action == action {
			return t, nil
		}
	}
	return Transition{}, apperrors.NewInvalidTransitionError(
		fmt.Sprintf("cannot %s a chapter in state %s", action, from), nil)
}

// Patch carries the fields a caller wants to write. Nil pointers are left untouched.
type Patch struct {
	Title            *string
	Chapter          *string
	Book             *string
	URL              *string
	Content          *string
	AIVersion        *string
	WriterText       *string
	ReviewerVersion  *string
	ReviewerFeedback *string
	FinalVersion     *string
	Rating           *int
}

// Fields lists the fields set in p.
func (p Patch) Fields() []Field {
	var fields []Field
	add := func(set bool, f Field) {
		if set {
			fields = append(fields, f)
		}
	}
	add(p.Title != nil, FieldTitle)
	add(p.Chapter != nil, FieldChapter)
	add(p.Book != nil, FieldBook)
	add(p.URL != nil, FieldURL)
	add(p.Content != nil, FieldContent)
	add(p.AIVersion != nil, FieldAIVersion)
	add(p.WriterText != nil, FieldWriterText)
	add(p.ReviewerVersion != nil, FieldReviewerVersion)
	add(p.ReviewerFeedback != nil, FieldReviewerFeedback)
	add(p.FinalVersion != nil, FieldFinalVersion)
	add(p.Rating != nil, FieldRating)
	return fields
}

func (p Patch) mergeInto(ch *models.Chapter) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&ch.Title, p.Title)
	setString(&ch.Chapter, p.Chapter)
	setString(&ch.Book, p.Book)
	setString(&ch.URL, p.URL)
	setString(&ch.Content, p.Content)
	setString(&ch.AIVersion, p.AIVersion)
	setString(&ch.WriterText, p.WriterText)
	setString(&ch.ReviewerVersion, p.ReviewerVersion)
	setString(&ch.ReviewerFeedback, p.ReviewerFeedback)
	setString(&ch.FinalVersion, p.FinalVersion)
	if p.Rating != nil {
		ch.Rating = *p.Rating
	}
}

// Apply runs action on ch as role and returns the merged record.
// Only fields owned by the transition may appear in p; every other field of ch is kept.
func Apply(ch models.Chapter, role models.Role, action Action, p Patch, now time.Time) (models.Chapter, error) {
	if action == ActionIngest && ch.Revision != 0 {
		return models.Chapter{}, apperrors.NewInvalidTransitionError("chapter already ingested", nil)
	}

	t, err := Lookup(ch.Status, action)
	if err != nil {
		return models.Chapter{}, err
	}
	if role != t.Role {
		return models.Chapter{}, apperrors.NewForbiddenError(
			fmt.Sprintf("role %s cannot %s", role, action), nil)
	}

	var foreign []string
	for _, f := range p.Fields() {
		if !t.owns(f) {
			foreign = append(foreign, string(f))
		}
	}
	if len(foreign) > 0 {
		return models.Chapter{}, apperrors.NewValidationError(
			fmt.Sprintf("%s may not write %s", action, strings.Join(foreign, ", ")), nil)
	}

	if action == ActionPublish {
		if p.Rating == nil || *p.Rating < 1 || *p.Rating > 5 {
			return models.Chapter{}, apperrors.NewValidationError("rating must be between 1 and 5", nil)
		}
	}

	merged := ch
	p.mergeInto(&merged)
	merged.Status = t.To
	merged.LastModified = now.UTC()
	if action == ActionIngest && merged.Timestamp.IsZero() {
		merged.Timestamp = now.UTC()
	}
	return merged, nil
}
