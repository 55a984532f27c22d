package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/Corphon/BookFlow/internal/models"
)

func TestExtractBookName(t *testing.T) {
	cases := map[string]string{
		"":                             UnknownBook,
		"Moby Dick Chapter 12":         "Moby Dick",
		"moby dick chapter 12":         "moby dick",
		"War and Peace Ch. 3":          "War and Peace",
		"Middlemarch Part 2":           "Middlemarch",
		"Dracula: The Voyage":          "Dracula",
		"Emma - Volume One":            "Emma",
		"Standalone":                   "Standalone",
		"Moby Dick/Chapter 1":          "Moby Dick/Chapter 1",
		"The Odyssey Chapter 1: Begin": "The Odyssey",
	}
	for title, want := range cases {
		if got := ExtractBookName(title); got != want {
			t.Fatalf("ExtractBookName(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestDisplayTitle(t *testing.T) {
	if got := DisplayTitle(models.Chapter{Chapter: "Book/Part 1/Chapter 3", Title: "ignored"}); got != "Chapter 3" {
		t.Fatalf("expected last path segment, got %q", got)
	}
	if got := DisplayTitle(models.Chapter{Chapter: "Book/", Title: "Fallback"}); got != "Fallback" {
		t.Fatalf("expected title fallback, got %q", got)
	}
	if got := DisplayTitle(models.Chapter{}); got != UntitledChapter {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestRenderPlaceholders(t *testing.T) {
	v := Render(models.Chapter{ID: "x"})
	checks := map[string][2]string{
		"original":          {v.Original, NoOriginalContent},
		"ai_version":        {v.AIVersion, NoAIVersion},
		"writer_text":       {v.WriterText, NoWriterEdits},
		"writer_submission": {v.WriterSubmission, NoWriterSubmission},
		"reviewer_version":  {v.ReviewerVersion, NoReviewerEdits},
		"reviewer_feedback": {v.ReviewerFeedback, NoFeedback},
		"published":         {v.Published, NoPublishedContent},
		"title":             {v.Title, UntitledChapter},
		"status":            {v.Status, "new"},
	}
	for field, pair := range checks {
		if pair[0] != pair[1] {
			t.Fatalf("%s: got %q, want %q", field, pair[0], pair[1])
		}
	}
	if v.Chapter.Content != "" {
		t.Fatalf("placeholders must not leak into the stored record")
	}

	v = Render(models.Chapter{Content: "text", FinalVersion: "done"})
	if v.Original != "text" || v.Published != "done" {
		t.Fatalf("real values should be shown, got %+v", v)
	}
}

func TestLibraryPublishedOnly(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	chapters := []models.Chapter{
		{ID: "a", Status: models.StatusReviewed, Chapter: "Book A Chapter 1"},
		{ID: "b", Status: models.StatusPublished, Chapter: "Book A Chapter 2", FinalVersion: "final", LastModified: now.Add(-time.Hour)},
		{ID: "c", Status: models.StatusPublished, Title: "Loose", WriterText: "writer only"},
	}
	entries := Library(chapters, now)
	if len(entries) != 2 {
		t.Fatalf("expected 2 published entries, got %d", len(entries))
	}
	if entries[0].ID != "c" || !entries[0].LastModified.Equal(now) {
		t.Fatalf("missing timestamp should default to now and sort first, got %+v", entries[0])
	}
	if entries[0].FinalContent != "writer only" {
		t.Fatalf("final content falls back to writer text, got %q", entries[0].FinalContent)
	}
	if entries[1].BookName != "Book A" {
		t.Fatalf("unexpected book name %q", entries[1].BookName)
	}
}

func TestBestRatedKeepsFirstOnTie(t *testing.T) {
	entries := []Entry{
		{ID: "1", Title: "Tale Chapter 1", Rating: 3},
		{ID: "2", Title: "tale chapter 1", Rating: 3},
		{ID: "3", Title: "Tale Chapter 2", Rating: 2},
		{ID: "4", Title: "TALE CHAPTER 2", Rating: 5},
	}
	got := BestRated(entries)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != "1" {
		t.Fatalf("tie should keep the first entry, got %s", got[0].ID)
	}
	if got[1].ID != "4" {
		t.Fatalf("higher rating should win, got %s", got[1].ID)
	}
}

func TestGroupByBook(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "z1", Title: "Zorro Chapter 1", LastModified: base},
		{ID: "a1", Title: "Alice Chapter 1", LastModified: base},
		{ID: "a2", Title: "Alice Chapter 2", LastModified: base.Add(time.Hour)},
		{ID: "a1b", Title: "alice chapter 1", Rating: 4, LastModified: base.Add(2 * time.Hour)},
	}
	books := GroupByBook(entries)
	if len(books) != 3 {
		t.Fatalf("expected books Alice, Zorro and alice, got %+v", books)
	}
	if books[0].Name != "Alice" || books[1].Name != "Zorro" || books[2].Name != "alice" {
		t.Fatalf("books should be sorted by name, got %s, %s, %s", books[0].Name, books[1].Name, books[2].Name)
	}
	alice := books[0].Chapters
	if len(alice) != 2 || alice[0].ID != "a2" || alice[1].ID != "a1" {
		t.Fatalf("unexpected Alice chapters %+v", alice)
	}
}

func TestSearch(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var entries []Entry
	for i := 0; i < 15; i++ {
		entries = append(entries, Entry{
			ID:           fmt.Sprintf("e%d", i),
			Title:        fmt.Sprintf("Book%d Chapter 1", i%3),
			LastModified: base.Add(time.Duration(i) * time.Minute),
		})
	}

	top := Search(entries, "  ")
	if len(top) != DefaultSearchLimit {
		t.Fatalf("blank query should return %d entries, got %d", DefaultSearchLimit, len(top))
	}
	if top[0].ID != "e14" {
		t.Fatalf("blank query should be newest first, got %s", top[0].ID)
	}

	hits := Search(entries, "BOOK1")
	if len(hits) != 5 {
		t.Fatalf("expected 5 case-insensitive matches, got %d", len(hits))
	}
	for _, h := range hits {
		if ExtractBookName(h.Title) != "Book1" {
			t.Fatalf("unexpected hit %+v", h)
		}
	}

	if got := Search(entries, "nothing"); len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
	if entries[0].ID != "e0" {
		t.Fatalf("Search must not reorder its input")
	}
}
