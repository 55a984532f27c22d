// internal/workflow/library.go
package workflow

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Corphon/BookFlow/internal/models"
)

// DefaultSearchLimit caps the result of an empty search.
const DefaultSearchLimit = 10

// bookNamePatterns are tried in order; the first capture wins.
var bookNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+?)\s+Chapter\s+`),
	regexp.MustCompile(`(?i)^(.+?)\s+Ch\.\s+`),
	regexp.MustCompile(`(?i)^(.+?)\s+Part\s+`),
	regexp.MustCompile(`^(.+?):\s*`),
	regexp.MustCompile(`^(.+?)\s+-\s+`),
}

// ExtractBookName derives a book name from a chapter title.
func ExtractBookName(title string) string {
	if title == "" {
		return UnknownBook
	}
	for _, re := range bookNamePatterns {
		if m := re.FindStringSubmatch(title); m != nil && m[1] != "" {
			return strings.TrimSpace(m[1])
		}
	}
	return title
}

// Entry is a published chapter as listed in the reader library.
type Entry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	BookName        string    `json:"book_name"`
	FinalContent    string    `json:"final_content"`
	OriginalContent string    `json:"original_content"`
	Rating          int       `json:"rating"`
	LastModified    time.Time `json:"last_modified"`
}

// NewEntry maps a published chapter into a library entry. now stands in for a missing timestamp.
func NewEntry(ch models.Chapter, now time.Time) Entry {
	title := firstNonEmpty(ch.Chapter, ch.Book, ch.Title, UntitledChapter)
	modified := ch.Changed()
	if modified.IsZero() {
		modified = now
	}
	return Entry{
		ID:              ch.ID,
		Title:           title,
		BookName:        ExtractBookName(title),
		FinalContent:    firstNonEmpty(ch.FinalVersion, ch.WriterText, ch.AIVersion),
		OriginalContent: ch.Content,
		Rating:          ch.Rating,
		LastModified:    modified,
	}
}

// Library builds the reader list: published chapters only, newest first.
func Library(chapters []models.Chapter, now time.Time) []Entry {
	entries := make([]Entry, 0, len(chapters))
	for _, ch := range chapters {
		if ch.Status == models.StatusPublished {
			entries = append(entries, NewEntry(ch, now))
		}
	}
	sortNewestFirst(entries)
	return entries
}

// BestRated collapses entries sharing a title (case-insensitive) to the highest rated one.
// On equal ratings the first entry seen is kept.
func BestRated(entries []Entry) []Entry {
	best := make(map[string]int, len(entries))
	var out []Entry
	for _, e := range entries {
		key := strings.ToLower(e.Title)
		idx, seen := best[key]
		if !seen {
			best[key] = len(out)
			out = append(out, e)
			continue
		}
		if e.Rating > out[idx].Rating {
			out[idx] = e
		}
	}
	return out
}

// Book is one group of the library.
type Book struct {
	Name     string  `json:"name"`
	Chapters []Entry `json:"chapters"`
}

// GroupByBook groups entries by book name, collapses duplicate titles, and sorts each
// book newest first. Books are ordered by name.
func GroupByBook(entries []Entry) []Book {
	grouped := make(map[string][]Entry)
	var names []string
	for _, e := range entries {
		name := ExtractBookName(e.Title)
		if _, ok := grouped[name]; !ok {
			names = append(names, name)
		}
		grouped[name] = append(grouped[name], e)
	}
	sort.Strings(names)

	books := make([]Book, 0, len(names))
	for _, name := range names {
		chapters := BestRated(grouped[name])
		sortNewestFirst(chapters)
		books = append(books, Book{Name: name, Chapters: chapters})
	}
	return books
}

// Search filters entries by case-insensitive substring of book name or title.
// A blank query returns the DefaultSearchLimit most recent entries.
func Search(entries []Entry, query string) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sortNewestFirst(sorted)

	if strings.TrimSpace(query) == "" {
		if len(sorted) > DefaultSearchLimit {
			sorted = sorted[:DefaultSearchLimit]
		}
		return sorted
	}

	q := strings.ToLower(query)
	out := make([]Entry, 0)
	for _, e := range sorted {
		if strings.Contains(strings.ToLower(ExtractBookName(e.Title)), q) ||
			strings.Contains(strings.ToLower(e.Title), q) {
			out = append(out, e)
		}
	}
	return out
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastModified.After(entries[j].LastModified)
	})
}
