// internal/search/index.go
package search

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Corphon/BookFlow/internal/models"
	"github.com/Corphon/BookFlow/internal/workflow"
)

// Index is a full-text index of published chapters.
type Index struct {
	index bleve.Index
}

// IndexedChapter is the document stored per published chapter.
type IndexedChapter struct {
	ID           string
	Title        string
	BookName     string
	Content      string
	Rating       int
	LastModified time.Time
}

// Hit is one search result.
type Hit struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	BookName  string              `json:"book_name"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// Open opens the index at path, creating it if missing. An empty path gives an in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping uses the English analyzer for titles and book names.
func buildIndexMapping() mapping.IndexMapping {
	englishText := bleve.NewTextFieldMapping()
	englishText.Analyzer = "en"

	keyword := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", keyword)
	docMapping.AddFieldMappingsAt("Title", englishText)
	docMapping.AddFieldMappingsAt("BookName", englishText)
	docMapping.AddFieldMappingsAt("Content", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Rating", bleve.NewNumericFieldMapping())
	docMapping.AddFieldMappingsAt("LastModified", bleve.NewDateTimeFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func (i *Index) Close() error {
	return i.index.Close()
}

func fromEntry(e workflow.Entry) *IndexedChapter {
	return &IndexedChapter{
		ID:           e.ID,
		Title:        e.Title,
		BookName:     e.BookName,
		Content:      e.FinalContent,
		Rating:       e.Rating,
		LastModified: e.LastModified,
	}
}

// IndexChapter adds or replaces a published chapter. Other statuses are removed.
func (i *Index) IndexChapter(ch models.Chapter) error {
	if ch.Status != models.StatusPublished {
		return i.index.Delete(ch.ID)
	}
	doc := fromEntry(workflow.NewEntry(ch, time.Now().UTC()))
	return i.index.Index(doc.ID, doc)
}

// Rebuild indexes every published chapter in one batch.
func (i *Index) Rebuild(chapters []models.Chapter) (int, error) {
	entries := workflow.Library(chapters, time.Now().UTC())

	batch := i.index.NewBatch()
	for _, e := range entries {
		doc := fromEntry(e)
		if err := batch.Index(doc.ID, doc); err != nil {
			return 0, fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return len(entries), nil
}

// Search runs a query-string query (quotes, boolean operators, fuzzy ~) with highlighting.
func (i *Index) Search(queryStr string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = workflow.DefaultSearchLimit
	}
	query := bleve.NewQueryStringQuery(queryStr)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Fields = []string{"Title", "BookName"}

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hit := Hit{ID: h.ID, Score: h.Score, Fragments: h.Fragments}
		if title, ok := h.Fields["Title"].(string); ok {
			hit.Title = title
		}
		if book, ok := h.Fields["BookName"].(string); ok {
			hit.BookName = book
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of indexed chapters.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
