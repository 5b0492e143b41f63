package api

import (
	"time"

	"tomes/pkg/openlibrary"
	"tomes/pkg/shelf"
)

type SearchResponse struct {
	Query    string            `json:"query"`
	NumFound int               `json:"num_found"`
	Docs     []openlibrary.Doc `json:"docs"`
	Count    int               `json:"count"`
}

type ListBooksResponse struct {
	Books []shelf.Book `json:"books"`
	Count int          `json:"count"`
}

// SaveBookRequest accepts either a search doc (key/title/author_name) or a
// shelf book (id/title/authors). Payloads without an id are treated as docs
// and get one generated.
type SaveBookRequest struct {
	ID               string         `json:"id"`
	Key              string         `json:"key"`
	Title            string         `json:"title"`
	Authors          []string       `json:"authors"`
	AuthorName       []string       `json:"author_name"`
	FirstPublishYear int            `json:"first_publish_year"`
	Metadata         map[string]any `json:"metadata"`
}

func (r SaveBookRequest) toBook() shelf.Book {
	if r.ID != "" {
		return shelf.Book{
			ID:               r.ID,
			Title:            r.Title,
			Authors:          r.Authors,
			FirstPublishYear: r.FirstPublishYear,
			Metadata:         r.Metadata,
		}
	}

	authors := r.AuthorName
	if len(authors) == 0 {
		authors = r.Authors
	}
	return shelf.BookFromDoc(openlibrary.Doc{
		Key:              r.Key,
		Title:            r.Title,
		AuthorName:       authors,
		FirstPublishYear: r.FirstPublishYear,
	})
}

type SaveBookResponse struct {
	Book    shelf.Book `json:"book"`
	Created bool       `json:"created"`
}

type DeleteBookResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type ShelfSearchResponse struct {
	Query string       `json:"query"`
	Books []shelf.Book `json:"books"`
	Count int          `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
