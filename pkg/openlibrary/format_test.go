package openlibrary

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"tomes/pkg/log"
)

func TestFormatBook(t *testing.T) {
	tests := []struct {
		name string
		doc  Doc
		want string
	}{
		{
			name: "full record",
			doc:  Doc{Title: "Test Book", AuthorName: []string{"Author One", "Author Two"}},
			want: "Title: Test Book\nAuthor(s): Author One, Author Two",
		},
		{
			name: "single author",
			doc:  Doc{Title: "Dune", AuthorName: []string{"Frank Herbert"}},
			want: "Title: Dune\nAuthor(s): Frank Herbert",
		},
		{
			name: "missing authors",
			doc:  Doc{Title: "No Author Book"},
			want: "Title: No Author Book\nAuthor(s): Unknown Author",
		},
		{
			name: "empty author list",
			doc:  Doc{Title: "No Author Book", AuthorName: []string{}},
			want: "Title: No Author Book\nAuthor(s): Unknown Author",
		},
		{
			name: "empty record",
			doc:  Doc{},
			want: "Title: Unknown Title\nAuthor(s): Unknown Author",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBook(tt.doc); got != tt.want {
				t.Errorf("Expected %q, got: %q", tt.want, got)
			}
		})
	}
}

// TestFormatBookFromWireShape ties the formatter to the decoded response
// shape: a doc parsed from a real body must format exactly.
func TestFormatBookFromWireShape(t *testing.T) {
	body := `{"docs":[{"title":"Test Book","author_name":["Author One","Author Two"]}]}`

	var result SearchResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Docs) != 1 {
		t.Fatalf("Expected 1 doc, got: %d", len(result.Docs))
	}

	want := "Title: Test Book\nAuthor(s): Author One, Author Two"
	if got := FormatBook(result.Docs[0]); got != want {
		t.Errorf("Expected %q, got: %q", want, got)
	}
}

func TestFormatBookMetadata(t *testing.T) {
	tests := []struct {
		name string
		md   map[string]any
		want string
	}{
		{
			name: "typed author slice",
			md:   map[string]any{"title": "Test Book", "author_name": []string{"Author One", "Author Two"}},
			want: "Title: Test Book\nAuthor(s): Author One, Author Two",
		},
		{
			name: "json decoded author slice",
			md:   map[string]any{"title": "Test Book", "author_name": []any{"Author One", "Author Two"}},
			want: "Title: Test Book\nAuthor(s): Author One, Author Two",
		},
		{
			name: "missing keys",
			md:   map[string]any{},
			want: "Title: Unknown Title\nAuthor(s): Unknown Author",
		},
		{
			name: "nil map",
			md:   nil,
			want: "Title: Unknown Title\nAuthor(s): Unknown Author",
		},
		{
			name: "wrong title type",
			md:   map[string]any{"title": 42},
			want: "Could not format book information",
		},
		{
			name: "wrong author element type",
			md:   map[string]any{"title": "Test Book", "author_name": []any{"Author One", 7}},
			want: "Could not format book information",
		},
		{
			name: "wrong author container type",
			md:   map[string]any{"author_name": "not a list"},
			want: "Could not format book information",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBookMetadata(tt.md); got != tt.want {
				t.Errorf("Expected %q, got: %q", tt.want, got)
			}
		})
	}
}

// A malformed record is reported through the logger but never as an error to
// the caller.
func TestFormatBookMetadataLogsFailure(t *testing.T) {
	var logBuf bytes.Buffer
	log.SetOutput(&logBuf)
	defer log.SetOutput(&bytes.Buffer{})

	got := FormatBookMetadata(map[string]any{"title": 3.14})
	if got != "Could not format book information" {
		t.Fatalf("Expected fallback string, got: %q", got)
	}
	if !strings.Contains(logBuf.String(), "formatting book data") {
		t.Errorf("Expected diagnostic in log output, got: %q", logBuf.String())
	}
}
