package openlibrary

import (
	"fmt"
	"strings"
)

// Fallback values for records missing the field entirely.
const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

// formatFallback is returned when a dynamic record cannot be rendered at all.
const formatFallback = "Could not format book information"

// FormatBook renders one search result as two lines of human-readable text:
//
//	Title: {title}
//	Author(s): {authors}
//
// A missing title renders as "Unknown Title"; a missing or empty author list
// renders as "Unknown Author". Multiple authors are joined with ", ".
func FormatBook(doc Doc) string {
	title := doc.Title
	if title == "" {
		title = UnknownTitle
	}
	authors := doc.AuthorName
	if len(authors) == 0 {
		authors = []string{UnknownAuthor}
	}
	return fmt.Sprintf("Title: %s\nAuthor(s): %s", title, strings.Join(authors, ", "))
}

// FormatBookMetadata renders a book from loose metadata, the shape firehose
// events and shelf rows carry. Well-formed mappings produce exactly what
// FormatBook would. A mapping with unexpected value types is logged and
// rendered as a fixed fallback string; the failure never reaches the caller.
func FormatBookMetadata(md map[string]any) string {
	doc, err := docFromMetadata(md)
	if err != nil {
		logger.Errorf("formatting book data: %v", err)
		return formatFallback
	}
	return FormatBook(doc)
}

// docFromMetadata extracts the formatter-relevant fields. Absent keys are
// fine, wrongly typed values are not.
func docFromMetadata(md map[string]any) (Doc, error) {
	var doc Doc
	if v, ok := md["title"]; ok {
		s, ok := v.(string)
		if !ok {
			return Doc{}, fmt.Errorf("title has type %T, want string", v)
		}
		doc.Title = s
	}
	if v, ok := md["author_name"]; ok {
		names, err := stringList(v)
		if err != nil {
			return Doc{}, fmt.Errorf("author_name %w", err)
		}
		doc.AuthorName = names
	}
	return doc, nil
}

// stringList accepts []string and []any-of-string, the two shapes author
// lists take depending on whether they went through a JSON round trip.
func stringList(v any) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return vv, nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element has type %T, want string", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("has type %T, want string list", v)
	}
}
