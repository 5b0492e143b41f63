package openlibrary

// SearchResult is the decoded body of a search.json response. Only the keys
// the tool consumes are typed; unknown keys are ignored and nothing is
// validated beyond JSON well-formedness.
type SearchResult struct {
	NumFound int   `json:"numFound"`
	Start    int   `json:"start"`
	Docs     []Doc `json:"docs"`
}

// Doc is a single search result. Every field is optional: the service only
// returns what the query's fields parameter asked for, and sparse records
// are normal even then.
type Doc struct {
	Key              string   `json:"key,omitempty"`
	Title            string   `json:"title,omitempty"`
	AuthorKey        []string `json:"author_key,omitempty"`
	AuthorName       []string `json:"author_name,omitempty"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
	EditionCount     int      `json:"edition_count,omitempty"`
	Language         []string `json:"language,omitempty"`
	ISBN             []string `json:"isbn,omitempty"`
}

// Field describes one response field identifier the search endpoint accepts.
type Field struct {
	Name        string
	Description string
}

// KnownFields lists the search.json fields tomes knows how to request and
// display. The service accepts more; these are the ones with a typed home in
// Doc.
var KnownFields = []Field{
	{Name: "key", Description: "work identifier, e.g. /works/OL27448W"},
	{Name: "title", Description: "work title"},
	{Name: "author_key", Description: "author identifiers"},
	{Name: "author_name", Description: "author display names"},
	{Name: "first_publish_year", Description: "year of first publication"},
	{Name: "edition_count", Description: "number of known editions"},
	{Name: "language", Description: "edition language codes"},
	{Name: "isbn", Description: "ISBNs across editions"},
}
