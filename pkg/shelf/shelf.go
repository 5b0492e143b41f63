package shelf

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"tomes/pkg/log"
	"tomes/pkg/openlibrary"
)

var logger = log.ForService("shelf")

// ErrNotFound is returned when a book id is not on the shelf.
var ErrNotFound = errors.New("book not found")

// Book is one saved search result.
type Book struct {
	ID               string         `json:"id" yaml:"id"`
	Title            string         `json:"title" yaml:"title"`
	Authors          []string       `json:"authors,omitempty" yaml:"authors,omitempty"`
	FirstPublishYear int            `json:"first_publish_year,omitempty" yaml:"first_publish_year,omitempty"`
	AddedAt          time.Time      `json:"added_at" yaml:"added_at"`
	Metadata         map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// BookFromDoc converts a search result into a shelf entry. Docs without an
// Open Library key get a generated id. The metadata mirrors the doc's loose
// fields so dynamic renderers can work from it alone.
func BookFromDoc(doc openlibrary.Doc) Book {
	id := doc.Key
	if id == "" {
		id = uuid.NewString()
	}

	md := make(map[string]any)
	if doc.Title != "" {
		md["title"] = doc.Title
	}
	if len(doc.AuthorName) > 0 {
		md["author_name"] = doc.AuthorName
	}
	if len(doc.AuthorKey) > 0 {
		md["author_key"] = doc.AuthorKey
	}
	if doc.FirstPublishYear != 0 {
		md["first_publish_year"] = doc.FirstPublishYear
	}
	if doc.EditionCount != 0 {
		md["edition_count"] = doc.EditionCount
	}
	if len(doc.Language) > 0 {
		md["language"] = doc.Language
	}

	return Book{
		ID:               id,
		Title:            doc.Title,
		Authors:          append([]string(nil), doc.AuthorName...),
		FirstPublishYear: doc.FirstPublishYear,
		AddedAt:          time.Now().UTC(),
		Metadata:         md,
	}
}

// Shelf stores saved books in a single SQLite database.
type Shelf struct {
	db *sql.DB
}

// New opens (and if needed creates) the shelf database at dbPath.
func New(dbPath string) (*Shelf, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Apply performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = memory",
		"PRAGMA mmap_size = 268435456", // 256MB mmap
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Shelf{db: db}, nil
}

// initSchema creates the books table, its FTS index and the triggers keeping
// both in step. All statements are idempotent.
func initSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT,
			first_publish_year INTEGER,
			added_at TIMESTAMP NOT NULL,
			metadata TEXT
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS books_fts USING fts5(
			title, authors,
			content='books', content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS books_ai AFTER INSERT ON books BEGIN
			INSERT INTO books_fts(rowid, title, authors)
			VALUES (new.rowid, new.title, new.authors);
		END`,
		`CREATE TRIGGER IF NOT EXISTS books_ad AFTER DELETE ON books BEGIN
			INSERT INTO books_fts(books_fts, rowid, title, authors)
			VALUES ('delete', old.rowid, old.title, old.authors);
		END`,
		`CREATE TRIGGER IF NOT EXISTS books_au AFTER UPDATE ON books BEGIN
			INSERT INTO books_fts(books_fts, rowid, title, authors)
			VALUES ('delete', old.rowid, old.title, old.authors);
			INSERT INTO books_fts(rowid, title, authors)
			VALUES (new.rowid, new.title, new.authors);
		END`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

// Close optimizes and closes the database.
func (s *Shelf) Close() error {
	if _, err := s.db.Exec("PRAGMA optimize"); err != nil {
		logger.Warnf("optimizing database on close: %v", err)
	}
	return s.db.Close()
}

// Save upserts a book. The reported bool is true when the book was new.
// Saving an existing id updates its fields but keeps the original added_at,
// so re-imports stay idempotent.
func (s *Shelf) Save(book Book) (bool, error) {
	if book.ID == "" {
		return false, fmt.Errorf("book id must not be empty")
	}
	if book.Title == "" {
		book.Title = openlibrary.UnknownTitle
	}
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now().UTC()
	}

	authorsJSON, err := json.Marshal(book.Authors)
	if err != nil {
		return false, fmt.Errorf("marshaling authors for book %s: %w", book.ID, err)
	}
	metadataJSON, err := json.Marshal(book.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshaling metadata for book %s: %w", book.ID, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("rolling back transaction: %v", err)
			}
		}
	}()

	var existing int
	err = tx.QueryRow("SELECT COUNT(*) FROM books WHERE id = ?", book.ID).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("checking for existing book: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO books (id, title, authors, first_publish_year, added_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			first_publish_year = excluded.first_publish_year,
			metadata = excluded.metadata
	`, book.ID, book.Title, string(authorsJSON), book.FirstPublishYear, book.AddedAt, string(metadataJSON))
	if err != nil {
		return false, fmt.Errorf("saving book %s: %w", book.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return existing == 0, nil
}

// Get returns the book with the given id, or ErrNotFound.
func (s *Shelf) Get(id string) (*Book, error) {
	row := s.db.QueryRow(`
		SELECT id, title, authors, first_publish_year, added_at, metadata
		FROM books WHERE id = ?
	`, id)

	book, err := scanBookRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return book, nil
}

// Delete removes a book. The reported bool is true when something was
// deleted.
func (s *Shelf) Delete(id string) (bool, error) {
	result, err := s.db.Exec("DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting book %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete result: %w", err)
	}
	return affected > 0, nil
}

// List returns books newest first. A limit <= 0 returns everything.
func (s *Shelf) List(limit, offset int) ([]Book, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(`
		SELECT id, title, authors, first_publish_year, added_at, metadata
		FROM books
		ORDER BY added_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying books: %w", err)
	}
	return collectBooks(rows)
}

// Since returns books added strictly after the given time, newest first.
func (s *Shelf) Since(t time.Time) ([]Book, error) {
	rows, err := s.db.Query(`
		SELECT id, title, authors, first_publish_year, added_at, metadata
		FROM books
		WHERE added_at > ?
		ORDER BY added_at DESC, rowid DESC
	`, t)
	if err != nil {
		return nil, fmt.Errorf("querying books since %v: %w", t, err)
	}
	return collectBooks(rows)
}

// Search runs a full-text query over titles and authors, best match first.
// Queries FTS5 cannot parse fall back to a LIKE scan; an empty query lists
// newest first.
func (s *Shelf) Search(query string, limit int) ([]Book, error) {
	if limit <= 0 {
		limit = 50
	}
	if query == "" {
		return s.List(limit, 0)
	}

	// FTS5 parses the MATCH argument on the first row read, so syntax
	// errors only show up while collecting results.
	books, err := s.searchFTS(query, limit)
	if err != nil {
		logger.Debugf("FTS query %q failed, falling back to LIKE: %v", query, err)
		return s.searchLike(query, limit)
	}
	return books, nil
}

func (s *Shelf) searchFTS(query string, limit int) ([]Book, error) {
	rows, err := s.db.Query(`
		SELECT b.id, b.title, b.authors, b.first_publish_year, b.added_at, b.metadata
		FROM books b
		JOIN books_fts fts ON b.rowid = fts.rowid
		WHERE books_fts MATCH ?
		ORDER BY bm25(books_fts), b.added_at DESC
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	return collectBooks(rows)
}

func (s *Shelf) searchLike(query string, limit int) ([]Book, error) {
	like := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT id, title, authors, first_publish_year, added_at, metadata
		FROM books
		WHERE title LIKE ? OR authors LIKE ?
		ORDER BY added_at DESC
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("querying books: %w", err)
	}
	return collectBooks(rows)
}

// Count returns the number of saved books.
func (s *Shelf) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM books").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting books: %w", err)
	}
	return count, nil
}

// Stats reports shelf totals and the added_at range.
func (s *Shelf) Stats() (map[string]any, error) {
	stats := make(map[string]any)

	total, err := s.Count()
	if err != nil {
		return nil, err
	}
	stats["total_books"] = total

	var oldest, newest sql.NullString
	err = s.db.QueryRow("SELECT MIN(added_at), MAX(added_at) FROM books").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("getting added_at range: %w", err)
	}
	if oldest.Valid && newest.Valid {
		if t, err := parseStoredTime(oldest.String); err == nil {
			stats["first_added"] = t
		}
		if t, err := parseStoredTime(newest.String); err == nil {
			stats["last_added"] = t
		}
	}

	var withYear int
	err = s.db.QueryRow("SELECT COUNT(*) FROM books WHERE first_publish_year > 0").Scan(&withYear)
	if err != nil {
		return nil, fmt.Errorf("counting dated books: %w", err)
	}
	stats["books_with_year"] = withYear

	return stats, nil
}

// parseStoredTime handles both timestamp formats sqlite drivers have written
// over time.
func parseStoredTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05-07:00", value)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookRow(row rowScanner) (*Book, error) {
	var book Book
	var authorsStr, metadataStr sql.NullString

	err := row.Scan(&book.ID, &book.Title, &authorsStr, &book.FirstPublishYear, &book.AddedAt, &metadataStr)
	if err != nil {
		return nil, err
	}

	if authorsStr.Valid && authorsStr.String != "" {
		if err := json.Unmarshal([]byte(authorsStr.String), &book.Authors); err != nil {
			return nil, fmt.Errorf("unmarshaling authors for book %s: %w", book.ID, err)
		}
	}
	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &book.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for book %s: %w", book.ID, err)
		}
	}
	return &book, nil
}

func collectBooks(rows *sql.Rows) ([]Book, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("closing rows: %v", err)
		}
	}()

	var books []Book
	for rows.Next() {
		book, err := scanBookRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		books = append(books, *book)
	}
	return books, rows.Err()
}
