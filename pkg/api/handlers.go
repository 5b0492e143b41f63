package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tomes/pkg/openlibrary"
	"tomes/pkg/realtime"
	"tomes/pkg/shelf"
	"tomes/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if strings.TrimSpace(title) == "" {
		s.writeError(w, http.StatusBadRequest, "Missing title parameter", "Query parameter 'title' is required")
		return
	}

	var opts openlibrary.SearchOptions
	if fields := r.URL.Query().Get("fields"); fields != "" {
		opts.Fields = strings.Split(fields, ",")
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit", "Parameter 'limit' must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	start := time.Now()
	result, err := s.searchClient().Search(r.Context(), title, opts)
	searchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		var terr *openlibrary.TransportError
		if errors.As(err, &terr) {
			searchesTotal.WithLabelValues("upstream_error").Inc()
			s.writeError(w, http.StatusBadGateway, "Upstream search failed", err.Error())
			return
		}
		searchesTotal.WithLabelValues("error").Inc()
		s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}
	searchesTotal.WithLabelValues("ok").Inc()

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:    title,
		NumFound: result.NumFound,
		Docs:     result.Docs,
		Count:    len(result.Docs),
	})
}

func (s *Server) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid limit", err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid offset", err.Error())
		return
	}

	books, err := s.shelf.List(limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list books", err.Error())
		return
	}
	if books == nil {
		books = []shelf.Book{}
	}

	s.writeJSON(w, http.StatusOK, ListBooksResponse{
		Books: books,
		Count: len(books),
	})
}

func (s *Server) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Book id is required")
		return
	}

	book, err := s.shelf.Get(id)
	if errors.Is(err, shelf.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Book not found", fmt.Sprintf("Book '%s' is not on the shelf", id))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get book", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) HandleSaveBook(w http.ResponseWriter, r *http.Request) {
	var req SaveBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if req.ID == "" && req.Key == "" && strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid book", "Request body must be a search doc or a shelf book")
		return
	}

	book := req.toBook()
	created, err := s.shelf.Save(book)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to save book", err.Error())
		return
	}
	booksSaved.Inc()

	// Respond and broadcast the stored row. Save fills defaults on insert
	// and keeps the original added_at on update.
	if stored, err := s.shelf.Get(book.ID); err == nil {
		book = *stored
	}

	if s.hub != nil {
		s.hub.Broadcast(realtime.BookEvent{
			ID:       book.ID,
			Title:    book.Title,
			Authors:  book.Authors,
			SavedAt:  book.AddedAt,
			Metadata: book.Metadata,
		})
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, SaveBookResponse{
		Book:    book,
		Created: created,
	})
}

func (s *Server) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Book id is required")
		return
	}

	deleted, err := s.shelf.Delete(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to delete book", err.Error())
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "Book not found", fmt.Sprintf("Book '%s' is not on the shelf", id))
		return
	}

	s.writeJSON(w, http.StatusOK, DeleteBookResponse{
		ID:      id,
		Deleted: true,
	})
}

func (s *Server) HandleShelfSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid limit", err.Error())
		return
	}

	books, err := s.shelf.Search(query, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Shelf search failed", err.Error())
		return
	}
	if books == nil {
		books = []shelf.Book{}
	}

	s.writeJSON(w, http.StatusOK, ShelfSearchResponse{
		Query: query,
		Books: books,
		Count: len(books),
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("parameter '%s' must be a non-negative integer", name)
	}
	return value, nil
}
