package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// API routes with method-specific routing
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/books", s.HandleListBooks)
	mux.HandleFunc("POST /api/books", s.HandleSaveBook)
	mux.HandleFunc("GET /api/books/{id}", s.HandleGetBook)
	mux.HandleFunc("DELETE /api/books/{id}", s.HandleDeleteBook)
	mux.HandleFunc("GET /api/shelf/search", s.HandleShelfSearch)
	mux.HandleFunc("GET /api/firehose/ws", s.HandleFirehoseWS)
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}
