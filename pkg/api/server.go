package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"tomes/pkg/log"
	"tomes/pkg/openlibrary"
	"tomes/pkg/realtime"
	"tomes/pkg/shelf"
)

var logger = log.ForService("api")

type Server struct {
	mu     sync.RWMutex
	shelf  *shelf.Shelf
	client *openlibrary.Client
	hub    *realtime.FirehoseHub
}

func NewServer(sh *shelf.Shelf, client *openlibrary.Client) *Server {
	return &Server{
		shelf:  sh,
		client: client,
	}
}

// SetFirehoseHub switches the firehose endpoint from polling to push mode.
func (s *Server) SetFirehoseHub(hub *realtime.FirehoseHub) {
	s.hub = hub
}

// SetClient swaps the upstream search client, letting config reloads take
// effect without restarting the listener.
func (s *Server) SetClient(client *openlibrary.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

func (s *Server) searchClient() *openlibrary.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
