package openlibrary

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tomes/pkg/log"
)

// requestLog records every query string the test server saw.
type requestLog struct {
	mu      sync.Mutex
	queries []string
	agents  []string
}

func (r *requestLog) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, req.URL.RawQuery)
	r.agents = append(r.agents, req.Header.Get("User-Agent"))
}

func (r *requestLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

func (r *requestLog) query(i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[i]
}

func (r *requestLog) agent(i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[i]
}

func newSearchServer(t *testing.T, status int, body string) (*httptest.Server, *requestLog) {
	t.Helper()
	rl := &requestLog{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.add(r)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, rl
}

func newTestClient(t *testing.T, baseURL string, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = baseURL
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestSearchRequestParameters(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		title     string
		opts      SearchOptions
		wantQuery string
	}{
		{
			name:      "defaults",
			title:     "dune",
			wantQuery: "title=dune&fields=title,author_name&limit=1",
		},
		{
			name:      "spaces become literal plus",
			title:     "the left hand of darkness",
			wantQuery: "title=the+left+hand+of+darkness&fields=title,author_name&limit=1",
		},
		{
			name:      "title trimmed before encoding",
			title:     "  dune messiah  ",
			wantQuery: "title=dune+messiah&fields=title,author_name&limit=1",
		},
		{
			name:      "configured defaults",
			cfg:       Config{Fields: []string{"key", "title"}, Limit: 5},
			title:     "dune",
			wantQuery: "title=dune&fields=key,title&limit=5",
		},
		{
			name:      "per call fields override",
			title:     "dune",
			opts:      SearchOptions{Fields: []string{"title", "first_publish_year"}},
			wantQuery: "title=dune&fields=title,first_publish_year&limit=1",
		},
		{
			name:      "per call limit override",
			title:     "dune",
			opts:      SearchOptions{Limit: 3},
			wantQuery: "title=dune&fields=title,author_name&limit=3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, rl := newSearchServer(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
			client := newTestClient(t, ts.URL, tt.cfg)

			if _, err := client.Search(context.Background(), tt.title, tt.opts); err != nil {
				t.Fatalf("Search: %v", err)
			}
			if rl.count() != 1 {
				t.Fatalf("Expected exactly 1 request, got: %d", rl.count())
			}
			if got := rl.query(0); got != tt.wantQuery {
				t.Errorf("Expected query %q, got: %q", tt.wantQuery, got)
			}
		})
	}
}

func TestSearchSetsUserAgent(t *testing.T) {
	ts, rl := newSearchServer(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
	client := newTestClient(t, ts.URL, Config{})

	if _, err := client.Search(context.Background(), "dune", SearchOptions{}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rl.count() != 1 || !strings.HasPrefix(rl.agent(0), "tomes/") {
		t.Errorf("Expected tomes/ user agent, got: %v", rl.agents)
	}
}

func TestSearchEmptyTitle(t *testing.T) {
	ts, rl := newSearchServer(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
	client := newTestClient(t, ts.URL, Config{})

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := client.Search(context.Background(), title, SearchOptions{})
		if err == nil {
			t.Fatalf("Expected error for title %q, got nil", title)
		}
		var terr *TransportError
		if errors.As(err, &terr) {
			t.Errorf("Expected argument error for title %q, got transport error: %v", title, err)
		}
	}
	if rl.count() != 0 {
		t.Errorf("Expected no requests for invalid titles, got: %d", rl.count())
	}
}

func TestSearchParsesResponse(t *testing.T) {
	body := `{"numFound":2,"start":0,"docs":[{"key":"/works/OL893415W","title":"Dune","author_name":["Frank Herbert"],"first_publish_year":1965}]}`
	ts, _ := newSearchServer(t, http.StatusOK, body)
	client := newTestClient(t, ts.URL, Config{})

	result, err := client.Search(context.Background(), "dune", SearchOptions{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.NumFound != 2 {
		t.Errorf("Expected numFound 2, got: %d", result.NumFound)
	}
	if len(result.Docs) != 1 {
		t.Fatalf("Expected 1 doc, got: %d", len(result.Docs))
	}
	doc := result.Docs[0]
	if doc.Title != "Dune" {
		t.Errorf("Expected title Dune, got: %s", doc.Title)
	}
	if len(doc.AuthorName) != 1 || doc.AuthorName[0] != "Frank Herbert" {
		t.Errorf("Expected author Frank Herbert, got: %v", doc.AuthorName)
	}
	if doc.FirstPublishYear != 1965 {
		t.Errorf("Expected first publish year 1965, got: %d", doc.FirstPublishYear)
	}
}

func TestSearchTransportError(t *testing.T) {
	t.Run("server error status", func(t *testing.T) {
		ts, rl := newSearchServer(t, http.StatusInternalServerError, "boom")
		client := newTestClient(t, ts.URL, Config{})

		var logBuf bytes.Buffer
		log.SetOutput(&logBuf)
		defer log.SetOutput(&bytes.Buffer{})

		_, err := client.Search(context.Background(), "dune", SearchOptions{})
		if err == nil {
			t.Fatal("Expected error for 500 response, got nil")
		}
		var terr *TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("Expected *TransportError, got: %T (%v)", err, err)
		}
		if terr.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got: %d", terr.StatusCode)
		}
		if rl.count() != 1 {
			t.Errorf("Expected exactly one attempt, got: %d", rl.count())
		}
		if n := strings.Count(logBuf.String(), "API request failed"); n != 1 {
			t.Errorf("Expected exactly one diagnostic line, got %d in: %q", n, logBuf.String())
		}
	})

	t.Run("client error status", func(t *testing.T) {
		ts, rl := newSearchServer(t, http.StatusNotFound, "not here")
		client := newTestClient(t, ts.URL, Config{})

		_, err := client.Search(context.Background(), "dune", SearchOptions{})
		var terr *TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("Expected *TransportError, got: %T (%v)", err, err)
		}
		if terr.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got: %d", terr.StatusCode)
		}
		if rl.count() != 1 {
			t.Errorf("Expected exactly one attempt, got: %d", rl.count())
		}
	})

	t.Run("connection failure", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		addr := ts.URL
		ts.Close()

		client := newTestClient(t, addr, Config{})
		_, err := client.Search(context.Background(), "dune", SearchOptions{})
		if err == nil {
			t.Fatal("Expected error for closed server, got nil")
		}
		var terr *TransportError
		if !errors.As(err, &terr) {
			t.Fatalf("Expected *TransportError, got: %T (%v)", err, err)
		}
		if terr.StatusCode != 0 {
			t.Errorf("Expected zero status for connection failure, got: %d", terr.StatusCode)
		}
		if terr.Err == nil {
			t.Error("Expected underlying error for connection failure, got nil")
		}
	})
}

func TestSearchIdempotentRequests(t *testing.T) {
	ts, rl := newSearchServer(t, http.StatusOK, `{"numFound":1,"docs":[{"title":"Dune"}]}`)
	client := newTestClient(t, ts.URL, Config{})

	for i := 0; i < 2; i++ {
		result, err := client.Search(context.Background(), "dune", SearchOptions{Limit: 2})
		if err != nil {
			t.Fatalf("Search call %d: %v", i+1, err)
		}
		if result.NumFound != 1 {
			t.Errorf("Expected numFound 1 on call %d, got: %d", i+1, result.NumFound)
		}
	}

	if rl.count() != 2 {
		t.Fatalf("Expected 2 requests (no caching), got: %d", rl.count())
	}
	if rl.query(0) != rl.query(1) {
		t.Errorf("Expected identical requests, got: %q vs %q", rl.query(0), rl.query(1))
	}
}

func TestSearchDecodeError(t *testing.T) {
	ts, _ := newSearchServer(t, http.StatusOK, "not json at all")
	client := newTestClient(t, ts.URL, Config{})

	_, err := client.Search(context.Background(), "dune", SearchOptions{})
	if err == nil {
		t.Fatal("Expected decode error, got nil")
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		t.Errorf("Expected plain decode error for malformed success body, got transport error: %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Run("negative limit rejected", func(t *testing.T) {
		if _, err := NewClient(Config{Limit: -1}); err == nil {
			t.Fatal("Expected error for negative limit, got nil")
		}
	})

	t.Run("zero config gets defaults", func(t *testing.T) {
		client, err := NewClient(Config{})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		if got := client.Fields(); len(got) != 2 || got[0] != "title" || got[1] != "author_name" {
			t.Errorf("Expected default fields [title author_name], got: %v", got)
		}
		if client.Limit() != 1 {
			t.Errorf("Expected default limit 1, got: %d", client.Limit())
		}
	})

	t.Run("fields slice copied", func(t *testing.T) {
		fields := []string{"title", "author_name"}
		client, err := NewClient(Config{Fields: fields})
		if err != nil {
			t.Fatalf("NewClient: %v", err)
		}
		fields[0] = "mutated"
		if got := client.Fields(); got[0] != "title" {
			t.Errorf("Expected client fields isolated from caller slice, got: %v", got)
		}
	})
}
