package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/peterh/liner"

	"tomes/pkg/openlibrary"
)

// scriptedReader feeds canned lines to the shell loop and records history.
// When the script runs out it reports EOF, like a closed stdin.
type scriptedReader struct {
	inputs  []string
	history []string
}

func (r *scriptedReader) Prompt(string) (string, error) {
	if len(r.inputs) == 0 {
		return "", io.EOF
	}
	next := r.inputs[0]
	r.inputs = r.inputs[1:]
	return next, nil
}

func (r *scriptedReader) AppendHistory(item string) {
	r.history = append(r.history, item)
}

// abortingReader simulates Ctrl-C at the prompt.
type abortingReader struct{}

func (abortingReader) Prompt(string) (string, error) { return "", liner.ErrPromptAborted }
func (abortingReader) AppendHistory(string)          {}

func newShellUpstream(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, &requests
}

func newShellClient(t *testing.T, baseURL string) *openlibrary.Client {
	t.Helper()
	client, err := openlibrary.NewClient(openlibrary.Config{BaseURL: baseURL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestShellSearchAndQuit(t *testing.T) {
	ts, _ := newShellUpstream(t, http.StatusOK,
		`{"numFound":1,"docs":[{"title":"Dune","author_name":["Frank Herbert"]}]}`)
	client := newShellClient(t, ts.URL)

	reader := &scriptedReader{inputs: []string{"Dune", "q"}}
	var out bytes.Buffer
	if err := runShellLoop(context.Background(), client, reader, &out); err != nil {
		t.Fatalf("Shell loop failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Open Library Book Search",
		"-----------------------",
		"Search Result:",
		"Title: Dune\nAuthor(s): Frank Herbert",
		"Exiting...",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, got)
		}
	}

	if len(reader.history) != 1 || reader.history[0] != "Dune" {
		t.Errorf("Expected history [Dune], got %v", reader.history)
	}
}

func TestShellEmptyInputReprompts(t *testing.T) {
	ts, requests := newShellUpstream(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
	client := newShellClient(t, ts.URL)

	reader := &scriptedReader{inputs: []string{"", "   ", "q"}}
	var out bytes.Buffer
	if err := runShellLoop(context.Background(), client, reader, &out); err != nil {
		t.Fatalf("Shell loop failed: %v", err)
	}

	got := out.String()
	if n := strings.Count(got, "Please enter a valid book title"); n != 2 {
		t.Errorf("Expected 2 re-prompt messages, got %d in:\n%s", n, got)
	}
	if requests.Load() != 0 {
		t.Errorf("Expected no search requests for empty input, got %d", requests.Load())
	}
}

func TestShellQuitCaseInsensitive(t *testing.T) {
	ts, requests := newShellUpstream(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
	client := newShellClient(t, ts.URL)

	reader := &scriptedReader{inputs: []string{"Q"}}
	var out bytes.Buffer
	if err := runShellLoop(context.Background(), client, reader, &out); err != nil {
		t.Fatalf("Shell loop failed: %v", err)
	}

	if !strings.Contains(out.String(), "Exiting...") {
		t.Errorf("Expected clean exit message, got:\n%s", out.String())
	}
	if requests.Load() != 0 {
		t.Errorf("Expected no search requests, got %d", requests.Load())
	}
}

func TestShellNoResults(t *testing.T) {
	ts, _ := newShellUpstream(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
	client := newShellClient(t, ts.URL)

	reader := &scriptedReader{inputs: []string{"no such book", "q"}}
	var out bytes.Buffer
	if err := runShellLoop(context.Background(), client, reader, &out); err != nil {
		t.Fatalf("Shell loop failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "No results found for that title") {
		t.Errorf("Expected no-results message, got:\n%s", got)
	}
	if strings.Contains(got, "Search Result:") {
		t.Errorf("Expected no result header for empty docs, got:\n%s", got)
	}
}

func TestShellSearchErrorContinues(t *testing.T) {
	ts, _ := newShellUpstream(t, http.StatusInternalServerError, `{"error":"upstream down"}`)
	client := newShellClient(t, ts.URL)

	reader := &scriptedReader{inputs: []string{"Dune", "q"}}
	var out bytes.Buffer
	if err := runShellLoop(context.Background(), client, reader, &out); err != nil {
		t.Fatalf("Shell loop failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "An error occurred:") {
		t.Errorf("Expected error report, got:\n%s", got)
	}
	if !strings.Contains(got, "Exiting...") {
		t.Errorf("Expected loop to continue to the quit prompt, got:\n%s", got)
	}
}

func TestShellEOFExitsCleanly(t *testing.T) {
	ts, _ := newShellUpstream(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
	client := newShellClient(t, ts.URL)

	reader := &scriptedReader{}
	var out bytes.Buffer
	if err := runShellLoop(context.Background(), client, reader, &out); err != nil {
		t.Fatalf("Expected clean exit on EOF, got error: %v", err)
	}
	if !strings.Contains(out.String(), "Exiting...") {
		t.Errorf("Expected exit message on EOF, got:\n%s", out.String())
	}
}

func TestShellPromptAbortExitsCleanly(t *testing.T) {
	ts, _ := newShellUpstream(t, http.StatusOK, `{"numFound":0,"docs":[]}`)
	client := newShellClient(t, ts.URL)

	var out bytes.Buffer
	if err := runShellLoop(context.Background(), client, abortingReader{}, &out); err != nil {
		t.Fatalf("Expected clean exit on prompt abort, got error: %v", err)
	}
	if !strings.Contains(out.String(), "Exiting...") {
		t.Errorf("Expected exit message on abort, got:\n%s", out.String())
	}
}
