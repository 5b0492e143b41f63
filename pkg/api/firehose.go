package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tomes/pkg/realtime"
	"tomes/pkg/shelf"
)

const (
	firehoseSnapshotLimit = 50
	firehosePollInterval  = 5 * time.Second
	firehoseHeartbeat     = 30 * time.Second
	firehoseWriteTimeout  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is consumed cross-origin by local tooling.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type firehoseInitMessage struct {
	Type  string       `json:"type"`
	Mode  string       `json:"mode"`
	Books []shelf.Book `json:"books"`
	Count int          `json:"count"`
}

type firehoseBookMessage struct {
	Type string             `json:"type"`
	Book realtime.BookEvent `json:"book"`
}

type firehoseBatchMessage struct {
	Type  string       `json:"type"`
	Books []shelf.Book `json:"books"`
	Count int          `json:"count"`
}

type firehoseHeartbeatMessage struct {
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
}

// HandleFirehoseWS streams shelf additions over a WebSocket. The first frame
// is an init snapshot of recent books, filtered by the optional `since`
// RFC3339 parameter. With a hub wired, saved books are pushed as single
// `book` frames; without one the handler polls the shelf and sends
// `book_batch` frames. Heartbeats keep idle connections alive.
func (s *Server) HandleFirehoseWS(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid since parameter", "Parameter 'since' must be an RFC3339 timestamp")
			return
		}
		since = parsed
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("upgrading firehose connection: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	firehoseClients.Inc()
	defer firehoseClients.Dec()

	snapshot, err := s.snapshotBooks(since)
	if err != nil {
		logger.Errorf("loading firehose snapshot: %v", err)
		snapshot = []shelf.Book{}
	}

	mode := "poll"
	if s.hub != nil {
		mode = "push"
	}
	init := firehoseInitMessage{
		Type:  "init",
		Mode:  mode,
		Books: snapshot,
		Count: len(snapshot),
	}
	if err := writeFirehoseMessage(conn, init); err != nil {
		return
	}

	if s.hub != nil {
		s.runFirehosePush(conn)
		return
	}
	s.runFirehosePoll(conn, pollCursor(snapshot, since))
}

// snapshotBooks returns the books for the init frame, newest first.
func (s *Server) snapshotBooks(since time.Time) ([]shelf.Book, error) {
	var books []shelf.Book
	var err error
	if since.IsZero() {
		books, err = s.shelf.List(firehoseSnapshotLimit, 0)
	} else {
		books, err = s.shelf.Since(since)
	}
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []shelf.Book{}
	}
	return books, nil
}

// pollCursor picks the point the polling loop resumes from: the newest
// snapshot entry, or the client's since when the snapshot was empty.
func pollCursor(snapshot []shelf.Book, since time.Time) time.Time {
	cursor := since
	for _, book := range snapshot {
		if book.AddedAt.After(cursor) {
			cursor = book.AddedAt
		}
	}
	if cursor.IsZero() {
		cursor = time.Now().UTC()
	}
	return cursor
}

func (s *Server) runFirehosePush(conn *websocket.Conn) {
	id, events := s.hub.Register()
	defer s.hub.Unregister(id)

	heartbeat := time.NewTicker(firehoseHeartbeat)
	defer heartbeat.Stop()

	done := watchFirehoseReads(conn)

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			msg := firehoseBookMessage{Type: event.Type, Book: event.Book}
			if err := writeFirehoseMessage(conn, msg); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := writeFirehoseMessage(conn, heartbeatMessage()); err != nil {
				return
			}
		}
	}
}

func (s *Server) runFirehosePoll(conn *websocket.Conn, cursor time.Time) {
	poll := time.NewTicker(firehosePollInterval)
	defer poll.Stop()

	heartbeat := time.NewTicker(firehoseHeartbeat)
	defer heartbeat.Stop()

	done := watchFirehoseReads(conn)

	for {
		select {
		case <-done:
			return
		case <-poll.C:
			books, err := s.shelf.Since(cursor)
			if err != nil {
				logger.Warnf("polling shelf for firehose: %v", err)
				continue
			}
			if len(books) == 0 {
				continue
			}
			cursor = pollCursor(books, cursor)
			msg := firehoseBatchMessage{
				Type:  "book_batch",
				Books: books,
				Count: len(books),
			}
			if err := writeFirehoseMessage(conn, msg); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := writeFirehoseMessage(conn, heartbeatMessage()); err != nil {
				return
			}
		}
	}
}

// watchFirehoseReads drains client frames so control messages are processed
// and closes the returned channel when the peer goes away.
func watchFirehoseReads(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func heartbeatMessage() firehoseHeartbeatMessage {
	return firehoseHeartbeatMessage{Type: "heartbeat", TS: time.Now().UTC()}
}

func writeFirehoseMessage(conn *websocket.Conn, msg any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(firehoseWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
