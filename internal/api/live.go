package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"fleetwatch/internal/model"
)

// feedKey resolves the broker key from entityType/entityId query params.
// Absent params mean the firehose.
func feedKey(r *http.Request) (string, error) {
	qp := r.URL.Query()
	et := qp.Get("entityType")
	if et == "" {
		return "", nil
	}
	typ := model.EntityType(et)
	if !typ.Valid() {
		return "", fmt.Errorf("invalid entityType: %s", et)
	}
	id, err := strconv.ParseInt(qp.Get("entityId"), 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("entityId must be a positive integer")
	}
	return EntityKey(typ, id), nil
}

// LocationStreamHandler handles GET /v1/locations/stream (SSE).
func (s *Server) LocationStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key, err := feedKey(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid stream query", err.Error(), r.URL.Path)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(key)
	defer s.Broker.Unsubscribe(key, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"ts\":\"%s\"}\n\n", time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// LocationWSHandler handles GET /v1/locations/ws. Events go out as JSON
// frames; the client may send pings, everything else is ignored.
func (s *Server) LocationWSHandler(w http.ResponseWriter, r *http.Request) {
	key, err := feedKey(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid stream query", err.Error(), r.URL.Path)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	ch := s.Broker.Subscribe(key)
	done := make(chan struct{})

	// Read loop keeps the connection's deadline fresh and detects close.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	defer s.Broker.Unsubscribe(key, ch)
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
