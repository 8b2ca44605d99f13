package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkessler/ocrflow/internal/jobs"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) jobs.ProgressUpdate {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update jobs.ProgressUpdate
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	return update
}

func TestWebSocketJobStream(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	job := jobs.NewJob("page1.png", t.TempDir(), "standard", jobs.OutputConfig{})
	if err := s.jobQueue.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	conn := dialWS(t, srv, "/api/v1/ws?job="+job.ID)

	// The fine-grained pipeline updates reach the subscribed client.
	job.SendProgress(jobs.ProgressUpdate{Type: "processing", Progress: 10, Message: "Running layout pass..."})
	job.SendProgress(jobs.ProgressUpdate{Type: "picture", Block: 1, Message: "OCR inside picture block 1"})

	first := readUpdate(t, conn)
	if first.JobID != job.ID || first.Type != "processing" || first.Progress != 10 {
		t.Fatalf("unexpected first update %+v", first)
	}

	second := readUpdate(t, conn)
	if second.Type != "picture" || second.Block != 1 {
		t.Fatalf("unexpected second update %+v", second)
	}
}

func TestWebSocketUnknownJob(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/ws?job=unknown-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWebSocketGlobalStream(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn := dialWS(t, srv, "/api/v1/ws")

	// Wait until the hub has registered the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.wsHub.mu.RLock()
		n := len(s.wsHub.global)
		s.wsHub.mu.RUnlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.wsHub.Broadcast(jobs.ProgressUpdate{Type: "job_update", JobID: "abc", Status: "running"})

	update := readUpdate(t, conn)
	if update.Type != "job_update" || update.JobID != "abc" || update.Status != "running" {
		t.Fatalf("unexpected update %+v", update)
	}
}
