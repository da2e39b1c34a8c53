package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// WebhookSink is an httptest server that answers each POST with the next
// scripted status code and records every request body.
//
// Once the script is exhausted it answers 200.
type WebhookSink struct {
	*httptest.Server

	mu       sync.Mutex
	statuses []int
	bodies   []string
}

// NewWebhookSink starts a sink that replies with statuses in order.
// The server is closed when the test ends.
func NewWebhookSink(t *testing.T, statuses ...int) *WebhookSink {
	t.Helper()
	s := &WebhookSink{statuses: statuses}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *WebhookSink) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	attempt := len(s.bodies)
	s.bodies = append(s.bodies, string(body))
	status := http.StatusOK
	if attempt < len(s.statuses) {
		status = s.statuses[attempt]
	}
	s.mu.Unlock()

	w.WriteHeader(status)
}

// Attempts returns how many requests the sink received.
func (s *WebhookSink) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

// Texts decodes the "text" field of every received body.
func (s *WebhookSink) Texts(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, 0, len(s.bodies))
	for _, b := range s.bodies {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(b), &payload); err != nil {
			t.Fatalf("webhook body is not JSON: %v: %s", err, b)
		}
		texts = append(texts, payload.Text)
	}
	return texts
}
