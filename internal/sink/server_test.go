package sink

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hybridz/telegram-fanout/internal/routing"
)

func postEnvelope(t *testing.T, s *Server, env routing.Envelope) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/bot/update", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleUpdate(rec, req)
	return rec
}

func TestHandleUpdate_AcceptsValidEnvelope(t *testing.T) {
	got := make(chan routing.Envelope, 1)
	s := &Server{
		Token:   "42:TOKEN",
		Handler: func(env routing.Envelope) { got <- env },
	}

	rec := postEnvelope(t, s, routing.Envelope{
		Update: json.RawMessage(`{"update_id":7}`),
		Source: "Group",
		Type:   "Message",
		Token:  "42:TOKEN",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	select {
	case env := <-got:
		if env.Source != "Group" || env.Type != "Message" {
			t.Errorf("handler saw %s/%s", env.Source, env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestHandleUpdate_RejectsBadToken(t *testing.T) {
	called := make(chan struct{}, 1)
	s := &Server{
		Token:   "42:TOKEN",
		Handler: func(routing.Envelope) { called <- struct{}{} },
	}

	rec := postEnvelope(t, s, routing.Envelope{
		Update: json.RawMessage(`{"update_id":7}`),
		Token:  "not-the-token",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	select {
	case <-called:
		t.Fatal("handler must not run for a rejected envelope")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleUpdate_RejectsMalformedJSON(t *testing.T) {
	s := &Server{Token: "42:TOKEN"}

	req := httptest.NewRequest(http.MethodPost, "/bot/update", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	s.handleUpdate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleUpdate_MethodNotAllowed(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/bot/update", nil)
	rec := httptest.NewRecorder()
	s.handleUpdate(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleUpdate_EmptyTokenDisablesCheck(t *testing.T) {
	got := make(chan routing.Envelope, 1)
	s := &Server{Handler: func(env routing.Envelope) { got <- env }}

	rec := postEnvelope(t, s, routing.Envelope{
		Update: json.RawMessage(`{"update_id":7}`),
		Token:  "anything",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}
