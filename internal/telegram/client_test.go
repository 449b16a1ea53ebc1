package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(srvURL string) *Client {
	c := NewClient("42:TOKEN", time.Second)
	c.BaseURL = srvURL
	return c
}

func TestGetUpdates_QueryParameters(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot42:TOKEN/getUpdates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	updates, err := c.GetUpdates(context.Background(), 37, 25*time.Second, []UpdateType{TypeMessage, TypeCallbackQuery})
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 0 {
		t.Fatalf("got %d updates, want 0", len(updates))
	}

	if got := gotQuery["offset"]; len(got) != 1 || got[0] != "37" {
		t.Errorf("offset = %v, want [37]", got)
	}
	if got := gotQuery["timeout"]; len(got) != 1 || got[0] != "25" {
		t.Errorf("timeout = %v, want [25]", got)
	}
	if got := gotQuery["allowed_updates"]; len(got) != 1 || got[0] != `["message","callback_query"]` {
		t.Errorf("allowed_updates = %v", got)
	}
}

func TestGetUpdates_DecodesAndKeepsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"chat":{"id":100,"type":"group"},"text":"hi","sticker":{"emoji":"x"}}}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	updates, err := c.GetUpdates(context.Background(), 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}

	u := updates[0]
	if u.ID != 10 || u.Kind() != TypeMessage || u.Message.Chat.ID != 100 {
		t.Fatalf("decoded update = %+v", u)
	}
	// Raw keeps fields the typed struct does not model.
	if !strings.Contains(string(u.Raw), `"sticker"`) {
		t.Errorf("raw payload lost unmodelled fields: %s", u.Raw)
	}
}

func TestGetUpdates_BotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetUpdates(context.Background(), 0, 0, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("error should carry the API description, got: %v", err)
	}
}

func TestGetUpdates_ContextCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	c := newTestClient(srv.URL)
	_, err := c.GetUpdates(ctx, 0, 30*time.Second, nil)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
