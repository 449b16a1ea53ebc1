// Package sink is the consumer half of the fabric: an HTTP server that
// receives routed update envelopes, verifies the shared token, and hands each
// envelope to a handler. Bot modules embed it as their webhook surface.
package sink

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/hybridz/telegram-fanout/internal/routing"
)

// Handler is called for each accepted envelope. It runs after the 200 has
// been written, so slow consumers do not stall the dispatcher.
type Handler func(env routing.Envelope)

// Server receives update envelopes from the router.
type Server struct {
	Addr    string
	Path    string // POST path, e.g. "/bot/update"
	Token   string // expected envelope token; empty disables the check
	Handler Handler
}

// Run starts the sink server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	path := s.Path
	if path == "" {
		path = "/bot/update"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleUpdate)
	mux.HandleFunc("/health", handleHealth)

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("sink listen: %w", err)
	}
	log.Printf("sink listening on %s (path %s)", ln.Addr(), path)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("sink serve: %w", err)
	}
	return nil
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	var env routing.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("sink: invalid JSON: %v", err)
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if s.Token != "" && subtle.ConstantTimeCompare([]byte(env.Token), []byte(s.Token)) != 1 {
		log.Printf("sink: envelope token mismatch")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Acknowledge immediately — process asynchronously.
	w.WriteHeader(http.StatusOK)

	if s.Handler != nil {
		go s.Handler(env)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}
