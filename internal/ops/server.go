// Package ops exposes the router's operational surface: health, Prometheus
// metrics, and the live dispatch tap.
package ops

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hybridz/telegram-fanout/internal/tap"
)

// Server is the ops HTTP server.
type Server struct {
	Addr string
	Tap  *tap.Hub
}

// Run starts the ops server and blocks until ctx is cancelled, at which point
// it shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	if s.Tap != nil {
		mux.Handle("/tap", s.Tap)
	}

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("ops listen: %w", err)
	}
	log.Printf("ops server listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		if s.Tap != nil {
			s.Tap.Close()
		}
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ops serve: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}
