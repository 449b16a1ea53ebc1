package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hybridz/telegram-fanout/internal/routing"
	"github.com/hybridz/telegram-fanout/internal/sink"
	"github.com/hybridz/telegram-fanout/internal/telegram"
)

// A reference consumer: accepts routed envelopes and logs them. Useful for
// smoke-testing a modules config before pointing real bot services at it.
func main() {
	addr := envOr("TGFANOUT_SINK_ADDR", ":18810")
	path := envOr("TGFANOUT_SINK_PATH", "/bot/update")
	token := os.Getenv("TGFANOUT_TOKEN")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stop
		log.Printf("received %s, shutting down", sig)
		cancel()
	}()

	srv := &sink.Server{
		Addr:    addr,
		Path:    path,
		Token:   token,
		Handler: logEnvelope,
	}

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("sink error: %v", err)
	}
}

func logEnvelope(env routing.Envelope) {
	var upd telegram.Update
	if err := json.Unmarshal(env.Update, &upd); err != nil {
		log.Printf("received undecodable update (%s-%s): %v", env.Source, env.Type, err)
		return
	}
	log.Printf("received update %d [%s-%s]", upd.ID, env.Source, env.Type)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
