package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hybridz/telegram-fanout/internal/config"
	"github.com/hybridz/telegram-fanout/internal/ops"
	"github.com/hybridz/telegram-fanout/internal/poller"
	"github.com/hybridz/telegram-fanout/internal/routing"
	"github.com/hybridz/telegram-fanout/internal/tap"
	"github.com/hybridz/telegram-fanout/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Validate()

	doc, err := routing.LoadModulesFile(cfg.Modules.File)
	if err != nil {
		log.Fatalf("failed to load modules config: %v", err)
	}

	registry, err := routing.BuildRegistry(doc)
	if err != nil {
		log.Fatalf("failed to build registry: %v", err)
	}
	if len(registry.Modules()) == 0 {
		log.Printf("warning: no modules configured, every update will be dropped")
	}

	// The modules document may carry the bot token (the fleet shares one
	// config); the service config wins when both are set.
	token := cfg.Telegram.Token
	if token == "" {
		token = doc.Token
	}
	if token == "" {
		log.Fatal("bot token must be set (TGFANOUT_TOKEN, config, or modules document)")
	}

	pollTimeout := time.Duration(cfg.Poll.Timeout) * time.Second
	client := telegram.NewClient(token, pollTimeout)
	client.BaseURL = cfg.Telegram.APIURL

	hub := tap.NewHub()

	dispatcher := routing.NewDispatcher(registry, token, time.Duration(cfg.Ops.DispatchTimeout)*time.Second)
	dispatcher.Observer = func(kind telegram.UpdateType, origin routing.Origin, r routing.Result) {
		rec := tap.Record{
			UpdateType: string(kind),
			Source:     string(origin.Source),
			FromID:     origin.FromID,
			Module:     r.Module,
			Outcome:    r.Outcome.String(),
			Status:     r.Status,
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		hub.Publish(rec)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		sig := <-stop
		log.Printf("received %s, shutting down", sig)
		cancel()
	}()

	go func() {
		srv := &ops.Server{Addr: cfg.Ops.Addr, Tap: hub}
		if err := srv.Run(ctx); err != nil {
			log.Printf("ops server error: %v", err)
		}
	}()

	p := &poller.Poller{
		Client:       client,
		Dispatcher:   dispatcher,
		Offset:       cfg.Poll.Offset,
		AllowedTypes: registry.AllowedTypes(),
		PollTimeout:  pollTimeout,
		IdleDelay:    time.Duration(cfg.Poll.IdleDelay) * time.Second,
		Backoff:      time.Duration(cfg.Poll.Backoff) * time.Second,
	}

	if err := p.Run(ctx); err != nil {
		log.Fatalf("poller error: %v", err)
	}
}
