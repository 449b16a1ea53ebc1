// Package metrics holds the fabric's Prometheus collectors, registered on the
// default registry and exposed by the ops server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesFetched counts updates pulled from the Bot API.
	UpdatesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fanout_updates_fetched_total",
		Help: "Updates fetched from the upstream source.",
	})

	// FetchErrors counts failed getUpdates calls.
	FetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fanout_fetch_errors_total",
		Help: "Failed long-poll fetches (retried at the same offset).",
	})

	// DispatchTotal counts delivery attempts by module and terminal outcome.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_dispatch_total",
		Help: "Dispatch attempts by module and outcome.",
	}, []string{"module", "outcome"})

	// NoMatchTotal counts updates that matched zero modules.
	NoMatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fanout_no_match_total",
		Help: "Updates that matched no module.",
	})
)
