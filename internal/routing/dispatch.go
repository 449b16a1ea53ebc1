package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/hybridz/telegram-fanout/internal/metrics"
	"github.com/hybridz/telegram-fanout/internal/telegram"
)

// Outcome is the terminal state of one (update, module) delivery attempt.
type Outcome int

const (
	// Delivered means the module acknowledged with a 2xx status.
	Delivered Outcome = iota
	// Rejected means the module answered with a non-2xx status. Not retried.
	Rejected
	// Unreachable means the POST never got a response. Not retried.
	Unreachable
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Result records the outcome of delivering one update to one module.
type Result struct {
	Module  string
	Outcome Outcome
	Status  int   // HTTP status, 0 when unreachable
	Err     error // transport error, nil otherwise
}

// Envelope is the body POSTed to consumer modules. Update carries the raw
// Bot API payload untouched; the token lets consumers call the Bot API back.
type Envelope struct {
	Update json.RawMessage `json:"update"`
	Source string          `json:"source"`
	Type   string          `json:"type"`
	Token  string          `json:"token,omitempty"`
}

// Dispatcher fans updates out to every module whose rules match.
type Dispatcher struct {
	Registry   *Registry
	Token      string
	HTTPClient *http.Client

	// Observer, when set, receives every Result after it is recorded.
	// Used to feed the ops event tap; failures there never affect dispatch.
	Observer func(telegram.UpdateType, Origin, Result)
}

// NewDispatcher creates a dispatcher with a bounded per-request timeout.
func NewDispatcher(reg *Registry, token string, requestTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		Registry:   reg,
		Token:      token,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// Dispatch delivers the update to every matching module. Deliveries for one
// update run concurrently and independently; a failure talking to one module
// is invisible to the others. An update matching zero modules is a no-op and
// returns an empty slice.
func (d *Dispatcher) Dispatch(ctx context.Context, u *telegram.Update, origin Origin) []Result {
	kind := u.Kind()

	var matched []*Module
	for _, m := range d.Registry.Modules() {
		if m.Matches(origin, kind) {
			matched = append(matched, m)
		}
	}

	if len(matched) == 0 {
		log.Printf("[%s-%s FROM %d] no suitable modules found", origin.Source, kind, origin.FromID)
		metrics.NoMatchTotal.Inc()
		return nil
	}

	body, err := d.envelope(u, origin, kind)
	if err != nil {
		// Updates arrive as valid JSON, so this only fires on a
		// hand-built Update with no Raw payload that fails to marshal.
		log.Printf("[%s-%s FROM %d] envelope error: %v", origin.Source, kind, origin.FromID, err)
		return nil
	}

	results := make([]Result, len(matched))
	var wg sync.WaitGroup
	for i, m := range matched {
		wg.Add(1)
		go func(i int, m *Module) {
			defer wg.Done()
			results[i] = d.send(ctx, m, body)
			d.record(kind, origin, results[i])
		}(i, m)
	}
	wg.Wait()

	// Modules with non-HTTP endpoints are accepted in configuration but
	// produce no network action; drop their placeholder results.
	out := results[:0]
	for _, r := range results {
		if r.Module != "" {
			out = append(out, r)
		}
	}
	return out
}

// envelope builds the consumer POST body. The raw payload is preferred; a
// typed re-marshal covers updates built in process (tests, replays).
func (d *Dispatcher) envelope(u *telegram.Update, origin Origin, kind telegram.UpdateType) ([]byte, error) {
	raw := u.Raw
	if raw == nil {
		data, err := json.Marshal(u)
		if err != nil {
			return nil, fmt.Errorf("marshal update: %w", err)
		}
		raw = data
	}

	return json.Marshal(Envelope{
		Update: raw,
		Source: string(origin.Source),
		Type:   string(kind),
		Token:  d.Token,
	})
}

// send POSTs the envelope to one module and classifies the outcome. A zero
// Result (empty Module) means the endpoint scheme produced no network action.
func (d *Dispatcher) send(ctx context.Context, m *Module, body []byte) Result {
	if m.Endpoint.Scheme != "http" && m.Endpoint.Scheme != "https" {
		log.Printf("module %s: scheme %q not dispatchable, skipping", m.Name, m.Endpoint.Scheme)
		return Result{}
	}

	url := m.Endpoint.URL()
	log.Printf("sending update to %s (%s)", url, m.Name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Module: m.Name, Outcome: Unreachable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return Result{Module: m.Name, Outcome: Unreachable, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Module: m.Name, Outcome: Rejected, Status: resp.StatusCode}
	}
	return Result{Module: m.Name, Outcome: Delivered, Status: resp.StatusCode}
}

// record logs the outcome, bumps counters, and notifies the observer.
func (d *Dispatcher) record(kind telegram.UpdateType, origin Origin, r Result) {
	if r.Module == "" {
		return
	}

	switch r.Outcome {
	case Delivered:
		log.Printf("[%s-%s FROM %d] delivered to %s (%d)", origin.Source, kind, origin.FromID, r.Module, r.Status)
	case Rejected:
		log.Printf("[%s-%s FROM %d] module %s responded with error: %d", origin.Source, kind, origin.FromID, r.Module, r.Status)
	case Unreachable:
		log.Printf("[%s-%s FROM %d] failed to send update to %s: %v", origin.Source, kind, origin.FromID, r.Module, r.Err)
	}
	metrics.DispatchTotal.WithLabelValues(r.Module, r.Outcome.String()).Inc()

	if d.Observer != nil {
		d.Observer(kind, origin, r)
	}
}
