package sender

import (
	"log/slog"
	"math/rand"
	"net/http"

	"github.com/obsidianstack/insightchannel/agent/internal/clock"
	"github.com/obsidianstack/insightchannel/agent/internal/storage"
)

// options holds the collaborators New wires into a Sender.
type options struct {
	logger *slog.Logger
	clock  clock.Clock
	store  storage.Store
	client *http.Client
	caps   *Capabilities
	rnd    func() float64
}

func (o options) withDefaults() options {
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.client == nil {
		o.client = &http.Client{}
	}
	if o.caps == nil {
		caps := DefaultCapabilities()
		o.caps = &caps
	}
	if o.rnd == nil {
		o.rnd = rand.Float64
	}
	return o
}

// Option configures a Sender.
type Option func(*options)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used for flush timers and retry deadlines.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithStore sets the storage backing the durable buffer. Without it the
// sender opens channel.storage_dir, if configured.
func WithStore(st storage.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithHTTPClient sets the client used by the HTTP transports.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithCapabilities restricts which transports may be bound.
func WithCapabilities(caps Capabilities) Option {
	return func(o *options) {
		o.caps = &caps
	}
}

// WithRandom sets the [0, 1) source used for backoff jitter and sampling of
// items without an operation id.
func WithRandom(rnd func() float64) Option {
	return func(o *options) {
		o.rnd = rnd
	}
}
