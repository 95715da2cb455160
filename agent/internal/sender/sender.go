package sender

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/insightchannel/agent/internal/clock"
	"github.com/obsidianstack/insightchannel/agent/internal/config"
	"github.com/obsidianstack/insightchannel/agent/internal/envelope"
	"github.com/obsidianstack/insightchannel/agent/internal/sendbuffer"
	"github.com/obsidianstack/insightchannel/agent/internal/storage"
	"github.com/obsidianstack/insightchannel/pkg/types"
)

// EnvelopeBuilder turns an item into its serialized wire envelope.
type EnvelopeBuilder interface {
	Validate(it envelope.Item) bool
	Build(it envelope.Item) (string, bool)
}

// outgoing is one batch taken from the buffer and ready for a transport.
type outgoing struct {
	items []string
	req   request
}

// Sender batches serialized envelopes and delivers them to the collector.
// All state is guarded by mu; transport I/O always runs without it.
type Sender struct {
	mu        sync.Mutex
	cfg       config.ChannelConfig
	buffer    sendbuffer.Buffer
	builder   EnvelopeBuilder
	transport TransportKind
	clock     clock.Clock
	rnd       func() float64
	logger    *slog.Logger
	diag      *diagnostics

	consecutiveErrors int
	retryAt           time.Time
	lastSend          time.Time
	timer             clock.Timer
	timerGen          uint64
	appID             string
	paused            bool
	closed            bool
	stats             Stats

	post     postFunc     // injectable for tests
	dispatch func(func()) // injectable for tests
	wg       sync.WaitGroup
}

// New creates a Sender for cfg. The transport is chosen once here. A durable
// buffer restores any persisted telemetry and schedules its delivery.
func New(cfg config.ChannelConfig, builder EnvelopeBuilder, opts ...Option) *Sender {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o = o.withDefaults()

	store := o.store
	if store == nil && cfg.EnableDurableBuffer && cfg.StorageDir != "" {
		fs, err := storage.NewFile(cfg.StorageDir)
		if err != nil {
			o.logger.Warn("sender: open storage dir", "dir", cfg.StorageDir, "err", err)
		} else {
			store = fs
		}
	}

	s := &Sender{
		cfg:     cfg,
		builder: builder,
		buffer: sendbuffer.New(sendbuffer.Options{
			Durable:       cfg.EnableDurableBuffer && store != nil,
			Store:         store,
			KeyPrefix:     cfg.StorageKeyPrefix,
			LineDelimited: cfg.EmitLineDelimitedJSON,
			Logger:        o.logger,
		}),
		transport: selectTransport(cfg, *o.caps),
		clock:     o.clock,
		rnd:       o.rnd,
		logger:    o.logger,
		diag:      newDiagnostics(o.logger),
		post:      httpPost(o.client),
	}
	s.dispatch = s.goDispatch

	if s.transport == TransportNone {
		s.diag.critical(MsgSenderNotInitialized, "sender: no transport available, telemetry will be dropped",
			"err", ErrNoTransport)
	}

	s.mu.Lock()
	if s.buffer.Count() > 0 {
		s.setupTimerLocked()
	}
	s.mu.Unlock()

	s.logger.Info("sender: started",
		"transport", s.transport.String(),
		"endpoint", cfg.EndpointURL,
		"restored", s.buffer.Count())
	return s
}

func (s *Sender) goDispatch(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Process validates, samples and serializes it, then enqueues the payload.
// When the payload would push the batch past the byte budget the existing
// buffer is flushed first.
func (s *Sender) Process(it envelope.Item) {
	defer s.recoverPanic(MsgPanicRecovered, "Process")
	if out := s.process(it); out != nil {
		s.send(out, true)
	}
}

func (s *Sender) process(it envelope.Item) *outgoing {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.DisableTelemetry {
		return nil
	}
	if s.closed {
		s.stats.ItemsRejected++
		s.diag.warn(MsgSenderNotInitialized, "sender: item dropped after teardown", "err", ErrClosed)
		return nil
	}
	if s.transport == TransportNone {
		s.stats.ItemsRejected++
		s.diag.warn(MsgSenderNotInitialized, "sender: item dropped", "err", ErrNoTransport)
		return nil
	}
	if !s.builder.Validate(it) {
		s.stats.ItemsRejected++
		s.diag.warn(MsgInvalidEvent, "sender: invalid item dropped", "kind", it.Kind, "err", ErrInvalidItem)
		return nil
	}
	if !sampledIn(s.cfg.SamplingPercentage, it, s.rnd) {
		s.stats.ItemsSampledOut++
		s.diag.debug("sender: item sampled out", "msg_id", string(MsgItemSampledOut), "kind", it.Kind)
		return nil
	}
	if s.cfg.SamplingPercentage < 100 && it.Kind != envelope.KindMetric {
		it.SampleRate = s.cfg.SamplingPercentage
	}

	payload, ok := s.builder.Build(it)
	if !ok {
		s.stats.ItemsRejected++
		s.diag.warn(MsgInvalidEvent, "sender: item could not be serialized", "kind", it.Kind, "err", ErrInvalidItem)
		return nil
	}

	var out *outgoing
	if len(s.buffer.Batch(s.buffer.GetItems()))+len(payload) > s.cfg.MaxBatchSizeBytes {
		out = s.prepareLocked()
		s.clearTimerLocked()
		if out != nil {
			s.stats.EagerFlushes++
		}
	}

	s.buffer.Enqueue(payload)
	s.stats.Enqueued++
	s.setupTimerLocked()
	return out
}

// TriggerSend sends everything queued as one batch. An async send returns
// before the transport completes. The flush timer and retry deadline are
// cleared in both modes.
func (s *Sender) TriggerSend(isAsync bool) {
	defer s.recoverPanic(MsgFailedToSendQueuedTelemetry, "TriggerSend")

	out := func() *outgoing {
		s.mu.Lock()
		defer s.mu.Unlock()
		o := s.prepareLocked()
		if isAsync {
			s.clearTimerLocked()
		}
		return o
	}()
	if out != nil {
		s.send(out, isAsync)
	}
	if !isAsync {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.clearTimerLocked()
	}
}

// Flush sends queued items asynchronously.
func (s *Sender) Flush() {
	s.TriggerSend(true)
}

// Pause stops the flush timer. Items keep accumulating until Resume.
func (s *Sender) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.clearTimerLocked()
}

// Resume re-arms the flush timer when items are waiting.
func (s *Sender) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	if s.buffer.Count() > 0 {
		s.setupTimerLocked()
	}
}

// Teardown synchronously sends what is queued, stops the timer and waits for
// outstanding async sends until ctx is done. Items still buffered remain in
// durable storage for the next start.
func (s *Sender) Teardown(ctx context.Context) error {
	s.TriggerSend(false)

	s.mu.Lock()
	s.closed = true
	s.clearTimerLocked()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateConfig applies cfg to later operations. The transport, buffer
// variant and batch format stay as chosen by New.
func (s *Sender) UpdateConfig(cfg config.ChannelConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.EnableDurableBuffer = s.cfg.EnableDurableBuffer
	cfg.StorageDir = s.cfg.StorageDir
	cfg.StorageKeyPrefix = s.cfg.StorageKeyPrefix
	cfg.EmitLineDelimitedJSON = s.cfg.EmitLineDelimitedJSON
	cfg.DisableFireAndForgetTransport = s.cfg.DisableFireAndForgetTransport
	s.cfg = cfg
	s.logger.Info("sender: config updated",
		"endpoint", cfg.EndpointURL,
		"max_batch_interval", cfg.MaxBatchInterval,
		"sampling_percentage", cfg.SamplingPercentage)
}

// Stats returns a snapshot of the sender's counters.
func (s *Sender) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.DiagnosticsSuppressed = s.diag.suppressed.Load()
	st.Queued = s.buffer.Count()
	st.InFlight = s.buffer.InFlight()
	st.ConsecutiveErrors = s.consecutiveErrors
	st.LastSend = s.lastSend
	return st
}

// AppID returns the application id learned from the collector, if any.
func (s *Sender) AppID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appID
}

// ConsecutiveErrors returns the number of failed batches since the last
// fully successful one.
func (s *Sender) ConsecutiveErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveErrors
}

// Transport returns the transport bound at construction.
func (s *Sender) Transport() TransportKind {
	return s.transport
}

// prepareLocked takes every queued item as the next batch and marks it in
// flight. It returns nil when there is nothing to send.
func (s *Sender) prepareLocked() *outgoing {
	s.lastSend = s.clock.Now()
	if s.cfg.DisableTelemetry {
		s.buffer.Clear()
		return nil
	}
	if s.transport == TransportNone || s.buffer.Count() == 0 {
		return nil
	}
	items := s.buffer.GetItems()
	s.buffer.MarkAsSent(items)
	s.stats.BatchesSent++
	return &outgoing{items: items, req: buildRequest(s.cfg, s.buffer.Batch(items))}
}

// setupTimerLocked arms the flush timer unless one exists. The delay is the
// batch interval, stretched to the retry deadline when one is pending.
func (s *Sender) setupTimerLocked() {
	if s.timer != nil || s.paused || s.closed {
		return
	}
	delay := s.cfg.MaxBatchInterval
	if !s.retryAt.IsZero() {
		if untilRetry := s.retryAt.Sub(s.clock.Now()); untilRetry > delay {
			delay = untilRetry
		}
	}
	s.timerGen++
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(delay, func() { s.onTimer(gen) })
}

func (s *Sender) clearTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.retryAt = time.Time{}
}

// onTimer flushes asynchronously unless the timer that fired has been
// replaced or cleared since it was armed.
func (s *Sender) onTimer(gen uint64) {
	defer s.recoverPanic(MsgFailedToSendQueuedTelemetry, "timer")

	out, fire := func() (*outgoing, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.timer == nil || gen != s.timerGen {
			return nil, false
		}
		o := s.prepareLocked()
		s.clearTimerLocked()
		return o, true
	}()
	if fire && out != nil {
		s.send(out, true)
	}
}

// onResponse reconciles a batch from a request/response outcome.
func (s *Sender) onResponse(items []string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		resp   *types.BatchResponse
		parsed bool
	)
	if s.appID == "" || status == http.StatusPartialContent {
		resp, parsed = ParseResponse(body)
		if parsed {
			s.learnAppIDLocked(resp)
		}
	}

	switch {
	case isSuccess(status):
		s.succeedLocked(items)
	case status == http.StatusPartialContent:
		switch {
		case !parsed:
			s.consecutiveErrors++
			s.dropLocked(items, &TransportError{Status: status, Err: ErrUnparseableResponse})
		case s.cfg.IsRetryDisabled:
			s.consecutiveErrors++
			s.dropLocked(items, &TransportError{Status: status})
		default:
			s.partialLocked(items, resp)
		}
	default:
		s.failureLocked(items, &TransportError{Status: status})
	}
}

// onLegacyLoad reconciles a batch from a legacy response body: empty or "200"
// is success, a parseable partial response is reconciled per item, and
// anything else drops the batch.
func (s *Sender) onLegacyLoad(items []string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := string(body)
	if text == "" || text == "200" {
		s.succeedLocked(items)
		return
	}
	resp, ok := ParseResponse(body)
	if ok {
		s.learnAppIDLocked(resp)
	}
	switch {
	case ok && resp.ItemsReceived == resp.ItemsAccepted:
		s.succeedLocked(items)
	case ok && !s.cfg.IsRetryDisabled:
		s.partialLocked(items, resp)
	default:
		s.consecutiveErrors++
		s.dropLocked(items, &TransportError{Err: ErrUnparseableResponse})
	}
}

// onFailure handles a delivery attempt that produced no usable response.
func (s *Sender) onFailure(items []string, terr *TransportError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureLocked(items, terr)
}

// onAccepted settles a fire-and-forget batch, whose outcome is unknowable.
func (s *Sender) onAccepted(items []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.ClearSent(items)
	s.stats.ItemsAccepted += uint64(len(items))
}

func (s *Sender) failureLocked(items []string, terr *TransportError) {
	s.consecutiveErrors++
	if terr.Retriable() && !s.cfg.IsRetryDisabled {
		s.requeueLocked(items, terr)
		return
	}
	s.dropLocked(items, terr)
}

func (s *Sender) learnAppIDLocked(resp *types.BatchResponse) {
	if s.appID == "" && resp.AppID != "" {
		s.appID = resp.AppID
		s.logger.Debug("sender: learned app id", "app_id", resp.AppID)
	}
}

func (s *Sender) succeedLocked(items []string) {
	s.consecutiveErrors = 0
	s.buffer.ClearSent(items)
	s.stats.ItemsAccepted += uint64(len(items))
}

func (s *Sender) dropLocked(items []string, err error) {
	s.buffer.ClearSent(items)
	s.stats.ItemsDropped += uint64(len(items))
	s.diag.warn(MsgTransmissionFailed, "sender: telemetry dropped",
		"items", len(items), "consecutive_errors", s.consecutiveErrors, "err", err)
}

// requeueLocked appends copies of items to the tail and pushes the retry
// deadline out by the backoff delay for the current error count.
func (s *Sender) requeueLocked(items []string, err error) {
	s.buffer.ClearSent(items)
	for _, p := range items {
		s.buffer.Enqueue(p)
	}
	s.stats.ItemsRetried += uint64(len(items))

	delay := NextDelay(s.consecutiveErrors, s.rnd)
	s.retryAt = s.clock.Now().Add(delay)
	s.setupTimerLocked()
	s.diag.warn(MsgTransmissionRetried, "sender: telemetry re-queued",
		"items", len(items), "consecutive_errors", s.consecutiveErrors, "retry_in", delay, "err", err)
}

// partialLocked splits a batch by the per-item errors in resp. Items without
// an error were accepted. Retriable rejections go back to the tail in their
// original order; the rest are dropped. Out-of-range and duplicate indices
// are ignored.
func (s *Sender) partialLocked(items []string, resp *types.BatchResponse) {
	errs := slices.Clone(resp.Errors)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Index > errs[j].Index })

	accepted := slices.Clone(items)
	var retry, failed []string
	for i, e := range errs {
		if e.Index < 0 || e.Index >= len(items) || (i > 0 && e.Index == errs[i-1].Index) {
			s.diag.debug("sender: ignoring batch error", "index", e.Index, "items", len(items))
			continue
		}
		payload := accepted[e.Index]
		accepted = slices.Delete(accepted, e.Index, e.Index+1)
		if isRetriable(e.StatusCode) {
			retry = append(retry, payload)
		} else {
			failed = append(failed, payload)
		}
	}
	slices.Reverse(retry)
	slices.Reverse(failed)

	if len(retry) == 0 && len(failed) == 0 {
		s.succeedLocked(items)
		return
	}

	s.consecutiveErrors++
	s.diag.warn(MsgPartialSuccess, "sender: partial success",
		"received", resp.ItemsReceived, "accepted", resp.ItemsAccepted,
		"retry", len(retry), "failed", len(failed))

	s.buffer.ClearSent(accepted)
	s.stats.ItemsAccepted += uint64(len(accepted))
	if len(failed) > 0 {
		s.dropLocked(failed, &TransportError{Status: http.StatusPartialContent})
	}
	if len(retry) > 0 {
		s.requeueLocked(retry, &TransportError{Status: http.StatusPartialContent})
	}
}

// recoverPanic turns a panic in a public entry point into a diagnostic.
func (s *Sender) recoverPanic(id MsgID, op string) {
	if r := recover(); r != nil {
		s.diag.critical(id, "sender: recovered panic", "op", op, "panic", r)
	}
}
