package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"
	dto "github.com/prometheus/client_model/go"

	"github.com/obsidianstack/insightchannel/pkg/metrics"
	"github.com/obsidianstack/insightchannel/pkg/types"
	"github.com/obsidianstack/insightchannel/server/internal/config"
	"github.com/obsidianstack/insightchannel/server/internal/store"
)

// Options configures a Handler.
type Options struct {
	// AppID is echoed in every batch response.
	AppID string
	// MaxBodyBytes caps the decompressed body; larger batches get 413.
	MaxBodyBytes int64
	// Faults answers the first batches with scripted statuses.
	Faults []config.FaultStep
}

// Handler ingests track batches into a store and serves queries over it.
type Handler struct {
	store   *store.Store
	appID   string
	maxBody int64
	faults  *faultScript

	batches  atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
	faulted  atomic.Uint64
}

// New creates a Handler writing accepted envelopes to st.
func New(st *store.Store, opts Options) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = config.DefaultMaxBodyBytes
	}
	return &Handler{
		store:   st,
		appID:   opts.AppID,
		maxBody: opts.MaxBodyBytes,
		faults:  newFaultScript(opts.Faults),
	}
}

// Routes returns the collector router. trackMiddleware wraps only the track
// endpoints.
func (h *Handler) Routes(trackMiddleware ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(trackMiddleware...)
		r.Post("/v2/track", h.track)
		r.Post("/v2.1/track", h.track)
	})
	r.Get("/api/v1/envelopes", h.envelopes)
	r.Get("/api/v1/keys", h.keys)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(h.Collect))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// track handles POST /v2/track.
func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	h.batches.Add(1)

	if status := h.faults.next(); status != 0 {
		h.faulted.Add(1)
		slog.Info("ingest: injected fault", "status", status)
		jsonResp(w, status, types.BatchResponse{AppID: h.appID, Errors: []types.BatchError{}})
		return
	}

	body, err := h.readBody(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.fail(w, status, err.Error())
		return
	}

	items, err := splitBatch(body)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := types.BatchResponse{ItemsReceived: len(items), AppID: h.appID, Errors: []types.BatchError{}}
	accepted := make([]*store.Entry, 0, len(items))
	for i, raw := range items {
		e, err := validateEnvelope(raw)
		if err != nil {
			resp.Errors = append(resp.Errors, types.BatchError{
				Index:      i,
				StatusCode: http.StatusBadRequest,
				Message:    err.Error(),
			})
			continue
		}
		accepted = append(accepted, e)
	}
	resp.ItemsAccepted = len(accepted)
	h.store.Add(accepted...)
	h.accepted.Add(uint64(len(accepted)))
	h.rejected.Add(uint64(len(resp.Errors)))

	status := http.StatusOK
	switch {
	case len(accepted) == 0:
		status = http.StatusBadRequest
	case len(resp.Errors) > 0:
		status = http.StatusPartialContent
	}
	slog.Debug("ingest: batch processed",
		"received", resp.ItemsReceived,
		"accepted", resp.ItemsAccepted,
		"status", status)
	jsonResp(w, status, resp)
}

var errBodyTooLarge = errors.New("request body too large")

// readBody returns the decompressed request body, bounded by maxBody.
func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	var src io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		src = zr
	}
	body, err := io.ReadAll(io.LimitReader(src, h.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > h.maxBody {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// envelopes returns GET /api/v1/envelopes?ikey=, the live envelopes for one key.
func (h *Handler) envelopes(w http.ResponseWriter, r *http.Request) {
	ikey := r.URL.Query().Get("ikey")
	if ikey == "" {
		h.fail(w, http.StatusBadRequest, "ikey query parameter is required")
		return
	}
	jsonResp(w, http.StatusOK, h.store.List(ikey))
}

// keys returns GET /api/v1/keys.
func (h *Handler) keys(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.store.Keys())
}

// Collect reports ingestion counters as metric families.
func (h *Handler) Collect() []*dto.MetricFamily {
	return []*dto.MetricFamily{
		metrics.Counter("insight_collector_batches_total", "Track requests received.", float64(h.batches.Load())),
		metrics.Counter("insight_collector_envelopes_accepted_total", "Envelopes stored.", float64(h.accepted.Load())),
		metrics.Counter("insight_collector_envelopes_rejected_total", "Envelopes that failed validation.", float64(h.rejected.Load())),
		metrics.Counter("insight_collector_faults_injected_total", "Batches answered by the fault script.", float64(h.faulted.Load())),
		metrics.Gauge("insight_collector_stored_envelopes", "Envelopes currently held, including stale ones.", float64(h.store.Count())),
	}
}

type errorResponse struct {
	Error string `json:"error"`
	AppID string `json:"appId,omitempty"`
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func (h *Handler) fail(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg, AppID: h.appID})
}
