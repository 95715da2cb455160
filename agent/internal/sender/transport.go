package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/obsidianstack/insightchannel/agent/internal/config"
)

// TransportKind names the delivery mechanism bound at construction.
type TransportKind int

const (
	// TransportNone means nothing could be bound; every item is dropped.
	TransportNone TransportKind = iota
	// TransportFireAndForget posts without observing the outcome.
	TransportFireAndForget
	// TransportRequestResponse posts and reconciles from status and body.
	TransportRequestResponse
	// TransportLegacy posts as text/plain and reconciles from the body only.
	TransportLegacy
)

func (k TransportKind) String() string {
	switch k {
	case TransportFireAndForget:
		return "fire-and-forget"
	case TransportRequestResponse:
		return "request-response"
	case TransportLegacy:
		return "legacy"
	}
	return "none"
}

// Capabilities lists the transports the host environment supports.
type Capabilities struct {
	FireAndForget   bool
	RequestResponse bool
	Legacy          bool
}

// DefaultCapabilities reports every transport as available.
func DefaultCapabilities() Capabilities {
	return Capabilities{FireAndForget: true, RequestResponse: true, Legacy: true}
}

// selectTransport picks fire-and-forget when allowed, then request/response,
// then legacy.
func selectTransport(cfg config.ChannelConfig, caps Capabilities) TransportKind {
	switch {
	case caps.FireAndForget && !cfg.DisableFireAndForgetTransport:
		return TransportFireAndForget
	case caps.RequestResponse:
		return TransportRequestResponse
	case caps.Legacy:
		return TransportLegacy
	}
	return TransportNone
}

const (
	// fireAndForgetLimit is the largest body the fire-and-forget transport
	// accepts. Larger bodies go through request/response instead.
	fireAndForgetLimit = 64 * 1024

	// maxResponseBytes caps how much of a collector response is read.
	maxResponseBytes = 1 << 20

	contentTypeJSON  = "application/json"
	contentTypePlain = "text/plain"

	// sdkContextHeader asks backend-family collectors to echo the appId.
	sdkContextHeader = "Sdk-Context"
	sdkContextValue  = "appId"
)

// backendEndpoints are track endpoints that understand the Sdk-Context header.
var backendEndpoints = []string{
	"https://dc.services.visualstudio.com/v2/track",
	"https://breeze.aimon.applicationinsights.io/v2/track",
	"https://dc-int.services.visualstudio.com/v2/track",
}

// isBackendEndpoint reports whether endpoint belongs to the collector
// family, either a well-known URL or a regional ingestion host.
func isBackendEndpoint(endpoint string) bool {
	lower := strings.ToLower(endpoint)
	for _, e := range backendEndpoints {
		if lower == e {
			return true
		}
	}
	u, err := url.Parse(lower)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), ".applicationinsights.azure.com")
}

// request is a fully prepared POST, built under the sender lock so a
// concurrent UpdateConfig cannot tear it.
type request struct {
	url     string
	body    []byte
	header  http.Header
	timeout time.Duration
}

// withContentType returns a copy of r carrying contentType.
func (r request) withContentType(contentType string) request {
	h := r.header.Clone()
	h.Set("Content-Type", contentType)
	r.header = h
	return r
}

// postFunc performs one POST. A non-nil error means no response was received.
type postFunc func(ctx context.Context, req request) (status int, body []byte, err error)

// buildRequest renders payload items into a request for the current config.
func buildRequest(cfg config.ChannelConfig, body string) request {
	h := make(http.Header)
	h.Set("Content-Type", contentTypeJSON)
	if isBackendEndpoint(cfg.EndpointURL) {
		h.Set(sdkContextHeader, sdkContextValue)
	}
	if cfg.Auth.Mode == "apikey" {
		if key := cfg.Auth.Key(); key != "" {
			h.Set(cfg.Auth.EffectiveHeader(), key)
		}
	}

	raw := []byte(body)
	if cfg.CompressBatches {
		if gz, err := gzipBody(raw); err == nil {
			raw = gz
			h.Set("Content-Encoding", "gzip")
		}
	}

	return request{url: cfg.EndpointURL, body: raw, header: h, timeout: cfg.SendTimeout}
}

func gzipBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// httpPost is the default postFunc.
func httpPost(client *http.Client) postFunc {
	return func(ctx context.Context, req request) (int, []byte, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.url, bytes.NewReader(req.body))
		if err != nil {
			return 0, nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header = req.header.Clone()

		resp, err := client.Do(httpReq)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			// The status alone is enough to reconcile.
			return resp.StatusCode, nil, nil
		}
		return resp.StatusCode, body, nil
	}
}

// send delivers out through the bound transport. It must be called without
// holding s.mu; reconciliation callbacks take the lock themselves.
func (s *Sender) send(out *outgoing, isAsync bool) {
	switch s.transport {
	case TransportFireAndForget:
		s.sendFireAndForget(out, isAsync)
	case TransportRequestResponse:
		s.sendRequestResponse(out, isAsync)
	case TransportLegacy:
		s.sendLegacy(out, isAsync)
	}
}

// run executes fn on the dispatcher when isAsync, inline otherwise.
func (s *Sender) run(isAsync bool, fn func()) {
	if isAsync {
		s.dispatch(fn)
		return
	}
	fn()
}

// do posts req under its timeout. A panicking post is reported as a
// network-level failure so the batch is still reconciled.
func (s *Sender) do(req request) (status int, body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diag.critical(MsgPanicRecovered, "sender: recovered panic", "op", "post", "panic", r)
			status, body, err = 0, nil, fmt.Errorf("%w: %v", ErrTransportPanic, r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), req.timeout)
	defer cancel()
	return s.post(ctx, req)
}

func (s *Sender) sendRequestResponse(out *outgoing, isAsync bool) {
	req := out.req.withContentType(contentTypeJSON)
	s.run(isAsync, func() {
		defer s.recoverPanic(MsgPanicRecovered, "request-response")
		status, body, err := s.do(req)
		if err != nil {
			s.onFailure(out.items, &TransportError{Err: err})
			return
		}
		s.onResponse(out.items, status, body)
	})
}

// sendFireAndForget treats a handed-off batch as delivered. Bodies over the
// size limit fall back to request/response.
func (s *Sender) sendFireAndForget(out *outgoing, isAsync bool) {
	if len(out.req.body) > fireAndForgetLimit {
		s.diag.warn(MsgFireAndForgetRejected, "sender: batch exceeds fire-and-forget limit, using request/response",
			"bytes", len(out.req.body), "limit", fireAndForgetLimit)
		s.sendRequestResponse(out, isAsync)
		return
	}

	req := out.req.withContentType(contentTypePlain)
	s.dispatch(func() {
		defer s.recoverPanic(MsgPanicRecovered, "fire-and-forget")
		if _, _, err := s.do(req); err != nil {
			s.diag.debug("sender: fire-and-forget post failed", "err", err)
		}
	})
	s.onAccepted(out.items)
}

// sendLegacy has no status visibility: a non-2xx answer or network error is
// a retriable failure whatever the status, anything else is reconciled from
// the body alone.
func (s *Sender) sendLegacy(out *outgoing, isAsync bool) {
	req := out.req.withContentType(contentTypePlain)
	s.run(isAsync, func() {
		defer s.recoverPanic(MsgPanicRecovered, "legacy")
		status, body, err := s.do(req)
		if err == nil && (status < 200 || status >= 300) {
			err = errors.New("legacy request failed")
		}
		if err != nil {
			s.onFailure(out.items, &TransportError{Err: err})
			return
		}
		s.onLegacyLoad(out.items, body)
	})
}
