package sendbuffer

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/obsidianstack/insightchannel/agent/internal/storage"
)

// Buffer is the contract the sender drives.
type Buffer interface {
	// Enqueue appends payload to the queued list.
	Enqueue(payload string)
	// GetItems returns a copy of the queued list in order.
	GetItems() []string
	// Batch joins items into a single wire body.
	Batch(items []string) string
	// Count returns the number of queued payloads.
	Count() int
	// InFlight returns the number of payloads marked as sent.
	InFlight() int
	// Clear drops every queued and in-flight payload.
	Clear()
	// MarkAsSent moves items from queued to in-flight.
	MarkAsSent(items []string)
	// ClearSent removes items from in-flight, or from queued when they were
	// never marked.
	ClearSent(items []string)
}

// Options selects the buffer variant and wire format.
type Options struct {
	// Durable requests the storage-backed variant.
	Durable bool
	// Store backs the durable variant.
	Store storage.Store
	// KeyPrefix namespaces the storage keys.
	KeyPrefix string
	// LineDelimited makes Batch emit newline-delimited JSON instead of an array.
	LineDelimited bool
	Logger        *slog.Logger
}

// New returns a Durable buffer when opts.Durable is set and opts.Store is
// usable, otherwise an Array.
func New(opts Options) Buffer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Durable {
		if err := storage.Available(opts.Store); err != nil {
			logger.Warn("sendbuffer: durable storage unavailable, using in-memory buffer", "err", err)
		} else {
			return NewDurable(opts.Store, opts.KeyPrefix, opts.LineDelimited, logger)
		}
	}
	return NewArray(opts.LineDelimited)
}

// lists is the queued/in-flight bookkeeping shared by both variants.
type lists struct {
	queued        []string
	sent          []string
	lineDelimited bool
}

func (l *lists) enqueue(payload string) {
	l.queued = append(l.queued, payload)
}

func (l *lists) getItems() []string {
	return slices.Clone(l.queued)
}

func (l *lists) batch(items []string) string {
	if len(items) == 0 {
		return ""
	}
	if l.lineDelimited {
		return strings.Join(items, "\n")
	}
	return "[" + strings.Join(items, ",") + "]"
}

func (l *lists) clear() {
	l.queued = nil
	l.sent = nil
}

func (l *lists) markAsSent(items []string) {
	for _, item := range items {
		i := slices.Index(l.queued, item)
		if i < 0 {
			continue
		}
		l.queued = slices.Delete(l.queued, i, i+1)
		l.sent = append(l.sent, item)
	}
}

func (l *lists) clearSent(items []string) {
	for _, item := range items {
		if i := slices.Index(l.sent, item); i >= 0 {
			l.sent = slices.Delete(l.sent, i, i+1)
			continue
		}
		if i := slices.Index(l.queued, item); i >= 0 {
			l.queued = slices.Delete(l.queued, i, i+1)
		}
	}
}

// Array is the in-memory Buffer.
type Array struct {
	lists
}

// NewArray returns an empty in-memory buffer.
func NewArray(lineDelimited bool) *Array {
	return &Array{lists: lists{lineDelimited: lineDelimited}}
}

func (a *Array) Enqueue(payload string)      { a.enqueue(payload) }
func (a *Array) GetItems() []string          { return a.getItems() }
func (a *Array) Batch(items []string) string { return a.batch(items) }
func (a *Array) Count() int                  { return len(a.queued) }
func (a *Array) InFlight() int               { return len(a.sent) }
func (a *Array) Clear()                      { a.clear() }
func (a *Array) MarkAsSent(items []string)   { a.markAsSent(items) }
func (a *Array) ClearSent(items []string)    { a.clearSent(items) }
