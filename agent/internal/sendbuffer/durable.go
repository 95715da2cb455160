package sendbuffer

import (
	"log/slog"

	"github.com/obsidianstack/insightchannel/agent/internal/storage"
)

// Storage key suffixes for the queued and in-flight lists.
const (
	BufferKey     = "AI_buffer"
	SentBufferKey = "AI_sentBuffer"
)

// Durable is a Buffer mirrored to a storage.Store.
type Durable struct {
	lists
	store   storage.Store
	bufKey  string
	sentKey string
	logger  *slog.Logger
}

// NewDurable restores previously persisted payloads from st and returns the
// buffer. Restored in-flight payloads are appended after the queued ones.
func NewDurable(st storage.Store, prefix string, lineDelimited bool, logger *slog.Logger) *Durable {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Durable{
		lists:   lists{lineDelimited: lineDelimited},
		store:   st,
		bufKey:  prefix + BufferKey,
		sentKey: prefix + SentBufferKey,
		logger:  logger,
	}

	queued := d.load(d.bufKey)
	notDelivered := d.load(d.sentKey)
	d.queued = append(queued, notDelivered...)
	if len(d.queued) > 0 {
		logger.Info("sendbuffer: restored persisted telemetry",
			"queued", len(queued), "not_delivered", len(notDelivered))
	}

	d.save(d.sentKey, nil)
	d.save(d.bufKey, d.queued)
	return d
}

func (d *Durable) Enqueue(payload string) {
	d.enqueue(payload)
	d.save(d.bufKey, d.queued)
}

func (d *Durable) GetItems() []string          { return d.getItems() }
func (d *Durable) Batch(items []string) string { return d.batch(items) }
func (d *Durable) Count() int                  { return len(d.queued) }
func (d *Durable) InFlight() int               { return len(d.sent) }

func (d *Durable) Clear() {
	d.clear()
	d.save(d.bufKey, nil)
	d.save(d.sentKey, nil)
}

func (d *Durable) MarkAsSent(items []string) {
	d.markAsSent(items)
	d.save(d.bufKey, d.queued)
	d.save(d.sentKey, d.sent)
}

func (d *Durable) ClearSent(items []string) {
	d.clearSent(items)
	d.save(d.bufKey, d.queued)
	d.save(d.sentKey, d.sent)
}

func (d *Durable) load(key string) []string {
	items, err := d.store.Load(key)
	if err != nil {
		d.logger.Warn("sendbuffer: could not restore persisted telemetry", "key", key, "err", err)
		return nil
	}
	return items
}

// save logs and otherwise ignores write failures; the in-memory lists remain
// authoritative for this run.
func (d *Durable) save(key string, items []string) {
	if err := d.store.Save(key, items); err != nil {
		d.logger.Warn("sendbuffer: could not persist telemetry", "key", key, "err", err)
	}
}
