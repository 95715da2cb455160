package sendbuffer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/obsidianstack/insightchannel/agent/internal/storage"
)

func fill(b Buffer, items ...string) {
	for _, it := range items {
		b.Enqueue(it)
	}
}

func TestArray_EnqueueRoundTrip(t *testing.T) {
	b := NewArray(false)
	s := `{"name":"evt","data":{"x":"  spaced  "}}`
	b.Enqueue(s)

	got := b.GetItems()
	if len(got) != 1 || got[0] != s {
		t.Fatalf("GetItems() = %q, want [%q]", got, s)
	}
	if b.Count() != 1 {
		t.Errorf("Count() = %d, want 1", b.Count())
	}
}

func TestArray_GetItemsIsSnapshot(t *testing.T) {
	b := NewArray(false)
	fill(b, "a", "b")
	snap := b.GetItems()
	snap[0] = "mutated"
	b.Enqueue("c")

	if got := b.GetItems(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("GetItems() = %v, want [a b c]", got)
	}
}

func TestBatch_Formats(t *testing.T) {
	tests := []struct {
		name          string
		lineDelimited bool
		items         []string
		want          string
	}{
		{"array", false, []string{`{"a":1}`, `{"b":2}`}, `[{"a":1},{"b":2}]`},
		{"ndjson", true, []string{`{"a":1}`, `{"b":2}`}, "{\"a\":1}\n{\"b\":2}"},
		{"empty", false, nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewArray(tc.lineDelimited)
			if got := b.Batch(tc.items); got != tc.want {
				t.Errorf("Batch() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMarkAsSent_MovesToInFlight(t *testing.T) {
	b := NewArray(false)
	fill(b, "a", "b", "c")

	b.MarkAsSent([]string{"a", "c"})

	if got := b.GetItems(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("queued = %v, want [b]", got)
	}
	if b.InFlight() != 2 {
		t.Errorf("InFlight() = %d, want 2", b.InFlight())
	}
}

func TestClearSent_AfterMarkAsSent_PreservesSurvivorOrder(t *testing.T) {
	cases := []struct {
		name   string
		remove []string
		want   []string
	}{
		{"none", nil, []string{"a", "b", "c", "d", "e"}},
		{"head", []string{"a"}, []string{"b", "c", "d", "e"}},
		{"middle", []string{"b", "d"}, []string{"a", "c", "e"}},
		{"tail", []string{"e"}, []string{"a", "b", "c", "d"}},
		{"all", []string{"a", "b", "c", "d", "e"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewArray(false)
			fill(b, "a", "b", "c", "d", "e")
			b.MarkAsSent(tc.remove)
			b.ClearSent(tc.remove)

			got := b.GetItems()
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("after ClearSent: %v, want %v", got, tc.want)
			}
			if b.InFlight() != 0 {
				t.Errorf("InFlight() = %d, want 0", b.InFlight())
			}
		})
	}
}

func TestClearSent_WithoutMarkAsSent(t *testing.T) {
	b := NewArray(false)
	fill(b, "a", "b", "c")

	b.ClearSent([]string{"b", "unknown"})

	if got := b.GetItems(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("GetItems() = %v, want [a c]", got)
	}
}

func TestClearSent_DuplicatesRemovedOncePerListing(t *testing.T) {
	b := NewArray(false)
	fill(b, "x", "x", "y")
	b.MarkAsSent([]string{"x"})
	b.ClearSent([]string{"x"})

	if got := b.GetItems(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("GetItems() = %v, want [x y]", got)
	}
}

func TestClear(t *testing.T) {
	b := NewArray(false)
	fill(b, "a", "b")
	b.MarkAsSent([]string{"a"})
	b.Clear()
	if b.Count() != 0 || b.InFlight() != 0 {
		t.Errorf("after Clear: Count=%d InFlight=%d, want 0/0", b.Count(), b.InFlight())
	}
}

func TestDurable_MirrorsMutations(t *testing.T) {
	st := storage.NewMemory()
	b := NewDurable(st, "app1_", false, nil)
	fill(b, "a", "b", "c")

	queued, _ := st.Load("app1_" + BufferKey)
	if !reflect.DeepEqual(queued, []string{"a", "b", "c"}) {
		t.Fatalf("persisted queued = %v, want [a b c]", queued)
	}

	b.MarkAsSent([]string{"a", "b"})
	queued, _ = st.Load("app1_" + BufferKey)
	sent, _ := st.Load("app1_" + SentBufferKey)
	if !reflect.DeepEqual(queued, []string{"c"}) {
		t.Errorf("persisted queued after MarkAsSent = %v, want [c]", queued)
	}
	if !reflect.DeepEqual(sent, []string{"a", "b"}) {
		t.Errorf("persisted sent after MarkAsSent = %v, want [a b]", sent)
	}

	b.ClearSent([]string{"a"})
	sent, _ = st.Load("app1_" + SentBufferKey)
	if !reflect.DeepEqual(sent, []string{"b"}) {
		t.Errorf("persisted sent after ClearSent = %v, want [b]", sent)
	}

	b.Clear()
	queued, _ = st.Load("app1_" + BufferKey)
	sent, _ = st.Load("app1_" + SentBufferKey)
	if len(queued) != 0 || len(sent) != 0 {
		t.Errorf("after Clear: queued=%v sent=%v, want empty", queued, sent)
	}
}

func TestDurable_RestoresAcrossRestart(t *testing.T) {
	st := storage.NewMemory()
	first := NewDurable(st, "", false, nil)
	fill(first, "a", "b", "c")
	first.MarkAsSent([]string{"a"})

	// "Reload": a new buffer over the same store.
	second := NewDurable(st, "", false, nil)

	if got := second.GetItems(); !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Errorf("restored = %v, want [b c a]", got)
	}
	if second.InFlight() != 0 {
		t.Errorf("restored InFlight = %d, want 0", second.InFlight())
	}
	sent, _ := st.Load(SentBufferKey)
	if len(sent) != 0 {
		t.Errorf("sent key after restore = %v, want empty", sent)
	}
}

func TestDurable_FileStoreRestart(t *testing.T) {
	dir := t.TempDir()
	st, err := storage.NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	b := NewDurable(st, "", true, nil)
	fill(b, `{"n":1}`, `{"n":2}`)

	st2, _ := storage.NewFile(dir)
	restored := NewDurable(st2, "", true, nil)
	if got := restored.Batch(restored.GetItems()); got != "{\"n\":1}\n{\"n\":2}" {
		t.Errorf("restored batch = %q", got)
	}
}

func TestNew_SelectsVariant(t *testing.T) {
	if _, ok := New(Options{Durable: true, Store: storage.NewMemory()}).(*Durable); !ok {
		t.Error("durable with working store: want *Durable")
	}
	if _, ok := New(Options{Durable: false, Store: storage.NewMemory()}).(*Array); !ok {
		t.Error("durable disabled: want *Array")
	}
	if _, ok := New(Options{Durable: true}).(*Array); !ok {
		t.Error("durable without store: want *Array")
	}
	if _, ok := New(Options{Durable: true, Store: failingStore{}}).(*Array); !ok {
		t.Error("durable with failing store: want *Array")
	}
}

func TestDurable_SaveFailureKeepsMemoryCopy(t *testing.T) {
	b := NewDurable(failingStore{}, "", false, nil)
	fill(b, "a")
	if got := b.GetItems(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("GetItems() = %v, want [a]", got)
	}
}

type failingStore struct{}

func (failingStore) Load(string) ([]string, error) { return nil, errors.New("read failed") }
func (failingStore) Save(string, []string) error   { return errors.New("quota exceeded") }
func (failingStore) Remove(string) error           { return nil }
