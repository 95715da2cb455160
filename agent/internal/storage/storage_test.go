package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemory_SaveLoadRemove(t *testing.T) {
	st := NewMemory()

	items, err := st.Load("missing")
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Load missing: got %v, want empty", items)
	}

	in := []string{`{"a":1}`, `{"b":2}`}
	if err := st.Save("k", in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in[0] = "mutated"

	got, _ := st.Load("k")
	if len(got) != 2 || got[0] != `{"a":1}` {
		t.Errorf("Load: got %v, want the saved copy", got)
	}

	if err := st.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if st.Keys() != 0 {
		t.Errorf("Keys after Remove: got %d, want 0", st.Keys())
	}
}

func TestFile_RoundTrip(t *testing.T) {
	st, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	want := []string{`{"name":"x"}`, "line with \"quotes\"\nand newline"}
	if err := st.Save("AI_buffer", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Load("AI_buffer")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Load: got %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFile_SanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if err := st.Save("../escape/key", []string{"v"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".._escape_key.json")); err != nil {
		t.Errorf("expected sanitized file inside dir: %v", err)
	}
}

func TestFile_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	st, _ := NewFile(dir)
	if err := os.WriteFile(filepath.Join(dir, "k.json"), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load("k"); err == nil {
		t.Fatal("Load corrupt file: expected error, got nil")
	}
}

func TestFile_RemoveMissing(t *testing.T) {
	st, _ := NewFile(t.TempDir())
	if err := st.Remove("nope"); err != nil {
		t.Errorf("Remove missing key: %v", err)
	}
}

func TestAvailable(t *testing.T) {
	if err := Available(NewMemory()); err != nil {
		t.Errorf("Available(memory): %v", err)
	}
	st, _ := NewFile(t.TempDir())
	if err := Available(st); err != nil {
		t.Errorf("Available(file): %v", err)
	}
	if err := Available(nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Available(nil): got %v, want ErrUnavailable", err)
	}
	if err := Available(brokenStore{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Available(broken): got %v, want ErrUnavailable", err)
	}
}

type brokenStore struct{}

func (brokenStore) Load(string) ([]string, error) { return nil, errors.New("boom") }
func (brokenStore) Save(string, []string) error   { return errors.New("read-only") }
func (brokenStore) Remove(string) error           { return nil }
