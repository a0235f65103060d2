package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	ns, err := StartEmbedded(t.TempDir())
	if err != nil {
		t.Fatalf("failed to start NATS: %v", err)
	}
	t.Cleanup(ns.Shutdown)

	nc, err := ConnectInProcess(ns)
	if err != nil {
		t.Fatalf("failed to connect to NATS: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := NewJetStream(nc)
	if err != nil {
		t.Fatalf("failed to create JetStream: %v", err)
	}

	store, err := NewStore(ctx, js)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestStoreAppendAndReplay(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	session := "test-session"

	t.Run("Append fills in ID and timestamp", func(t *testing.T) {
		if err := store.Append(ctx, Item{Session: session, Kind: KindUser, Content: "hello"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		items, err := store.Items(ctx, session)
		if err != nil {
			t.Fatalf("Items failed: %v", err)
		}
		if len(items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(items))
		}
		if items[0].ID == "" {
			t.Error("expected item ID to be set")
		}
		if items[0].Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
	})

	t.Run("Items replays in append order", func(t *testing.T) {
		if err := store.Append(ctx, Item{Session: session, Kind: KindAssistant, Content: "hi there"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := store.Append(ctx, Item{
			Session:   session,
			Kind:      KindToolCall,
			ToolName:  "search",
			Arguments: map[string]any{"query": "weather"},
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := store.Append(ctx, Item{Session: session, Kind: KindToolOutput, ToolName: "search", Output: "sunny"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		items, err := store.Items(ctx, session)
		if err != nil {
			t.Fatalf("Items failed: %v", err)
		}
		if len(items) != 4 {
			t.Fatalf("expected 4 items, got %d", len(items))
		}

		kinds := []string{KindUser, KindAssistant, KindToolCall, KindToolOutput}
		for i, want := range kinds {
			if items[i].Kind != want {
				t.Errorf("item %d: expected kind %q, got %q", i, want, items[i].Kind)
			}
		}
		if items[2].Arguments["query"] != "weather" {
			t.Errorf("expected tool call arguments to round-trip, got %v", items[2].Arguments)
		}
	})

	t.Run("Items of unknown session is empty", func(t *testing.T) {
		items, err := store.Items(ctx, "no-such-session")
		if err != nil {
			t.Fatalf("Items failed: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected no items, got %d", len(items))
		}
	})

	t.Run("Append rejects item without session", func(t *testing.T) {
		if err := store.Append(ctx, Item{Kind: KindUser, Content: "orphan"}); err == nil {
			t.Error("expected error for item without session")
		}
	})
}

func TestStoreSessionIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Append(ctx, Item{Session: "alpha", Kind: KindUser, Content: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, Item{Session: "beta", Kind: KindUser, Content: "b"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	items, err := store.Items(ctx, "alpha")
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(items) != 1 || items[0].Content != "a" {
		t.Errorf("expected only alpha's item, got %v", items)
	}
}

func TestStoreClearAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Append(ctx, Item{Session: "alpha", Kind: KindUser, Content: "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, Item{Session: "beta", Kind: KindUser, Content: "b"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	t.Run("Clear empties log but keeps session registered", func(t *testing.T) {
		if err := store.Clear(ctx, "alpha"); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}

		items, err := store.Items(ctx, "alpha")
		if err != nil {
			t.Fatalf("Items failed: %v", err)
		}
		if len(items) != 0 {
			t.Errorf("expected cleared session to be empty, got %d items", len(items))
		}

		sessions, err := store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions failed: %v", err)
		}
		if !contains(sessions, "alpha") {
			t.Errorf("expected alpha to remain registered, got %v", sessions)
		}
	})

	t.Run("Delete unregisters the session", func(t *testing.T) {
		if err := store.Delete(ctx, "beta"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		sessions, err := store.Sessions(ctx)
		if err != nil {
			t.Fatalf("Sessions failed: %v", err)
		}
		if contains(sessions, "beta") {
			t.Errorf("expected beta to be unregistered, got %v", sessions)
		}
	})
}

func TestStoreSessionsSorted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, s := range []string{"charlie", "alpha", "bravo"} {
		if err := store.Append(ctx, Item{Session: s, Kind: KindUser, Content: "x"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(sessions) != len(want) {
		t.Fatalf("expected %d sessions, got %d: %v", len(want), len(sessions), sessions)
	}
	for i := range want {
		if sessions[i] != want[i] {
			t.Errorf("session %d: expected %q, got %q", i, want[i], sessions[i])
		}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// fakeBatch stands in for a fetched batch whose delivery can end with a
// terminal error.
type fakeBatch struct {
	msgs []jetstream.Msg
	err  error
}

func (b *fakeBatch) Messages() <-chan jetstream.Msg {
	ch := make(chan jetstream.Msg, len(b.msgs))
	for _, m := range b.msgs {
		ch <- m
	}
	close(ch)
	return ch
}

func (b *fakeBatch) Error() error { return b.err }

type fakeMsg struct {
	data  []byte
	acked bool
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) { return nil, nil }
func (m *fakeMsg) Data() []byte                              { return m.data }
func (m *fakeMsg) Headers() nats.Header                      { return nil }
func (m *fakeMsg) Subject() string                           { return "" }
func (m *fakeMsg) Reply() string                             { return "" }
func (m *fakeMsg) Ack() error                                { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error           { return nil }
func (m *fakeMsg) Nak() error                                { return nil }
func (m *fakeMsg) NakWithDelay(time.Duration) error          { return nil }
func (m *fakeMsg) InProgress() error                         { return nil }
func (m *fakeMsg) Term() error                               { return nil }
func (m *fakeMsg) TermWithReason(string) error               { return nil }

func TestDrainBatch(t *testing.T) {
	entry, err := json.Marshal(Item{Session: "s", Kind: KindUser, Content: "hi"})
	if err != nil {
		t.Fatalf("failed to marshal item: %v", err)
	}

	t.Run("surfaces a batch that failed partway through", func(t *testing.T) {
		batch := &fakeBatch{
			msgs: []jetstream.Msg{&fakeMsg{data: entry}},
			err:  errors.New("leadership changed"),
		}

		items, count, err := drainBatch(nil, "s", batch)
		if err == nil {
			t.Fatal("expected the batch error to surface")
		}
		if count != 1 || len(items) != 1 {
			t.Errorf("expected delivered messages to be kept, got %d items (count %d)", len(items), count)
		}
	})

	t.Run("clean batch decodes items and skips malformed entries", func(t *testing.T) {
		good := &fakeMsg{data: entry}
		bad := &fakeMsg{data: []byte("{not json")}
		batch := &fakeBatch{msgs: []jetstream.Msg{good, bad}}

		items, count, err := drainBatch(nil, "s", batch)
		if err != nil {
			t.Fatalf("drainBatch failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected count 2, got %d", count)
		}
		if len(items) != 1 || items[0].Content != "hi" {
			t.Errorf("expected one decoded item, got %#v", items)
		}
		if !good.acked || !bad.acked {
			t.Error("expected every delivered message to be acked")
		}
	})
}
