package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/reagent/internal/logger"
)

const (
	streamName    = "REAGENT_HISTORY"
	subjectPrefix = "reagent.history."
	sessionBucket = "reagent_sessions"

	replayBatchSize = 1000
)

// Item kinds stored in the conversation log.
const (
	KindUser       = "user"
	KindAssistant  = "assistant"
	KindToolCall   = "tool_call"
	KindToolOutput = "tool_output"
)

// Item is a single entry in a session's conversation log.
type Item struct {
	ID        string         `json:"id"`
	Session   string         `json:"session"`
	Kind      string         `json:"kind"`
	Content   string         `json:"content,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Output    string         `json:"output,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Store is an append-only conversation log backed by JetStream. Each session
// gets its own subject so replay, purge, and delete are per-session.
type Store struct {
	js jetstream.JetStream
	kv jetstream.KeyValue
}

// NewStore creates the history stream and session registry if they do not
// exist yet.
func NewStore(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history stream: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: sessionBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session registry: %w", err)
	}

	return &Store{js: js, kv: kv}, nil
}

func subjectForSession(session string) string {
	return subjectPrefix + session
}

// Append writes an item to the session's log and registers the session.
// The item's ID and timestamp are filled in when empty.
func (s *Store) Append(ctx context.Context, item Item) error {
	if item.Session == "" {
		return fmt.Errorf("item has no session")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal history item: %w", err)
	}

	if _, err := s.js.Publish(ctx, subjectForSession(item.Session), data); err != nil {
		return fmt.Errorf("failed to publish history item: %w", err)
	}

	if err := s.registerSession(ctx, item.Session); err != nil {
		logger.Warn("Failed to register session %s: %v", item.Session, err)
	}

	return nil
}

func (s *Store) registerSession(ctx context.Context, session string) error {
	if _, err := s.kv.Get(ctx, session); err == nil {
		return nil
	}
	created, _ := json.Marshal(map[string]string{
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	_, err := s.kv.Put(ctx, session, created)
	return err
}

// Items replays the session's log in order. Malformed entries are skipped
// with a warning rather than failing the whole replay.
func (s *Store) Items(ctx context.Context, session string) ([]Item, error) {
	stream, err := s.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: subjectForSession(session),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history consumer: %w", err)
	}

	var items []Item
	for {
		msgs, err := consumer.FetchNoWait(replayBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch history: %w", err)
		}

		var count int
		items, count, err = drainBatch(items, session, msgs)
		if err != nil {
			return nil, fmt.Errorf("failed to read history batch: %w", err)
		}
		if count < replayBatchSize {
			break
		}
	}

	return items, nil
}

// drainBatch consumes one fetched batch, appending decoded items. A batch can
// fail partway through delivery, so its terminal error is checked after the
// message channel closes.
func drainBatch(items []Item, session string, msgs jetstream.MessageBatch) ([]Item, int, error) {
	count := 0
	for msg := range msgs.Messages() {
		count++

		var item Item
		if err := json.Unmarshal(msg.Data(), &item); err != nil {
			logger.Warn("Skipping malformed history entry for %s: %v", session, err)
			_ = msg.Ack()
			continue
		}
		items = append(items, item)
		_ = msg.Ack()
	}
	if err := msgs.Error(); err != nil {
		return items, count, err
	}
	return items, count, nil
}

// Clear removes all items from a session's log but keeps the session
// registered.
func (s *Store) Clear(ctx context.Context, session string) error {
	stream, err := s.js.Stream(ctx, streamName)
	if err != nil {
		return fmt.Errorf("failed to get history stream: %w", err)
	}
	if err := stream.Purge(ctx, jetstream.WithPurgeSubject(subjectForSession(session))); err != nil {
		return fmt.Errorf("failed to clear session %s: %w", session, err)
	}
	return nil
}

// Delete removes a session's log and unregisters it.
func (s *Store) Delete(ctx context.Context, session string) error {
	if err := s.Clear(ctx, session); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, session); err != nil {
		logger.Warn("Failed to unregister session %s: %v", session, err)
	}
	return nil
}

// Sessions lists registered session IDs in sorted order.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []string
	for key := range lister.Keys() {
		sessions = append(sessions, key)
	}
	sort.Strings(sessions)
	return sessions, nil
}
