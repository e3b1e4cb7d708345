package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"streamregistry/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("disabled config must validate: %v", err)
	}
	if err := (Config{Enabled: true, URL: "amqp://localhost"}).Validate(); err == nil {
		t.Fatalf("expected exchange validation error")
	}
	if err := (Config{Enabled: true, Exchange: "x"}).Validate(); err == nil {
		t.Fatalf("expected endpoint validation error")
	}
	cfg := Config{Enabled: true, Exchange: "x", Endpoints: []string{"", " amqp://rabbit:5672 "}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.endpoint() != "amqp://rabbit:5672" {
		t.Fatalf("endpoint = %q", cfg.endpoint())
	}
}

func TestEncodeUpsertNotification(t *testing.T) {
	stream := domain.StreamDefinition{Name: "orders", PartitionCount: 1, ReplicationFactor: 3, Placements: []string{"vpc-a"}}
	key, body, err := encode("stream", domain.ChangeEvent{Key: "orders", Operation: domain.OperationUpsert, Stream: &stream})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if key != "stream.upsert.orders" {
		t.Fatalf("routing key = %q", key)
	}
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Name != "orders" || n.Operation != "UPSERT" || n.Stream == nil {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestEncodeTombstoneNotification(t *testing.T) {
	key, body, err := encode("stream", domain.ChangeEvent{Key: "orders"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if key != "stream.deleted.orders" {
		t.Fatalf("routing key = %q", key)
	}
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Operation != "DELETED" || n.Stream != nil {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestApplyIsBestEffort(t *testing.T) {
	p, err := NewPublisher(Config{Enabled: true, URL: "amqp://localhost", Exchange: "x"}, testLogger())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	// Not connected yet: events are dropped, not failed.
	if err := p.Apply(context.Background(), domain.ChangeEvent{Key: "orders"}); err != nil {
		t.Fatalf("apply before connect must not fail: %v", err)
	}

	published := 0
	p.publish = func(context.Context, string, []byte) error {
		published++
		return errors.New("channel closed")
	}
	if err := p.Apply(context.Background(), domain.ChangeEvent{Key: "orders"}); err != nil {
		t.Fatalf("publish failure must be swallowed: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected one publish attempt, got %d", published)
	}
}
