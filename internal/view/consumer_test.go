package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"streamregistry/internal/changelog"
	"streamregistry/internal/domain"

	"github.com/twmb/franz-go/pkg/kgo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConsumerConfigValidate(t *testing.T) {
	cfg := ConsumerConfig{Brokers: []string{"127.0.0.1:9092"}, Topic: "stream-registry"}
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.MaxPollRecords != 500 {
		t.Fatalf("default poll records = %d", cfg.MaxPollRecords)
	}
	if err := (ConsumerConfig{Topic: "t"}).Validate(); err == nil {
		t.Fatalf("expected brokers validation error")
	}
}

func TestHandleRecordAppliesAndCommits(t *testing.T) {
	app := &countingApplier{}
	m := &Materializer{cfg: ConsumerConfig{GroupID: "views"}, applier: app, logger: testLogger()}
	commits := 0
	m.markCommit = func(*kgo.Record) { commits++ }

	stream := domain.StreamDefinition{Name: "orders", PartitionCount: 1, ReplicationFactor: 3, Placements: []string{"vpc-a"}}
	value, err := changelog.EncodeUpsert(stream)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m.handleRecord(context.Background(), &kgo.Record{Key: []byte("orders"), Value: value})

	if len(app.events) != 1 || app.events[0].Key != "orders" || app.events[0].Stream == nil {
		t.Fatalf("unexpected applied events: %+v", app.events)
	}
	if commits != 1 {
		t.Fatalf("expected commit after apply, got %d", commits)
	}
}

func TestHandleRecordTombstone(t *testing.T) {
	app := &countingApplier{}
	m := &Materializer{applier: app, logger: testLogger()}
	m.markCommit = func(*kgo.Record) {}

	m.handleRecord(context.Background(), &kgo.Record{Key: []byte("orders")})
	if len(app.events) != 1 || app.events[0].Stream != nil {
		t.Fatalf("expected tombstone event, got %+v", app.events)
	}
}

func TestHandleRecordSkipsPoisonRecords(t *testing.T) {
	app := &countingApplier{}
	m := &Materializer{applier: app, logger: testLogger()}
	commits := 0
	m.markCommit = func(*kgo.Record) { commits++ }

	m.handleRecord(context.Background(), &kgo.Record{Key: []byte("orders"), Value: []byte("not-json")})
	if len(app.events) != 0 {
		t.Fatalf("poison record must not be applied")
	}
	if commits != 1 {
		t.Fatalf("poison record must be committed past, got %d", commits)
	}
}

func TestHandleRecordDoesNotCommitOnApplyFailure(t *testing.T) {
	app := &countingApplier{err: errors.New("disk full")}
	m := &Materializer{applier: app, logger: testLogger()}
	commits := 0
	m.markCommit = func(*kgo.Record) { commits++ }

	m.handleRecord(context.Background(), &kgo.Record{Key: []byte("orders")})
	if commits != 0 {
		t.Fatalf("apply failure must not commit the offset")
	}
}
