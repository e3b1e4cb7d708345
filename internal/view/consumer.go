package view

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"streamregistry/internal/changelog"
	"streamregistry/internal/domain"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Applier is the projection target the materializer feeds.
type Applier interface {
	Apply(context.Context, domain.ChangeEvent) error
}

// ConsumerConfig configures the changelog materializer.
//
// With a GroupID the consumer joins a group and commits offsets only after a
// record has been applied. Without one it replays the full compacted topic
// from the start, which is how a node rebuilds its local view on boot.
type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	ClientID       string
	GroupID        string
	MaxPollRecords int
	FetchMaxWait   time.Duration
	TLS            changelog.TLSConfig
	Auth           changelog.AuthConfig
}

func (c *ConsumerConfig) withDefaults() {
	if c.MaxPollRecords <= 0 {
		c.MaxPollRecords = 500
	}
	if c.FetchMaxWait <= 0 {
		c.FetchMaxWait = time.Second
	}
}

func (c ConsumerConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("view.brokers is required")
	}
	if c.Topic == "" {
		return errors.New("view.topic is required")
	}
	return nil
}

// Materializer consumes the compacted changelog and projects it into an
// Applier. Records that fail to apply are not committed, so they are
// redelivered after a restart.
type Materializer struct {
	cfg     ConsumerConfig
	client  *kgo.Client
	applier Applier
	logger  *slog.Logger

	poll         func(context.Context) kgo.Fetches
	markCommit   func(*kgo.Record)
	commitMarked func(context.Context) error
}

func NewMaterializer(cfg ConsumerConfig, applier Applier, logger *slog.Logger, opts ...kgo.Opt) (*Materializer, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if applier == nil {
		return nil, errors.New("applier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.FetchMaxWait(cfg.FetchMaxWait),
	}
	if cfg.GroupID != "" {
		kopts = append(kopts,
			kgo.ConsumerGroup(cfg.GroupID),
			kgo.DisableAutoCommit(),
			kgo.BlockRebalanceOnPoll(),
		)
	} else {
		kopts = append(kopts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.TLS.Enabled {
		kopts = append(kopts, kgo.DialTLSConfig(&tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify}))
	}
	kopts = append(kopts, cfg.Auth.Opts()...)
	kopts = append(kopts, opts...)

	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}
	m := &Materializer{cfg: cfg, client: cl, applier: applier, logger: logger}
	m.poll = func(ctx context.Context) kgo.Fetches { return cl.PollRecords(ctx, cfg.MaxPollRecords) }
	m.markCommit = func(r *kgo.Record) { cl.MarkCommitRecords(r) }
	m.commitMarked = func(ctx context.Context) error { return cl.CommitMarkedOffsets(ctx) }
	return m, nil
}

// Run polls until ctx is cancelled or the client is closed.
func (m *Materializer) Run(ctx context.Context) error {
	defer m.client.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches := m.poll(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			return errs[0].Err
		}
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, rec := range p.Records {
				m.handleRecord(ctx, rec)
			}
		})
		if m.cfg.GroupID != "" {
			if err := m.commitMarked(ctx); err != nil {
				m.logger.Warn("commit marked offsets", "error", err)
			}
			m.client.AllowRebalance()
		}
	}
}

func (m *Materializer) handleRecord(ctx context.Context, rec *kgo.Record) {
	ev, err := changelog.Decode(rec.Key, rec.Value)
	if err != nil {
		// A poison record must not wedge the view; skip past it.
		m.logger.Error("decode changelog record",
			"topic", rec.Topic, "partition", rec.Partition, "offset", rec.Offset, "error", err)
		m.markCommit(rec)
		return
	}
	if err := m.applier.Apply(ctx, ev); err != nil {
		m.logger.Error("apply change event", "stream", ev.Key, "error", err)
		return
	}
	m.markCommit(rec)
}
