package changelog

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"streamregistry/internal/domain"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// KafkaConfig configures the compacted-changelog producer.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
	Timeout  time.Duration
	TLS      TLSConfig
	Auth     AuthConfig
}

type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
}

// AuthConfig enables SASL/PLAIN when a username is set.
type AuthConfig struct {
	Username string
	Password string
}

// Opts translates the auth settings into client options.
func (a AuthConfig) Opts() []kgo.Opt {
	if a.Username == "" {
		return nil
	}
	return []kgo.Opt{kgo.SASL(plain.Auth{User: a.Username, Pass: a.Password}.AsMechanism())}
}

func (c *KafkaConfig) withDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("changelog.brokers is required")
	}
	if c.Topic == "" {
		return errors.New("changelog.topic is required")
	}
	return nil
}

// KafkaWriter appends keyed change events to the compacted changelog topic.
// A nil stream produces a null-value record, the compaction tombstone.
type KafkaWriter struct {
	cfg    KafkaConfig
	client *kgo.Client

	produce func(context.Context, *kgo.Record) error
}

func NewKafkaWriter(cfg KafkaConfig, opts ...kgo.Opt) (*KafkaWriter, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
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
	w := &KafkaWriter{cfg: cfg, client: cl}
	w.produce = func(ctx context.Context, rec *kgo.Record) error {
		return cl.ProduceSync(ctx, rec).FirstErr()
	}
	return w, nil
}

// Append writes exactly one record for key and waits for the broker ack.
func (w *KafkaWriter) Append(ctx context.Context, key string, stream *domain.StreamDefinition) error {
	rec := &kgo.Record{Topic: w.cfg.Topic, Key: []byte(key)}
	if stream != nil {
		value, err := EncodeUpsert(*stream)
		if err != nil {
			return err
		}
		rec.Value = value
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	if err := w.produce(ctx, rec); err != nil {
		return fmt.Errorf("produce change event for key %q: %w", key, err)
	}
	return nil
}

func (w *KafkaWriter) Close() {
	if w.client != nil {
		w.client.Close()
	}
}
