package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"streamregistry/internal/cluster"
)

// connection keys ride in the effective config to tell the provisioner where
// to connect; they are never applied as topic configs.
var connectionKeys = map[string]bool{
	cluster.BootstrapServers: true,
	"zookeeper.quorum":       true,
}

type topicCreator interface {
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
	Close()
}

// KafkaProvisioner creates topics on whichever cluster the effective config
// points at. Ensure is idempotent: an already-existing topic is success.
type KafkaProvisioner struct {
	timeout time.Duration

	newAdmin func(brokers []string) (topicCreator, error)
}

func NewKafkaProvisioner(timeout time.Duration, opts ...kgo.Opt) *KafkaProvisioner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	p := &KafkaProvisioner{timeout: timeout}
	p.newAdmin = func(brokers []string) (topicCreator, error) {
		kopts := append([]kgo.Opt{kgo.SeedBrokers(brokers...)}, opts...)
		cl, err := kgo.NewClient(kopts...)
		if err != nil {
			return nil, fmt.Errorf("new kafka admin client: %w", err)
		}
		return kadm.NewClient(cl), nil
	}
	return p
}

func (p *KafkaProvisioner) Ensure(ctx context.Context, name string, partitions, replicationFactor int32, config map[string]string) error {
	bootstrap := config[cluster.BootstrapServers]
	if bootstrap == "" {
		return fmt.Errorf("config %q is required", cluster.BootstrapServers)
	}
	adm, err := p.newAdmin(strings.Split(bootstrap, ","))
	if err != nil {
		return err
	}
	defer adm.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// kadm surfaces the per-topic error as the call error too, so an
	// existing topic arrives through err, not just resp.Err.
	resp, err := adm.CreateTopic(ctx, partitions, int16(replicationFactor), topicConfigs(config), name)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %q: %w", name, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %q: %w", name, resp.Err)
	}
	return nil
}

func topicConfigs(config map[string]string) map[string]*string {
	out := make(map[string]*string, len(config))
	for k, v := range config {
		if connectionKeys[k] {
			continue
		}
		v := v
		out[k] = &v
	}
	return out
}
