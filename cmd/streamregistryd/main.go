package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"streamregistry/internal/changelog"
	"streamregistry/internal/cluster"
	"streamregistry/internal/config"
	"streamregistry/internal/notify"
	"streamregistry/internal/provision"
	"streamregistry/internal/registry"
	"streamregistry/internal/view"
	"streamregistry/internal/view/sqlite"
)

type viewStore interface {
	registry.MaterializedView
	view.Applier
}

func main() {
	cfgPath := flag.String("config", "streamregistry.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && ctx.Err() == nil {
		logger.Error("streamregistryd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	entries := make([]cluster.Entry, 0, len(cfg.Clusters))
	for _, c := range cfg.Clusters {
		entries = append(entries, cluster.Entry{
			Placement:   c.Placement,
			Environment: c.Environment,
			Hint:        c.Hint,
			Role:        c.Role,
			Properties:  c.Properties,
		})
	}
	resolver, err := cluster.NewStaticResolver(entries)
	if err != nil {
		return err
	}
	provisioner := provision.NewKafkaProvisioner(0)

	// The changelog topic itself must exist, compacted, before anything is
	// produced or materialized.
	if err := provisioner.Ensure(ctx, cfg.Changelog.Topic, registry.DefaultPartitionCount, registry.DefaultReplicationFactor, map[string]string{
		cluster.BootstrapServers: strings.Join(cfg.Changelog.Brokers, ","),
		"cleanup.policy":         "compact",
	}); err != nil {
		return err
	}

	auth := changelog.AuthConfig{Username: cfg.Changelog.Username, Password: cfg.Changelog.Password}
	kafkaTLS := changelog.TLSConfig{Enabled: cfg.Changelog.TLS.Enabled, InsecureSkipVerify: cfg.Changelog.TLS.InsecureSkipVerify}
	writer, err := changelog.NewKafkaWriter(changelog.KafkaConfig{
		Brokers:  cfg.Changelog.Brokers,
		Topic:    cfg.Changelog.Topic,
		ClientID: cfg.Registry.NodeID,
		Timeout:  cfg.Changelog.Timeout,
		TLS:      kafkaTLS,
		Auth:     auth,
	})
	if err != nil {
		return err
	}
	defer writer.Close()

	var store viewStore
	switch cfg.View.Backend {
	case "sqlite":
		st, err := sqlite.NewStore(cfg.View.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		store = st
	default:
		store = view.NewMemory()
	}

	appliers := view.MultiApplier{store}
	if cfg.Notify.Enabled {
		pub, err := notify.NewPublisher(notify.Config{
			Enabled:       true,
			URL:           cfg.Notify.URL,
			Endpoints:     cfg.Notify.Endpoints,
			Exchange:      cfg.Notify.Exchange,
			RoutingPrefix: cfg.Notify.RoutingPrefix,
			Auth:          notify.AuthConfig{Username: cfg.Notify.Username, Password: cfg.Notify.Password},
			TLS: notify.TLSConfig{
				Enabled:            cfg.Notify.TLS.Enabled,
				InsecureSkipVerify: cfg.Notify.TLS.InsecureSkipVerify,
				ServerName:         cfg.Notify.TLS.ServerName,
				CAFile:             cfg.Notify.TLS.CAFile,
				CertFile:           cfg.Notify.TLS.CertFile,
				KeyFile:            cfg.Notify.TLS.KeyFile,
			},
		}, logger)
		if err != nil {
			return err
		}
		if err := pub.Connect(); err != nil {
			return err
		}
		defer pub.Close()
		appliers = append(appliers, pub)
	}

	materializer, err := view.NewMaterializer(view.ConsumerConfig{
		Brokers:  cfg.Changelog.Brokers,
		Topic:    cfg.Changelog.Topic,
		ClientID: cfg.Registry.NodeID,
		GroupID:  cfg.View.GroupID,
		TLS:      kafkaTLS,
		Auth:     auth,
	}, appliers, logger)
	if err != nil {
		return err
	}

	service, err := registry.NewService(store, resolver, provisioner, writer, registry.Options{
		Environment: cfg.Registry.Environment,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- materializer.Run(ctx) }()

	// Log the view size once the replay has had a moment to catch up.
	go func() {
		select {
		case <-time.After(3 * time.Second):
		case <-ctx.Done():
			return
		}
		streams, err := service.GetAll(ctx)
		if err != nil {
			logger.Warn("read materialized view", "error", err)
			return
		}
		logger.Info("registry node ready",
			"node", cfg.Registry.NodeID,
			"environment", cfg.Registry.Environment,
			"streams", len(streams),
		)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
