package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"streamregistry/internal/domain"

	"github.com/rabbitmq/amqp091-go"
)

// Config configures the change-notification publisher.
type Config struct {
	Enabled       bool
	URL           string
	Endpoints     []string
	Exchange      string
	RoutingPrefix string
	TLS           TLSConfig
	Auth          AuthConfig
}

type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
	ServerName         string
	CAFile             string
	CertFile           string
	KeyFile            string
}

type AuthConfig struct {
	Username string
	Password string
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Exchange == "" {
		return fmt.Errorf("notify exchange is required")
	}
	if c.endpoint() == "" {
		return fmt.Errorf("notify url or endpoints is required")
	}
	return nil
}

func (c Config) endpoint() string {
	if strings.TrimSpace(c.URL) != "" {
		return strings.TrimSpace(c.URL)
	}
	for _, e := range c.Endpoints {
		if strings.TrimSpace(e) != "" {
			return strings.TrimSpace(e)
		}
	}
	return ""
}

type notification struct {
	Name      string                   `json:"name"`
	Operation string                   `json:"operation"`
	Stream    *domain.StreamDefinition `json:"stream,omitempty"`
}

// Publisher fans applied change events out to a topic exchange. It is a
// best-effort observer: publish failures are logged and never propagated, so
// it can sit behind the view materializer without affecting it.
type Publisher struct {
	cfg    Config
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	logger *slog.Logger

	publish func(ctx context.Context, routingKey string, body []byte) error
}

func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RoutingPrefix == "" {
		cfg.RoutingPrefix = "stream"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, logger: logger}, nil
}

// Connect dials the broker and declares the exchange.
func (p *Publisher) Connect() error {
	dialCfg := amqp091.Config{}
	if p.cfg.Auth.Username != "" {
		dialCfg.SASL = []amqp091.Authentication{&amqp091.PlainAuth{Username: p.cfg.Auth.Username, Password: p.cfg.Auth.Password}}
	}
	if tlsCfg, err := p.buildTLSConfig(); err != nil {
		return err
	} else if tlsCfg != nil {
		dialCfg.TLSClientConfig = tlsCfg
	}
	conn, err := amqp091.DialConfig(p.cfg.endpoint(), dialCfg)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.ch = conn, ch
	p.publish = func(ctx context.Context, routingKey string, body []byte) error {
		return ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false, amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now().UTC(),
			Body:        body,
		})
	}
	return nil
}

func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply publishes one change event. It always reports success so it can be
// composed with the view's applier chain.
func (p *Publisher) Apply(ctx context.Context, ev domain.ChangeEvent) error {
	routingKey, body, err := encode(p.cfg.RoutingPrefix, ev)
	if err != nil {
		p.logger.Warn("encode change notification", "stream", ev.Key, "error", err)
		return nil
	}
	if p.publish == nil {
		p.logger.Warn("change notification dropped: publisher not connected", "stream", ev.Key)
		return nil
	}
	if err := p.publish(ctx, routingKey, body); err != nil {
		p.logger.Warn("publish change notification", "stream", ev.Key, "error", err)
	}
	return nil
}

func encode(prefix string, ev domain.ChangeEvent) (string, []byte, error) {
	n := notification{Name: ev.Key, Operation: "DELETED"}
	if ev.Stream != nil {
		n.Operation = string(ev.Operation)
		stream := ev.Stream.Clone()
		n.Stream = &stream
	}
	body, err := json.Marshal(n)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s.%s.%s", prefix, strings.ToLower(n.Operation), ev.Key), body, nil
}

func (p *Publisher) buildTLSConfig() (*tls.Config, error) {
	if !p.cfg.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: p.cfg.TLS.InsecureSkipVerify, ServerName: p.cfg.TLS.ServerName}
	if p.cfg.TLS.CAFile != "" {
		pemBytes, err := os.ReadFile(p.cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read notify ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("parse notify ca_file")
		}
		tlsCfg.RootCAs = pool
	}
	if p.cfg.TLS.CertFile != "" || p.cfg.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(p.cfg.TLS.CertFile, p.cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load notify cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}
