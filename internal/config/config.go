package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Registry  RegistryConfig  `mapstructure:"registry"`
	Changelog ChangelogConfig `mapstructure:"changelog"`
	View      ViewConfig      `mapstructure:"view"`
	Clusters  []ClusterConfig `mapstructure:"clusters"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type RegistryConfig struct {
	Environment string `mapstructure:"environment"`
	NodeID      string `mapstructure:"node_id"`
}

type ChangelogConfig struct {
	Brokers  []string      `mapstructure:"brokers"`
	Topic    string        `mapstructure:"topic"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	TLS      TLSConfig     `mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

type ViewConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	GroupID string `mapstructure:"group_id"`
}

type ClusterConfig struct {
	Placement   string            `mapstructure:"placement"`
	Environment string            `mapstructure:"environment"`
	Hint        string            `mapstructure:"hint"`
	Role        string            `mapstructure:"role"`
	Properties  map[string]string `mapstructure:"properties"`
}

type NotifyConfig struct {
	Enabled       bool            `mapstructure:"enabled"`
	URL           string          `mapstructure:"url"`
	Endpoints     []string        `mapstructure:"endpoints"`
	Exchange      string          `mapstructure:"exchange"`
	RoutingPrefix string          `mapstructure:"routing_prefix"`
	Username      string          `mapstructure:"username"`
	Password      string          `mapstructure:"password"`
	TLS           NotifyTLSConfig `mapstructure:"tls"`
}

type NotifyTLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	ServerName         string `mapstructure:"server_name"`
	CAFile             string `mapstructure:"ca_file"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("streamregistry")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.environment", "dev")
	v.SetDefault("changelog.topic", "stream-registry")
	v.SetDefault("changelog.timeout", "10s")
	v.SetDefault("view.backend", "memory")
	v.SetDefault("notify.exchange", "stream-registry.changes")
}

func (c Config) Validate() error {
	if c.Registry.NodeID == "" {
		return fmt.Errorf("registry.node_id is required")
	}
	if len(c.Changelog.Brokers) == 0 {
		return fmt.Errorf("changelog.brokers is required")
	}
	if c.Changelog.Topic == "" {
		return fmt.Errorf("changelog.topic is required")
	}
	switch c.View.Backend {
	case "memory":
	case "sqlite":
		if c.View.Path == "" {
			return fmt.Errorf("view.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unsupported view backend %q", c.View.Backend)
	}
	if len(c.Clusters) == 0 {
		return fmt.Errorf("at least one cluster entry is required")
	}
	for _, entry := range c.Clusters {
		if entry.Placement == "" {
			return fmt.Errorf("cluster entry without placement")
		}
	}
	return nil
}
