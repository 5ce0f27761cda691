package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	kafkasink "flowgate/sink/kafka"
	"flowgate/sink/stdout"
)

const SupportedSchema = "v1"

type SinkConfigs struct {
	Stdout stdout.Config    `koanf:"stdout"`
	Kafka  kafkasink.Config `koanf:"kafka"`
}

type Config struct {
	ClusterName    string `koanf:"cluster_name"`
	ReloadInterval int    `koanf:"reload_interval_seconds"`
	ManagerURL     string `koanf:"manager_url"`

	// QueryType names a registered desired-state query strategy; blank
	// selects the built-in manager query.
	QueryType string `koanf:"query_config_type"`
	Driver    string `koanf:"consume_driver"`

	// TasksFile switches the task source from manager polling to a static
	// YAML list.
	TasksFile string `koanf:"tasks_file"`

	MetricsPort int `koanf:"metrics_port"`
	HealthPort  int `koanf:"health_port"`

	Sinks       []string    `koanf:"sinks"`
	SinkConfigs SinkConfigs `koanf:"sink_configs"`
}

// Load merges YAML (if present) with env-vars
// (prefix `FLOWGATE__`, delimiter `__`), applies defaults, and validates.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != SupportedSchema {
		return Config{}, fmt.Errorf("config schema_version %q not supported (want %s)", sv, SupportedSchema)
	}

	_ = k.Load(env.Provider("FLOWGATE__", "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "FLOWGATE__"))
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(c *Config) {
	if c.ReloadInterval == 0 {
		c.ReloadInterval = 10
	}
	if c.Driver == "" {
		c.Driver = "sarama"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9100
	}
	if c.HealthPort == 0 {
		c.HealthPort = 7070
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []string{"stdout"}
	}
}

func (c Config) Validate() error {
	if c.ReloadInterval <= 0 {
		return fmt.Errorf("reload_interval_seconds must be positive, got %d", c.ReloadInterval)
	}
	if strings.TrimSpace(c.ClusterName) == "" {
		return errors.New("cluster_name must not be blank")
	}
	if c.TasksFile == "" && strings.TrimSpace(c.ManagerURL) == "" {
		return errors.New("either manager_url or tasks_file must be set")
	}
	return nil
}
