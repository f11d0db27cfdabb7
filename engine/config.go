package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RamonWill/strata/core"
)

// Config is the YAML-loadable engine configuration.
type Config struct {
	Dialect  string            `yaml:"dialect"`
	Driver   string            `yaml:"driver"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Database string            `yaml:"database"`
	Options  map[string]string `yaml:"options"`
	Echo     bool              `yaml:"echo"`
}

// LoadConfig reads a YAML engine configuration from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Dialect == "" {
		return nil, fmt.Errorf("config %s: dialect is required", path)
	}
	return &cfg, nil
}

// URL converts the configuration into a connection URL.
func (c *Config) URL() *core.URL {
	return &core.URL{
		Backend:  c.Dialect,
		Driver:   c.Driver,
		Username: c.Username,
		Password: c.Password,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		Options:  c.Options,
	}
}

// Engine assembles an engine from the configuration, resolving the
// dialect through the registry.
func (c *Config) Engine(opts ...Option) (*Engine, error) {
	if c.Echo {
		opts = append(opts, WithEcho())
	}
	return Open(c.Dialect, c.URL(), opts...)
}
