package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"depthsim/internal/generator"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Engine struct {
		Addr        string        `yaml:"addr"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
		IOTimeout   time.Duration `yaml:"io_timeout"`
		ReadAck     bool          `yaml:"read_ack"`
		AckSize     int           `yaml:"ack_size"`
	} `yaml:"engine"`
	Generator struct {
		Interval time.Duration    `yaml:"interval"`
		Cooldown time.Duration    `yaml:"cooldown"`
		Seed     int64            `yaml:"seed"`
		Ranges   generator.Ranges `yaml:",inline"`
	} `yaml:"generator"`
	Render struct {
		Interval time.Duration `yaml:"interval"`
		Width    int           `yaml:"width"`
		WSAddr   string        `yaml:"ws_addr"`
	} `yaml:"render"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		Workers uint   `yaml:"workers"`
	} `yaml:"server"`
}

func Default() Config {
	var c Config
	c.Engine.Addr = "127.0.0.1:8080"
	c.Engine.DialTimeout = 3 * time.Second
	c.Engine.IOTimeout = 3 * time.Second
	c.Engine.ReadAck = false
	c.Engine.AckSize = 1024
	c.Generator.Interval = 100 * time.Millisecond
	c.Generator.Cooldown = time.Second
	c.Generator.Ranges = generator.VisualRanges()
	c.Render.Interval = 200 * time.Millisecond
	c.Render.Width = 50
	c.Logging.Level = "info"
	c.Server.Address = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.Workers = 10
	return c
}

// Load returns the defaults, overlaid with the YAML file named by
// DEPTHSIM_CONFIG and then with individual environment overrides.
func Load() (Config, error) {
	c := Default()
	if path := os.Getenv("DEPTHSIM_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if v := os.Getenv("DEPTHSIM_ENGINE_ADDR"); v != "" {
		c.Engine.Addr = v
	}
	if v := os.Getenv("DEPTHSIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DEPTHSIM_LOG_PRETTY"); v == "1" || v == "true" {
		c.Logging.Pretty = true
	}
	if v := os.Getenv("DEPTHSIM_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("DEPTHSIM_WS_ADDR"); v != "" {
		c.Render.WSAddr = v
	}
	if v := os.Getenv("DEPTHSIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Generator.Seed = seed
		}
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.Engine.Addr == "" {
		return fmt.Errorf("%w: engine.addr is empty", ErrInvalidConfig)
	}
	if err := c.Generator.Ranges.Validate(); err != nil {
		return fmt.Errorf("%w: generator: %w", ErrInvalidConfig, err)
	}
	for name, d := range map[string]time.Duration{
		"engine.dial_timeout": c.Engine.DialTimeout,
		"engine.io_timeout":   c.Engine.IOTimeout,
		"generator.interval":  c.Generator.Interval,
		"generator.cooldown":  c.Generator.Cooldown,
		"render.interval":     c.Render.Interval,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}
