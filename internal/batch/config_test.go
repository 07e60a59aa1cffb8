package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mqttlat/internal/trial"
)

func validConfig() Config {
	return Config{
		Configurations: []trial.Config{
			{Name: "plain", Host: "localhost", Port: 1884},
		},
		Iterations: 10,
	}
}

func TestConfigValidateAccepts(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{
			name:    "zero iterations",
			mutate:  func(c *Config) { c.Iterations = 0 },
			message: "iterations",
		},
		{
			name:    "iterations over cap",
			mutate:  func(c *Config) { c.Iterations = MaxIterations + 1 },
			message: "iterations",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Delay = -1 },
			message: "delay",
		},
		{
			name:    "no configurations",
			mutate:  func(c *Config) { c.Configurations = nil },
			message: "at least one configuration",
		},
		{
			name: "unnamed configuration",
			mutate: func(c *Config) {
				c.Configurations[0].Name = ""
			},
			message: "without a name",
		},
		{
			name: "name with path separator",
			mutate: func(c *Config) {
				c.Configurations[0].Name = "../escape"
			},
			message: "path separators",
		},
		{
			name: "duplicate names",
			mutate: func(c *Config) {
				c.Configurations = append(c.Configurations, c.Configurations[0])
			},
			message: "duplicate",
		},
		{
			name: "missing host",
			mutate: func(c *Config) {
				c.Configurations[0].Host = ""
			},
			message: "host is required",
		},
		{
			name: "bad port",
			mutate: func(c *Config) {
				c.Configurations[0].Port = 70000
			},
			message: "invalid port",
		},
		{
			name: "tls without material",
			mutate: func(c *Config) {
				c.Configurations[0].TLS = true
			},
			message: "tls requires",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorContains(t, err, tt.message)
		})
	}
}
