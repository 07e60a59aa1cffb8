package batch

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"mqttlat/internal/trial"
)

const (
	MaxIterations = 10000
	MaxDelay      = 3600 * time.Second
)

// Config describes a full batch: the configurations to exercise, how many
// trials each gets, and the pacing between trials.
type Config struct {
	Configurations []trial.Config `mapstructure:"configurations"`
	Iterations     int            `mapstructure:"iterations"`
	Delay          time.Duration  `mapstructure:"delay"`

	Runner trial.Options `mapstructure:"runner"`

	OutPrefix string `mapstructure:"out"`
}

func (c Config) Validate() error {
	if c.Iterations < 1 || c.Iterations > MaxIterations {
		return errors.Errorf("iterations must be 1..%d, got %d", MaxIterations, c.Iterations)
	}
	if c.Delay < 0 || c.Delay > MaxDelay {
		return errors.Errorf("delay must be 0..%s, got %s", MaxDelay, c.Delay)
	}
	if len(c.Configurations) == 0 {
		return errors.New("at least one configuration is required")
	}

	seen := make(map[string]struct{}, len(c.Configurations))
	for _, tc := range c.Configurations {
		if tc.Name == "" {
			return errors.New("configuration without a name")
		}
		// Names become report filenames.
		if strings.ContainsAny(tc.Name, `/\`) {
			return errors.Errorf("configuration name %q must not contain path separators", tc.Name)
		}
		if _, dup := seen[tc.Name]; dup {
			return errors.Errorf("duplicate configuration name %q", tc.Name)
		}
		seen[tc.Name] = struct{}{}

		if tc.Host == "" {
			return errors.Errorf("%s: host is required", tc.Name)
		}
		if tc.Port < 1 || tc.Port > 65535 {
			return errors.Errorf("%s: invalid port %d", tc.Name, tc.Port)
		}
		if tc.TLS && (tc.CAFile == "" || tc.CertFile == "" || tc.KeyFile == "") {
			return errors.Errorf("%s: tls requires ca_file, cert_file and key_file", tc.Name)
		}
	}
	return nil
}
