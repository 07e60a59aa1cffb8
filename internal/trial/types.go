package trial

import (
	"time"
)

// Config describes one named broker/security combination under test.
// Name must be unique within a batch.
type Config struct {
	Name string `mapstructure:"name" json:"name"`

	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`

	TLS      bool   `mapstructure:"tls" json:"tls"`
	CAFile   string `mapstructure:"ca_file" json:"ca_file,omitempty"`
	CertFile string `mapstructure:"cert_file" json:"cert_file,omitempty"`
	KeyFile  string `mapstructure:"key_file" json:"key_file,omitempty"`
	// Cipher restricts the TLS handshake to a single suite. Empty means
	// negotiate freely. Accepts Go or OpenSSL suite names.
	Cipher string `mapstructure:"cipher" json:"cipher,omitempty"`

	ClientID string `mapstructure:"client_id" json:"client_id,omitempty"`
	Username string `mapstructure:"username" json:"username,omitempty"`
	Password string `mapstructure:"password" json:"-"`
}

// Options tunes a runner. Zero values fall back to defaults.
type Options struct {
	Topic       string        `mapstructure:"topic"`
	QoS         byte          `mapstructure:"qos"`
	PayloadSize int           `mapstructure:"payload_size"`
	Keepalive   time.Duration `mapstructure:"keepalive"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`

	// DisconnectGrace is how long after a completed phase an unsolicited
	// disconnect still counts as expected teardown. Depends on network RTT
	// assumptions, so it is tunable rather than fixed.
	DisconnectGrace time.Duration `mapstructure:"disconnect_grace"`
}

const (
	DefaultTopic          = "v1/devices/me/telemetry"
	DefaultQoS            = 1 // at-least-once, so every publish is acked
	DefaultPayloadSize    = 60000
	DefaultKeepalive      = 60 * time.Second
	DefaultConnectTimeout = 15 * time.Second
	DefaultPublishTimeout = 15 * time.Second
	DefaultGrace          = 1 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Topic == "" {
		o.Topic = DefaultTopic
	}
	if o.QoS == 0 {
		o.QoS = DefaultQoS
	}
	if o.PayloadSize <= 0 {
		o.PayloadSize = DefaultPayloadSize
	}
	if o.Keepalive <= 0 {
		o.Keepalive = DefaultKeepalive
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	if o.DisconnectGrace <= 0 {
		o.DisconnectGrace = DefaultGrace
	}
	return o
}

// Result is the immutable outcome of one trial. Durations are nil when the
// corresponding phase never completed. After finalization either all three
// durations are set or Err is set, with one exception: a publish-phase
// failure keeps the already-measured handshake duration next to the error.
type Result struct {
	Iteration  int            `json:"iteration"`
	ConfigName string         `json:"config"`
	Handshake  *time.Duration `json:"handshake,omitempty"`
	PubAck     *time.Duration `json:"puback,omitempty"`
	Total      *time.Duration `json:"total,omitempty"`
	Err        string         `json:"error,omitempty"`
}

// Success reports whether the full connect-publish round trip was measured.
func (r Result) Success() bool {
	return r.Err == "" && r.Handshake != nil && r.PubAck != nil && r.Total != nil
}
