package trial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()

	assert.Equal(t, DefaultTopic, o.Topic)
	assert.Equal(t, byte(DefaultQoS), o.QoS)
	assert.Equal(t, DefaultPayloadSize, o.PayloadSize)
	assert.Equal(t, DefaultKeepalive, o.Keepalive)
	assert.Equal(t, DefaultConnectTimeout, o.ConnectTimeout)
	assert.Equal(t, DefaultPublishTimeout, o.PublishTimeout)
	assert.Equal(t, DefaultGrace, o.DisconnectGrace)
}

func TestOptionsExplicitValuesKept(t *testing.T) {
	o := Options{
		Topic:          "bench/topic",
		QoS:            2,
		PayloadSize:    128,
		ConnectTimeout: time.Second,
	}.withDefaults()

	assert.Equal(t, "bench/topic", o.Topic)
	assert.Equal(t, byte(2), o.QoS)
	assert.Equal(t, 128, o.PayloadSize)
	assert.Equal(t, time.Second, o.ConnectTimeout)
	assert.Equal(t, DefaultPublishTimeout, o.PublishTimeout)
}

func TestResultSuccess(t *testing.T) {
	d := 10 * time.Millisecond
	full := Result{Handshake: &d, PubAck: &d, Total: &d}
	assert.True(t, full.Success())

	assert.False(t, Result{}.Success())
	assert.False(t, Result{Handshake: &d, PubAck: &d, Total: &d, Err: "x"}.Success())
	assert.False(t, Result{Handshake: &d}.Success())
}
