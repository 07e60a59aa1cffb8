// Package dummy provides an in-process simulated broker implementing the
// mqtt.Client contract. It lets the whole pipeline run without a real
// broker: the selftest subcommand smoke-tests against it, and the trial
// and batch tests use its fault knobs.
package dummy

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"mqttlat/internal/mqtt"
)

// Broker describes the simulated broker's behavior. The zero value acks
// instantly and never fails.
type Broker struct {
	ConnectLatency time.Duration
	PublishLatency time.Duration

	// Fault injection.
	FailSecurity    error            // ConfigureTransportSecurity returns this
	FailConnect     error            // Connect returns this synchronously
	RejectConnect   mqtt.ConnackCode // non-zero: connack refusal
	DropConnectAck  bool             // connack never delivered
	FailPublish     error            // Publish returns this synchronously
	DropPublishAck  bool             // puback never delivered
	MismatchAck     bool             // puback delivered with a wrong id
	DisconnectAfter time.Duration    // >0: unsolicited disconnect after connack

	// LastCredentials is the identity presented by the most recent Connect,
	// recorded for assertions.
	LastCredentials mqtt.Credentials
}

// NewClient implements mqtt.Factory.
func (b *Broker) NewClient(sink mqtt.EventSink) mqtt.Client {
	return &client{broker: b, sink: sink}
}

// Fleet maps ports to broker profiles, so one factory can serve a batch
// whose configurations should behave differently. Ports without a profile
// get a zero-value broker.
type Fleet map[int]*Broker

// NewClient implements mqtt.Factory. The profile is picked at Connect
// time from the dialed port.
func (f Fleet) NewClient(sink mqtt.EventSink) mqtt.Client {
	return &client{fleet: f, broker: &Broker{}, sink: sink}
}

type client struct {
	broker *Broker
	fleet  Fleet
	sink   mqtt.EventSink
	creds  mqtt.Credentials

	mu        sync.Mutex
	connected bool
	stopped   bool
	nextMid   uint32
	wg        sync.WaitGroup
}

func (c *client) ConfigureTransportSecurity(sec mqtt.TransportSecurity) error {
	if c.broker.FailSecurity != nil {
		return c.broker.FailSecurity
	}
	if sec.Cipher != "" {
		if _, err := mqtt.CipherSuiteID(sec.Cipher); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) ConfigureCredentials(creds mqtt.Credentials) {
	c.creds = creds
}

func (c *client) Connect(host string, port int, keepalive time.Duration) error {
	if c.fleet != nil {
		if profile, ok := c.fleet[port]; ok {
			c.broker = profile
		}
	}
	c.broker.LastCredentials = c.creds
	if c.broker.FailConnect != nil {
		return c.broker.FailConnect
	}
	c.async(func() {
		c.sleep(c.broker.ConnectLatency)
		if c.broker.DropConnectAck {
			return
		}
		if c.broker.RejectConnect != 0 {
			c.deliver(func() { c.sink.OnConnectAck(c.broker.RejectConnect) })
			return
		}
		c.mu.Lock()
		c.connected = true
		c.mu.Unlock()
		c.deliver(func() { c.sink.OnConnectAck(mqtt.ConnackAccepted) })

		if c.broker.DisconnectAfter > 0 {
			c.sleep(c.broker.DisconnectAfter)
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			c.deliver(func() { c.sink.OnDisconnected(errors.New("simulated connection loss")) })
		}
	})
	return nil
}

func (c *client) Publish(topic string, payload []byte, qos byte) (mqtt.MessageID, error) {
	if c.broker.FailPublish != nil {
		return 0, c.broker.FailPublish
	}
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return 0, errors.New("publish on unconnected client")
	}

	mid := mqtt.MessageID(atomic.AddUint32(&c.nextMid, 1))
	c.async(func() {
		c.sleep(c.broker.PublishLatency)
		if c.broker.DropPublishAck {
			return
		}
		ack := mid
		if c.broker.MismatchAck {
			ack = mid + 1000
		}
		c.deliver(func() { c.sink.OnPublishAck(ack) })
	})
	return mid, nil
}

func (c *client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *client) StartIOLoop() {}

// StopIOLoop waits out the in-flight delivery goroutines so no callback
// outlives the trial that owns the sink.
func (c *client) StopIOLoop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *client) async(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// deliver suppresses callbacks after the loop was stopped, mirroring a
// real client whose reader goroutine is gone.
func (c *client) deliver(fn func()) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if !stopped {
		fn()
	}
}

func (c *client) sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
