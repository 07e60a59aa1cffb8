package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PahoClient adapts the Eclipse Paho client to the Client contract. One
// instance serves exactly one trial: session caching between measurements
// would skew handshake numbers.
type PahoClient struct {
	sink  EventSink
	log   *logrus.Entry
	sec   *TransportSecurity
	creds Credentials
	cli   pahomqtt.Client
}

// NewPahoClient returns a Factory for production clients.
func NewPahoClient(log *logrus.Entry) Factory {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return func(sink EventSink) Client {
		return &PahoClient{sink: sink, log: log}
	}
}

func (p *PahoClient) ConfigureTransportSecurity(sec TransportSecurity) error {
	// Validate eagerly so a bad cipher or unreadable key fails the trial
	// before any network attempt.
	if _, err := BuildTLSConfig(sec); err != nil {
		return err
	}
	p.sec = &sec
	return nil
}

// ConfigureCredentials installs the configuration's identity for the next
// Connect.
func (p *PahoClient) ConfigureCredentials(creds Credentials) {
	p.creds = creds
}

func (p *PahoClient) Connect(host string, port int, keepalive time.Duration) error {
	if p.cli != nil {
		return errors.New("connect already issued")
	}

	opts := pahomqtt.NewClientOptions()
	scheme := "tcp"
	if p.sec != nil {
		scheme = "ssl"
		tlsCfg, err := BuildTLSConfig(*p.sec)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, host, port))

	clientID := p.creds.ClientID
	if clientID == "" {
		clientID = "mqttlat-" + uuid.New().String()
	}
	opts.SetClientID(clientID)
	if p.creds.Username != "" {
		opts.SetUsername(p.creds.Username)
		opts.SetPassword(p.creds.Password)
	}

	// Keep the session minimal and stable for benchmarking.
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetKeepAlive(keepalive)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		p.sink.OnDisconnected(err)
	})

	p.cli = pahomqtt.NewClient(opts)
	token := p.cli.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			p.log.WithError(err).Debug("connect settled with error")
			p.sink.OnConnectAck(connackCodeFor(err))
			return
		}
		p.sink.OnConnectAck(ConnackAccepted)
	}()
	return nil
}

func (p *PahoClient) Publish(topic string, payload []byte, qos byte) (MessageID, error) {
	if p.cli == nil || !p.cli.IsConnected() {
		return 0, errors.New("publish on unconnected client")
	}

	token := p.cli.Publish(topic, qos, false, payload)
	pt, ok := token.(*pahomqtt.PublishToken)
	if !ok {
		return 0, errors.Errorf("unexpected token type %T", token)
	}
	mid := MessageID(pt.MessageID())

	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			// No ack will arrive; the trial times out and records it.
			p.log.WithError(err).WithField("mid", mid).Debug("publish settled with error")
			return
		}
		p.sink.OnPublishAck(mid)
	}()
	return mid, nil
}

func (p *PahoClient) Disconnect() error {
	if p.cli == nil {
		return nil
	}
	if !p.cli.IsConnectionOpen() {
		return nil
	}
	// 250ms quiesce lets the DISCONNECT packet flush.
	p.cli.Disconnect(250)
	return nil
}

// StartIOLoop is a no-op: the paho client runs its own network goroutines
// from the moment Connect is issued. Kept so every Client honors the same
// lifecycle.
func (p *PahoClient) StartIOLoop() {}

// StopIOLoop force-closes any network activity still running, regardless
// of how the trial ended.
func (p *PahoClient) StopIOLoop() {
	if p.cli == nil {
		return
	}
	if p.cli.IsConnectionOpen() {
		p.cli.Disconnect(0)
	}
}

// connackCodeFor maps a paho connect error to the broker refusal code that
// produced it, or to the transport-error code for plain network failures.
func connackCodeFor(err error) ConnackCode {
	for code, connErr := range packets.ConnErrors {
		if code == packets.Accepted {
			continue
		}
		if errors.Is(err, connErr) {
			return ConnackCode(code)
		}
	}
	return ConnackNetworkError
}
