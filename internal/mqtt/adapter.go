// Package mqtt defines the protocol-client boundary the trial runner
// measures against, plus the production implementation backed by the
// Eclipse Paho client.
package mqtt

import (
	"fmt"
	"time"
)

// MessageID correlates an asynchronous publish acknowledgement to the
// publish that produced it. Zero is never a valid id.
type MessageID uint16

// ConnackCode is the broker's connect acknowledgement result. Zero means
// accepted; the named values mirror the MQTT 3.1.1 refusal codes.
type ConnackCode byte

const (
	ConnackAccepted          ConnackCode = 0
	ConnackBadProtocol       ConnackCode = 1
	ConnackIDRejected        ConnackCode = 2
	ConnackServerUnavailable ConnackCode = 3
	ConnackBadCredentials    ConnackCode = 4
	ConnackNotAuthorized     ConnackCode = 5
	ConnackNetworkError      ConnackCode = 0xFE
	ConnackUnknown           ConnackCode = 0xFF
)

func (c ConnackCode) Accepted() bool { return c == ConnackAccepted }

func (c ConnackCode) String() string {
	switch c {
	case ConnackAccepted:
		return "accepted"
	case ConnackBadProtocol:
		return "unacceptable protocol version"
	case ConnackIDRejected:
		return "identifier rejected"
	case ConnackServerUnavailable:
		return "server unavailable"
	case ConnackBadCredentials:
		return "bad user name or password"
	case ConnackNotAuthorized:
		return "not authorized"
	case ConnackNetworkError:
		return "network or transport error"
	}
	return fmt.Sprintf("code %d", byte(c))
}

// TransportSecurity names the TLS material for one configuration. Cipher
// optionally pins the handshake to a single suite, by Go or OpenSSL name.
type TransportSecurity struct {
	CAFile   string
	CertFile string
	KeyFile  string
	Cipher   string
}

// Credentials carries the per-configuration identity: an explicit client
// id, and username/password for brokers using token or basic auth instead
// of client certificates. The zero value means an anonymous session with a
// generated client id.
type Credentials struct {
	ClientID string
	Username string
	Password string
}

// EventSink receives the client's asynchronous notifications. Methods are
// invoked on the client's own I/O goroutines, never on the goroutine that
// issued the operation.
type EventSink interface {
	OnConnectAck(code ConnackCode)
	OnPublishAck(id MessageID)
	OnDisconnected(cause error)
}

// Client is the pub/sub client surface a trial drives. Connect and Publish
// complete asynchronously through the EventSink installed at construction;
// their error return covers issuance only.
type Client interface {
	ConfigureTransportSecurity(sec TransportSecurity) error
	ConfigureCredentials(creds Credentials)
	Connect(host string, port int, keepalive time.Duration) error
	Publish(topic string, payload []byte, qos byte) (MessageID, error)
	Disconnect() error
	StartIOLoop()
	StopIOLoop()
}

// Factory builds a fresh client wired to sink. Trials never share clients,
// so no session state leaks between measurements.
type Factory func(sink EventSink) Client
