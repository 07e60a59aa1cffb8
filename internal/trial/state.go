package trial

import (
	"sync"
	"time"

	"mqttlat/internal/mqtt"
)

// gate is a single-fire synchronization point: it transitions exactly once
// from unsignaled to signaled and any number of goroutines may wait on it,
// repeatedly. The closed channel doubles as the release point that makes
// state written before signal() visible to waiters.
type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) signal() {
	g.once.Do(func() { close(g.ch) })
}

// wait blocks until the gate signals or the timeout expires. Returns false
// on timeout.
func (g *gate) wait(timeout time.Duration) bool {
	select {
	case <-g.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// State carries one trial's timestamps, error and gates. It is created by
// the runner, mutated by the adapter's callback goroutines and by the
// runner's own timeout paths, finalized once and discarded. The mutex
// covers every field; no lock is ever held across a blocking wait.
type State struct {
	mu sync.Mutex

	iteration  int
	configName string

	connectSentAt time.Time
	connectAckAt  time.Time
	publishSentAt time.Time
	publishAckAt  time.Time

	err *Error

	// pendingMessageID correlates an async publish acknowledgement to the
	// publish this trial issued. Acks for any other id are ignored.
	pendingMessageID mqtt.MessageID
	publishIssued    bool
	// earlyAck remembers an ack that raced ahead of the runner storing the
	// pending id. Matched retroactively in SetPendingMessage.
	earlyAck   mqtt.MessageID
	hasEarly   bool
	earlyAckAt time.Time

	connectSettled *gate
	publishSettled *gate
}

func NewState(iteration int, configName string) *State {
	return &State{
		iteration:      iteration,
		configName:     configName,
		connectSettled: newGate(),
		publishSettled: newGate(),
	}
}

func (s *State) RecordConnectSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectSentAt = time.Now()
}

// RecordConnectAck stamps the connect acknowledgement and releases the
// connect gate.
func (s *State) RecordConnectAck() {
	s.mu.Lock()
	s.connectAckAt = time.Now()
	s.mu.Unlock()
	s.connectSettled.signal()
}

func (s *State) RecordPublishSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishSentAt = time.Now()
	s.publishIssued = true
}

// SetPendingMessage stores the correlation id of the in-flight publish.
// If the matching ack already arrived on the callback goroutine before the
// runner got here, it is applied retroactively.
func (s *State) SetPendingMessage(id mqtt.MessageID) {
	s.mu.Lock()
	s.pendingMessageID = id
	matched := s.hasEarly && s.earlyAck == id
	var at time.Time
	if matched {
		at = s.earlyAckAt
		s.publishAckAt = at
	}
	s.mu.Unlock()
	if matched {
		s.publishSettled.signal()
	}
}

// RecordPublishAck stamps the publish acknowledgement if the id matches the
// in-flight publish. Mismatched ids are ignored, which protects against
// stale notifications when a client is reused or tears down slowly.
func (s *State) RecordPublishAck(id mqtt.MessageID) {
	now := time.Now()
	s.mu.Lock()
	if !s.publishIssued {
		s.mu.Unlock()
		return
	}
	if s.pendingMessageID == 0 {
		// Runner has not stored the id yet; park the ack.
		s.earlyAck = id
		s.hasEarly = true
		s.earlyAckAt = now
		s.mu.Unlock()
		return
	}
	if id != s.pendingMessageID {
		s.mu.Unlock()
		return
	}
	s.publishAckAt = now
	s.mu.Unlock()
	s.publishSettled.signal()
}

// RecordError captures the first failure cause; later calls never
// overwrite it. Both gates are force-signalled so no waiter can block once
// an error is known: every path that can end a trial releases both gates.
func (s *State) RecordError(kind ErrorKind, format string, args ...any) {
	s.mu.Lock()
	if s.err == nil {
		s.err = newError(kind, format, args...)
	}
	s.mu.Unlock()
	s.connectSettled.signal()
	s.publishSettled.signal()
}

// NoteDisconnect classifies an unsolicited disconnect notification. Right
// after a completed phase it is expected teardown; anywhere else it is an
// unexpected-disconnect error, unless some other error is already recorded.
func (s *State) NoteDisconnect(cause error, grace time.Duration) {
	if cause == nil {
		return
	}
	now := time.Now()
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	expected := false
	if !s.publishAckAt.IsZero() && now.Sub(s.publishAckAt) < grace {
		expected = true
	} else if !s.connectAckAt.IsZero() && s.publishSentAt.IsZero() && now.Sub(s.connectAckAt) < grace {
		expected = true
	}
	s.mu.Unlock()
	if !expected {
		s.RecordError(ErrUnexpectedDisconnect, "%v", cause)
	}
}

// WaitConnect blocks until the connect gate settles or the timeout passes.
func (s *State) WaitConnect(timeout time.Duration) bool {
	return s.connectSettled.wait(timeout)
}

// WaitPublish blocks until the publish gate settles or the timeout passes.
func (s *State) WaitPublish(timeout time.Duration) bool {
	return s.publishSettled.wait(timeout)
}

func (s *State) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

func (s *State) ConnectIssued() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.connectSentAt.IsZero()
}

// Finalize derives the immutable result. Call exactly once, after every
// callback source has been stopped.
func (s *State) Finalize() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{Iteration: s.iteration, ConfigName: s.configName}

	// A handshake sample survives a publish-phase failure.
	if !s.connectSentAt.IsZero() && !s.connectAckAt.IsZero() {
		hs := s.connectAckAt.Sub(s.connectSentAt)
		res.Handshake = &hs
	}

	if s.err != nil {
		if s.err.Kind == ErrSecurityConfig || s.err.Kind == ErrConnectIssue ||
			s.err.Kind == ErrConnectTimeout || s.err.Kind == ErrConnectRejected {
			res.Handshake = nil
		}
		res.Err = s.err.Error()
		return res
	}

	switch {
	case res.Handshake == nil:
		res.Err = newError(ErrIncomplete, "missing connect timestamps").Error()
	case s.publishSentAt.IsZero():
		res.Err = newError(ErrIncomplete, "publish phase not reached").Error()
	case s.publishAckAt.IsZero():
		res.Err = newError(ErrIncomplete, "missing publish ack timestamp").Error()
	default:
		pa := s.publishAckAt.Sub(s.publishSentAt)
		total := s.publishAckAt.Sub(s.connectSentAt)
		res.PubAck = &pa
		res.Total = &total
	}
	return res
}
