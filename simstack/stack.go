// Package simstack is an in-memory implementation of the radio stack facade
// for tests and demos. Peers are scripted from the outside; every event is
// marshaled onto the device's dispatch queue before it reaches the
// application, matching the delivery contract of a real stack.
package simstack

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/blesm/eventqueue"
	"github.com/user/blesm/gap"
	"github.com/user/blesm/logger"
	"github.com/user/blesm/stack"
)

type connection struct {
	handle           gap.ConnectionHandle
	peer             *PeerCentral
	level            stack.SecurityLevel
	securityInFlight bool
	pairingPending   bool
	secured          bool
}

// Stack simulates a BLE stack for one device. Facade calls come from the
// device on the dispatch queue; peer activity comes from other goroutines,
// so shared state is mutex-protected.
type Stack struct {
	queue  *eventqueue.Queue
	cfg    *Config
	events *EventLogger

	deviceUUID string
	addr       gap.Address

	mu           sync.Mutex
	rng          *rand.Rand
	handler      stack.EventHandler
	initialized  bool
	advertising  bool
	payload      *gap.AdvertisingData
	params       gap.AdvParams
	authRequired bool
	nextHandle   gap.ConnectionHandle
	conn         *connection
}

// New creates a simulated stack delivering its events through q
func New(q *eventqueue.Queue, cfg *Config) *Stack {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	id := uuid.New()
	var addr gap.Address
	copy(addr[:], id[:6])
	return &Stack{
		queue:      q,
		cfg:        cfg,
		rng:        cfg.newRand(),
		deviceUUID: id.String(),
		addr:       addr,
		events:     NewEventLogger(id.String(), cfg.EventLog),
	}
}

// UUID returns the simulated device's identity
func (s *Stack) UUID() string { return s.deviceUUID }

// IsAdvertising reports whether the device is currently advertising
func (s *Stack) IsAdvertising() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advertising
}

// Payload returns the advertising payload currently staged
func (s *Stack) Payload() *gap.AdvertisingData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// SetEventHandler registers the event sink. Must precede Init.
func (s *Stack) SetEventHandler(h stack.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Init schedules initialization; completion arrives via OnInitComplete
func (s *Stack) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		return fmt.Errorf("simstack: no event handler registered")
	}
	if s.initialized {
		return stack.ErrAlreadyInitialized
	}

	h := s.handler
	fail := s.cfg.FailInit
	s.post(s.cfg.InitDelay, func() {
		if fail {
			s.events.Log(ConnectionEvent{Event: "init_failed"})
			h.OnInitComplete(fmt.Errorf("simstack: injected init failure"))
			return
		}
		s.mu.Lock()
		s.initialized = true
		s.mu.Unlock()
		s.events.Log(ConnectionEvent{Event: "init_complete"})
		h.OnInitComplete(nil)
	})
	return nil
}

// SetAdvertisingPayload stages the payload used by StartAdvertising
func (s *Stack) SetAdvertisingPayload(payload *gap.AdvertisingData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	s.payload = payload
	return nil
}

// StartAdvertising begins advertising; a connecting peer stops it
func (s *Stack) StartAdvertising(params gap.AdvParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	if s.payload == nil {
		return stack.ErrNoPayload
	}
	if s.advertising {
		return stack.ErrAlreadyAdvertising
	}
	s.advertising = true
	s.params = params
	s.events.Log(ConnectionEvent{Event: "advertising_started",
		Detail: fmt.Sprintf("%s interval=%dms", params.Type, params.IntervalMs)})
	logger.Trace("simstack", "%s advertising, payload %d bytes", s.deviceUUID, s.payload.Size())
	return nil
}

// SetPairingRequestAuthorisation controls whether pairing raises an
// explicit authorisation event
func (s *Stack) SetPairingRequestAuthorisation(required bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	s.authRequired = required
	return nil
}

// SetLinkSecurity starts a pairing procedure toward the connected peer
func (s *Stack) SetLinkSecurity(handle gap.ConnectionHandle, level stack.SecurityLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	if s.conn == nil || s.conn.handle != handle {
		return stack.ErrInvalidHandle
	}
	if s.conn.securityInFlight {
		return stack.ErrSecurityBusy
	}
	s.conn.securityInFlight = true
	s.conn.level = level
	s.events.Log(ConnectionEvent{Event: "security_requested", Handle: uint16(handle),
		Peer: s.conn.peer.ID, Detail: level.String()})

	if s.authRequired {
		s.conn.pairingPending = true
		h := s.handler
		s.post(s.cfg.PairingDelay, func() {
			if !s.connAlive(handle) {
				return
			}
			s.events.Log(ConnectionEvent{Event: "pairing_request", Handle: uint16(handle)})
			h.OnPairingRequest(handle)
		})
		return nil
	}
	s.completePairingLocked(handle)
	return nil
}

// AcceptPairingRequest authorizes the pending pairing request
func (s *Stack) AcceptPairingRequest(handle gap.ConnectionHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	if s.conn == nil || s.conn.handle != handle {
		return stack.ErrInvalidHandle
	}
	if !s.conn.pairingPending {
		return stack.ErrNoPairingRequest
	}
	s.conn.pairingPending = false
	s.completePairingLocked(handle)
	return nil
}

// CancelPairingRequest rejects the pending pairing request; the pairing
// fails but the connection stays up.
func (s *Stack) CancelPairingRequest(handle gap.ConnectionHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	if s.conn == nil || s.conn.handle != handle {
		return stack.ErrInvalidHandle
	}
	if !s.conn.pairingPending {
		return stack.ErrNoPairingRequest
	}
	s.conn.pairingPending = false
	s.conn.securityInFlight = false
	h := s.handler
	s.post(s.cfg.PairingDelay, func() {
		if !s.connAlive(handle) {
			return
		}
		s.events.Log(ConnectionEvent{Event: "pairing_rejected", Handle: uint16(handle)})
		h.OnPairingResult(handle, stack.PairingFailure)
	})
	return nil
}

// Address returns the simulated random-static device address
func (s *Stack) Address() (gap.AddressType, gap.Address) {
	return gap.AddressRandomStatic, s.addr
}

// Shutdown tears the stack down; queued simulation events are suppressed
func (s *Stack) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.advertising = false
	s.conn = nil
	s.events.Log(ConnectionEvent{Event: "shutdown"})
	return nil
}

// RaiseTimeout injects a GAP timeout event, for scripting failure paths
func (s *Stack) RaiseTimeout(source gap.TimeoutSource) {
	s.mu.Lock()
	h := s.handler
	s.advertising = false
	s.conn = nil
	s.mu.Unlock()
	if h == nil {
		return
	}
	s.events.Log(ConnectionEvent{Event: "timeout", Detail: source.String()})
	s.queue.Call(func() { h.OnTimeout(source) })
}

// completePairingLocked finishes the pairing procedure: outcome per the
// configured failure rate, followed by the link encryption report on
// success. Caller holds s.mu.
func (s *Stack) completePairingLocked(handle gap.ConnectionHandle) {
	h := s.handler
	outcome := stack.PairingSuccess
	if s.rng.Float64() < s.cfg.PairingFailureRate {
		outcome = stack.PairingFailure
	}
	level := s.conn.level

	s.post(s.cfg.PairingDelay, func() {
		if !s.connAlive(handle) {
			return
		}
		s.mu.Lock()
		s.conn.securityInFlight = false
		s.conn.secured = outcome == stack.PairingSuccess
		s.mu.Unlock()

		s.events.Log(ConnectionEvent{Event: "pairing_result", Handle: uint16(handle),
			Detail: outcome.String()})
		h.OnPairingResult(handle, outcome)

		if outcome != stack.PairingSuccess {
			return
		}
		status := stack.Encrypted
		if level == stack.SecurityEncryptionWithMITM {
			status = stack.EncryptedWithMITM
		}
		s.post(0, func() {
			if !s.connAlive(handle) {
				return
			}
			s.events.Log(ConnectionEvent{Event: "link_encryption", Handle: uint16(handle),
				Detail: status.String()})
			h.OnLinkEncryptionResult(handle, status)
		})
	})
}

// connAlive reports whether the connection the event was scheduled for is
// still the current one. Events for dead connections are dropped, the way
// a real stack stops delivering after the link is gone.
func (s *Stack) connAlive(handle gap.ConnectionHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && s.conn != nil && s.conn.handle == handle
}

// post marshals fn onto the dispatch queue, after delayMs when positive
func (s *Stack) post(delayMs int, fn func()) {
	if delayMs <= 0 {
		s.queue.Call(fn)
		return
	}
	s.queue.CallIn(time.Duration(delayMs)*time.Millisecond, fn)
}

var _ stack.Stack = (*Stack)(nil)
