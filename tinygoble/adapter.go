// Package tinygoble adapts tinygo.org/x/bluetooth to the radio stack
// facade. It covers initialization, advertising and connection events; the
// library exposes no security-manager surface, so pairing and link-security
// calls report stack.ErrUnsupported and the orchestrator stays in the
// Connected state for each peer.
package tinygoble

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/user/blesm/eventqueue"
	"github.com/user/blesm/gap"
	"github.com/user/blesm/logger"
	"github.com/user/blesm/stack"
)

// Stack drives the platform BLE adapter. Events from the library arrive on
// its own goroutines and are marshaled onto the dispatch queue before they
// reach the application.
type Stack struct {
	adapter *bluetooth.Adapter
	queue   *eventqueue.Queue

	mu          sync.Mutex
	handler     stack.EventHandler
	initialized bool
	advertising bool
	localName   string
	serviceIDs  []uint16

	nextHandle gap.ConnectionHandle
	handles    map[string]gap.ConnectionHandle // device address -> handle
}

// New creates a stack over the platform's default adapter
func New(q *eventqueue.Queue) *Stack {
	return &Stack{
		adapter: bluetooth.DefaultAdapter,
		queue:   q,
		handles: make(map[string]gap.ConnectionHandle),
	}
}

// SetEventHandler registers the event sink. Must precede Init.
func (s *Stack) SetEventHandler(h stack.EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Init enables the adapter and registers the connect/disconnect handler.
// Completion is reported through OnInitComplete on the queue.
func (s *Stack) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		return fmt.Errorf("tinygoble: no event handler registered")
	}
	if s.initialized {
		return stack.ErrAlreadyInitialized
	}
	h := s.handler

	if err := s.adapter.Enable(); err != nil {
		s.queue.Call(func() {
			h.OnInitComplete(fmt.Errorf("tinygoble: enabling adapter: %w", err))
		})
		return nil
	}

	s.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		s.onConnectEvent(device, connected)
	})

	s.initialized = true
	s.queue.Call(func() { h.OnInitComplete(nil) })
	return nil
}

// SetAdvertisingPayload stages the payload. The library builds the AD
// structures itself, so the staged payload is reduced to the local name
// and the 16-bit service UUID list it carries.
func (s *Stack) SetAdvertisingPayload(payload *gap.AdvertisingData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	s.localName = payload.LocalName()
	s.serviceIDs = payload.ServiceIDs()
	return nil
}

// StartAdvertising configures and starts the default advertisement
func (s *Stack) StartAdvertising(params gap.AdvParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	if s.localName == "" && len(s.serviceIDs) == 0 {
		return stack.ErrNoPayload
	}
	if s.advertising {
		return stack.ErrAlreadyAdvertising
	}
	if params.Type != gap.AdvConnectableUndirected {
		return stack.ErrUnsupported
	}

	uuids := make([]bluetooth.UUID, 0, len(s.serviceIDs))
	for _, id := range s.serviceIDs {
		uuids = append(uuids, bluetooth.New16BitUUID(id))
	}

	adv := s.adapter.DefaultAdvertisement()
	opts := bluetooth.AdvertisementOptions{
		LocalName:    s.localName,
		ServiceUUIDs: uuids,
	}
	if params.IntervalMs > 0 {
		opts.Interval = bluetooth.NewDuration(millis(params.IntervalMs))
	}
	if err := adv.Configure(opts); err != nil {
		return fmt.Errorf("tinygoble: configuring advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("tinygoble: starting advertisement: %w", err)
	}
	s.advertising = true
	logger.Info("tinygoble", "advertising as %q", s.localName)
	return nil
}

// SetPairingRequestAuthorisation is accepted but has no effect: the
// library performs no application-visible pairing.
func (s *Stack) SetPairingRequestAuthorisation(required bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return stack.ErrNotInitialized
	}
	if required {
		logger.Warn("tinygoble", "pairing authorisation requested but the adapter exposes no security manager")
	}
	return nil
}

// SetLinkSecurity is not available on this adapter
func (s *Stack) SetLinkSecurity(handle gap.ConnectionHandle, level stack.SecurityLevel) error {
	return stack.ErrUnsupported
}

// AcceptPairingRequest is not available on this adapter
func (s *Stack) AcceptPairingRequest(handle gap.ConnectionHandle) error {
	return stack.ErrUnsupported
}

// CancelPairingRequest is not available on this adapter
func (s *Stack) CancelPairingRequest(handle gap.ConnectionHandle) error {
	return stack.ErrUnsupported
}

// Address returns the adapter's address when the platform exposes one
func (s *Stack) Address() (gap.AddressType, gap.Address) {
	var addr gap.Address
	mac, err := s.adapter.Address()
	if err != nil {
		logger.Warn("tinygoble", "reading adapter address: %v", err)
		return gap.AddressPublic, addr
	}
	copy(addr[:], mac.MAC[:])
	return gap.AddressPublic, addr
}

// Shutdown stops advertising; the platform adapter itself stays enabled
func (s *Stack) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	s.initialized = false
	if s.advertising {
		s.advertising = false
		return s.adapter.DefaultAdvertisement().Stop()
	}
	return nil
}

// onConnectEvent maps the library's connect/disconnect notification onto
// facade events, assigning a fresh handle per connection.
func (s *Stack) onConnectEvent(device bluetooth.Device, connected bool) {
	key := device.Address.String()

	s.mu.Lock()
	h := s.handler
	if connected {
		s.nextHandle++
		handle := s.nextHandle
		s.handles[key] = handle
		s.advertising = false // the library stops advertising on connection
		s.mu.Unlock()
		s.queue.Call(func() { h.OnConnection(handle) })
		return
	}

	handle, ok := s.handles[key]
	delete(s.handles, key)
	s.mu.Unlock()
	if !ok {
		logger.Warn("tinygoble", "disconnect for unknown device %s", key)
		return
	}
	s.queue.Call(func() { h.OnDisconnection(handle, gap.ReasonRemoteUserTerminated) })
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

var _ stack.Stack = (*Stack)(nil)
