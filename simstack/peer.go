package simstack

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/user/blesm/gap"
	"github.com/user/blesm/stack"
)

// PeerCentral scripts a remote central against the simulated stack: it
// connects while the device advertises, lets the pairing procedure run,
// and disconnects. Safe to drive from a goroutine other than the
// dispatcher's.
type PeerCentral struct {
	ID  string
	sim *Stack
}

// NewPeer creates a scriptable central with a fresh identity
func (s *Stack) NewPeer() *PeerCentral {
	return &PeerCentral{
		ID:  uuid.New().String(),
		sim: s,
	}
}

// Connect establishes a connection to the advertising device and returns
// the handle assigned to it. Fails when the device is not advertising or
// already holds its single connection.
func (p *PeerCentral) Connect() (gap.ConnectionHandle, error) {
	s := p.sim
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return gap.InvalidHandle, stack.ErrNotInitialized
	}
	if !s.advertising {
		s.mu.Unlock()
		return gap.InvalidHandle, fmt.Errorf("simstack: device is not advertising")
	}
	if s.conn != nil {
		s.mu.Unlock()
		return gap.InvalidHandle, fmt.Errorf("simstack: connection already active on handle %d", s.conn.handle)
	}

	s.nextHandle++
	handle := s.nextHandle
	s.conn = &connection{handle: handle, peer: p}
	s.advertising = false
	h := s.handler
	delay := s.cfg.ConnectDelay
	s.mu.Unlock()

	s.events.Log(ConnectionEvent{Event: "connected", Handle: uint16(handle), Peer: p.ID})
	s.post(delay, func() {
		if !s.connAlive(handle) {
			return
		}
		h.OnConnection(handle)
	})
	return handle, nil
}

// Disconnect terminates this peer's connection. Pairing events still
// queued for the old handle are dropped, so only the disconnection
// reaches the device.
func (p *PeerCentral) Disconnect(reason gap.DisconnectReason) error {
	s := p.sim
	s.mu.Lock()
	if s.conn == nil || s.conn.peer != p {
		s.mu.Unlock()
		return stack.ErrInvalidHandle
	}
	handle := s.conn.handle
	s.conn = nil
	h := s.handler
	delay := s.cfg.DisconnectDelay
	s.mu.Unlock()

	s.events.Log(ConnectionEvent{Event: "disconnected", Handle: uint16(handle),
		Peer: p.ID, Detail: fmt.Sprintf("reason 0x%02X", byte(reason))})
	s.post(delay, func() {
		h.OnDisconnection(handle, reason)
	})
	return nil
}

// Connected reports whether this peer currently holds the connection
func (p *PeerCentral) Connected() bool {
	s := p.sim
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn.peer == p
}
