package smdevice

import (
	"github.com/user/blesm/gap"
	"github.com/user/blesm/logger"
)

// Role supplies the role-specific half of the lifecycle: how the device
// makes itself reachable and how it reacts to a new connection. The
// orchestrator owns every stack subscription and calls into the role for
// these two hooks only. A failed stack call is logged and abandons the
// current attempt; the next attempt comes through the normal
// re-advertise-on-disconnect path.
type Role interface {
	// Begin starts the role's activity (advertise or wait for a peer)
	Begin()
	// OnConnected reacts to a new connection
	OnConnected(handle gap.ConnectionHandle)
}

// PeripheralRole advertises, accepts the connection and immediately
// requests elevation of the link security.
type PeripheralRole struct {
	dev *Device
}

// Begin builds the advertising payload and starts connectable undirected
// advertising with no expiry, then enables explicit pairing authorisation
// unless the device is configured to auto-accept.
func (r *PeripheralRole) Begin() {
	d := r.dev

	payload := &gap.AdvertisingData{}
	if err := payload.AddFlags(gap.FlagLEGeneralDiscoverable | gap.FlagBREDRNotSupported); err != nil {
		logger.Error(d.prefix, "building advertising flags: %v", err)
		return
	}
	if err := payload.AddCompleteLocalName(d.opts.DeviceName); err != nil {
		logger.Error(d.prefix, "adding device name to payload: %v", err)
		return
	}
	if err := payload.AddComplete16BitServiceIDs(d.opts.ServiceIDs); err != nil {
		logger.Error(d.prefix, "adding service IDs to payload: %v", err)
		return
	}

	if err := d.stack.SetAdvertisingPayload(payload); err != nil {
		logger.Error(d.prefix, "setting advertising payload: %v", err)
		return
	}

	params := gap.AdvParams{
		Type:       gap.AdvConnectableUndirected,
		IntervalMs: d.opts.AdvertisingIntervalMs,
		TimeoutS:   d.opts.AdvertisingTimeoutS,
	}
	if err := d.stack.StartAdvertising(params); err != nil {
		logger.Error(d.prefix, "starting advertising: %v", err)
		return
	}

	// Require the stack to raise a pairing request event for each pairing
	// attempt instead of accepting on its own.
	if err := d.stack.SetPairingRequestAuthorisation(!d.opts.AutoAcceptPairing); err != nil {
		logger.Error(d.prefix, "setting pairing authorisation: %v", err)
		return
	}

	d.setState(StateAdvertising)
	logger.Info(d.prefix, "advertising as %q every %dms", d.opts.DeviceName, params.IntervalMs)
}

// OnConnected requests link security elevation. At most one request may be
// outstanding per connection, so a duplicate connect notification is a no-op.
func (r *PeripheralRole) OnConnected(handle gap.ConnectionHandle) {
	d := r.dev
	if d.securityRequested {
		logger.Warn(d.prefix, "security request already outstanding on handle %d", handle)
		return
	}

	if err := d.stack.SetLinkSecurity(handle, d.opts.SecurityLevel); err != nil {
		logger.Error(d.prefix, "requesting link security: %v", err)
		return
	}
	d.securityRequested = true
	d.setState(StateSecurityPending)
	logger.Info(d.prefix, "requested %s on handle %d", d.opts.SecurityLevel, handle)
}

// CentralRole waits for the peer to drive the link: it neither advertises
// nor requests security elevation itself.
type CentralRole struct {
	dev *Device
}

// Begin leaves the device idle until a peer connects
func (r *CentralRole) Begin() {
	d := r.dev
	d.setState(StateIdle)
	logger.Info(d.prefix, "central ready, waiting for peer")
}

// OnConnected waits for the peer to request security
func (r *CentralRole) OnConnected(handle gap.ConnectionHandle) {
	logger.Info(r.dev.prefix, "connected on handle %d, waiting for peer to pair", handle)
}

var (
	_ Role = (*PeripheralRole)(nil)
	_ Role = (*CentralRole)(nil)
)
