// Package smdevice implements the pairing and link-security orchestration of
// a BLE device: the state machine that takes a freshly initialized stack
// through advertising, connection acceptance, pairing authorisation and
// link-encryption negotiation, and back to advertising after disconnection,
// repeatably for the lifetime of the process.
package smdevice

import (
	"fmt"
	"time"

	"github.com/user/blesm/eventqueue"
	"github.com/user/blesm/gap"
	"github.com/user/blesm/logger"
	"github.com/user/blesm/stack"
)

// Options configures a device. Zero values fall back to DefaultOptions.
type Options struct {
	DeviceName            string
	ServiceIDs            []uint16 // 16-bit service UUIDs carried in the payload
	AdvertisingIntervalMs int
	AdvertisingTimeoutS   int // 0 = advertising never expires on its own
	SecurityLevel         stack.SecurityLevel

	// AutoAcceptPairing skips the per-request authorisation step and lets
	// the stack accept pairing on its own. Default off.
	AutoAcceptPairing bool

	// AuthorizePairing decides each pairing request when authorisation is
	// required. Nil means always authorize.
	AuthorizePairing func(handle gap.ConnectionHandle) bool

	// StartupDelay is the gap between init completing and the role
	// starting its activity.
	StartupDelay time.Duration

	// HeartbeatPeriod is how often the status heartbeat fires.
	HeartbeatPeriod time.Duration

	// Heartbeat, when set, is called on every heartbeat tick with the
	// current state (LED or display glue hangs off this).
	Heartbeat func(state State)
}

// DefaultOptions returns the stock device configuration
func DefaultOptions() Options {
	return Options{
		DeviceName:            "SM_device",
		AdvertisingIntervalMs: 5000,
		SecurityLevel:         stack.SecurityEncryptionNoMITM,
		StartupDelay:          500 * time.Millisecond,
		HeartbeatPeriod:       500 * time.Millisecond,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.DeviceName == "" {
		o.DeviceName = def.DeviceName
	}
	if o.AdvertisingIntervalMs <= 0 {
		o.AdvertisingIntervalMs = def.AdvertisingIntervalMs
	}
	if o.StartupDelay <= 0 {
		o.StartupDelay = def.StartupDelay
	}
	if o.HeartbeatPeriod <= 0 {
		o.HeartbeatPeriod = def.HeartbeatPeriod
	}
}

// Device is the pairing orchestrator. It owns the lifecycle state and the
// connection handle, subscribes to every stack event and maps them onto
// state transitions; role-specific behavior is delegated to the Role.
// All mutation happens on the dispatch queue.
type Device struct {
	stack stack.Stack
	queue *eventqueue.Queue
	role  Role
	opts  Options

	prefix   string
	roleName string

	state  State
	handle gap.ConnectionHandle

	// at most one outstanding security request per connection
	securityRequested bool

	heartbeatID eventqueue.TimerID
	fatalErr    error
}

// NewPeripheral creates a device that advertises and requests link security
// elevation on every new connection.
func NewPeripheral(s stack.Stack, q *eventqueue.Queue, opts Options) *Device {
	d := newDevice(s, q, opts, "peripheral")
	d.role = &PeripheralRole{dev: d}
	return d
}

// NewCentral creates a device that waits for the peer to drive pairing
func NewCentral(s stack.Stack, q *eventqueue.Queue, opts Options) *Device {
	d := newDevice(s, q, opts, "central")
	d.role = &CentralRole{dev: d}
	return d
}

func newDevice(s stack.Stack, q *eventqueue.Queue, opts Options, roleName string) *Device {
	opts.applyDefaults()
	d := &Device{
		stack:    s,
		queue:    q,
		opts:     opts,
		prefix:   opts.DeviceName,
		roleName: roleName,
		state:    StateUninitialized,
	}
	// Subscribe before anything can raise events
	s.SetEventHandler(d)
	return d
}

// State returns the current lifecycle state
func (d *Device) State() State { return d.state }

// ConnectionHandle returns the tracked handle, or gap.InvalidHandle when
// no connection is active.
func (d *Device) ConnectionHandle() gap.ConnectionHandle { return d.handle }

// Run initializes the stack and dispatches events until an unrecoverable
// initialization error or an explicit Shutdown. It blocks the calling
// goroutine for the lifetime of the device.
func (d *Device) Run() error {
	logger.Info(d.prefix, "running as %s", d.roleName)

	if d.state != StateUninitialized {
		return fmt.Errorf("smdevice: Run called in state %s", d.state)
	}

	d.heartbeatID = d.queue.CallEvery(d.opts.HeartbeatPeriod, d.heartbeat)

	d.setState(StateInitializing)
	if err := d.stack.Init(); err != nil {
		d.queue.Cancel(d.heartbeatID)
		d.setState(StateUninitialized)
		logger.Error(d.prefix, "stack init: %v", err)
		return fmt.Errorf("smdevice: stack init: %w", err)
	}

	d.queue.DispatchForever()
	return d.fatalErr
}

// Shutdown stops the device: the stack is torn down and the run loop exits
// once already queued callbacks have run. Safe to call from any goroutine.
func (d *Device) Shutdown() {
	d.queue.Call(func() {
		logger.Info(d.prefix, "shutting down")
		d.queue.Cancel(d.heartbeatID)
		if err := d.stack.Shutdown(); err != nil {
			logger.Error(d.prefix, "stack shutdown: %v", err)
		}
		d.setState(StateUninitialized)
		d.queue.Break()
	})
}

// OnInitComplete finishes startup: on success the role's activity is
// scheduled to begin after the startup delay; on error the device halts.
func (d *Device) OnInitComplete(err error) {
	if err != nil {
		d.setState(StateUninitialized)
		d.fatalErr = fmt.Errorf("smdevice: initialization: %w", err)
		logger.Error(d.prefix, "initialization failed: %v", err)
		d.queue.Cancel(d.heartbeatID)
		d.queue.Break()
		return
	}

	addrType, addr := d.stack.Address()
	logger.Info(d.prefix, "device address: %s (type %d)", addr, addrType)

	d.setState(StateIdle)
	d.queue.CallIn(d.opts.StartupDelay, d.begin)
}

func (d *Device) begin() {
	if d.state != StateIdle {
		logger.Debug(d.prefix, "begin skipped in state %s", d.state)
		return
	}
	d.role.Begin()
}

// OnConnection stores the handle and hands the connection to the role
func (d *Device) OnConnection(handle gap.ConnectionHandle) {
	if d.handle != gap.InvalidHandle {
		logger.Warn(d.prefix, "connection event for handle %d while handle %d is active, ignoring", handle, d.handle)
		return
	}
	logger.Info(d.prefix, "connected, handle %d", handle)
	d.handle = handle
	d.setState(StateConnected)
	d.role.OnConnected(handle)
}

// OnDisconnection clears the connection and immediately re-arms the role.
// Any security callback still in flight for the old handle is stale from
// here on and will be discarded by the handle check.
func (d *Device) OnDisconnection(handle gap.ConnectionHandle, reason gap.DisconnectReason) {
	if !d.validHandle(handle, "disconnection") {
		return
	}
	logger.Info(d.prefix, "disconnected, handle %d, reason 0x%02X", handle, byte(reason))

	d.setState(StateDisconnecting)
	d.handle = gap.InvalidHandle
	d.securityRequested = false

	// Keep serving new peers: re-arm within the same queue turn
	d.role.Begin()
}

// OnTimeout treats a GAP procedure timeout as disconnect-equivalent: the
// device drops whatever it was doing and re-arms.
func (d *Device) OnTimeout(source gap.TimeoutSource) {
	logger.Warn(d.prefix, "unexpected %s timeout", source)

	switch d.state {
	case StateAdvertising, StateConnected, StateSecurityPending, StateSecured:
		d.handle = gap.InvalidHandle
		d.securityRequested = false
		d.role.Begin()
	default:
		// Nothing to re-arm; the timeout is logged and dropped
	}
}

// OnPairingRequest authorizes or rejects a pairing request per policy.
// Default policy authorizes everything.
func (d *Device) OnPairingRequest(handle gap.ConnectionHandle) {
	if !d.validHandle(handle, "pairing request") {
		return
	}

	if d.opts.AuthorizePairing != nil && !d.opts.AuthorizePairing(handle) {
		logger.Info(d.prefix, "pairing requested on handle %d, rejecting", handle)
		if err := d.stack.CancelPairingRequest(handle); err != nil {
			logger.Error(d.prefix, "cancelling pairing request: %v", err)
		}
		return
	}

	logger.Info(d.prefix, "pairing requested on handle %d, authorising", handle)
	if err := d.stack.AcceptPairingRequest(handle); err != nil {
		logger.Error(d.prefix, "accepting pairing request: %v", err)
	}
}

// OnPairingResult resolves the outstanding security request. Failure keeps
// the connection open; the peer may retry.
func (d *Device) OnPairingResult(handle gap.ConnectionHandle, outcome stack.PairingOutcome) {
	if !d.validHandle(handle, "pairing result") {
		return
	}

	d.securityRequested = false
	if outcome == stack.PairingSuccess {
		logger.Info(d.prefix, "pairing successful on handle %d", handle)
		d.setState(StateSecured)
	} else {
		logger.Warn(d.prefix, "pairing failed on handle %d, connection stays open", handle)
		d.setState(StateConnected)
	}
}

// OnLinkEncryptionResult is informational only; no transition hangs off it
func (d *Device) OnLinkEncryptionResult(handle gap.ConnectionHandle, status stack.EncryptionStatus) {
	if !d.validHandle(handle, "link encryption result") {
		return
	}
	logger.Info(d.prefix, "link %s on handle %d", status, handle)
}

// validHandle discards callbacks carrying a handle that no longer matches
// the tracked connection. Stale deliveries after a disconnect land here.
func (d *Device) validHandle(handle gap.ConnectionHandle, what string) bool {
	if d.handle == gap.InvalidHandle || handle != d.handle {
		logger.Debug(d.prefix, "stale %s for handle %d (current %d), discarding", what, handle, d.handle)
		return false
	}
	return true
}

func (d *Device) setState(s State) {
	if d.state == s {
		return
	}
	logger.Debug(d.prefix, "state %s -> %s", d.state, s)
	d.state = s
}

func (d *Device) heartbeat() {
	if d.opts.Heartbeat != nil {
		d.opts.Heartbeat(d.state)
		return
	}
	logger.Trace(d.prefix, "state=%s advertising=%v connected=%v",
		d.state, d.state == StateAdvertising, d.handle != gap.InvalidHandle)
}

var _ stack.EventHandler = (*Device)(nil)
