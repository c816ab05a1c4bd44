// Package stack defines the contract between the pairing orchestration core
// and the radio stack that owns the link layer, GATT table and the
// cryptographic pairing procedures. Calls return immediately; results and
// peer activity arrive later through the registered EventHandler, always on
// the device's dispatch queue.
package stack

import (
	"errors"

	"github.com/user/blesm/gap"
)

// SecurityLevel is the link security requested for a connection
type SecurityLevel int

const (
	SecurityNone SecurityLevel = iota
	SecurityEncryptionNoMITM
	SecurityEncryptionWithMITM
)

func (l SecurityLevel) String() string {
	switch l {
	case SecurityNone:
		return "NO_SECURITY"
	case SecurityEncryptionNoMITM:
		return "ENCRYPTION_NO_MITM"
	case SecurityEncryptionWithMITM:
		return "ENCRYPTION_WITH_MITM"
	default:
		return "UNKNOWN"
	}
}

// PairingOutcome is the terminal result of a pairing procedure
type PairingOutcome int

const (
	PairingSuccess PairingOutcome = iota
	PairingFailure
)

func (o PairingOutcome) String() string {
	if o == PairingSuccess {
		return "SUCCESS"
	}
	return "FAILURE"
}

// EncryptionStatus reports the encryption state of a link after a
// security procedure. Informational; the core logs it without gating
// further behavior on it.
type EncryptionStatus int

const (
	NotEncrypted EncryptionStatus = iota
	Encrypted
	EncryptedWithMITM
)

func (s EncryptionStatus) String() string {
	switch s {
	case NotEncrypted:
		return "NOT_ENCRYPTED"
	case Encrypted:
		return "ENCRYPTED"
	case EncryptedWithMITM:
		return "ENCRYPTED_WITH_MITM"
	default:
		return "UNKNOWN"
	}
}

// Errors returned by facade calls. Each aborts only the current attempt;
// the stack stays usable for future calls.
var (
	ErrNotInitialized     = errors.New("stack: not initialized")
	ErrAlreadyInitialized = errors.New("stack: already initialized")
	ErrInvalidHandle      = errors.New("stack: invalid connection handle")
	ErrNoPayload          = errors.New("stack: no advertising payload set")
	ErrAlreadyAdvertising = errors.New("stack: already advertising")
	ErrSecurityBusy       = errors.New("stack: security request already in flight")
	ErrNoPairingRequest   = errors.New("stack: no pairing request pending")
	ErrUnsupported        = errors.New("stack: operation not supported")
)

// EventHandler receives stack events. All callbacks are delivered on the
// device's dispatch queue, one at a time, in the order the stack raised
// them. Handlers must not block.
type EventHandler interface {
	// OnInitComplete fires once after Init; a non-nil error is fatal
	OnInitComplete(err error)
	// OnConnection fires when a peer connects
	OnConnection(handle gap.ConnectionHandle)
	// OnDisconnection fires when the connection ends; the handle is dead afterwards
	OnDisconnection(handle gap.ConnectionHandle, reason gap.DisconnectReason)
	// OnTimeout fires when a GAP procedure times out
	OnTimeout(source gap.TimeoutSource)
	// OnPairingRequest asks the application to authorize or reject pairing
	OnPairingRequest(handle gap.ConnectionHandle)
	// OnPairingResult delivers the outcome of a pairing procedure
	OnPairingResult(handle gap.ConnectionHandle, outcome PairingOutcome)
	// OnLinkEncryptionResult reports the link's encryption state
	OnLinkEncryptionResult(handle gap.ConnectionHandle, status EncryptionStatus)
}

// Stack is the narrow asynchronous interface the core consumes. Init,
// pairing and security operations complete via EventHandler callbacks;
// the immediate error covers only call admission.
type Stack interface {
	// SetEventHandler registers the event sink. Must be called before Init.
	SetEventHandler(h EventHandler)

	// Init starts stack initialization; completion arrives via OnInitComplete
	Init() error

	// SetAdvertisingPayload stages the payload used by StartAdvertising
	SetAdvertisingPayload(payload *gap.AdvertisingData) error

	// StartAdvertising begins advertising with the staged payload
	StartAdvertising(params gap.AdvParams) error

	// SetPairingRequestAuthorisation controls whether each pairing request
	// must be explicitly authorized via OnPairingRequest. When false the
	// stack accepts pairing on its own.
	SetPairingRequestAuthorisation(required bool) error

	// SetLinkSecurity requests elevation of the link to the given level.
	// At most one request may be outstanding per connection.
	SetLinkSecurity(handle gap.ConnectionHandle, level SecurityLevel) error

	// AcceptPairingRequest authorizes a pending pairing request
	AcceptPairingRequest(handle gap.ConnectionHandle) error

	// CancelPairingRequest rejects a pending pairing request
	CancelPairingRequest(handle gap.ConnectionHandle) error

	// Address returns the device's own address (synchronous, informational)
	Address() (gap.AddressType, gap.Address)

	// Shutdown tears the stack down; no events are delivered afterwards
	Shutdown() error
}
