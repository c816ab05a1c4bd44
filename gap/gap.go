// Package gap holds the GAP-level types shared between the orchestration
// core and the radio stack facade: connection handles, device addresses,
// advertising parameters and the AD payload format.
package gap

import "fmt"

// ConnectionHandle identifies one active connection. Zero means no
// connection; a handle is only meaningful between the connection event
// and the matching disconnection.
type ConnectionHandle uint16

// InvalidHandle is the zero handle, never assigned to a live connection
const InvalidHandle ConnectionHandle = 0

// AdvertisingType selects how the device advertises
type AdvertisingType int

const (
	AdvConnectableUndirected AdvertisingType = iota // connectable, any central may connect
	AdvConnectableDirected                          // connectable, targeted at one peer
	AdvScannableUndirected                          // scannable but not connectable
	AdvNonConnectableUndirected
)

func (t AdvertisingType) String() string {
	switch t {
	case AdvConnectableUndirected:
		return "ADV_CONNECTABLE_UNDIRECTED"
	case AdvConnectableDirected:
		return "ADV_CONNECTABLE_DIRECTED"
	case AdvScannableUndirected:
		return "ADV_SCANNABLE_UNDIRECTED"
	case AdvNonConnectableUndirected:
		return "ADV_NON_CONNECTABLE_UNDIRECTED"
	default:
		return fmt.Sprintf("AdvertisingType(%d)", int(t))
	}
}

// TimeoutSource names the GAP procedure a timeout event came from
type TimeoutSource int

const (
	TimeoutAdvertising TimeoutSource = iota
	TimeoutScan
	TimeoutConnection
	TimeoutSecurityRequest
)

func (s TimeoutSource) String() string {
	switch s {
	case TimeoutAdvertising:
		return "advertising"
	case TimeoutScan:
		return "scan"
	case TimeoutConnection:
		return "connection"
	case TimeoutSecurityRequest:
		return "security request"
	default:
		return fmt.Sprintf("TimeoutSource(%d)", int(s))
	}
}

// DisconnectReason carries the HCI reason code reported on disconnection
type DisconnectReason byte

const (
	ReasonAuthenticationFailure       DisconnectReason = 0x05
	ReasonConnectionTimeout           DisconnectReason = 0x08
	ReasonRemoteUserTerminated        DisconnectReason = 0x13
	ReasonLocalHostTerminated         DisconnectReason = 0x16
	ReasonConnectionFailedToEstablish DisconnectReason = 0x3E
)

// AddressType distinguishes public from random device addresses
type AddressType int

const (
	AddressPublic AddressType = iota
	AddressRandomStatic
)

// Address is a 6-byte Bluetooth device address
type Address [6]byte

// String formats the address most-significant byte first, colon separated
func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		a[5], a[4], a[3], a[2], a[1], a[0])
}

// AdvParams bundles the advertising parameters handed to the stack
type AdvParams struct {
	Type       AdvertisingType
	IntervalMs int // milliseconds between advertisements
	TimeoutS   int // seconds before advertising stops on its own, 0 = never
}
