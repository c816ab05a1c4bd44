package smdevice

import (
	"github.com/user/blesm/gap"
	"github.com/user/blesm/stack"
)

type securityCall struct {
	handle gap.ConnectionHandle
	level  stack.SecurityLevel
}

// mockStack records every facade call and lets tests inject errors and
// raise events by driving the registered handler directly.
type mockStack struct {
	handler stack.EventHandler

	initErr     error
	payloadErr  error
	advErr      error
	securityErr error

	initCalls    int
	payload      *gap.AdvertisingData
	payloadCalls int
	params       gap.AdvParams
	advCalls     int
	authRequired []bool
	security     []securityCall
	accepted     []gap.ConnectionHandle
	cancelled    []gap.ConnectionHandle
	shutdowns    int
}

func newMockStack() *mockStack {
	return &mockStack{}
}

func (m *mockStack) SetEventHandler(h stack.EventHandler) { m.handler = h }

func (m *mockStack) Init() error {
	m.initCalls++
	return m.initErr
}

func (m *mockStack) SetAdvertisingPayload(payload *gap.AdvertisingData) error {
	if m.payloadErr != nil {
		return m.payloadErr
	}
	m.payload = payload
	m.payloadCalls++
	return nil
}

func (m *mockStack) StartAdvertising(params gap.AdvParams) error {
	if m.advErr != nil {
		return m.advErr
	}
	m.params = params
	m.advCalls++
	return nil
}

func (m *mockStack) SetPairingRequestAuthorisation(required bool) error {
	m.authRequired = append(m.authRequired, required)
	return nil
}

func (m *mockStack) SetLinkSecurity(handle gap.ConnectionHandle, level stack.SecurityLevel) error {
	if m.securityErr != nil {
		return m.securityErr
	}
	m.security = append(m.security, securityCall{handle, level})
	return nil
}

func (m *mockStack) AcceptPairingRequest(handle gap.ConnectionHandle) error {
	m.accepted = append(m.accepted, handle)
	return nil
}

func (m *mockStack) CancelPairingRequest(handle gap.ConnectionHandle) error {
	m.cancelled = append(m.cancelled, handle)
	return nil
}

func (m *mockStack) Address() (gap.AddressType, gap.Address) {
	return gap.AddressPublic, gap.Address{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
}

func (m *mockStack) Shutdown() error {
	m.shutdowns++
	return nil
}

var _ stack.Stack = (*mockStack)(nil)
