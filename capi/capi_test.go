package capi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ucsi "github.com/usbctools/go-ucsi"
	"github.com/usbctools/go-ucsi/pd"
)

type stubBackend struct {
	caps ucsi.Capability
	pdos []pd.PDO
}

func (s *stubBackend) ConnectorCount() (int, error) { return s.caps.NumConnectors, nil }

func (s *stubBackend) Capabilities() (ucsi.Capability, error) { return s.caps, nil }

func (s *stubBackend) ConnectorCapability(int) (ucsi.ConnectorCapability, error) {
	return ucsi.ConnectorCapability{Provider: true, OperationMode: ucsi.OperationModeRpOnly}, nil
}

func (s *stubBackend) CableProperty(int) (ucsi.CableProperty, error) {
	return ucsi.CableProperty{}, fmt.Errorf("%w: no cable", ucsi.ErrNotSupported)
}

func (s *stubBackend) AlternateModes(ucsi.AltModeRecipient, int) ([]ucsi.AlternateMode, error) {
	return []ucsi.AlternateMode{{SVID: 0xff01, VDO: 0x405}}, nil
}

func (s *stubBackend) ConnectorStatus(int) (ucsi.ConnectorStatus, error) {
	return ucsi.ConnectorStatus{Connected: true}, nil
}

func (s *stubBackend) PDMessage(int, pd.MessageRecipient, pd.MessageResponseType) (pd.Message, error) {
	return pd.Message{}, fmt.Errorf("%w: no identity", ucsi.ErrNotSupported)
}

func (s *stubBackend) PDOs(int, bool, int, int, ucsi.PDOType, ucsi.SourceCapabilitiesType, pd.Revision) ([]pd.PDO, error) {
	return s.pdos, nil
}

func (s *stubBackend) Close() error { return nil }

func newStubHandle() Handle {
	b := &stubBackend{
		caps: ucsi.Capability{NumConnectors: 1, PDVersion: pd.Revision30},
		pdos: []pd.PDO{{Kind: pd.KindFixedSupply, Fixed: pd.FixedSupply{
			DualRolePower: true,
			Voltage:       5000,
			MaxCurrent:    3000,
		}}},
	}
	return WrapSession(ucsi.NewSession(b))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusOK, StatusFor(nil))
	assert.Equal(t, StatusNotSupported, StatusFor(ucsi.ErrNotSupported))
	assert.Equal(t, StatusNotSupported, StatusFor(fmt.Errorf("wrapped: %w", ucsi.ErrNotSupported)))
	assert.Equal(t, StatusInvalidIndex, StatusFor(ucsi.ErrInvalidIndex))
	assert.Equal(t, StatusTimedOut, StatusFor(ucsi.ErrTimeout))
	assert.Equal(t, StatusParse, StatusFor(&ucsi.ParseError{Field: "x", Value: "y"}))
	assert.Equal(t, StatusParse, StatusFor(pd.ErrUnknownRevision))
	assert.Equal(t, StatusIO, StatusFor(fmt.Errorf("disk on fire")))
}

func TestGetCapability(t *testing.T) {
	h := newStubHandle()
	defer DestroySession(h)

	var c Capability
	st := GetCapability(h, &c)
	require.Equal(t, StatusOK, st)
	assert.Equal(t, uint32(1), c.NumConnectors)
	assert.Equal(t, uint16(pd.Revision30), c.PDVersion)
}

func TestGetPDOs(t *testing.T) {
	h := newStubHandle()
	defer DestroySession(h)

	var arr PDOArray
	st := GetPDOs(h, 0, false, 0, 0, int32(ucsi.PDOSource), int32(ucsi.CurrentSupportedSourceCapabilities), 0, &arr)
	require.Equal(t, StatusOK, st)
	require.Equal(t, uint32(1), arr.Count)
	assert.NotZero(t, arr.MemSize)

	p := arr.At(0)
	assert.Equal(t, int32(pd.KindFixedSupply), p.Kind)
	assert.Equal(t, uint32(5000), p.Voltage)
	assert.Equal(t, uint32(3000), p.Current)
	assert.NotZero(t, p.Flags&PDOFlagDualRolePower)
}

func TestGetPDOsInvalidIndex(t *testing.T) {
	h := newStubHandle()
	defer DestroySession(h)

	arr := PDOArray{Count: 99, MemSize: 99}
	st := GetPDOs(h, 5, false, 0, 0, 0, 0, 0, &arr)
	assert.Equal(t, StatusInvalidIndex, st)
	// Failed calls zero the out parameter.
	assert.Equal(t, PDOArray{}, arr)
}

func TestDestroyArraysIdempotent(t *testing.T) {
	h := newStubHandle()
	defer DestroySession(h)

	var arr PDOArray
	require.Equal(t, StatusOK, GetPDOs(h, 0, false, 0, 0, 0, 0, 0, &arr))
	DestroyPDOArray(&arr)
	assert.Equal(t, PDOArray{}, arr)
	// Releasing again, or a never filled value, is a no-op.
	DestroyPDOArray(&arr)
	DestroyPDOArray(nil)

	var modes AltModeArray
	require.Equal(t, StatusOK, GetAlternateModes(h, int32(ucsi.RecipientSOP), 0, &modes))
	assert.Equal(t, uint32(1), modes.Count)
	DestroyAltModeArray(&modes)
	DestroyAltModeArray(&modes)
}

func TestNotSupportedMapsToStatus(t *testing.T) {
	h := newStubHandle()
	defer DestroySession(h)

	var cp CableProperty
	assert.Equal(t, StatusNotSupported, GetCableProperty(h, 0, &cp))
	assert.Equal(t, CableProperty{}, cp)

	var msg PDMessage
	assert.Equal(t, StatusNotSupported, GetPDMessage(h, 0, int32(pd.RecipientSOP), int32(pd.ResponseDiscoverIdentity), &msg))
}

func TestSessionLifecycle(t *testing.T) {
	h := newStubHandle()

	var c Capability
	require.Equal(t, StatusOK, GetCapability(h, &c))

	DestroySession(h)
	assert.Equal(t, StatusInvalidIndex, GetCapability(h, &c))

	// Destroying a dead or bogus handle is a no-op.
	DestroySession(h)
	DestroySession(Handle(0xdead))
}
