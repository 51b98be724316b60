// Package capi is a C style boundary over the session layer: flat integer
// records, negative errno status codes, opaque session handles and
// allocate/describe/release triples for array results. It is the surface a
// foreign function binding wraps.
package capi

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/charlesren/ylog"

	ucsi "github.com/usbctools/go-ucsi"
	"github.com/usbctools/go-ucsi/backends"
	"github.com/usbctools/go-ucsi/pd"
)

const logModule = "CApi"

// Status is a result code. Zero is success; failures are negative errno
// values.
type Status int32

// Status codes.
const (
	StatusOK           Status = 0
	StatusNotSupported Status = -95
	StatusInvalidIndex Status = -22
	StatusIO           Status = -5
	StatusParse        Status = -71
	StatusTimedOut     Status = -110
)

// StatusFor maps an error from the session layer to a status code.
func StatusFor(err error) Status {
	var pe *ucsi.ParseError
	var pdPE *pd.ParseError
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ucsi.ErrNotSupported):
		return StatusNotSupported
	case errors.Is(err, ucsi.ErrInvalidIndex):
		return StatusInvalidIndex
	case errors.Is(err, ucsi.ErrTimeout):
		return StatusTimedOut
	case errors.As(err, &pe), errors.As(err, &pdPE), errors.Is(err, pd.ErrUnknownRevision):
		return StatusParse
	default:
		return StatusIO
	}
}

// Handle identifies an open session. The zero handle is never valid.
type Handle uint64

var sessions = struct {
	sync.Mutex
	m    map[Handle]*ucsi.Session
	next Handle
}{m: map[Handle]*ucsi.Session{}}

// CreateSession opens a backend of the given kind and returns a handle to a
// session over it. A nil cfg uses defaults.
func CreateSession(kind ucsi.BackendKind, cfg *ucsi.Config) (Handle, Status) {
	b, err := backends.Open(kind, cfg)
	if err != nil {
		ylog.Warnf(logModule, "create session on %s: %v", kind, err)
		return 0, StatusFor(err)
	}
	ylog.Infof(logModule, "session opened on %s backend", kind)
	return WrapSession(ucsi.NewSession(b)), StatusOK
}

// WrapSession registers an existing session and returns its handle.
func WrapSession(s *ucsi.Session) Handle {
	sessions.Lock()
	defer sessions.Unlock()
	sessions.next++
	h := sessions.next
	sessions.m[h] = s
	return h
}

// DestroySession closes the session and invalidates its handle. Destroying
// an unknown or already destroyed handle is a no-op.
func DestroySession(h Handle) {
	sessions.Lock()
	s, ok := sessions.m[h]
	delete(sessions.m, h)
	sessions.Unlock()
	if ok {
		s.Close()
		ylog.Infof(logModule, "session %d destroyed", h)
	}
}

func lookup(h Handle) (*ucsi.Session, Status) {
	sessions.Lock()
	defer sessions.Unlock()
	s, ok := sessions.m[h]
	if !ok {
		return nil, StatusInvalidIndex
	}
	return s, StatusOK
}

// Capability is the flat form of ucsi.Capability.
type Capability struct {
	Attributes       uint32
	NumConnectors    uint32
	OptionalFeatures uint32
	NumAltModes      uint32
	BCVersion        uint16
	PDVersion        uint16
	TypeCVersion     uint16
}

// GetCapability fills out with the platform capability record.
func GetCapability(h Handle, out *Capability) Status {
	*out = Capability{}
	s, st := lookup(h)
	if st != StatusOK {
		return st
	}
	c, err := s.Capabilities()
	if err != nil {
		return StatusFor(err)
	}
	*out = Capability{
		Attributes:       uint32(c.Attributes),
		NumConnectors:    uint32(c.NumConnectors),
		OptionalFeatures: uint32(c.OptionalFeatures),
		NumAltModes:      uint32(c.NumAltModes),
		BCVersion:        uint16(c.BCVersion),
		PDVersion:        uint16(c.PDVersion),
		TypeCVersion:     uint16(c.TypeCVersion),
	}
	return StatusOK
}

// ConnectorCapability is the flat form of ucsi.ConnectorCapability. Boolean
// fields are 0 or 1.
type ConnectorCapability struct {
	OperationMode            uint8
	Provider                 uint8
	Consumer                 uint8
	SwapToDFP                uint8
	SwapToUFP                uint8
	SwapToSrc                uint8
	SwapToSnk                uint8
	ExtendedOperationMode    uint8
	MiscCapabilities         uint8
	ReverseCurrentProtection uint8
	PartnerPDRevision        uint8
}

// GetConnectorCapability fills out with the capabilities of a connector.
func GetConnectorCapability(h Handle, connector int32, out *ConnectorCapability) Status {
	*out = ConnectorCapability{}
	s, st := lookup(h)
	if st != StatusOK {
		return st
	}
	c, err := s.ConnectorCapability(int(connector))
	if err != nil {
		return StatusFor(err)
	}
	*out = ConnectorCapability{
		OperationMode:            uint8(c.OperationMode),
		Provider:                 flag(c.Provider),
		Consumer:                 flag(c.Consumer),
		SwapToDFP:                flag(c.SwapToDFP),
		SwapToUFP:                flag(c.SwapToUFP),
		SwapToSrc:                flag(c.SwapToSrc),
		SwapToSnk:                flag(c.SwapToSnk),
		ExtendedOperationMode:    uint8(c.ExtendedOperationMode),
		MiscCapabilities:         uint8(c.MiscCapabilities),
		ReverseCurrentProtection: flag(c.ReverseCurrentProtection),
		PartnerPDRevision:        c.PartnerPDRevision,
	}
	return StatusOK
}

// CableProperty is the flat form of ucsi.CableProperty.
type CableProperty struct {
	SpeedExponent     uint8
	SpeedMantissa     uint16
	CurrentCapability uint16
	VBusInCable       uint8
	CableType         uint8
	Directionality    uint8
	PlugEndType       uint8
	ModeSupport       uint8
	PDRevision        uint8
	Latency           uint8
}

// GetCableProperty fills out with the cable attached to a connector.
func GetCableProperty(h Handle, connector int32, out *CableProperty) Status {
	*out = CableProperty{}
	s, st := lookup(h)
	if st != StatusOK {
		return st
	}
	c, err := s.CableProperty(int(connector))
	if err != nil {
		return StatusFor(err)
	}
	*out = CableProperty{
		SpeedExponent:     uint8(c.SpeedExponent),
		SpeedMantissa:     c.SpeedMantissa,
		CurrentCapability: c.CurrentCapability,
		VBusInCable:       flag(c.VBusInCable),
		CableType:         uint8(c.CableType),
		Directionality:    flag(c.Directionality),
		PlugEndType:       uint8(c.PlugEndType),
		ModeSupport:       flag(c.ModeSupport),
		PDRevision:        c.PDRevision,
		Latency:           c.Latency,
	}
	return StatusOK
}

// ConnectorStatus is the flat form of ucsi.ConnectorStatus.
type ConnectorStatus struct {
	Connected            uint8
	PowerDirection       uint8
	NegotiatedPowerLevel uint32
}

// GetConnectorStatus fills out with a snapshot of a connector's state.
func GetConnectorStatus(h Handle, connector int32, out *ConnectorStatus) Status {
	*out = ConnectorStatus{}
	s, st := lookup(h)
	if st != StatusOK {
		return st
	}
	c, err := s.ConnectorStatus(int(connector))
	if err != nil {
		return StatusFor(err)
	}
	*out = ConnectorStatus{
		Connected:            flag(c.Connected),
		PowerDirection:       uint8(c.PowerDirection),
		NegotiatedPowerLevel: c.NegotiatedPowerLevel,
	}
	return StatusOK
}

// AlternateMode is the flat form of ucsi.AlternateMode.
type AlternateMode struct {
	SVID uint32
	VDO  uint32
}

// AltModeArray is an owned array of alternate modes. Release it with
// DestroyAltModeArray when done; MemSize reports the bytes backing the
// items.
type AltModeArray struct {
	items   []AlternateMode
	Count   uint32
	MemSize uint32
}

// At returns the i'th item.
func (a *AltModeArray) At(i int) AlternateMode {
	return a.items[i]
}

// GetAlternateModes fills out with the alternate modes of the given
// recipient on a connector.
func GetAlternateModes(h Handle, recipient int32, connector int32, out *AltModeArray) Status {
	*out = AltModeArray{}
	s, st := lookup(h)
	if st != StatusOK {
		return st
	}
	modes, err := s.AlternateModes(ucsi.AltModeRecipient(recipient), int(connector))
	if err != nil {
		return StatusFor(err)
	}
	items := make([]AlternateMode, len(modes))
	for i, m := range modes {
		items[i] = AlternateMode{SVID: uint32(m.SVID), VDO: m.VDO}
	}
	*out = AltModeArray{
		items:   items,
		Count:   uint32(len(items)),
		MemSize: uint32(uintptr(len(items)) * unsafe.Sizeof(AlternateMode{})),
	}
	return StatusOK
}

// DestroyAltModeArray releases the array. Destroying a zero or already
// destroyed array is a no-op.
func DestroyAltModeArray(a *AltModeArray) {
	if a == nil {
		return
	}
	*a = AltModeArray{}
}

// PDO is the flat form of pd.PDO. Voltages are in millivolts, currents in
// milliamps and power in milliwatts; fields not applicable to Kind are zero.
type PDO struct {
	Kind         int32
	Flags        uint32
	FastRoleSwap uint32
	Voltage      uint32
	MinVoltage   uint32
	MaxVoltage   uint32
	Current      uint32
	Power        uint32
	PeakCurrent  uint32
}

// Flag bits of PDO.Flags for fixed supply objects.
const (
	PDOFlagDualRolePower            = 1 << 0
	PDOFlagHigherCapability         = 1 << 1
	PDOFlagUnconstrainedPower       = 1 << 2
	PDOFlagUSBCommunicationsCapable = 1 << 3
	PDOFlagDualRoleData             = 1 << 4
	PDOFlagPowerLimited             = 1 << 5
)

// PDOArray is an owned array of power data objects. Release it with
// DestroyPDOArray when done.
type PDOArray struct {
	items   []PDO
	Count   uint32
	MemSize uint32
}

// At returns the i'th item.
func (a *PDOArray) At(i int) PDO {
	return a.items[i]
}

// GetPDOs fills out with decoded power data objects. revision is the BCD
// PD revision to decode against, zero for the platform's own.
func GetPDOs(h Handle, connector int32, partner bool, offset, count int32, pdoType, sourceCaps int32, revision uint16, out *PDOArray) Status {
	*out = PDOArray{}
	s, st := lookup(h)
	if st != StatusOK {
		return st
	}
	pdos, err := s.PDOs(int(connector), partner, int(offset), int(count),
		ucsi.PDOType(pdoType), ucsi.SourceCapabilitiesType(sourceCaps), pd.Revision(revision))
	if err != nil {
		return StatusFor(err)
	}
	items := make([]PDO, len(pdos))
	for i, p := range pdos {
		items[i] = flattenPDO(p)
	}
	*out = PDOArray{
		items:   items,
		Count:   uint32(len(items)),
		MemSize: uint32(uintptr(len(items)) * unsafe.Sizeof(PDO{})),
	}
	return StatusOK
}

func flattenPDO(p pd.PDO) PDO {
	out := PDO{Kind: int32(p.Kind)}
	switch p.Kind {
	case pd.KindFixedSupply:
		f := p.Fixed
		if f.DualRolePower {
			out.Flags |= PDOFlagDualRolePower
		}
		if f.HigherCapability {
			out.Flags |= PDOFlagHigherCapability
		}
		if f.UnconstrainedPower {
			out.Flags |= PDOFlagUnconstrainedPower
		}
		if f.USBCommunicationsCapable {
			out.Flags |= PDOFlagUSBCommunicationsCapable
		}
		if f.DualRoleData {
			out.Flags |= PDOFlagDualRoleData
		}
		out.FastRoleSwap = uint32(f.FastRoleSwap)
		out.Voltage = uint32(f.Voltage)
		out.Current = uint32(f.MaxCurrent)
	case pd.KindBattery:
		out.MaxVoltage = uint32(p.Battery.MaxVoltage)
		out.MinVoltage = uint32(p.Battery.MinVoltage)
		out.Power = p.Battery.MaxPower
	case pd.KindVariableSupply:
		out.MaxVoltage = uint32(p.Variable.MaxVoltage)
		out.MinVoltage = uint32(p.Variable.MinVoltage)
		out.Current = uint32(p.Variable.MaxCurrent)
	case pd.KindPPS:
		if p.PPS.PowerLimited {
			out.Flags |= PDOFlagPowerLimited
		}
		out.MaxVoltage = uint32(p.PPS.MaxVoltage)
		out.MinVoltage = uint32(p.PPS.MinVoltage)
		out.Current = uint32(p.PPS.MaxCurrent)
	case pd.KindEPRAVS:
		out.PeakCurrent = uint32(p.EPRAVS.PeakCurrent)
		out.MaxVoltage = uint32(p.EPRAVS.MaxVoltage)
		out.MinVoltage = uint32(p.EPRAVS.MinVoltage)
		out.Power = p.EPRAVS.PDPower
	}
	return out
}

// DestroyPDOArray releases the array. Destroying a zero or already destroyed
// array is a no-op.
func DestroyPDOArray(a *PDOArray) {
	if a == nil {
		return
	}
	*a = PDOArray{}
}

// PDMessage is the flat form of a discover identity response.
type PDMessage struct {
	Recipient       int32
	ResponseType    int32
	VDMHeader       uint32
	IDHeader        uint32
	CertStatXID     uint32
	ProductID       uint16
	DeviceVersion   uint16
	ProductTypeVDO1 uint32
	ProductTypeVDO2 uint32
	ProductTypeVDO3 uint32
}

// GetPDMessage fills out with a PD message response from the given
// recipient.
func GetPDMessage(h Handle, connector, recipient, responseType int32, out *PDMessage) Status {
	*out = PDMessage{}
	s, st := lookup(h)
	if st != StatusOK {
		return st
	}
	msg, err := s.PDMessage(int(connector), pd.MessageRecipient(recipient), pd.MessageResponseType(responseType))
	if err != nil {
		return StatusFor(err)
	}
	*out = PDMessage{
		Recipient:       int32(msg.Recipient),
		ResponseType:    int32(msg.ResponseType),
		VDMHeader:       uint32(msg.Identity.Header),
		IDHeader:        msg.Identity.IDHeader.Word(),
		CertStatXID:     msg.Identity.CertStat.XID,
		ProductID:       msg.Identity.Product.ProductID,
		DeviceVersion:   msg.Identity.Product.Device,
		ProductTypeVDO1: msg.Identity.ProductTypeVDOs[0],
		ProductTypeVDO2: msg.Identity.ProductTypeVDOs[1],
		ProductTypeVDO3: msg.Identity.ProductTypeVDOs[2],
	}
	return StatusOK
}

func flag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
