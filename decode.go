package ucsi

import (
	"fmt"

	"github.com/usbctools/go-ucsi/pd"
)

// bitReader extracts bit fields from a little endian byte stream, least
// significant bit first, matching the packed layout of UCSI data structures.
type bitReader struct {
	data []byte
	pos  int
}

func newBitReader(b []byte) *bitReader {
	return &bitReader{data: b}
}

// read returns the next n bits, n at most 32.
func (r *bitReader) read(n int) (uint32, error) {
	if r.pos+n > len(r.data)*8 {
		return 0, &ParseError{Field: "record", Value: fmt.Sprintf("%d bytes", len(r.data))}
	}
	var v uint32
	for i := 0; i < n; i++ {
		p := r.pos + i
		if r.data[p/8]&(1<<(p%8)) != 0 {
			v |= 1 << i
		}
	}
	r.pos += n
	return v, nil
}

func (r *bitReader) bit() (bool, error) {
	v, err := r.read(1)
	return v != 0, err
}

func (r *bitReader) skip(n int) {
	r.pos += n
}

// DecodeCapability decodes a raw platform capability record as returned by
// the GET_CAPABILITY command. The record is 16 bytes.
func DecodeCapability(b []byte) (Capability, error) {
	r := newBitReader(b)
	var c Capability
	v, err := r.read(32)
	if err != nil {
		return Capability{}, err
	}
	c.Attributes = CapabilityAttributes(v)
	n, err := r.read(7)
	if err != nil {
		return Capability{}, err
	}
	c.NumConnectors = int(n)
	r.skip(1)
	f, err := r.read(24)
	if err != nil {
		return Capability{}, err
	}
	c.OptionalFeatures = OptionalFeatures(f)
	m, err := r.read(8)
	if err != nil {
		return Capability{}, err
	}
	c.NumAltModes = int(m)
	r.skip(8)
	for _, dst := range []*pd.Revision{&c.BCVersion, &c.PDVersion, &c.TypeCVersion} {
		v, err := r.read(16)
		if err != nil {
			return Capability{}, err
		}
		*dst = pd.Revision(v)
	}
	return c, nil
}

// DecodeConnectorCapability decodes a raw connector capability record as
// returned by the GET_CONNECTOR_CAPABILITY command.
func DecodeConnectorCapability(b []byte) (ConnectorCapability, error) {
	r := newBitReader(b)
	var c ConnectorCapability
	v, err := r.read(8)
	if err != nil {
		return ConnectorCapability{}, err
	}
	c.OperationMode = OperationMode(v)
	for _, dst := range []*bool{
		&c.Provider, &c.Consumer,
		&c.SwapToDFP, &c.SwapToUFP, &c.SwapToSrc, &c.SwapToSnk,
	} {
		bit, err := r.bit()
		if err != nil {
			return ConnectorCapability{}, err
		}
		*dst = bit
	}
	r.skip(2)
	e, err := r.read(8)
	if err != nil {
		return ConnectorCapability{}, err
	}
	if e > uint32(ExtendedModeUSB4Gen4) {
		return ConnectorCapability{}, &ParseError{Field: "extended_operation_mode", Value: fmt.Sprintf("%#x", e)}
	}
	c.ExtendedOperationMode = ExtendedOperationMode(e)
	m, err := r.read(4)
	if err != nil {
		return ConnectorCapability{}, err
	}
	if MiscCapabilities(m)&^(MiscCapFWUpdate|MiscCapSecurity) != 0 {
		return ConnectorCapability{}, &ParseError{Field: "miscellaneous_capabilities", Value: fmt.Sprintf("%#x", m)}
	}
	c.MiscCapabilities = MiscCapabilities(m)
	rcp, err := r.bit()
	if err != nil {
		return ConnectorCapability{}, err
	}
	c.ReverseCurrentProtection = rcp
	p, err := r.read(2)
	if err != nil {
		return ConnectorCapability{}, err
	}
	c.PartnerPDRevision = uint8(p)
	return c, nil
}

// DecodeCableProperty decodes a raw cable property record as returned by the
// GET_CABLE_PROPERTY command.
func DecodeCableProperty(b []byte) (CableProperty, error) {
	r := newBitReader(b)
	var c CableProperty
	e, err := r.read(2)
	if err != nil {
		return CableProperty{}, err
	}
	c.SpeedExponent = SpeedExponent(e)
	m, err := r.read(14)
	if err != nil {
		return CableProperty{}, err
	}
	c.SpeedMantissa = uint16(m)
	cur, err := r.read(8)
	if err != nil {
		return CableProperty{}, err
	}
	c.CurrentCapability = uint16(cur) * 50
	vbus, err := r.bit()
	if err != nil {
		return CableProperty{}, err
	}
	c.VBusInCable = vbus
	active, err := r.bit()
	if err != nil {
		return CableProperty{}, err
	}
	if active {
		c.CableType = CableTypeActive
	}
	dir, err := r.bit()
	if err != nil {
		return CableProperty{}, err
	}
	c.Directionality = dir
	p, err := r.read(2)
	if err != nil {
		return CableProperty{}, err
	}
	c.PlugEndType = PlugEndType(p)
	mode, err := r.bit()
	if err != nil {
		return CableProperty{}, err
	}
	c.ModeSupport = mode
	rev, err := r.read(2)
	if err != nil {
		return CableProperty{}, err
	}
	c.PDRevision = uint8(rev)
	lat, err := r.read(4)
	if err != nil {
		return CableProperty{}, err
	}
	c.Latency = uint8(lat)
	return c, nil
}

// DecodeAlternateModes decodes the alternate mode pairs in a raw response.
// Each entry is a 16 bit SVID followed by a 32 bit mode VDO; an entry with a
// zero SVID terminates the list.
func DecodeAlternateModes(b []byte) ([]AlternateMode, error) {
	r := newBitReader(b)
	var modes []AlternateMode
	for r.pos+48 <= len(b)*8 {
		svid, err := r.read(16)
		if err != nil {
			return nil, err
		}
		if svid == 0 {
			break
		}
		vdo, err := r.read(32)
		if err != nil {
			return nil, err
		}
		modes = append(modes, AlternateMode{SVID: uint16(svid), VDO: vdo})
	}
	return modes, nil
}
