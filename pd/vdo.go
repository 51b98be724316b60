package pd

import "fmt"

// MessageRecipient identifies which end of the link a PD message targets.
type MessageRecipient uint8

// Message recipients. SOPPrime and SOPDoublePrime address the cable plugs
// near and far end respectively.
const (
	RecipientConnector MessageRecipient = iota
	RecipientSOP
	RecipientSOPPrime
	RecipientSOPDoublePrime
)

func (r MessageRecipient) String() string {
	switch r {
	case RecipientConnector:
		return "connector"
	case RecipientSOP:
		return "sop"
	case RecipientSOPPrime:
		return "sop'"
	case RecipientSOPDoublePrime:
		return "sop''"
	}
	return fmt.Sprintf("recipient(%d)", uint8(r))
}

// MessageResponseType identifies which PD message response is requested.
type MessageResponseType uint8

// Message response types.
const (
	ResponseSinkCapabilitiesExtended MessageResponseType = iota
	ResponseSourceCapabilitiesExtended
	ResponseBatteryCapabilities
	ResponseBatteryStatus
	ResponseDiscoverIdentity
	ResponseRevision
)

func (t MessageResponseType) String() string {
	switch t {
	case ResponseSinkCapabilitiesExtended:
		return "sink_capabilities_extended"
	case ResponseSourceCapabilitiesExtended:
		return "source_capabilities_extended"
	case ResponseBatteryCapabilities:
		return "battery_capabilities"
	case ResponseBatteryStatus:
		return "battery_status"
	case ResponseDiscoverIdentity:
		return "discover_identity"
	case ResponseRevision:
		return "revision"
	}
	return fmt.Sprintf("response_type(%d)", uint8(t))
}

// Message is a decoded PD message response. Only ResponseDiscoverIdentity
// carries a payload, held in Identity; other response types have no decoded
// representation yet.
type Message struct {
	Recipient    MessageRecipient
	ResponseType MessageResponseType
	Identity     DiscoverIdentity
}

// DiscoverIdentity is the response to a Discover Identity command.
type DiscoverIdentity struct {
	Header   VDMHeader
	IDHeader IDHeader
	CertStat CertStat
	Product  Product

	// ProductTypeVDOs carry product type specific data whose layout
	// depends on IDHeader's product type fields.
	ProductTypeVDOs [3]uint32
}

// VDMHeader is the raw word of a vendor defined message header.
type VDMHeader uint32

// SVID returns the standard or vendor ID.
func (h VDMHeader) SVID() uint16 { return uint16(h >> 16) }

// SetSVID sets the standard or vendor ID.
func (h *VDMHeader) SetSVID(v uint16) {
	*h = (*h & 0xffff) | VDMHeader(v)<<16
}

// Structured returns true if this is a structured VDM.
func (h VDMHeader) Structured() bool { return h&(1<<15) != 0 }

// Version returns the structured VDM version, major in the high nibble.
func (h VDMHeader) Version() uint8 {
	return uint8((h>>13)&0b11)<<4 | uint8((h>>11)&0b11)
}

// ObjectPosition returns the object position field.
func (h VDMHeader) ObjectPosition() uint8 { return uint8((h >> 8) & 0b111) }

// CommandType returns the command type field.
func (h VDMHeader) CommandType() uint8 { return uint8((h >> 6) & 0b11) }

// Command returns the command field.
func (h VDMHeader) Command() uint8 { return uint8(h & 0b11111) }

// UFPProductType is the upstream facing port product type from an ID header.
type UFPProductType uint8

// UFP product types.
const (
	UFPProductTypeUndefined UFPProductType = iota
	UFPProductTypeHub
	UFPProductTypePeripheral
	UFPProductTypePSD
	_
	UFPProductTypeAlternateMode
	UFPProductTypeVPD
)

// DFPProductType is the downstream facing port product type from an ID
// header.
type DFPProductType uint8

// DFP product types.
const (
	DFPProductTypeUndefined DFPProductType = iota
	DFPProductTypeHub
	DFPProductTypeHost
	DFPProductTypePowerBrick
)

// ConnectorType is the connector type from an ID header.
type ConnectorType uint8

// Connector types. Values 0 and 1 are reserved by the standard.
const (
	ConnectorTypeReceptacle ConnectorType = 2
	ConnectorTypePlug       ConnectorType = 3
)

// IDHeader is a decoded ID Header VDO.
type IDHeader struct {
	USBHostCapable   bool
	USBDeviceCapable bool
	UFPProductType   UFPProductType
	ModalOperation   bool
	DFPProductType   DFPProductType
	ConnectorType    ConnectorType
	VendorID         uint16
}

// DecodeIDHeader decodes a raw ID Header VDO word.
func DecodeIDHeader(word uint32) (IDHeader, error) {
	h := IDHeader{
		USBHostCapable:   word&(1<<31) != 0,
		USBDeviceCapable: word&(1<<30) != 0,
		UFPProductType:   UFPProductType((word >> 27) & 0b111),
		ModalOperation:   word&(1<<26) != 0,
		DFPProductType:   DFPProductType((word >> 23) & 0b111),
		ConnectorType:    ConnectorType((word >> 21) & 0b11),
		VendorID:         uint16(word),
	}
	switch h.UFPProductType {
	case UFPProductTypeUndefined, UFPProductTypeHub, UFPProductTypePeripheral,
		UFPProductTypePSD, UFPProductTypeAlternateMode, UFPProductTypeVPD:
	default:
		return IDHeader{}, &ParseError{Field: "ufp_product_type", Value: fmt.Sprintf("%d", h.UFPProductType)}
	}
	if h.DFPProductType > DFPProductTypePowerBrick {
		return IDHeader{}, &ParseError{Field: "dfp_product_type", Value: fmt.Sprintf("%d", h.DFPProductType)}
	}
	return h, nil
}

// Word re-encodes the ID header to its raw 32 bit form.
func (h IDHeader) Word() uint32 {
	var w uint32
	if h.USBHostCapable {
		w |= 1 << 31
	}
	if h.USBDeviceCapable {
		w |= 1 << 30
	}
	w |= uint32(h.UFPProductType&0b111) << 27
	if h.ModalOperation {
		w |= 1 << 26
	}
	w |= uint32(h.DFPProductType&0b111) << 23
	w |= uint32(h.ConnectorType&0b11) << 21
	w |= uint32(h.VendorID)
	return w
}

// CertStat is a decoded Cert Stat VDO holding the USB-IF assigned XID.
type CertStat struct {
	XID uint32
}

// Product is a decoded Product VDO.
type Product struct {
	ProductID uint16

	// Device is the device release number in binary coded decimal.
	Device uint16
}

// DecodeProduct decodes a raw Product VDO word.
func DecodeProduct(word uint32) Product {
	return Product{ProductID: uint16(word >> 16), Device: uint16(word)}
}

// DecodeDiscoverIdentity decodes the six raw words of a discover identity
// response: the VDM header followed by ID header, cert stat, product and up
// to three product type VDOs. Missing trailing words are taken as zero.
func DecodeDiscoverIdentity(words []uint32) (DiscoverIdentity, error) {
	var id DiscoverIdentity
	get := func(i int) uint32 {
		if i < len(words) {
			return words[i]
		}
		return 0
	}
	id.Header = VDMHeader(get(0))
	hdr, err := DecodeIDHeader(get(1))
	if err != nil {
		return DiscoverIdentity{}, err
	}
	id.IDHeader = hdr
	id.CertStat = CertStat{XID: get(2)}
	id.Product = DecodeProduct(get(3))
	for i := range id.ProductTypeVDOs {
		id.ProductTypeVDOs[i] = get(4 + i)
	}
	return id, nil
}
