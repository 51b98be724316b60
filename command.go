package ucsi

import (
	"github.com/usbctools/go-ucsi/pd"
)

// CommandOp is a UCSI command number.
type CommandOp uint8

// UCSI command numbers.
const (
	OpGetCapability          CommandOp = 0x06
	OpGetConnectorCapability CommandOp = 0x07
	OpGetAlternateModes      CommandOp = 0x0c
	OpGetCamSupported        CommandOp = 0x0d
	OpGetCurrentCam          CommandOp = 0x0e
	OpGetPDOs                CommandOp = 0x10
	OpGetCableProperty       CommandOp = 0x11
	OpGetConnectorStatus     CommandOp = 0x12
	OpGetPDMessage           CommandOp = 0x15
)

// Command is a UCSI command to be written to the policy manager's control
// register. Connector is zero based; the wire format carries it plus one in a
// seven bit field. Only the fields relevant to Op are consulted.
type Command struct {
	Op        CommandOp
	Connector int

	// GetAlternateModes
	Recipient AltModeRecipient
	Offset    int

	// GetPDOs
	Partner    bool
	NumPDOs    int
	PDOType    PDOType
	SourceCaps SourceCapabilitiesType

	// GetPDMessage
	MsgRecipient pd.MessageRecipient
	ResponseType pd.MessageResponseType
}

// Encode packs the command into the 64 bit control register value. Bits 0-7
// carry the command number and bits 8-15 the data length; command specific
// fields follow from bit 16.
func (c Command) Encode() uint64 {
	v := uint64(c.Op)
	conn := uint64(c.Connector+1) & 0x7f
	switch c.Op {
	case OpGetCapability:
	case OpGetConnectorCapability, OpGetCamSupported, OpGetCurrentCam,
		OpGetCableProperty, OpGetConnectorStatus:
		v |= conn << 16
	case OpGetAlternateModes:
		v |= uint64(c.Recipient&0b111) << 16
		v |= conn << 24
		v |= uint64(uint8(c.Offset)) << 32
	case OpGetPDOs:
		v |= conn << 16
		if c.Partner {
			v |= 1 << 23
		}
		v |= uint64(uint8(c.Offset)) << 24
		v |= uint64(c.NumPDOs&0b11) << 32
		v |= uint64(c.PDOType&1) << 34
		v |= uint64(c.SourceCaps&0b11) << 35
	case OpGetPDMessage:
		v |= conn << 16
		v |= uint64(c.MsgRecipient&0b111) << 23
		v |= uint64(c.ResponseType&0b111111) << 42
	}
	return v
}
