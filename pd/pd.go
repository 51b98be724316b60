// Package pd defines types to encode and decode USB Power Delivery data
// objects and structured vendor defined messages.
package pd

import (
	"errors"
	"fmt"
)

// Revision is a USB Power Delivery specification revision in binary coded
// decimal, e.g. 0x310 for revision 3.1.
type Revision uint16

// Power delivery revisions.
const (
	Revision20 Revision = 0x200
	Revision30 Revision = 0x300
	Revision31 Revision = 0x310
)

// Known returns true if r is a revision this package can decode against.
func (r Revision) Known() bool {
	return r == Revision20 || r == Revision30 || r == Revision31
}

// String formats the revision as "major.minor", e.g. "3.1".
func (r Revision) String() string {
	return fmt.Sprintf("%d.%d", uint16(r)>>8, (uint16(r)>>4)&0xf)
}

// ParseRevision parses a "major.minor" revision string as found in sysfs,
// e.g. "2.0" or "3.1".
func ParseRevision(s string) (Revision, error) {
	var major, minor uint16
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return 0, &ParseError{Field: "revision", Value: s}
	}
	if major > 9 || minor > 9 {
		return 0, &ParseError{Field: "revision", Value: s}
	}
	return Revision(major<<8 | minor<<4), nil
}

// ErrUnknownRevision is returned when a data object cannot be decoded under
// the power delivery revision in effect.
var ErrUnknownRevision = errors.New("pd: revision does not support data object")

// ParseError reports a field whose raw value could not be interpreted.
type ParseError struct {
	Field string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pd: cannot parse %s from %q", e.Field, e.Value)
}

// PDOKind identifies the variant of a power data object.
type PDOKind uint8

// Power data object kinds. KindPPS and KindEPRAVS are the augmented variants
// and only exist from revision 3.1 onwards.
const (
	KindFixedSupply PDOKind = iota
	KindBattery
	KindVariableSupply
	KindPPS
	KindEPRAVS
)

func (k PDOKind) String() string {
	switch k {
	case KindFixedSupply:
		return "fixed_supply"
	case KindBattery:
		return "battery"
	case KindVariableSupply:
		return "variable_supply"
	case KindPPS:
		return "programmable_supply"
	case KindEPRAVS:
		return "adjustable_supply"
	}
	return fmt.Sprintf("pdo_kind(%d)", uint8(k))
}

// FastRoleSwap is the fast role swap current requirement advertised in a
// fixed supply sink PDO under revision 3.0 and later.
type FastRoleSwap uint8

// Fast role swap current requirements.
const (
	FastRoleSwapNotSupported FastRoleSwap = 0b00
	FastRoleSwapDefaultUSB   FastRoleSwap = 0b01
	FastRoleSwap1A5          FastRoleSwap = 0b10
	FastRoleSwap3A0          FastRoleSwap = 0b11
)

// FixedSupplyPDO is the raw word of a Fixed Supply Power Data Object.
type FixedSupplyPDO uint32

// DualRolePower returns true if the port is dual role power capable.
func (o FixedSupplyPDO) DualRolePower() bool { return o&(1<<29) != 0 }

// SetDualRolePower sets the dual role power flag.
func (o *FixedSupplyPDO) SetDualRolePower(v bool) { o.setBit(29, v) }

// HigherCapability returns true if the sink needs more than vSafe5V to
// provide full functionality.
func (o FixedSupplyPDO) HigherCapability() bool { return o&(1<<28) != 0 }

// SetHigherCapability sets the higher capability flag.
func (o *FixedSupplyPDO) SetHigherCapability(v bool) { o.setBit(28, v) }

// UnconstrainedPower returns true if the source has an external supply.
func (o FixedSupplyPDO) UnconstrainedPower() bool { return o&(1<<27) != 0 }

// SetUnconstrainedPower sets the unconstrained power flag.
func (o *FixedSupplyPDO) SetUnconstrainedPower(v bool) { o.setBit(27, v) }

// USBCommunicationsCapable returns true if the port supports data
// communications over the USB data lines.
func (o FixedSupplyPDO) USBCommunicationsCapable() bool { return o&(1<<26) != 0 }

// SetUSBCommunicationsCapable sets the USB communications capable flag.
func (o *FixedSupplyPDO) SetUSBCommunicationsCapable(v bool) { o.setBit(26, v) }

// DualRoleData returns true if the port is dual role data capable.
func (o FixedSupplyPDO) DualRoleData() bool { return o&(1<<25) != 0 }

// SetDualRoleData sets the dual role data flag.
func (o *FixedSupplyPDO) SetDualRoleData(v bool) { o.setBit(25, v) }

// FastRoleSwap returns the fast role swap current requirement. The field is
// only meaningful in sink PDOs under revision 3.0 and later.
func (o FixedSupplyPDO) FastRoleSwap() FastRoleSwap {
	return FastRoleSwap((o >> 23) & 0b11)
}

// SetFastRoleSwap sets the fast role swap current requirement.
func (o *FixedSupplyPDO) SetFastRoleSwap(v FastRoleSwap) {
	*o = (*o & ^(FixedSupplyPDO(0b11) << 23)) | FixedSupplyPDO(v&0b11)<<23
}

// Voltage returns voltage in millivolts.
func (o FixedSupplyPDO) Voltage() uint16 {
	return uint16(((o >> 10) & (1<<10 - 1)) * 50)
}

// SetVoltage will round the given voltage to the nearest 50mV.
func (o *FixedSupplyPDO) SetVoltage(v uint16) {
	*o = (*o & ^((FixedSupplyPDO(1)<<10 - 1) << 10)) | ((FixedSupplyPDO(v)/50)&(1<<10-1))<<10
}

// MaxCurrent returns maximum current in milliamps.
func (o FixedSupplyPDO) MaxCurrent() uint16 {
	return uint16((o & (1<<10 - 1)) * 10)
}

// SetMaxCurrent will round the given current to the nearest 10mA.
func (o *FixedSupplyPDO) SetMaxCurrent(v uint16) {
	*o = (*o & ^(FixedSupplyPDO(1)<<10 - 1)) | (FixedSupplyPDO(v)/10)&(1<<10-1)
}

func (o *FixedSupplyPDO) setBit(n int, v bool) {
	if v {
		*o |= 1 << n
	} else {
		*o &= ^(FixedSupplyPDO(1) << n)
	}
}

// BatteryPDO is the raw word of a Battery Supply Power Data Object.
type BatteryPDO uint32

// NewBatteryPDO returns a new blank BatteryPDO with its tag bits set.
func NewBatteryPDO() BatteryPDO {
	return BatteryPDO(0b01) << 30
}

// MaxVoltage returns maximum voltage in millivolts.
func (o BatteryPDO) MaxVoltage() uint16 {
	return uint16(((o >> 20) & (1<<10 - 1)) * 50)
}

// SetMaxVoltage will round the given voltage to the nearest 50mV.
func (o *BatteryPDO) SetMaxVoltage(v uint16) {
	*o = (*o & ^((BatteryPDO(1)<<10 - 1) << 20)) | ((BatteryPDO(v)/50)&(1<<10-1))<<20
}

// MinVoltage returns minimum voltage in millivolts.
func (o BatteryPDO) MinVoltage() uint16 {
	return uint16(((o >> 10) & (1<<10 - 1)) * 50)
}

// SetMinVoltage will round the given voltage to the nearest 50mV.
func (o *BatteryPDO) SetMinVoltage(v uint16) {
	*o = (*o & ^((BatteryPDO(1)<<10 - 1) << 10)) | ((BatteryPDO(v)/50)&(1<<10-1))<<10
}

// MaxPower returns maximum allowable power in milliwatts.
func (o BatteryPDO) MaxPower() uint32 {
	return uint32((o & (1<<10 - 1)) * 250)
}

// SetMaxPower will round the given power to the nearest 250mW.
func (o *BatteryPDO) SetMaxPower(v uint32) {
	*o = (*o & ^(BatteryPDO(1)<<10 - 1)) | (BatteryPDO(v)/250)&(1<<10-1)
}

// VariableSupplyPDO is the raw word of a Variable Supply Power Data Object.
type VariableSupplyPDO uint32

// NewVariableSupplyPDO returns a new blank VariableSupplyPDO with its tag
// bits set.
func NewVariableSupplyPDO() VariableSupplyPDO {
	return VariableSupplyPDO(0b10) << 30
}

// MaxVoltage returns maximum voltage in millivolts.
func (o VariableSupplyPDO) MaxVoltage() uint16 {
	return uint16(((o >> 20) & (1<<10 - 1)) * 50)
}

// SetMaxVoltage will round the given voltage to the nearest 50mV.
func (o *VariableSupplyPDO) SetMaxVoltage(v uint16) {
	*o = (*o & ^((VariableSupplyPDO(1)<<10 - 1) << 20)) | ((VariableSupplyPDO(v)/50)&(1<<10-1))<<20
}

// MinVoltage returns minimum voltage in millivolts.
func (o VariableSupplyPDO) MinVoltage() uint16 {
	return uint16(((o >> 10) & (1<<10 - 1)) * 50)
}

// SetMinVoltage will round the given voltage to the nearest 50mV.
func (o *VariableSupplyPDO) SetMinVoltage(v uint16) {
	*o = (*o & ^((VariableSupplyPDO(1)<<10 - 1) << 10)) | ((VariableSupplyPDO(v)/50)&(1<<10-1))<<10
}

// MaxCurrent returns maximum current in milliamps.
func (o VariableSupplyPDO) MaxCurrent() uint16 {
	return uint16((o & (1<<10 - 1)) * 10)
}

// SetMaxCurrent will round the given current to the nearest 10mA.
func (o *VariableSupplyPDO) SetMaxCurrent(v uint16) {
	*o = (*o & ^(VariableSupplyPDO(1)<<10 - 1)) | (VariableSupplyPDO(v)/10)&(1<<10-1)
}

// PPSPDO is the raw word of an SPR Programmable Power Supply Augmented Power
// Data Object.
type PPSPDO uint32

// NewPPSPDO returns a new blank PPSPDO with its tag bits set.
func NewPPSPDO() PPSPDO {
	return PPSPDO(0b11) << 30
}

// PowerLimited returns true if the supply limits output power rather than
// current.
func (o PPSPDO) PowerLimited() bool { return o&(1<<27) != 0 }

// SetPowerLimited sets the power limited flag.
func (o *PPSPDO) SetPowerLimited(v bool) {
	if v {
		*o |= 1 << 27
	} else {
		*o &= ^(PPSPDO(1) << 27)
	}
}

// MaxVoltage returns maximum voltage in millivolts.
func (o PPSPDO) MaxVoltage() uint16 {
	return (uint16(o>>17) & (uint16(1)<<8 - 1)) * 100
}

// SetMaxVoltage sets the maximum voltage in millivolts, rounded to the
// nearest 100mV.
func (o *PPSPDO) SetMaxVoltage(v uint16) {
	*o = (*o & ^((PPSPDO(1)<<8 - 1) << 17)) | PPSPDO((v/100)&(1<<8-1))<<17
}

// MinVoltage returns minimum voltage in millivolts.
func (o PPSPDO) MinVoltage() uint16 {
	return ((uint16(o) >> 8) & (uint16(1)<<8 - 1)) * 100
}

// SetMinVoltage sets the minimum voltage in millivolts, rounded to the
// nearest 100mV.
func (o *PPSPDO) SetMinVoltage(v uint16) {
	*o = (*o & ^((PPSPDO(1)<<8 - 1) << 8)) | PPSPDO((v/100)&(1<<8-1))<<8
}

// MaxCurrent returns maximum current in milliamps.
func (o PPSPDO) MaxCurrent() uint16 {
	return (uint16(o) & (uint16(1)<<7 - 1)) * 50
}

// SetMaxCurrent sets the maximum current in milliamps, rounded to the
// nearest 50mA.
func (o *PPSPDO) SetMaxCurrent(c uint16) {
	*o = (*o & ^(PPSPDO(1)<<7 - 1)) | PPSPDO((c/50)&(1<<7-1))
}

// EPRAVSPDO is the raw word of an EPR Adjustable Voltage Supply Augmented
// Power Data Object.
type EPRAVSPDO uint32

// NewEPRAVSPDO returns a new blank EPRAVSPDO with its tag bits set.
func NewEPRAVSPDO() EPRAVSPDO {
	return EPRAVSPDO(0b11)<<30 | EPRAVSPDO(0b01)<<28
}

// PeakCurrent returns the peak current capability code.
func (o EPRAVSPDO) PeakCurrent() uint8 {
	return uint8((o >> 26) & 0b11)
}

// SetPeakCurrent sets the peak current capability code.
func (o *EPRAVSPDO) SetPeakCurrent(v uint8) {
	*o = (*o & ^(EPRAVSPDO(0b11) << 26)) | EPRAVSPDO(v&0b11)<<26
}

// MaxVoltage returns maximum voltage in millivolts.
func (o EPRAVSPDO) MaxVoltage() uint16 {
	return uint16((o>>17)&(1<<9-1)) * 100
}

// SetMaxVoltage sets the maximum voltage in millivolts, rounded to the
// nearest 100mV.
func (o *EPRAVSPDO) SetMaxVoltage(v uint16) {
	*o = (*o & ^((EPRAVSPDO(1)<<9 - 1) << 17)) | EPRAVSPDO((v/100)&(1<<9-1))<<17
}

// MinVoltage returns minimum voltage in millivolts.
func (o EPRAVSPDO) MinVoltage() uint16 {
	return ((uint16(o) >> 8) & (uint16(1)<<8 - 1)) * 100
}

// SetMinVoltage sets the minimum voltage in millivolts, rounded to the
// nearest 100mV.
func (o *EPRAVSPDO) SetMinVoltage(v uint16) {
	*o = (*o & ^((EPRAVSPDO(1)<<8 - 1) << 8)) | EPRAVSPDO((v/100)&(1<<8-1))<<8
}

// PDPower returns the power delivery power rating in milliwatts.
func (o EPRAVSPDO) PDPower() uint32 {
	return uint32(o&0xff) * 1000
}

// SetPDPower sets the power delivery power rating in milliwatts, rounded to
// the nearest watt.
func (o *EPRAVSPDO) SetPDPower(v uint32) {
	*o = (*o & ^EPRAVSPDO(0xff)) | EPRAVSPDO((v/1000)&0xff)
}

// PDO is a decoded power data object. Kind selects which of the variant
// fields carries the decoded values; the others are zero.
type PDO struct {
	Kind PDOKind

	Fixed    FixedSupply
	Battery  BatterySupply
	Variable VariableSupply
	PPS      ProgrammableSupply
	EPRAVS   AdjustableSupply
}

// FixedSupply is a decoded fixed supply PDO. Voltages are in millivolts and
// currents in milliamps.
type FixedSupply struct {
	DualRolePower            bool
	HigherCapability         bool
	UnconstrainedPower       bool
	USBCommunicationsCapable bool
	DualRoleData             bool
	FastRoleSwap             FastRoleSwap
	Voltage                  uint16
	MaxCurrent               uint16
}

// BatterySupply is a decoded battery supply PDO. Voltages are in millivolts
// and power in milliwatts.
type BatterySupply struct {
	MaxVoltage uint16
	MinVoltage uint16
	MaxPower   uint32
}

// VariableSupply is a decoded variable supply PDO. Voltages are in
// millivolts and currents in milliamps.
type VariableSupply struct {
	MaxVoltage uint16
	MinVoltage uint16
	MaxCurrent uint16
}

// ProgrammableSupply is a decoded SPR programmable power supply APDO.
// Voltages are in millivolts and currents in milliamps.
type ProgrammableSupply struct {
	PowerLimited bool
	MaxVoltage   uint16
	MinVoltage   uint16
	MaxCurrent   uint16
}

// AdjustableSupply is a decoded EPR adjustable voltage supply APDO. Voltages
// are in millivolts and power in milliwatts.
type AdjustableSupply struct {
	PeakCurrent uint8
	MaxVoltage  uint16
	MinVoltage  uint16
	PDPower     uint32
}

// DecodePDO decodes a raw 32 bit power data object under the given power
// delivery revision. Augmented PDOs, tagged 0b11 in the top two bits, only
// exist from revision 3.1 onwards and decoding one under an earlier revision
// returns ErrUnknownRevision.
func DecodePDO(word uint32, rev Revision) (PDO, error) {
	if !rev.Known() {
		return PDO{}, fmt.Errorf("%w: revision %#x", ErrUnknownRevision, uint16(rev))
	}
	switch (word >> 30) & 0b11 {
	case 0b00:
		o := FixedSupplyPDO(word)
		return PDO{Kind: KindFixedSupply, Fixed: FixedSupply{
			DualRolePower:            o.DualRolePower(),
			HigherCapability:         o.HigherCapability(),
			UnconstrainedPower:       o.UnconstrainedPower(),
			USBCommunicationsCapable: o.USBCommunicationsCapable(),
			DualRoleData:             o.DualRoleData(),
			FastRoleSwap:             o.FastRoleSwap(),
			Voltage:                  o.Voltage(),
			MaxCurrent:               o.MaxCurrent(),
		}}, nil
	case 0b01:
		o := BatteryPDO(word)
		return PDO{Kind: KindBattery, Battery: BatterySupply{
			MaxVoltage: o.MaxVoltage(),
			MinVoltage: o.MinVoltage(),
			MaxPower:   o.MaxPower(),
		}}, nil
	case 0b10:
		o := VariableSupplyPDO(word)
		return PDO{Kind: KindVariableSupply, Variable: VariableSupply{
			MaxVoltage: o.MaxVoltage(),
			MinVoltage: o.MinVoltage(),
			MaxCurrent: o.MaxCurrent(),
		}}, nil
	}
	if rev < Revision31 {
		return PDO{}, fmt.Errorf("%w: augmented PDO under revision %s", ErrUnknownRevision, rev)
	}
	switch (word >> 28) & 0b11 {
	case 0b00:
		o := PPSPDO(word)
		return PDO{Kind: KindPPS, PPS: ProgrammableSupply{
			PowerLimited: o.PowerLimited(),
			MaxVoltage:   o.MaxVoltage(),
			MinVoltage:   o.MinVoltage(),
			MaxCurrent:   o.MaxCurrent(),
		}}, nil
	case 0b01:
		o := EPRAVSPDO(word)
		return PDO{Kind: KindEPRAVS, EPRAVS: AdjustableSupply{
			PeakCurrent: o.PeakCurrent(),
			MaxVoltage:  o.MaxVoltage(),
			MinVoltage:  o.MinVoltage(),
			PDPower:     o.PDPower(),
		}}, nil
	}
	return PDO{}, &ParseError{Field: "apdo_kind", Value: fmt.Sprintf("%#x", word)}
}

// Word re-encodes the decoded PDO to its raw 32 bit form.
func (p PDO) Word() uint32 {
	switch p.Kind {
	case KindFixedSupply:
		var o FixedSupplyPDO
		o.SetDualRolePower(p.Fixed.DualRolePower)
		o.SetHigherCapability(p.Fixed.HigherCapability)
		o.SetUnconstrainedPower(p.Fixed.UnconstrainedPower)
		o.SetUSBCommunicationsCapable(p.Fixed.USBCommunicationsCapable)
		o.SetDualRoleData(p.Fixed.DualRoleData)
		o.SetFastRoleSwap(p.Fixed.FastRoleSwap)
		o.SetVoltage(p.Fixed.Voltage)
		o.SetMaxCurrent(p.Fixed.MaxCurrent)
		return uint32(o)
	case KindBattery:
		o := NewBatteryPDO()
		o.SetMaxVoltage(p.Battery.MaxVoltage)
		o.SetMinVoltage(p.Battery.MinVoltage)
		o.SetMaxPower(p.Battery.MaxPower)
		return uint32(o)
	case KindVariableSupply:
		o := NewVariableSupplyPDO()
		o.SetMaxVoltage(p.Variable.MaxVoltage)
		o.SetMinVoltage(p.Variable.MinVoltage)
		o.SetMaxCurrent(p.Variable.MaxCurrent)
		return uint32(o)
	case KindPPS:
		o := NewPPSPDO()
		o.SetPowerLimited(p.PPS.PowerLimited)
		o.SetMaxVoltage(p.PPS.MaxVoltage)
		o.SetMinVoltage(p.PPS.MinVoltage)
		o.SetMaxCurrent(p.PPS.MaxCurrent)
		return uint32(o)
	case KindEPRAVS:
		o := NewEPRAVSPDO()
		o.SetPeakCurrent(p.EPRAVS.PeakCurrent)
		o.SetMaxVoltage(p.EPRAVS.MaxVoltage)
		o.SetMinVoltage(p.EPRAVS.MinVoltage)
		o.SetPDPower(p.EPRAVS.PDPower)
		return uint32(o)
	}
	return 0
}
