// Package ucsi defines high level types and a session layer for discovering
// the USB Type-C topology of a machine through its UCSI platform policy
// manager, including connectors, cables, partners, alternate modes and power
// delivery contracts.
package ucsi

import (
	"fmt"

	"github.com/usbctools/go-ucsi/pd"
)

// BackendKind selects the platform mechanism used to talk to the policy
// manager.
type BackendKind uint8

// Backend kinds.
const (
	BackendSysfs BackendKind = iota
	BackendDebugfs
)

func (k BackendKind) String() string {
	switch k {
	case BackendSysfs:
		return "sysfs"
	case BackendDebugfs:
		return "debugfs"
	}
	return fmt.Sprintf("backend(%d)", uint8(k))
}

// ParseBackendKind parses a backend name as used in configuration files.
func ParseBackendKind(s string) (BackendKind, error) {
	switch s {
	case "sysfs":
		return BackendSysfs, nil
	case "debugfs":
		return BackendDebugfs, nil
	}
	return 0, &ParseError{Field: "backend", Value: s}
}

// CapabilityAttributes is the bmAttributes bitmask from the platform
// capability record.
type CapabilityAttributes uint32

// Capability attribute bits.
const (
	AttrDisabledStateSupport CapabilityAttributes = 1 << 0
	AttrBatteryCharging      CapabilityAttributes = 1 << 1
	AttrUSBPowerDelivery     CapabilityAttributes = 1 << 2
	AttrUSBTypeCCurrent      CapabilityAttributes = 1 << 6
	AttrACSupply             CapabilityAttributes = 1 << 8
	AttrOther                CapabilityAttributes = 1 << 10
	AttrVBusPowerSource      CapabilityAttributes = 1 << 14
)

// Has returns true if all bits of v are set.
func (a CapabilityAttributes) Has(v CapabilityAttributes) bool { return a&v == v }

// OptionalFeatures is the bmOptionalFeatures bitmask from the platform
// capability record.
type OptionalFeatures uint32

// Optional feature bits.
const (
	FeatureSetCCOMSupported         OptionalFeatures = 1 << 0
	FeatureSetPowerLevelSupported   OptionalFeatures = 1 << 1
	FeatureAltModeDetailsSupported  OptionalFeatures = 1 << 2
	FeatureAltModeOverrideSupported OptionalFeatures = 1 << 3
	FeaturePDODetailsSupported      OptionalFeatures = 1 << 4
	FeatureCableDetailsSupported    OptionalFeatures = 1 << 5
	FeatureExtSupplyNotifySupported OptionalFeatures = 1 << 6
	FeaturePDResetNotifySupported   OptionalFeatures = 1 << 7
	FeatureGetPDMessageSupported    OptionalFeatures = 1 << 8
	FeatureGetAttentionVDOSupported OptionalFeatures = 1 << 9
	FeatureFWUpdateRequestSupported OptionalFeatures = 1 << 10
	FeatureNegotiatedPowerLevelSupp OptionalFeatures = 1 << 11
	FeatureSecurityRequestSupported OptionalFeatures = 1 << 12
	FeatureSetRetimerModeSupported  OptionalFeatures = 1 << 13
	FeatureChunkingSupportSupported OptionalFeatures = 1 << 14
)

// Has returns true if all bits of v are set.
func (f OptionalFeatures) Has(v OptionalFeatures) bool { return f&v == v }

// Capability describes the platform policy manager as a whole.
type Capability struct {
	Attributes       CapabilityAttributes
	NumConnectors    int
	OptionalFeatures OptionalFeatures
	NumAltModes      int
	BCVersion        pd.Revision
	PDVersion        pd.Revision
	TypeCVersion     pd.Revision
}

// OperationMode is the bmOperationMode bitmask of a connector.
type OperationMode uint8

// Operation mode bits.
const (
	OperationModeRpOnly        OperationMode = 1 << 0
	OperationModeRdOnly        OperationMode = 1 << 1
	OperationModeDRP           OperationMode = 1 << 2
	OperationModeAnalogAudio   OperationMode = 1 << 3
	OperationModeDebugAccessry OperationMode = 1 << 4
	OperationModeUSB2          OperationMode = 1 << 5
	OperationModeUSB3          OperationMode = 1 << 6
	OperationModeAlternateMode OperationMode = 1 << 7
)

// Has returns true if all bits of v are set.
func (m OperationMode) Has(v OperationMode) bool { return m&v == v }

// ExtendedOperationMode is the extended operation mode of a connector.
type ExtendedOperationMode uint8

// Extended operation modes.
const (
	ExtendedModeNone ExtendedOperationMode = iota
	ExtendedModeUSB4Gen2
	ExtendedModeEPRSource
	ExtendedModeEPRSink
	ExtendedModeUSB4Gen3
	ExtendedModeUSB4Gen4
)

// MiscCapabilities is the miscellaneous capability bitmask of a connector.
type MiscCapabilities uint8

// Miscellaneous capability bits.
const (
	MiscCapFWUpdate MiscCapabilities = 1 << 0
	MiscCapSecurity MiscCapabilities = 1 << 1
)

// ConnectorCapability describes the fixed capabilities of one connector.
type ConnectorCapability struct {
	OperationMode            OperationMode
	Provider                 bool
	Consumer                 bool
	SwapToDFP                bool
	SwapToUFP                bool
	SwapToSrc                bool
	SwapToSnk                bool
	ExtendedOperationMode    ExtendedOperationMode
	MiscCapabilities         MiscCapabilities
	ReverseCurrentProtection bool

	// PartnerPDRevision is the highest PD revision the attached partner
	// supports, as a two bit major version, 0 when unknown.
	PartnerPDRevision uint8
}

// SpeedExponent scales a cable speed mantissa.
type SpeedExponent uint8

// Speed exponents.
const (
	SpeedBps SpeedExponent = iota
	SpeedKbps
	SpeedMbps
	SpeedGbps
)

func (e SpeedExponent) String() string {
	switch e {
	case SpeedBps:
		return "bps"
	case SpeedKbps:
		return "kbps"
	case SpeedMbps:
		return "mbps"
	case SpeedGbps:
		return "gbps"
	}
	return fmt.Sprintf("speed(%d)", uint8(e))
}

// CableType distinguishes passive and active cables.
type CableType uint8

// Cable types.
const (
	CableTypePassive CableType = iota
	CableTypeActive
)

// PlugEndType is the plug type at the far end of a cable.
type PlugEndType uint8

// Plug end types.
const (
	PlugTypeA PlugEndType = iota
	PlugTypeB
	PlugTypeC
	PlugTypeOther
)

// CableProperty describes an attached cable.
type CableProperty struct {
	SpeedExponent SpeedExponent
	SpeedMantissa uint16

	// CurrentCapability is the cable current rating in milliamps.
	CurrentCapability uint16

	VBusInCable    bool
	CableType      CableType
	Directionality bool
	PlugEndType    PlugEndType
	ModeSupport    bool

	// PDRevision is the cable's PD major revision, two bits.
	PDRevision uint8

	// Latency is the cable latency code.
	Latency uint8
}

// AltModeRecipient selects whose alternate modes are enumerated.
type AltModeRecipient uint8

// Alternate mode recipients.
const (
	RecipientConnector AltModeRecipient = iota
	RecipientSOP
	RecipientSOPPrime
	RecipientSOPDoublePrime
)

func (r AltModeRecipient) String() string {
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

// AlternateMode is one alternate mode entry of a connector, partner or cable
// plug.
type AlternateMode struct {
	SVID uint16
	VDO  uint32
}

// PDOType selects source or sink power data objects.
type PDOType uint8

// PDO types.
const (
	PDOSink   PDOType = 0
	PDOSource PDOType = 1
)

// SourceCapabilitiesType selects which set of source capabilities is
// requested.
type SourceCapabilitiesType uint8

// Source capability sets.
const (
	CurrentSupportedSourceCapabilities SourceCapabilitiesType = iota
	AdvertisedCapabilities
	MaximumSupportedSourceCapabilities
)

// PowerDirection is the direction of power flow at a connector.
type PowerDirection uint8

// Power directions.
const (
	PowerConsumer PowerDirection = iota
	PowerProvider
)

// ConnectorStatus is a snapshot of one connector's connection state.
type ConnectorStatus struct {
	Connected      bool
	PowerDirection PowerDirection

	// NegotiatedPowerLevel packs the operating power in 250mW units
	// shifted left by 10 bits over the maximum power in 250mW units.
	NegotiatedPowerLevel uint32
}
