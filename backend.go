package ucsi

import "github.com/usbctools/go-ucsi/pd"

// Backend is the platform interface the session layer drives. Implementations
// read from a single platform mechanism such as sysfs or the UCSI debugfs
// command interface. Backends are not safe for concurrent use; the caller
// serializes all operations.
//
// Connector numbers are zero based throughout. Operations the platform does
// not expose return ErrNotSupported. Backends do not range check connector
// numbers; the session validates them against the capability record before
// calling down, and an out of range number reaching a backend surfaces as
// ErrNotSupported from the missing platform node.
type Backend interface {
	// ConnectorCount returns the number of connectors the platform
	// exposes.
	ConnectorCount() (int, error)

	// Capabilities returns the platform wide capability record.
	Capabilities() (Capability, error)

	// ConnectorCapability returns the fixed capabilities of a connector.
	ConnectorCapability(connector int) (ConnectorCapability, error)

	// CableProperty returns the properties of the cable attached to a
	// connector.
	CableProperty(connector int) (CableProperty, error)

	// AlternateModes enumerates the alternate modes of the given
	// recipient on a connector. An attached recipient with no modes
	// yields an empty slice, distinct from ErrNotSupported.
	AlternateModes(recipient AltModeRecipient, connector int) ([]AlternateMode, error)

	// ConnectorStatus returns a snapshot of the connector's connection
	// state.
	ConnectorStatus(connector int) (ConnectorStatus, error)

	// PDMessage retrieves a PD message response from the given recipient.
	PDMessage(connector int, recipient pd.MessageRecipient, responseType pd.MessageResponseType) (pd.Message, error)

	// PDOs enumerates power data objects. partner selects the port
	// partner's objects instead of the connector's own; offset is the
	// zero based index of the first object and count caps how many are
	// returned. rev is the PD revision to decode against.
	PDOs(connector int, partner bool, offset, count int, typ PDOType, caps SourceCapabilitiesType, rev pd.Revision) ([]pd.PDO, error)

	// Close releases platform resources held by the backend.
	Close() error
}
