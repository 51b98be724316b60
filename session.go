package ucsi

import (
	"github.com/usbctools/go-ucsi/pd"
)

// Session wraps a backend with connector index validation and caching of the
// platform capability record. A session is not safe for concurrent use.
type Session struct {
	backend Backend
	cap     *Capability
}

// NewSession returns a session driving the given backend.
func NewSession(b Backend) *Session {
	return &Session{backend: b}
}

// Capabilities returns the platform capability record, reading it from the
// backend on first use and from cache afterwards.
func (s *Session) Capabilities() (Capability, error) {
	if s.cap != nil {
		return *s.cap, nil
	}
	c, err := s.backend.Capabilities()
	if err != nil {
		return Capability{}, err
	}
	s.cap = &c
	return c, nil
}

// checkConnector validates the connector index against the platform
// capability record. No backend I/O happens for an out of range index once
// the record is cached.
func (s *Session) checkConnector(connector int) error {
	c, err := s.Capabilities()
	if err != nil {
		return err
	}
	if connector < 0 || connector >= c.NumConnectors {
		return ErrInvalidIndex
	}
	return nil
}

// ConnectorCapability returns the fixed capabilities of a connector.
func (s *Session) ConnectorCapability(connector int) (ConnectorCapability, error) {
	if err := s.checkConnector(connector); err != nil {
		return ConnectorCapability{}, err
	}
	return s.backend.ConnectorCapability(connector)
}

// CableProperty returns the properties of the cable attached to a connector.
func (s *Session) CableProperty(connector int) (CableProperty, error) {
	if err := s.checkConnector(connector); err != nil {
		return CableProperty{}, err
	}
	return s.backend.CableProperty(connector)
}

// AlternateModes enumerates the alternate modes of the given recipient on a
// connector. An attached recipient with no modes yields an empty slice.
func (s *Session) AlternateModes(recipient AltModeRecipient, connector int) ([]AlternateMode, error) {
	if err := s.checkConnector(connector); err != nil {
		return nil, err
	}
	return s.backend.AlternateModes(recipient, connector)
}

// ConnectorStatus returns a snapshot of a connector's connection state.
func (s *Session) ConnectorStatus(connector int) (ConnectorStatus, error) {
	if err := s.checkConnector(connector); err != nil {
		return ConnectorStatus{}, err
	}
	return s.backend.ConnectorStatus(connector)
}

// PDMessage retrieves a PD message response from the given recipient on a
// connector.
func (s *Session) PDMessage(connector int, recipient pd.MessageRecipient, responseType pd.MessageResponseType) (pd.Message, error) {
	if err := s.checkConnector(connector); err != nil {
		return pd.Message{}, err
	}
	return s.backend.PDMessage(connector, recipient, responseType)
}

// PDOs enumerates power data objects of a connector or its partner. A zero
// rev decodes against the platform's PD version from the capability record.
func (s *Session) PDOs(connector int, partner bool, offset, count int, typ PDOType, caps SourceCapabilitiesType, rev pd.Revision) ([]pd.PDO, error) {
	if err := s.checkConnector(connector); err != nil {
		return nil, err
	}
	if rev == 0 {
		rev = s.cap.PDVersion
	}
	return s.backend.PDOs(connector, partner, offset, count, typ, caps, rev)
}

// Close releases the underlying backend.
func (s *Session) Close() error {
	return s.backend.Close()
}
