// Package debugfs drives the Linux UCSI debug interface, writing commands
// to the control file and polling the response file for completion.
package debugfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charlesren/ylog"

	ucsi "github.com/usbctools/go-ucsi"
	"github.com/usbctools/go-ucsi/pd"
)

const logModule = "Debugfs"

// Transport carries raw command and response bytes to and from the policy
// manager. The production transport is the debugfs file pair; tests supply
// scripted ones.
type Transport interface {
	// WriteCommand submits a command string to the control file.
	WriteCommand([]byte) error

	// ReadResponse reads the current contents of the response file. An
	// empty read means the command has not completed yet.
	ReadResponse() ([]byte, error)
}

type fileTransport struct {
	command  *os.File
	response *os.File
}

func openFileTransport(cfg *ucsi.Config) (*fileTransport, error) {
	cmd, err := os.OpenFile(cfg.DebugfsCommandPath, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, cfg.DebugfsCommandPath)
		}
		return nil, fmt.Errorf("open %s: %w", cfg.DebugfsCommandPath, err)
	}
	resp, err := os.Open(cfg.DebugfsResponsePath)
	if err != nil {
		cmd.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, cfg.DebugfsResponsePath)
		}
		return nil, fmt.Errorf("open %s: %w", cfg.DebugfsResponsePath, err)
	}
	return &fileTransport{command: cmd, response: resp}, nil
}

func (t *fileTransport) WriteCommand(b []byte) error {
	_, err := t.command.Write(b)
	return err
}

func (t *fileTransport) ReadResponse() ([]byte, error) {
	if _, err := t.response.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(t.response)
}

func (t *fileTransport) Close() error {
	t.command.Close()
	return t.response.Close()
}

// state tracks where the backend is in the command cycle. Every operation
// starts and finishes in stateIdle.
type state uint8

const (
	stateIdle state = iota
	stateCommandWritten
	statePolling
	stateComplete
	stateFailed
	stateTimedOut
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateCommandWritten:
		return "CommandWritten"
	case statePolling:
		return "Polling"
	case stateComplete:
		return "Complete"
	case stateFailed:
		return "Failed"
	case stateTimedOut:
		return "TimedOut"
	}
	return "Unknown"
}

// Backend executes UCSI commands over a transport. It is not safe for
// concurrent use.
type Backend struct {
	t            Transport
	pollInterval time.Duration
	pollAttempts int
	sleep        func(time.Duration)
	st           state
}

// New opens the debugfs command and response files from the configuration.
// Missing files yield ucsi.ErrNotSupported.
func New(cfg *ucsi.Config) (*Backend, error) {
	t, err := openFileTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithTransport(t, cfg.PollInterval, cfg.PollAttempts), nil
}

// NewWithTransport returns a backend over a caller supplied transport.
func NewWithTransport(t Transport, pollInterval time.Duration, pollAttempts int) *Backend {
	return &Backend{
		t:            t,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
		sleep:        time.Sleep,
	}
}

// execute runs one command cycle: write the command, poll the response file
// until it carries a completed response or the attempt budget runs out. The
// backend returns to idle whatever the outcome.
func (b *Backend) execute(cmd ucsi.Command) ([]byte, error) {
	defer func() { b.st = stateIdle }()

	val := cmd.Encode()
	ylog.Debugf(logModule, "command %s: %#x", opName(cmd.Op), val)
	cmdStr := append([]byte(strconv.FormatUint(val, 10)), 0)
	if err := b.t.WriteCommand(cmdStr); err != nil {
		b.st = stateFailed
		return nil, fmt.Errorf("write command: %w", err)
	}
	b.st = stateCommandWritten

	b.st = statePolling
	for i := 0; i < b.pollAttempts; i++ {
		raw, err := b.t.ReadResponse()
		if err != nil {
			b.st = stateFailed
			return nil, fmt.Errorf("read response: %w", err)
		}
		resp, ready, err := parseResponse(raw)
		if err != nil {
			b.st = stateFailed
			return nil, err
		}
		if ready {
			b.st = stateComplete
			return resp, nil
		}
		b.sleep(b.pollInterval)
	}
	b.st = stateTimedOut
	ylog.Warnf(logModule, "command %s timed out after %d attempts", opName(cmd.Op), b.pollAttempts)
	return nil, fmt.Errorf("%w: %s", ucsi.ErrTimeout, opName(cmd.Op))
}

// parseResponse decodes the response file contents: "0x" followed by two 16
// digit hexadecimal words, most significant first. The decoded bytes come
// out in little endian message order. An empty file means the command has
// not completed.
func parseResponse(raw []byte) (resp []byte, ready bool, err error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, false, nil
	}
	hex := strings.TrimPrefix(s, "0x")
	if len(hex) != 32 {
		return nil, false, &ucsi.ParseError{Field: "response", Value: s}
	}
	high, err := strconv.ParseUint(hex[:16], 16, 64)
	if err != nil {
		return nil, false, &ucsi.ParseError{Field: "response", Value: s}
	}
	low, err := strconv.ParseUint(hex[16:], 16, 64)
	if err != nil {
		return nil, false, &ucsi.ParseError{Field: "response", Value: s}
	}
	out := make([]byte, 16)
	for i := 0; i < 8; i++ {
		out[i] = byte(low >> (8 * i))
		out[8+i] = byte(high >> (8 * i))
	}
	return out, true, nil
}

func isNull(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func opName(op ucsi.CommandOp) string {
	switch op {
	case ucsi.OpGetCapability:
		return "GET_CAPABILITY"
	case ucsi.OpGetConnectorCapability:
		return "GET_CONNECTOR_CAPABILITY"
	case ucsi.OpGetAlternateModes:
		return "GET_ALTERNATE_MODES"
	case ucsi.OpGetPDOs:
		return "GET_PDOS"
	case ucsi.OpGetCableProperty:
		return "GET_CABLE_PROPERTY"
	case ucsi.OpGetConnectorStatus:
		return "GET_CONNECTOR_STATUS"
	case ucsi.OpGetPDMessage:
		return "GET_PD_MESSAGE"
	}
	return fmt.Sprintf("COMMAND_%#x", uint8(op))
}

// ConnectorCount returns the connector count from the capability record.
func (b *Backend) ConnectorCount() (int, error) {
	caps, err := b.Capabilities()
	if err != nil {
		return 0, err
	}
	return caps.NumConnectors, nil
}

// Capabilities executes GET_CAPABILITY.
func (b *Backend) Capabilities() (caps ucsi.Capability, err error) {
	defer func() { ucsi.ObserveBackendOp("debugfs", "capabilities", err) }()
	resp, err := b.execute(ucsi.Command{Op: ucsi.OpGetCapability})
	if err != nil {
		return ucsi.Capability{}, err
	}
	return ucsi.DecodeCapability(resp)
}

// ConnectorCapability executes GET_CONNECTOR_CAPABILITY.
func (b *Backend) ConnectorCapability(connector int) (cc ucsi.ConnectorCapability, err error) {
	defer func() { ucsi.ObserveBackendOp("debugfs", "connector_capability", err) }()
	resp, err := b.execute(ucsi.Command{Op: ucsi.OpGetConnectorCapability, Connector: connector})
	if err != nil {
		return ucsi.ConnectorCapability{}, err
	}
	if isNull(resp) {
		return ucsi.ConnectorCapability{}, fmt.Errorf("%w: connector %d", ucsi.ErrNotSupported, connector)
	}
	return ucsi.DecodeConnectorCapability(resp)
}

// CableProperty executes GET_CABLE_PROPERTY.
func (b *Backend) CableProperty(connector int) (cp ucsi.CableProperty, err error) {
	defer func() { ucsi.ObserveBackendOp("debugfs", "cable_property", err) }()
	resp, err := b.execute(ucsi.Command{Op: ucsi.OpGetCableProperty, Connector: connector})
	if err != nil {
		return ucsi.CableProperty{}, err
	}
	if isNull(resp) {
		return ucsi.CableProperty{}, fmt.Errorf("%w: no cable on connector %d", ucsi.ErrNotSupported, connector)
	}
	return ucsi.DecodeCableProperty(resp)
}

// AlternateModes executes GET_ALTERNATE_MODES with an increasing offset
// until the policy manager answers with a null response.
func (b *Backend) AlternateModes(recipient ucsi.AltModeRecipient, connector int) (modes []ucsi.AlternateMode, err error) {
	defer func() { ucsi.ObserveBackendOp("debugfs", "alternate_modes", err) }()
	modes = []ucsi.AlternateMode{}
	for offset := 0; ; offset++ {
		resp, err := b.execute(ucsi.Command{
			Op:        ucsi.OpGetAlternateModes,
			Recipient: recipient,
			Connector: connector,
			Offset:    offset,
		})
		if err != nil {
			return nil, err
		}
		if isNull(resp) {
			break
		}
		decoded, err := ucsi.DecodeAlternateModes(resp)
		if err != nil {
			return nil, err
		}
		modes = append(modes, decoded...)
	}
	return modes, nil
}

// ConnectorStatus is not available through the debug interface.
func (b *Backend) ConnectorStatus(connector int) (st ucsi.ConnectorStatus, err error) {
	defer func() { ucsi.ObserveBackendOp("debugfs", "connector_status", err) }()
	return ucsi.ConnectorStatus{}, fmt.Errorf("%w: connector status over debugfs", ucsi.ErrNotSupported)
}

// PDMessage is not available through the debug interface.
func (b *Backend) PDMessage(connector int, recipient pd.MessageRecipient, responseType pd.MessageResponseType) (msg pd.Message, err error) {
	defer func() { ucsi.ObserveBackendOp("debugfs", "pd_message", err) }()
	return pd.Message{}, fmt.Errorf("%w: pd message over debugfs", ucsi.ErrNotSupported)
}

// PDOs executes GET_PDOS with an increasing offset until the policy manager
// answers with a null response or count objects have been returned. Each
// response carries one PDO in its first word, decoded against rev.
func (b *Backend) PDOs(connector int, partner bool, offset, count int, typ ucsi.PDOType, caps ucsi.SourceCapabilitiesType, rev pd.Revision) (pdos []pd.PDO, err error) {
	defer func() { ucsi.ObserveBackendOp("debugfs", "pdos", err) }()
	pdos = []pd.PDO{}
	for {
		if count > 0 && len(pdos) == count {
			break
		}
		resp, err := b.execute(ucsi.Command{
			Op:         ucsi.OpGetPDOs,
			Connector:  connector,
			Partner:    partner,
			Offset:     offset + len(pdos),
			PDOType:    typ,
			SourceCaps: caps,
		})
		if err != nil {
			return nil, err
		}
		if isNull(resp) {
			break
		}
		word := uint32(resp[0]) | uint32(resp[1])<<8 | uint32(resp[2])<<16 | uint32(resp[3])<<24
		p, err := pd.DecodePDO(word, rev)
		if err != nil {
			return nil, err
		}
		pdos = append(pdos, p)
	}
	return pdos, nil
}

// Close releases the transport when it holds resources.
func (b *Backend) Close() error {
	if c, ok := b.t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
