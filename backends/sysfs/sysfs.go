// Package sysfs reads the USB Type-C topology from the Linux typec class
// device tree. All reads are point in time snapshots of the attribute files;
// nothing is cached between operations.
package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/charlesren/ylog"

	ucsi "github.com/usbctools/go-ucsi"
	"github.com/usbctools/go-ucsi/pd"
)

const logModule = "Sysfs"

var (
	portRe    = regexp.MustCompile(`^port(\d+)$`)
	altModeRe = regexp.MustCompile(`^port\d+\.\d+$`)
)

// Backend reads topology from the typec and power_supply class trees.
type Backend struct {
	root    string
	psyRoot string
}

// New returns a sysfs backend rooted at the configured typec class path. It
// returns ucsi.ErrNotSupported when the tree does not exist.
func New(cfg *ucsi.Config) (*Backend, error) {
	if _, err := os.Stat(cfg.SysfsRoot); err != nil {
		return nil, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, cfg.SysfsRoot)
	}
	return &Backend{root: cfg.SysfsRoot, psyRoot: cfg.PowerSupplyRoot}, nil
}

func (b *Backend) portPath(connector int) string {
	return filepath.Join(b.root, fmt.Sprintf("port%d", connector))
}

func (b *Backend) partnerPath(connector int) string {
	return filepath.Join(b.portPath(connector), fmt.Sprintf("port%d-partner", connector))
}

func (b *Backend) cablePath(connector int) string {
	return filepath.Join(b.root, fmt.Sprintf("port%d-cable", connector))
}

// ports returns the connector numbers present in the tree, sorted.
func (b *Backend) ports() ([]int, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, b.root)
	}
	var ports []int
	for _, e := range entries {
		m := portRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		ports = append(ports, n)
	}
	sort.Ints(ports)
	return ports, nil
}

// ConnectorCount returns the number of portN entries in the tree.
func (b *Backend) ConnectorCount() (int, error) {
	ports, err := b.ports()
	if err != nil {
		return 0, err
	}
	if len(ports) == 0 {
		return 0, fmt.Errorf("%w: no typec ports", ucsi.ErrNotSupported)
	}
	return len(ports), nil
}

// Capabilities synthesizes a platform capability record from the per port
// attributes. The PD and Type-C versions come from the last port that
// exposes them.
func (b *Backend) Capabilities() (caps ucsi.Capability, err error) {
	defer func() { ucsi.ObserveBackendOp("sysfs", "capabilities", err) }()
	ports, err := b.ports()
	if err != nil {
		return ucsi.Capability{}, err
	}
	if len(ports) == 0 {
		return ucsi.Capability{}, fmt.Errorf("%w: no typec ports", ucsi.ErrNotSupported)
	}
	caps.NumConnectors = len(ports)
	for _, p := range ports {
		dir := b.portPath(p)
		entries, err := os.ReadDir(dir)
		if err != nil {
			return ucsi.Capability{}, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			if altModeRe.MatchString(e.Name()) {
				caps.NumAltModes++
			}
		}
		if rev, err := readBCD(filepath.Join(dir, "usb_power_delivery_revision")); err == nil {
			caps.PDVersion = rev
			caps.Attributes |= ucsi.AttrUSBPowerDelivery
		}
		if rev, err := readBCD(filepath.Join(dir, "usb_typec_revision")); err == nil {
			caps.TypeCVersion = rev
		}
	}
	ylog.Debugf(logModule, "capabilities: %d connectors, %d alt modes, pd %s",
		caps.NumConnectors, caps.NumAltModes, caps.PDVersion)
	return caps, nil
}

// ConnectorCapability derives connector capabilities from the port's
// power_role attribute and, when a partner is attached, its PD revision.
func (b *Backend) ConnectorCapability(connector int) (cc ucsi.ConnectorCapability, err error) {
	defer func() { ucsi.ObserveBackendOp("sysfs", "connector_capability", err) }()
	role, err := readString(filepath.Join(b.portPath(connector), "power_role"))
	if err != nil {
		return ucsi.ConnectorCapability{}, err
	}
	switch {
	case strings.Contains(role, "source") && strings.Contains(role, "sink"):
		cc.OperationMode = ucsi.OperationModeDRP
		cc.Provider = true
		cc.Consumer = true
	case strings.Contains(role, "source"):
		cc.OperationMode = ucsi.OperationModeRpOnly
		cc.Provider = true
	case strings.Contains(role, "sink"):
		cc.OperationMode = ucsi.OperationModeRdOnly
		cc.Consumer = true
	default:
		return ucsi.ConnectorCapability{}, &ucsi.ParseError{Field: "power_role", Value: role}
	}
	if rev, err := readBCD(filepath.Join(b.partnerPath(connector), "usb_power_delivery_revision")); err == nil {
		cc.PartnerPDRevision = uint8(rev >> 8)
	}
	return cc, nil
}

// AlternateModes enumerates the registered alternate mode directories of the
// given recipient. A present recipient with no modes yields an empty slice;
// an absent recipient yields ucsi.ErrNotSupported.
func (b *Backend) AlternateModes(recipient ucsi.AltModeRecipient, connector int) (modes []ucsi.AlternateMode, err error) {
	defer func() { ucsi.ObserveBackendOp("sysfs", "alternate_modes", err) }()
	var parent, prefix string
	switch recipient {
	case ucsi.RecipientConnector:
		parent = b.portPath(connector)
		prefix = fmt.Sprintf("port%d", connector)
	case ucsi.RecipientSOP:
		parent = b.partnerPath(connector)
		prefix = fmt.Sprintf("port%d-partner", connector)
	case ucsi.RecipientSOPPrime:
		parent = filepath.Join(b.cablePath(connector), fmt.Sprintf("port%d-plug0", connector))
		prefix = fmt.Sprintf("port%d-plug0", connector)
	default:
		return nil, fmt.Errorf("%w: alternate modes for %s", ucsi.ErrNotSupported, recipient)
	}
	if _, err := os.Stat(parent); err != nil {
		return nil, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, parent)
	}
	modes = []ucsi.AlternateMode{}
	for i := 0; ; i++ {
		dir := filepath.Join(parent, fmt.Sprintf("%s.%d", prefix, i))
		if _, err := os.Stat(dir); err != nil {
			break
		}
		svid, err := readHexUint32(filepath.Join(dir, "svid"))
		if err != nil {
			return nil, err
		}
		vdo, err := readHexUint32(filepath.Join(dir, "vdo"))
		if err != nil {
			return nil, err
		}
		modes = append(modes, ucsi.AlternateMode{SVID: uint16(svid), VDO: vdo})
	}
	return modes, nil
}

// CableProperty reads the cable device's attributes. A connector with no
// cable device yields ucsi.ErrNotSupported.
func (b *Backend) CableProperty(connector int) (cp ucsi.CableProperty, err error) {
	defer func() { ucsi.ObserveBackendOp("sysfs", "cable_property", err) }()
	dir := b.cablePath(connector)
	plug, err := readString(filepath.Join(dir, "plug_type"))
	if err != nil {
		return ucsi.CableProperty{}, err
	}
	switch {
	case strings.Contains(plug, "type-c"):
		cp.PlugEndType = ucsi.PlugTypeC
	case strings.Contains(plug, "type-a"):
		cp.PlugEndType = ucsi.PlugTypeA
	case strings.Contains(plug, "type-b"):
		cp.PlugEndType = ucsi.PlugTypeB
	default:
		cp.PlugEndType = ucsi.PlugTypeOther
	}
	typ, err := readString(filepath.Join(dir, "type"))
	if err != nil {
		return ucsi.CableProperty{}, err
	}
	switch {
	case strings.Contains(typ, "active"):
		cp.CableType = ucsi.CableTypeActive
	case strings.Contains(typ, "passive"):
		cp.CableType = ucsi.CableTypePassive
	default:
		return ucsi.CableProperty{}, &ucsi.ParseError{Field: "cable_type", Value: typ}
	}
	n, err := readUint(filepath.Join(dir, fmt.Sprintf("port%d-plug0", connector), "number_of_alternate_modes"))
	if err == nil {
		cp.ModeSupport = n > 0
	}
	if rev, err := readBCD(filepath.Join(dir, "usb_power_delivery_revision")); err == nil {
		cp.PDRevision = uint8(rev >> 8)
	}
	return cp, nil
}

// ConnectorStatus reports attachment from the partner device's presence and
// the negotiated power level from the connector's UCSI power supply.
func (b *Backend) ConnectorStatus(connector int) (st ucsi.ConnectorStatus, err error) {
	defer func() { ucsi.ObserveBackendOp("sysfs", "connector_status", err) }()
	if _, err := os.Stat(b.partnerPath(connector)); err == nil {
		st.Connected = true
	}
	psy := filepath.Join(b.psyRoot, fmt.Sprintf("ucsi-source-psy-USBC000:00%d", connector+1))
	online, err := readUint(filepath.Join(psy, "online"))
	if err != nil {
		return ucsi.ConnectorStatus{}, err
	}
	if online == 0 {
		return st, nil
	}
	st.PowerDirection = ucsi.PowerConsumer
	// Power supply class reports microvolts and microamps.
	cur, err := readUint(filepath.Join(psy, "current_now"))
	if err != nil {
		return ucsi.ConnectorStatus{}, err
	}
	volt, err := readUint(filepath.Join(psy, "voltage_now"))
	if err != nil {
		return ucsi.ConnectorStatus{}, err
	}
	opMW := (cur / 1000) * (volt / 1000) / (250 * 1000)
	cur, err = readUint(filepath.Join(psy, "current_max"))
	if err != nil {
		return ucsi.ConnectorStatus{}, err
	}
	volt, err = readUint(filepath.Join(psy, "voltage_max"))
	if err != nil {
		return ucsi.ConnectorStatus{}, err
	}
	maxMW := (cur / 1000) * (volt / 1000) / (250 * 1000)
	st.NegotiatedPowerLevel = uint32(opMW<<10 | maxMW&0x3ff)
	return st, nil
}

// PDMessage reads identity VDOs from the partner or cable identity
// directory. Only discover identity responses are representable in sysfs.
func (b *Backend) PDMessage(connector int, recipient pd.MessageRecipient, responseType pd.MessageResponseType) (msg pd.Message, err error) {
	defer func() { ucsi.ObserveBackendOp("sysfs", "pd_message", err) }()
	if responseType != pd.ResponseDiscoverIdentity {
		return pd.Message{}, fmt.Errorf("%w: response type %s", ucsi.ErrNotSupported, responseType)
	}
	var dir string
	switch recipient {
	case pd.RecipientSOP:
		dir = filepath.Join(b.root, fmt.Sprintf("port%d-partner", connector), "identity")
	case pd.RecipientSOPPrime:
		dir = filepath.Join(b.cablePath(connector), "identity")
	default:
		return pd.Message{}, fmt.Errorf("%w: identity for %s", ucsi.ErrNotSupported, recipient)
	}
	if _, err := os.Stat(dir); err != nil {
		return pd.Message{}, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, dir)
	}
	var id pd.DiscoverIdentity
	idh, err := readHexUint32(filepath.Join(dir, "id_header"))
	if err != nil {
		return pd.Message{}, err
	}
	hdr, err := pd.DecodeIDHeader(idh)
	if err != nil {
		return pd.Message{}, err
	}
	id.IDHeader = hdr
	xid, err := readHexUint32(filepath.Join(dir, "cert_stat"))
	if err != nil {
		return pd.Message{}, err
	}
	id.CertStat = pd.CertStat{XID: xid}
	prod, err := readHexUint32(filepath.Join(dir, "product"))
	if err != nil {
		return pd.Message{}, err
	}
	id.Product = pd.DecodeProduct(prod)
	for i := range id.ProductTypeVDOs {
		v, err := readHexUint32(filepath.Join(dir, fmt.Sprintf("product_type_vdo%d", i+1)))
		if err != nil {
			return pd.Message{}, err
		}
		id.ProductTypeVDOs[i] = v
	}
	return pd.Message{
		Recipient:    recipient,
		ResponseType: pd.ResponseDiscoverIdentity,
		Identity:     id,
	}, nil
}

// PDOs reads the power delivery capability directories of the connector or
// its partner. Each PDO is a directory whose name carries its kind and whose
// files carry the decoded fields in millivolts, milliamps and milliwatts.
func (b *Backend) PDOs(connector int, partner bool, offset, count int, typ ucsi.PDOType, caps ucsi.SourceCapabilitiesType, rev pd.Revision) (pdos []pd.PDO, err error) {
	defer func() { ucsi.ObserveBackendOp("sysfs", "pdos", err) }()
	base := b.portPath(connector)
	if partner {
		base = b.partnerPath(connector)
	}
	set := "sink-capabilities"
	if typ == ucsi.PDOSource {
		set = "source-capabilities"
	}
	dir := filepath.Join(base, "usb_power_delivery", set)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, dir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		p, err := readPDODir(filepath.Join(dir, name), name, typ)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		pdos = append(pdos, *p)
	}
	if offset >= len(pdos) {
		return []pd.PDO{}, nil
	}
	pdos = pdos[offset:]
	if count > 0 && count < len(pdos) {
		pdos = pdos[:count]
	}
	return pdos, nil
}

// readPDODir decodes one PDO directory. Directory names carry the object
// position and kind, e.g. "1:fixed_supply". Unknown kinds are skipped.
func readPDODir(dir, name string, typ ucsi.PDOType) (*pd.PDO, error) {
	switch {
	case strings.Contains(name, "fixed"):
		var f pd.FixedSupply
		f.DualRolePower, _ = readFlag(filepath.Join(dir, "dual_role_power"))
		f.HigherCapability, _ = readFlag(filepath.Join(dir, "higher_capability"))
		f.UnconstrainedPower, _ = readFlag(filepath.Join(dir, "unconstrained_power"))
		f.USBCommunicationsCapable, _ = readFlag(filepath.Join(dir, "usb_communication_capable"))
		f.DualRoleData, _ = readFlag(filepath.Join(dir, "dual_role_data"))
		frsFile, curFile := "fast_role_swap", "maximum_current"
		if typ == ucsi.PDOSink {
			frsFile, curFile = "fast_role_swap_current", "operational_current"
		}
		if frs, err := readUint(filepath.Join(dir, frsFile)); err == nil {
			if frs > uint64(pd.FastRoleSwap3A0) {
				return nil, &ucsi.ParseError{Field: "fast_role_swap", Value: fmt.Sprintf("%d", frs)}
			}
			f.FastRoleSwap = pd.FastRoleSwap(frs)
		}
		v, err := readUint(filepath.Join(dir, "voltage"))
		if err != nil {
			return nil, err
		}
		f.Voltage = uint16(v)
		c, err := readUint(filepath.Join(dir, curFile))
		if err != nil {
			return nil, err
		}
		f.MaxCurrent = uint16(c)
		return &pd.PDO{Kind: pd.KindFixedSupply, Fixed: f}, nil
	case strings.Contains(name, "variable"):
		var v pd.VariableSupply
		maxV, err := readUint(filepath.Join(dir, "maximum_voltage"))
		if err != nil {
			return nil, err
		}
		minV, err := readUint(filepath.Join(dir, "minimum_voltage"))
		if err != nil {
			return nil, err
		}
		curFile := "maximum_current"
		if typ == ucsi.PDOSink {
			curFile = "operational_current"
		}
		cur, err := readUint(filepath.Join(dir, curFile))
		if err != nil {
			return nil, err
		}
		v.MaxVoltage, v.MinVoltage, v.MaxCurrent = uint16(maxV), uint16(minV), uint16(cur)
		return &pd.PDO{Kind: pd.KindVariableSupply, Variable: v}, nil
	case strings.Contains(name, "battery"):
		var bt pd.BatterySupply
		maxV, err := readUint(filepath.Join(dir, "maximum_voltage"))
		if err != nil {
			return nil, err
		}
		minV, err := readUint(filepath.Join(dir, "minimum_voltage"))
		if err != nil {
			return nil, err
		}
		powFile := "maximum_power"
		if typ == ucsi.PDOSink {
			powFile = "operational_power"
		}
		pow, err := readUint(filepath.Join(dir, powFile))
		if err != nil {
			return nil, err
		}
		bt.MaxVoltage, bt.MinVoltage, bt.MaxPower = uint16(maxV), uint16(minV), uint32(pow)
		return &pd.PDO{Kind: pd.KindBattery, Battery: bt}, nil
	case strings.Contains(name, "programmable"):
		var ps pd.ProgrammableSupply
		maxV, err := readUint(filepath.Join(dir, "maximum_voltage"))
		if err != nil {
			return nil, err
		}
		minV, err := readUint(filepath.Join(dir, "minimum_voltage"))
		if err != nil {
			return nil, err
		}
		cur, err := readUint(filepath.Join(dir, "maximum_current"))
		if err != nil {
			return nil, err
		}
		ps.MaxVoltage, ps.MinVoltage, ps.MaxCurrent = uint16(maxV), uint16(minV), uint16(cur)
		return &pd.PDO{Kind: pd.KindPPS, PPS: ps}, nil
	}
	return nil, nil
}

// Close is a no-op; the backend holds no file handles between operations.
func (b *Backend) Close() error {
	return nil
}
