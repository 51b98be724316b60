package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ucsi "github.com/usbctools/go-ucsi"
	"github.com/usbctools/go-ucsi/pd"
)

// writeTree builds a sysfs-like fixture from a map of relative file paths to
// contents. Directories are created as needed.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content+"\n"), 0o644))
	}
}

func hex32(v uint32) string {
	return fmt.Sprintf("%08x", v)
}

func newTestBackend(t *testing.T, files map[string]string) *Backend {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	b, err := New(&ucsi.Config{SysfsRoot: root, PowerSupplyRoot: filepath.Join(root, "psy")})
	require.NoError(t, err)
	return b
}

func TestNewMissingRoot(t *testing.T) {
	_, err := New(&ucsi.Config{SysfsRoot: filepath.Join(t.TempDir(), "nope")})
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)
}

func TestCapabilities(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/usb_power_delivery_revision": "3.1",
		"port0/usb_typec_revision":          "2.0",
		"port0/port0.0/svid":                "ff01",
		"port0/port0.1/svid":                "8087",
		"port1/usb_power_delivery_revision": "3.1",
		"port1/usb_typec_revision":          "2.0",
	})
	caps, err := b.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, 2, caps.NumConnectors)
	assert.Equal(t, 2, caps.NumAltModes)
	assert.Equal(t, pd.Revision31, caps.PDVersion)
	assert.Equal(t, pd.Revision20, caps.TypeCVersion)
	assert.True(t, caps.Attributes.Has(ucsi.AttrUSBPowerDelivery))
}

func TestCapabilitiesNoPorts(t *testing.T) {
	b := newTestBackend(t, map[string]string{"unrelated/file": "x"})
	_, err := b.Capabilities()
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)
}

func TestConnectorCapability(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/power_role": "[source] sink",
		"port0/port0-partner/usb_power_delivery_revision": "3.0",
	})
	cc, err := b.ConnectorCapability(0)
	require.NoError(t, err)
	assert.Equal(t, ucsi.OperationModeDRP, cc.OperationMode)
	assert.True(t, cc.Provider)
	assert.True(t, cc.Consumer)
	assert.Equal(t, uint8(3), cc.PartnerPDRevision)
}

func TestConnectorCapabilityBadRole(t *testing.T) {
	b := newTestBackend(t, map[string]string{"port0/power_role": "confused"})
	_, err := b.ConnectorCapability(0)
	var pe *ucsi.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestAlternateModesEmptyVsUnsupported(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/power_role": "[source] sink",
		"port0/port0-partner/usb_power_delivery_revision": "3.0",
	})

	// The connector exists but registered no modes: empty, not an error.
	modes, err := b.AlternateModes(ucsi.RecipientConnector, 0)
	require.NoError(t, err)
	assert.Empty(t, modes)

	// No cable plug device at all: unsupported.
	_, err = b.AlternateModes(ucsi.RecipientSOPPrime, 0)
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)

	// SOP'' is never representable in sysfs.
	_, err = b.AlternateModes(ucsi.RecipientSOPDoublePrime, 0)
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)
}

func TestAlternateModes(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/port0.0/svid": "ff01",
		"port0/port0.0/vdo":  "0x00000405",
		"port0/port0.1/svid": "8087",
		"port0/port0.1/vdo":  "0x1",
	})
	modes, err := b.AlternateModes(ucsi.RecipientConnector, 0)
	require.NoError(t, err)
	require.Len(t, modes, 2)
	assert.Equal(t, uint16(0xff01), modes[0].SVID)
	assert.Equal(t, uint32(0x405), modes[0].VDO)
	assert.Equal(t, uint16(0x8087), modes[1].SVID)
}

func TestAlternateModesBadSVID(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/port0.0/svid": "not-hex",
		"port0/port0.0/vdo":  "0x1",
	})
	_, err := b.AlternateModes(ucsi.RecipientConnector, 0)
	var pe *ucsi.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestCableProperty(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0-cable/plug_type": "type-c",
		"port0-cable/type":      "active",
		"port0-cable/port0-plug0/number_of_alternate_modes": "1",
		"port0-cable/usb_power_delivery_revision":           "3.0",
	})
	cp, err := b.CableProperty(0)
	require.NoError(t, err)
	assert.Equal(t, ucsi.PlugTypeC, cp.PlugEndType)
	assert.Equal(t, ucsi.CableTypeActive, cp.CableType)
	assert.True(t, cp.ModeSupport)
	assert.Equal(t, uint8(3), cp.PDRevision)
}

func TestCablePropertyNoCable(t *testing.T) {
	b := newTestBackend(t, map[string]string{"port0/power_role": "[source] sink"})
	_, err := b.CableProperty(0)
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)
}

func TestConnectorStatus(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/port0-partner/usb_power_delivery_revision": "3.0",
		"psy/ucsi-source-psy-USBC000:001/online":          "1",
		"psy/ucsi-source-psy-USBC000:001/current_now":     "3000000",
		"psy/ucsi-source-psy-USBC000:001/voltage_now":     "5000000",
		"psy/ucsi-source-psy-USBC000:001/current_max":     "3000000",
		"psy/ucsi-source-psy-USBC000:001/voltage_max":     "5000000",
	})
	st, err := b.ConnectorStatus(0)
	require.NoError(t, err)
	assert.True(t, st.Connected)
	// 15W is 60 units of 250mW in both halves of the power level.
	assert.Equal(t, uint32(60<<10|60), st.NegotiatedPowerLevel)
}

func TestPDMessageIdentity(t *testing.T) {
	idh := pd.IDHeader{
		USBDeviceCapable: true,
		UFPProductType:   pd.UFPProductTypePeripheral,
		ConnectorType:    pd.ConnectorTypeReceptacle,
		VendorID:         0x05ac,
	}
	b := newTestBackend(t, map[string]string{
		"port0-partner/identity/id_header":         "0x" + hex32(idh.Word()),
		"port0-partner/identity/cert_stat":         "0xdeadbeef",
		"port0-partner/identity/product":           "0x12340210",
		"port0-partner/identity/product_type_vdo1": "0x1",
		"port0-partner/identity/product_type_vdo2": "0x0",
		"port0-partner/identity/product_type_vdo3": "0x0",
	})
	msg, err := b.PDMessage(0, pd.RecipientSOP, pd.ResponseDiscoverIdentity)
	require.NoError(t, err)
	assert.Equal(t, idh, msg.Identity.IDHeader)
	assert.Equal(t, uint32(0xdeadbeef), msg.Identity.CertStat.XID)
	assert.Equal(t, uint16(0x1234), msg.Identity.Product.ProductID)
	assert.Equal(t, uint16(0x0210), msg.Identity.Product.Device)

	_, err = b.PDMessage(0, pd.RecipientSOPPrime, pd.ResponseDiscoverIdentity)
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)
	_, err = b.PDMessage(0, pd.RecipientSOP, pd.ResponseBatteryStatus)
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)
}

func TestPDOs(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/dual_role_power":           "1",
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/higher_capability":         "0",
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/unconstrained_power":       "1",
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/usb_communication_capable": "1",
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/dual_role_data":            "0",
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/fast_role_swap":            "0",
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/voltage":                   "5000mV",
		"port0/usb_power_delivery/source-capabilities/1:fixed_supply/maximum_current":           "3000mA",
		"port0/usb_power_delivery/source-capabilities/2:variable_supply/maximum_voltage":        "21000mV",
		"port0/usb_power_delivery/source-capabilities/2:variable_supply/minimum_voltage":        "5000mV",
		"port0/usb_power_delivery/source-capabilities/2:variable_supply/maximum_current":        "2000mA",
	})
	pdos, err := b.PDOs(0, false, 0, 0, ucsi.PDOSource, ucsi.CurrentSupportedSourceCapabilities, pd.Revision30)
	require.NoError(t, err)
	require.Len(t, pdos, 2)
	assert.Equal(t, pd.KindFixedSupply, pdos[0].Kind)
	assert.Equal(t, uint16(5000), pdos[0].Fixed.Voltage)
	assert.Equal(t, uint16(3000), pdos[0].Fixed.MaxCurrent)
	assert.True(t, pdos[0].Fixed.DualRolePower)
	assert.Equal(t, pd.KindVariableSupply, pdos[1].Kind)
	assert.Equal(t, uint16(21000), pdos[1].Variable.MaxVoltage)

	// Offset past the end yields an empty set.
	pdos, err = b.PDOs(0, false, 5, 0, ucsi.PDOSource, ucsi.CurrentSupportedSourceCapabilities, pd.Revision30)
	require.NoError(t, err)
	assert.Empty(t, pdos)

	// Count slices the result.
	pdos, err = b.PDOs(0, false, 0, 1, ucsi.PDOSource, ucsi.CurrentSupportedSourceCapabilities, pd.Revision30)
	require.NoError(t, err)
	require.Len(t, pdos, 1)
	assert.Equal(t, pd.KindFixedSupply, pdos[0].Kind)
}

func TestPDOsPartnerSink(t *testing.T) {
	b := newTestBackend(t, map[string]string{
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/dual_role_power":        "0",
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/higher_capability":      "0",
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/unconstrained_power":    "0",
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/usb_communication_capable": "0",
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/dual_role_data":         "0",
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/fast_role_swap_current":  "2",
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/voltage":                "5000mV",
		"port0/port0-partner/usb_power_delivery/sink-capabilities/1:fixed_supply/operational_current":    "1500mA",
	})
	pdos, err := b.PDOs(0, true, 0, 0, ucsi.PDOSink, ucsi.CurrentSupportedSourceCapabilities, pd.Revision30)
	require.NoError(t, err)
	require.Len(t, pdos, 1)
	assert.Equal(t, pd.FastRoleSwap1A5, pdos[0].Fixed.FastRoleSwap)
	assert.Equal(t, uint16(1500), pdos[0].Fixed.MaxCurrent)
}

func TestPDOsNoCapabilities(t *testing.T) {
	b := newTestBackend(t, map[string]string{"port0/power_role": "[source] sink"})
	_, err := b.PDOs(0, false, 0, 0, ucsi.PDOSource, ucsi.CurrentSupportedSourceCapabilities, pd.Revision30)
	assert.ErrorIs(t, err, ucsi.ErrNotSupported)
}
