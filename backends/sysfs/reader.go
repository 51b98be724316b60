package sysfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	ucsi "github.com/usbctools/go-ucsi"
	"github.com/usbctools/go-ucsi/pd"
)

// readString reads a sysfs attribute as trimmed text. A missing attribute
// maps to ucsi.ErrNotSupported; the platform simply does not expose it.
func readString(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ucsi.ErrNotSupported, path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// readUint reads a decimal attribute, ignoring a trailing unit suffix such
// as "mV" or "mA".
func readUint(path string) (uint64, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	digits := s
	for i, r := range s {
		if r < '0' || r > '9' {
			digits = s[:i]
			break
		}
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, &ucsi.ParseError{Field: path, Value: s}
	}
	return v, nil
}

// readHexUint32 reads a hexadecimal attribute with or without a 0x prefix.
func readHexUint32(path string) (uint32, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, &ucsi.ParseError{Field: path, Value: s}
	}
	return uint32(v), nil
}

// readFlag reads a boolean attribute written as 0 or 1.
func readFlag(path string) (bool, error) {
	v, err := readUint(path)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// readBCD reads a "major.minor" revision attribute such as
// usb_power_delivery_revision.
func readBCD(path string) (pd.Revision, error) {
	s, err := readString(path)
	if err != nil {
		return 0, err
	}
	// Some firmwares report a bare major version.
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return pd.ParseRevision(s)
}
