// Package backends opens platform backends by kind.
package backends

import (
	"fmt"

	ucsi "github.com/usbctools/go-ucsi"
	"github.com/usbctools/go-ucsi/backends/debugfs"
	"github.com/usbctools/go-ucsi/backends/sysfs"
)

// Open returns a backend of the given kind. A nil cfg uses defaults. Open
// returns ucsi.ErrNotSupported when the platform does not expose the
// mechanism the kind needs.
func Open(kind ucsi.BackendKind, cfg *ucsi.Config) (ucsi.Backend, error) {
	if cfg == nil {
		cfg = ucsi.DefaultConfig()
	}
	switch kind {
	case ucsi.BackendSysfs:
		return sysfs.New(cfg)
	case ucsi.BackendDebugfs:
		return debugfs.New(cfg)
	}
	return nil, fmt.Errorf("%w: backend kind %d", ucsi.ErrNotSupported, kind)
}
