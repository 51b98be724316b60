package ucsi

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/usbctools/go-ucsi/pd"
)

var (
	backendOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucsi_backend_operations_total",
			Help: "Number of backend operations by backend, operation and outcome.",
		},
		[]string{"backend", "operation", "outcome"},
	)
	backendTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucsi_backend_timeouts_total",
			Help: "Number of backend operations that timed out, by backend.",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(backendOperationsTotal, backendTimeoutsTotal)
}

// ObserveBackendOp records the outcome of one backend operation. Backends
// call this on every public operation.
func ObserveBackendOp(backend, operation string, err error) {
	backendOperationsTotal.WithLabelValues(backend, operation, outcomeLabel(err)).Inc()
	if errors.Is(err, ErrTimeout) {
		backendTimeoutsTotal.WithLabelValues(backend).Inc()
	}
}

func outcomeLabel(err error) string {
	var pe *ParseError
	var pdErr *pd.ParseError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotSupported):
		return "not_supported"
	case errors.Is(err, ErrInvalidIndex):
		return "invalid_index"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &pe), errors.As(err, &pdErr), errors.Is(err, pd.ErrUnknownRevision):
		return "parse_error"
	default:
		return "io_error"
	}
}
