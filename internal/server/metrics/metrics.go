// Package metrics holds the Prometheus collectors of the server and the HTTP
// endpoint that exposes them.
package metrics

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome label values.
const (
	OutcomeSuccess        = "success"
	OutcomeBadCredentials = "bad_credentials"
	OutcomeRejected       = "rejected"
	OutcomeError          = "error"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	AuthOperations    *prometheus.CounterVec
	BalanceOperations *prometheus.CounterVec
	BalanceAmount     *prometheus.CounterVec
	RPCDuration       *prometheus.HistogramVec
}

// New creates a private registry with the Go and process collectors and
// registers the gophbank collectors on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophbank_auth_operations_total",
				Help: "Auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		BalanceOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophbank_balance_operations_total",
				Help: "Balance mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		BalanceAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophbank_balance_amount_total",
				Help: "Sum of amounts moved by successful balance mutations",
			},
			[]string{"operation"},
		),
		RPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gophbank_grpc_request_duration_seconds",
				Help:    "gRPC request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "code"},
		),
	}

	reg.MustRegister(m.AuthOperations, m.BalanceOperations, m.BalanceAmount, m.RPCDuration)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Outcome maps a service error to an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, common.ErrorBadCredentials):
		return OutcomeBadCredentials
	case errors.Is(err, common.ErrorInternal):
		return OutcomeError
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorConflict),
		errors.Is(err, common.ErrorAccountDeleted),
		errors.Is(err, common.ErrorInsufficientFunds),
		errors.Is(err, common.ErrorSessionRevoked),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

func (m *Metrics) RecordAuth(operation string, err error) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(operation, Outcome(err)).Inc()
}

// RecordBalance counts a balance mutation; amount is added to the moved
// total only when err is nil.
func (m *Metrics) RecordBalance(operation string, amount float64, err error) {
	if m == nil {
		return
	}
	m.BalanceOperations.WithLabelValues(operation, Outcome(err)).Inc()
	if err == nil {
		m.BalanceAmount.WithLabelValues(operation).Add(amount)
	}
}

func (m *Metrics) RecordRPC(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCDuration.WithLabelValues(method, code).Observe(d.Seconds())
}
