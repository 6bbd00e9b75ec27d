package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the Prometheus metrics for cashier operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Logins          *prometheus.CounterVec
	Recognitions    *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	Transactions    *prometheus.CounterVec
	CaptureUploads  *prometheus.CounterVec
}

// New creates the metrics on a private registry so several sessions (and tests)
// can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashier_logins_total",
			Help: "Operator login attempts by result",
		}, []string{"result"}),
		Recognitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashier_recognitions_total",
			Help: "Biometric recognition responses by classification",
		}, []string{"match"}),
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashier_reconciliations_total",
			Help: "Identity reconciliations by type and result",
		}, []string{"type", "result"}),
		Transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashier_transactions_total",
			Help: "Submitted transactions by result",
		}, []string{"result"}),
		CaptureUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cashier_capture_uploads_total",
			Help: "Capture loop uploads by result",
		}, []string{"result"}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// ObserveLogin records a login attempt.
func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result(ok)).Inc()
}

// ObserveRecognition records a recognition response; isNew marks an unknown face.
func (m *Metrics) ObserveRecognition(isNew bool) {
	if m == nil {
		return
	}
	match := "existing"
	if isNew {
		match = "new"
	}
	m.Recognitions.WithLabelValues(match).Inc()
}

// ObserveReconciliation records a merge or correct action.
func (m *Metrics) ObserveReconciliation(kind string, ok bool) {
	if m == nil {
		return
	}
	m.Reconciliations.WithLabelValues(kind, result(ok)).Inc()
}

// ObserveTransaction records a transaction submission.
func (m *Metrics) ObserveTransaction(ok bool) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(result(ok)).Inc()
}

// ObserveCaptureUpload records an upload from the capture loop.
func (m *Metrics) ObserveCaptureUpload(ok bool) {
	if m == nil {
		return
	}
	m.CaptureUploads.WithLabelValues(result(ok)).Inc()
}
