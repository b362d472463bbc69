package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the credential module: issuance volume
// per type and the latency of the issue-plus-summary critical path.
type Metrics struct {
	CredentialsIssued *prometheus.CounterVec
	CredentialsStored prometheus.Counter
	SummariesRebuilt  prometheus.Counter
	IssueDuration     prometheus.Histogram
}

// New creates a Metrics instance with all credential module metrics registered.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "miw_credentials_issued_total",
			Help: "Total number of credentials issued, by credential type",
		}, []string{"type"}),
		CredentialsStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "miw_credentials_stored_total",
			Help: "Total number of externally produced credentials stored",
		}),
		SummariesRebuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "miw_summaries_rebuilt_total",
			Help: "Total number of summary credential rewrites",
		}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "miw_credential_issue_duration_seconds",
			Help:    "Duration of credential issuance including the summary rewrite",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveIssue records the duration of an issuance. Call with time.Now() from
// the start of the operation.
func (m *Metrics) ObserveIssue(start time.Time) {
	m.IssueDuration.Observe(time.Since(start).Seconds())
}
