package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for roster gates and the registry sync job.
type Metrics struct {
	GateRejections    *prometheus.CounterVec
	SyncRuns          *prometheus.CounterVec
	SyncPlayers       *prometheus.CounterVec
	SyncNotifications *prometheus.CounterVec
	SyncRemovals      prometheus.Counter
	SyncDuration      prometheus.Histogram
}

// New registers the metrics with the default Prometheus registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_gate_rejections_total",
			Help: "Roster mutations rejected by a validation gate, by rejection code",
		}, []string{"code"}),

		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_sync_runs_total",
			Help: "Registry sync runs by outcome",
		}, []string{"outcome"}), // outcome: "completed", "failed", "skipped", "disabled"

		SyncPlayers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_sync_players_total",
			Help: "Players processed by the registry sync job, by result",
		}, []string{"result"}), // result: "updated", "deactivated", "failed"

		SyncNotifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_sync_notifications_total",
			Help: "Ineligibility notifications sent to team admins, by status",
		}, []string{"status"}),

		SyncRemovals: factory.NewCounter(prometheus.CounterOpts{
			Name: "roster_sync_removals_total",
			Help: "Ineligible players removed from future-season rosters",
		}),

		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "roster_sync_duration_seconds",
			Help:    "Duration of a full registry sync run",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// IncrementGateRejection records a rejected roster mutation.
func (m *Metrics) IncrementGateRejection(code string) {
	if m != nil {
		m.GateRejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncrementSyncRun(outcome string) {
	if m != nil {
		m.SyncRuns.WithLabelValues(outcome).Inc()
	}
}

// AddSyncPlayers adds n players with the given result; n <= 0 is ignored.
func (m *Metrics) AddSyncPlayers(result string, n int) {
	if m != nil && n > 0 {
		m.SyncPlayers.WithLabelValues(result).Add(float64(n))
	}
}

func (m *Metrics) AddSyncNotifications(status string, n int) {
	if m != nil && n > 0 {
		m.SyncNotifications.WithLabelValues(status).Add(float64(n))
	}
}

func (m *Metrics) AddSyncRemovals(n int) {
	if m != nil && n > 0 {
		m.SyncRemovals.Add(float64(n))
	}
}

func (m *Metrics) ObserveSyncDuration(d time.Duration) {
	if m != nil {
		m.SyncDuration.Observe(d.Seconds())
	}
}
