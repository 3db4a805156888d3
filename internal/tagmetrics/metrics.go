// Package tagmetrics defines the prometheus instrumentation exposed by a
// running tagfdd: commit counts, poll-wake latency, and admin-busy
// rejections.
//
// Rather than registering into prometheus's global DefaultRegisterer, a
// Set owns its own prometheus.Registry so that multiple Cores (one per
// test, or one per daemon instance in a single process) never collide on
// metric names.
package tagmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set is one Core's worth of metrics.
type Set struct {
	Registry *prometheus.Registry

	TagsCreated     prometheus.Counter
	CreateRejected  *prometheus.CounterVec
	Commits         *prometheus.CounterVec
	CommitRejected  *prometheus.CounterVec
	PollWaitLatency prometheus.Histogram
	AdminBusyTotal  prometheus.Counter
}

// New constructs a Set backed by a fresh, private prometheus.Registry.
func New() *Set {
	reg := prometheus.NewRegistry()

	s := &Set{
		Registry: reg,
		TagsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tagfd_tags_created_total",
			Help: "Number of tags successfully created.",
		}),
		CreateRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagfd_create_rejected_total",
			Help: "Number of tag creation requests rejected, by error code.",
		}, []string{"code"}),
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagfd_commits_total",
			Help: "Number of values successfully committed, by tag name.",
		}, []string{"tag"}),
		CommitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tagfd_commit_rejected_total",
			Help: "Number of rejected writes, by error code.",
		}, []string{"code"}),
		PollWaitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tagfd_poll_wait_latency_seconds",
			Help:    "Time a blocking read spent suspended before waking.",
			Buckets: prometheus.ExponentialBucketsRange(0.001, 60, 15),
		}),
		AdminBusyTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tagfd_admin_busy_total",
			Help: "Number of administrative opens rejected because the channel was already held.",
		}),
	}

	reg.MustRegister(
		s.TagsCreated,
		s.CreateRejected,
		s.Commits,
		s.CommitRejected,
		s.PollWaitLatency,
		s.AdminBusyTotal,
	)
	return s
}
