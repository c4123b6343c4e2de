package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Created = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_challenges_created_total",
		Help: "The total number of challenges created",
	})

	Consumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ucp_challenges_consumed_total",
		Help: "The total number of challenges consumed by a successful redemption",
	})

	Lifetime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ucp_challenge_lifetime_seconds",
		Help:    "Time between issuing a challenge and consuming it",
		Buckets: prometheus.ExponentialBucketsRange(0.05, 300, 12),
	})
)
