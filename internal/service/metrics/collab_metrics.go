package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    CollabLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "ignitex",
            Subsystem: "collab",
            Name:      "latency_seconds",
            Help:      "Latency of collaborator service calls",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    CollabErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "ignitex",
            Subsystem: "collab",
            Name:      "errors_total",
            Help:      "Errors by collaborator endpoint",
        },
        []string{"endpoint"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(CollabLatency, CollabErrors)
    })
}
