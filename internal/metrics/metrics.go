package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelbooking",
			Name:      "booking_transitions_total",
			Help:      "Count of booking lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelbooking",
			Name:      "notifications_total",
			Help:      "Count of notification attempts by kind and result.",
		},
		[]string{"kind", "result"},
	)

	mirrorWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelbooking",
			Name:      "mirror_writes_total",
			Help:      "Count of best-effort mirror writes by mirror and result.",
		},
		[]string{"mirror", "result"},
	)

	primaryStoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotelbooking",
			Name:      "primary_store_errors_total",
			Help:      "Count of primary store failures by operation.",
		},
		[]string{"op"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingTransitions, notifications, mirrorWrites, primaryStoreErrors)
	})
}

func IncTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

func IncNotification(kind, result string) {
	notifications.WithLabelValues(kind, result).Inc()
}

func IncMirrorWrite(mirror string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	mirrorWrites.WithLabelValues(mirror, result).Inc()
}

// IncMirrorStale counts writes a mirror refused because it held a newer copy.
func IncMirrorStale(mirror string) {
	mirrorWrites.WithLabelValues(mirror, "stale").Inc()
}

func IncPrimaryStoreError(op string) {
	primaryStoreErrors.WithLabelValues(op).Inc()
}
