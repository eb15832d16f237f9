package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locationWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driveradar",
		Name:      "location_writes_total",
		Help:      "Total visitor location pings persisted",
	})
	loginFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driveradar",
		Name:      "admin_login_failures_total",
		Help:      "Total rejected admin login attempts",
	})
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driveradar",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)
)
