// Package metrics declares the Prometheus collectors of the matching service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Joins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ventishh_queue_joins_total",
		Help: "Queue joins accepted, by role",
	}, []string{"role"})

	Leaves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventishh_queue_leaves_total",
		Help: "Leave requests that removed an entry",
	})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ventishh_validation_failures_total",
		Help: "Requests rejected by validation, by reason",
	}, []string{"reason"})

	Matches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ventishh_matches_total",
		Help: "Connections created by the matcher",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ventishh_connection_transitions_total",
		Help: "Connection status transitions that changed a row",
	}, []string{"to"})

	Waiting = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ventishh_queue_waiting",
		Help: "Online entries waiting in the queue at the last snapshot, by role",
	}, []string{"role"})

	PresenceSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ventishh_presence_swept_total",
		Help: "Queue entries changed by the presence sweeper",
	}, []string{"action"})

	PushClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ventishh_push_clients",
		Help: "WebSocket clients registered in the hub",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ventishh_http_requests_total",
		Help: "HTTP requests served, by method, route and status",
	}, []string{"method", "route", "status"})
)
