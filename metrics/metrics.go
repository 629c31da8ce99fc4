// Package metrics exposes Prometheus metrics for relationships, presence,
// messaging and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services depend on. Nop satisfies it in tests.
type Recorder interface {
	RecordTransition(op, result string)
	SetOnlineUsers(n int)
	SetConnections(n int)
	RecordMessage(delivered bool)
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

type Collector struct {
	transitions  *prometheus.CounterVec
	onlineUsers  prometheus.Gauge
	connections  prometheus.Gauge
	messages     *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialbox_relationship_transitions_total",
			Help: "Relationship state machine operations by operation and result.",
		}, []string{"op", "result"}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socialbox_presence_online_users",
			Help: "Users holding at least one live realtime connection.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socialbox_presence_connections",
			Help: "Live realtime connections.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialbox_messages_total",
			Help: "Direct messages persisted, by live delivery outcome.",
		}, []string{"delivered"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialbox_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialbox_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.transitions,
		c.onlineUsers,
		c.connections,
		c.messages,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

func (c *Collector) RecordTransition(op, result string) {
	c.transitions.WithLabelValues(op, result).Inc()
}

func (c *Collector) SetOnlineUsers(n int) {
	c.onlineUsers.Set(float64(n))
}

func (c *Collector) SetConnections(n int) {
	c.connections.Set(float64(n))
}

func (c *Collector) RecordMessage(delivered bool) {
	c.messages.WithLabelValues(strconv.FormatBool(delivered)).Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTransition(string, string)                      {}
func (Nop) SetOnlineUsers(int)                                   {}
func (Nop) SetConnections(int)                                   {}
func (Nop) RecordMessage(bool)                                   {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
