package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Bus adapter metrics
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec

	// Consumer metrics
	consumeTotal     *prometheus.CounterVec
	consumeDuration  *prometheus.HistogramVec
	messagesConsumed *prometheus.CounterVec
	ackTotal         *prometheus.CounterVec

	// Controller/Database metrics
	databaseOperationTotal    *prometheus.CounterVec
	databaseOperationDuration *prometheus.HistogramVec
	leaseOperationTotal       *prometheus.CounterVec

	// Routing metrics
	routeChangesTotal  *prometheus.CounterVec
	routesCount        prometheus.Gauge
	announcementsTotal *prometheus.CounterVec

	// Event store metrics
	factsAppendedTotal *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	subscribersCount   prometheus.Gauge

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_bus_publish_total",
				Help: "Total number of events sent through the bus adapter",
			},
			[]string{"endpoint", "kind", "status"}, // endpoint: channel, stream
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cybnity_bus_publish_duration_seconds",
				Help:    "Time spent publishing or appending an event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),

		consumeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_consumer_pull_total",
				Help: "Total number of pull operations",
			},
			[]string{"topic", "subscription", "status"}, // status: success, error, empty
		),

		consumeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cybnity_consumer_pull_duration_seconds",
				Help:    "Time spent pulling and dispatching messages",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic", "subscription"},
		),

		messagesConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_consumer_messages_consumed_total",
				Help: "Total number of messages consumed",
			},
			[]string{"topic", "subscription"},
		),

		ackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_consumer_ack_total",
				Help: "Total number of message acknowledgments",
			},
			[]string{"topic", "subscription", "status"},
		),

		databaseOperationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_database_operation_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		databaseOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cybnity_database_operation_duration_seconds",
				Help:    "Time spent on database operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),

		leaseOperationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_lease_operation_total",
				Help: "Total number of lease operations",
			},
			[]string{"operation", "status"}, // operation: create, delete
		),

		routeChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_routing_route_changes_total",
				Help: "Total number of changes applied to the route recipient list",
			},
			[]string{"operation"}, // operation: added, updated, removed
		),

		routesCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cybnity_routing_routes",
				Help: "Number of event types currently routed",
			},
		),

		announcementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_routing_announcements_total",
				Help: "Total number of presence announcements handled",
			},
			[]string{"status"}, // status: changed, unchanged, rejected
		),

		factsAppendedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_eventstore_appended_total",
				Help: "Total number of facts appended to the event store",
			},
			[]string{"kind", "status"},
		),

		notificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cybnity_publisher_notifications_total",
				Help: "Total number of subscriber notifications",
			},
			[]string{"kind"},
		),

		subscribersCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cybnity_publisher_subscribers",
				Help: "Number of registered publisher subscribers",
			},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cybnity_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"service", "version"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cybnity_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.publishTotal,
		r.publishDuration,
		r.consumeTotal,
		r.consumeDuration,
		r.messagesConsumed,
		r.ackTotal,
		r.databaseOperationTotal,
		r.databaseOperationDuration,
		r.leaseOperationTotal,
		r.routeChangesTotal,
		r.routesCount,
		r.announcementsTotal,
		r.factsAppendedTotal,
		r.notificationsTotal,
		r.subscribersCount,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordBusPublish records one publish (channels) or append (stream) call
func (r *Registry) RecordBusPublish(endpoint, kind string, duration time.Duration, err error) {
	r.publishTotal.WithLabelValues(endpoint, kind, status(err)).Inc()
	r.publishDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordConsumerPull records a consumer pull operation
func (r *Registry) RecordConsumerPull(topic, subscription string, messagesConsumed int, duration time.Duration, err error) {
	s := status(err)
	if err == nil && messagesConsumed == 0 {
		s = "empty"
	}

	r.consumeTotal.WithLabelValues(topic, subscription, s).Inc()
	r.consumeDuration.WithLabelValues(topic, subscription).Observe(duration.Seconds())
	if messagesConsumed > 0 {
		r.messagesConsumed.WithLabelValues(topic, subscription).Add(float64(messagesConsumed))
	}
}

// RecordConsumerAck records a consumer acknowledgment operation
func (r *Registry) RecordConsumerAck(topic, subscription string, err error) {
	r.ackTotal.WithLabelValues(topic, subscription, status(err)).Inc()
}

// RecordDatabaseOperation records a database operation
func (r *Registry) RecordDatabaseOperation(operation string, duration time.Duration, err error) {
	r.databaseOperationTotal.WithLabelValues(operation, status(err)).Inc()
	r.databaseOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLeaseOperation records a lease operation
func (r *Registry) RecordLeaseOperation(operation string, err error) {
	r.leaseOperationTotal.WithLabelValues(operation, status(err)).Inc()
}

// RecordRouteChange records one effective change of the route recipient list
func (r *Registry) RecordRouteChange(operation string) {
	r.routeChangesTotal.WithLabelValues(operation).Inc()
}

// SetRoutesCount updates the routed event types gauge
func (r *Registry) SetRoutesCount(n int) {
	r.routesCount.Set(float64(n))
}

// RecordAnnouncement records the outcome of a presence announcement
func (r *Registry) RecordAnnouncement(outcome string) {
	r.announcementsTotal.WithLabelValues(outcome).Inc()
}

// RecordFactAppended records an event store append
func (r *Registry) RecordFactAppended(kind string, err error) {
	r.factsAppendedTotal.WithLabelValues(kind, status(err)).Inc()
}

// RecordNotifications records how many subscribers received an event of kind
func (r *Registry) RecordNotifications(kind string, notified int) {
	if notified > 0 {
		r.notificationsTotal.WithLabelValues(kind).Add(float64(notified))
	}
}

// SetSubscribers updates the registered subscribers gauge
func (r *Registry) SetSubscribers(n int) {
	r.subscribersCount.Set(float64(n))
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(service, version string) {
	r.systemInfo.WithLabelValues(service, version).Set(1)
}

func status(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
