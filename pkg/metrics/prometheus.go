// Package metrics provides Prometheus metrics for the rollcall live-recognition core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by rollcall.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Sampler
	ticks              *prometheus.CounterVec
	inFlight           prometheus.Gauge
	armedGeneration    prometheus.Gauge
	recognitionLatency prometheus.Histogram
	recognitions       *prometheus.CounterVec

	// Capture device
	deviceActive       prometheus.Gauge
	activationFailures *prometheus.CounterVec
	framesCaptured     prometheus.Counter
	frameBytes         prometheus.Histogram

	// Scan status
	scanStatus      prometheus.Gauge
	scanTransitions *prometheus.CounterVec

	// Log feed
	feedPolls         *prometheus.CounterVec
	feedPushMessages  *prometheus.CounterVec
	feedPushConnected prometheus.Gauge
	feedReconnects    prometheus.Counter

	// Reconciliation store
	liveIdentities prometheus.Gauge
	recentEvents   prometheus.Gauge
	storeApplies   *prometheus.CounterVec

	// Update queue and applier
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueEnqueued   prometheus.Counter
	queueDequeued   prometheus.Counter
	queueDrops      *prometheus.CounterVec
	applierLatency  prometheus.Histogram
	applierFailures prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rollcall",
		subsystem:        "live",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets})
	}

	m.ticks = counterVec("sampler_ticks_total", "Sampler ticks by outcome (dispatched, skipped_in_flight, skipped_disarmed, capture_failed, transport_failed, discarded, applied)", "outcome")
	m.inFlight = gauge("sampler_in_flight", "1 while a recognition request is outstanding")
	m.armedGeneration = gauge("sampler_armed_generation", "Current armed generation of the sampler")
	m.recognitionLatency = histogram("recognition_latency_milliseconds", "Round trip latency of recognition requests", m.histogramBuckets)
	m.recognitions = counterVec("recognitions_total", "Recognition outcomes (matched, no_match, transport_failure)", "outcome")

	m.deviceActive = gauge("capture_device_active", "1 while the capture device holds an open stream")
	m.activationFailures = counterVec("capture_activation_failures_total", "Device activation failures by reason", "reason")
	m.framesCaptured = counter("capture_frames_total", "Frames captured and encoded")
	m.frameBytes = histogram("capture_frame_bytes", "Encoded frame size in bytes", prometheus.ExponentialBuckets(8<<10, 2, 8))

	m.scanStatus = gauge("scan_status", "Current scan status (0 idle, 1 scanning, 2 matched)")
	m.scanTransitions = counterVec("scan_transitions_total", "Scan status transitions", "from", "to")

	m.feedPolls = counterVec("feed_polls_total", "Log feed polls by result (ok, error)", "result")
	m.feedPushMessages = counterVec("feed_push_messages_total", "Pushed log messages by result (applied, malformed, duplicate, rejected)", "result")
	m.feedPushConnected = gauge("feed_push_connected", "1 while the push channel is connected")
	m.feedReconnects = counter("feed_push_reconnects_total", "Push channel reconnect attempts")

	m.liveIdentities = gauge("live_identities", "Identities in the most recent recognition result")
	m.recentEvents = gauge("recent_events", "Events held in the recent history window")
	m.storeApplies = counterVec("store_applies_total", "Store mutations by kind (recognition, snapshot, push)", "kind")

	m.queueSize = gauge("update_queue_size", "Pending updates waiting for the applier")
	m.queueCapacity = gauge("update_queue_capacity", "Capacity of the update queue")
	m.queueEnqueued = counter("update_queue_enqueued_total", "Updates accepted by the queue")
	m.queueDequeued = counter("update_queue_dequeued_total", "Updates handed to the applier")
	m.queueDrops = counterVec("update_queue_drops_total", "Updates dropped by reason (closed, full, context_cancelled)", "reason")
	m.applierLatency = histogram("applier_latency_milliseconds", "Time to apply one update to the store", []float64{0.05, 0.1, 0.5, 1, 5, 10, 50})
	m.applierFailures = counter("applier_failures_total", "Updates the applier could not apply")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint, method and status code",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = counterVec("errors_by_component_total", "Absorbed errors by component and type", "component", "error_type")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "Heap memory in use")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
}

// Sampler.

// RecordTick counts one sampler tick outcome.
func RecordTick(outcome string) {
	globalManager.ticks.WithLabelValues(outcome).Inc()
}

// UpdateInFlight reports whether a recognition request is outstanding.
func UpdateInFlight(inFlight bool) {
	globalManager.inFlight.Set(boolToFloat(inFlight))
}

// UpdateArmedGeneration sets the sampler generation gauge.
func UpdateArmedGeneration(gen uint64) {
	globalManager.armedGeneration.Set(float64(gen))
}

// RecordRecognitionLatency records one recognition round trip in milliseconds.
func RecordRecognitionLatency(latencyMs float64) {
	globalManager.recognitionLatency.Observe(latencyMs)
}

// RecordRecognition counts a classified recognition outcome.
func RecordRecognition(outcome string) {
	globalManager.recognitions.WithLabelValues(outcome).Inc()
}

// Capture.

// UpdateDeviceActive reports whether the capture device is open.
func UpdateDeviceActive(active bool) {
	globalManager.deviceActive.Set(boolToFloat(active))
}

// RecordActivationFailure counts a failed device activation.
func RecordActivationFailure(reason string) {
	globalManager.activationFailures.WithLabelValues(reason).Inc()
}

// RecordFrameCaptured counts an encoded frame and its size.
func RecordFrameCaptured(sizeBytes int) {
	globalManager.framesCaptured.Inc()
	globalManager.frameBytes.Observe(float64(sizeBytes))
}

// Scan status.

// UpdateScanStatus sets the scan status gauge.
func UpdateScanStatus(value int) {
	globalManager.scanStatus.Set(float64(value))
}

// RecordScanTransition counts a state machine transition.
func RecordScanTransition(from, to string) {
	globalManager.scanTransitions.WithLabelValues(from, to).Inc()
}

// Log feed.

// RecordFeedPoll counts a poll by result.
func RecordFeedPoll(result string) {
	globalManager.feedPolls.WithLabelValues(result).Inc()
}

// RecordFeedPushMessage counts a pushed message by result.
func RecordFeedPushMessage(result string) {
	globalManager.feedPushMessages.WithLabelValues(result).Inc()
}

// UpdateFeedPushConnected reports push channel connectivity.
func UpdateFeedPushConnected(connected bool) {
	globalManager.feedPushConnected.Set(boolToFloat(connected))
}

// RecordFeedReconnect counts a push reconnect attempt.
func RecordFeedReconnect() {
	globalManager.feedReconnects.Inc()
}

// Store.

// UpdateViewSize sets the live identity and recent event gauges.
func UpdateViewSize(live, recent int) {
	globalManager.liveIdentities.Set(float64(live))
	globalManager.recentEvents.Set(float64(recent))
}

// RecordStoreApply counts a store mutation by kind.
func RecordStoreApply(kind string) {
	globalManager.storeApplies.WithLabelValues(kind).Inc()
}

// Queue and applier.

// UpdateQueueSize sets the pending update count.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the update queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted update.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts an update handed to the applier.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueDrop counts a dropped update.
func RecordQueueDrop(reason string) {
	globalManager.queueDrops.WithLabelValues(reason).Inc()
}

// RecordApplierLatency records the time taken to apply one update.
func RecordApplierLatency(latencyMs float64) {
	globalManager.applierLatency.Observe(latencyMs)
}

// RecordApplierFailure counts an update the applier rejected.
func RecordApplierFailure() {
	globalManager.applierFailures.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an absorbed error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry every rollcall collector is registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
