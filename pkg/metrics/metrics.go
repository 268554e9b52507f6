package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Outbox OutboxMetrics
	Notify NotifyMetrics
	Kafka  KafkaMetrics
	API    APIMetrics
}

type OutboxMetrics struct {
	DeliveryAttemptLatencySeconds *prometheus.HistogramVec
	DeliveryResultsTotal          *prometheus.CounterVec
	EventsByStatus                *prometheus.GaugeVec
}

type NotifyMetrics struct {
	CreatedTotal    *prometheus.CounterVec
	SuppressedTotal *prometheus.CounterVec
	PushEnqueued    prometheus.Counter
}

type KafkaMetrics struct {
	// Producer
	ProducerAttemptLatencySeconds *prometheus.HistogramVec
	ProducerOperationsTotal       *prometheus.CounterVec
	ProducerSuccessAttempts       *prometheus.HistogramVec

	// Consumer
	ConsumerMessagesTotal   *prometheus.CounterVec
	ConsumerProcessDuration *prometheus.HistogramVec
	ConsumerRebalancesTotal *prometheus.CounterVec
	ConsumerInFlight        *prometheus.GaugeVec
}

type APIMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Outbox: OutboxMetrics{
			DeliveryAttemptLatencySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "teamchat",
				Subsystem: "outbox",
				Name:      "delivery_attempt_latency_seconds",
				Help:      "Latency per single callback delivery attempt.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"event_type", "result"}), // ok|error

			DeliveryResultsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "outbox",
				Name:      "delivery_results_total",
				Help:      "Delivery attempt outcomes by terminality.",
			}, []string{"event_type", "result"}), // success|retry|failed|no_callback|stale

			EventsByStatus: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "teamchat",
				Subsystem: "outbox",
				Name:      "events_by_status",
				Help:      "Current outbox row counts per status.",
			}, []string{"status"}),
		},

		Notify: NotifyMetrics{
			CreatedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "notify",
				Name:      "created_total",
				Help:      "Notification rows created by type.",
			}, []string{"type"}),

			SuppressedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "notify",
				Name:      "suppressed_total",
				Help:      "Candidate notifications suppressed, by reason.",
			}, []string{"type", "reason"}), // dnd|quiet_hours|preference|self|duplicate

			PushEnqueued: f.NewCounter(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "notify",
				Name:      "push_enqueued_total",
				Help:      "Push messages enqueued to the push topic.",
			}),
		},

		Kafka: KafkaMetrics{
			ProducerAttemptLatencySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "teamchat",
				Subsystem: "kafka",
				Name:      "producer_attempt_latency_seconds",
				Help:      "Latency per single produce attempt.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"topic", "result"}), // ok|error

			ProducerOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "kafka",
				Name:      "producer_operations_total",
				Help:      "Total produce operations (one call) by result.",
			}, []string{"topic", "result"}), // success|failed|permanent|canceled

			ProducerSuccessAttempts: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "teamchat",
				Subsystem: "kafka",
				Name:      "producer_success_attempts",
				Help:      "Attempt number on which produce operation succeeded.",
				Buckets:   []float64{1, 2, 3, 4, 5},
			}, []string{"topic"}),

			ConsumerMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "kafka",
				Name:      "consumer_messages_total",
				Help:      "Total consumed Kafka messages by topic.",
			}, []string{"topic"}),

			ConsumerProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "teamchat",
				Subsystem: "kafka",
				Name:      "consumer_process_duration_seconds",
				Help:      "Kafka message processing duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"topic"}),

			ConsumerRebalancesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "kafka",
				Name:      "consumer_rebalances_total",
				Help:      "Consumer rebalance lifecycle events.",
			}, []string{"event"}),

			ConsumerInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "teamchat",
				Subsystem: "kafka",
				Name:      "consumer_inflight_messages",
				Help:      "Messages currently being processed.",
			}, []string{"topic"}),
		},

		API: APIMetrics{
			HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "teamchat",
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path and status.",
			}, []string{"method", "path", "status"}),

			HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "teamchat",
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"method", "path", "status"}),
		},
	}
}
