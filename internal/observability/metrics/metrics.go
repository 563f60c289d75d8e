package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests handled by the API service",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	rpcOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpc_operation_duration_seconds",
		Help:    "Time spent in Solana RPC calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_action_duration_seconds",
		Help:    "End-to-end duration of campaign actions from validation to confirmation",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 40},
	}, []string{"kind", "state"})

	dbOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_operation_duration_seconds",
		Help:    "Time spent executing database operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	redisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Time spent executing redis operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	kafkaOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_operation_duration_seconds",
		Help:    "Time spent sending data to Kafka",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	profileRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "profile_request_duration_seconds",
		Help:    "Time spent querying the GraphQL profile service",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	consumerProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "consumer_process_duration_seconds",
		Help:    "Time spent processing action events in the consumer service",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
)

// ObserveHTTPRequest tracks the handling time of HTTP requests.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveRPCOperation tracks Solana RPC call duration.
func ObserveRPCOperation(operation string, err error, d time.Duration) {
	rpcOperationDuration.WithLabelValues(operation, result(err)).Observe(d.Seconds())
}

// ObserveAction tracks how long an action took to reach its final state.
func ObserveAction(kind, state string, d time.Duration) {
	actionDuration.WithLabelValues(kind, state).Observe(d.Seconds())
}

// ObserveDBOperation tracks database call duration.
func ObserveDBOperation(operation string, d time.Duration) {
	dbOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveRedisOperation tracks redis call duration.
func ObserveRedisOperation(operation string, d time.Duration) {
	redisOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveKafkaOperation tracks kafka call duration.
func ObserveKafkaOperation(operation string, d time.Duration) {
	kafkaOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveProfileRequest tracks GraphQL profile lookups.
func ObserveProfileRequest(err error, d time.Duration) {
	profileRequestDuration.WithLabelValues(result(err)).Observe(d.Seconds())
}

// ObserveConsumerProcessing tracks consumer processing stages.
func ObserveConsumerProcessing(step string, d time.Duration) {
	consumerProcessDuration.WithLabelValues(step).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
