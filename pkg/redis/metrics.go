package redis

import (
	"context"
	"errors"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
)

var (
	redisRequestsTotal   *prometheus.CounterVec
	redisErrorsTotal     *prometheus.CounterVec
	redisRequestDuration *prometheus.HistogramVec
)

func init() {
	redisRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors by method.",
		},
		[]string{"method"},
	)
	redisRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	prometheus.MustRegister(redisRequestsTotal, redisErrorsTotal, redisRequestDuration)
}

// metricsHook records every command and pipeline issued through the client.
type metricsHook struct{}

var _ goredis.Hook = metricsHook{}

func (metricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			redisErrorsTotal.WithLabelValues("dial").Inc()
		}
		return conn, err
	}
}

func (metricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		method := cmd.Name()
		timer := prometheus.NewTimer(redisRequestDuration.WithLabelValues(method))
		err := next(ctx, cmd)
		timer.ObserveDuration()
		redisRequestsTotal.WithLabelValues(method).Inc()
		if isFailure(err) {
			redisErrorsTotal.WithLabelValues(method).Inc()
		}
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		timer := prometheus.NewTimer(redisRequestDuration.WithLabelValues("pipeline"))
		err := next(ctx, cmds)
		timer.ObserveDuration()
		redisRequestsTotal.WithLabelValues("pipeline").Inc()
		if isFailure(err) {
			redisErrorsTotal.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// redis.Nil is a cache miss, not a failure.
func isFailure(err error) bool {
	return err != nil && !errors.Is(err, goredis.Nil)
}
