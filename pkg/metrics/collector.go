package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/homebox-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "state_transitions_total",
			Help: "Total number of state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	gatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Calls to external gateways by gateway, operation and outcome",
		},
		[]string{"gateway", "operation", "status"},
	)
	gatewayDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Latency of external gateway calls",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"gateway", "operation"},
	)
	itemsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_created_total",
			Help: "Inventory items created, labeled by whether the photo was attached",
		},
		[]string{"photo"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of non-idle sessions",
		},
	)
	sessionsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_state",
			Help: "Number of sessions per state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks FSM transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// ObserveGateway records one call to an external gateway.
func ObserveGateway(gateway, operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	gatewayRequestsTotal.WithLabelValues(gateway, operation, status).Inc()
	gatewayDurationSeconds.WithLabelValues(gateway, operation).Observe(time.Since(start).Seconds())
}

// RecordItemCreated counts a created inventory item.
func RecordItemCreated(photoAttached bool) {
	label := "attached"
	if !photoAttached {
		label = "missing"
	}
	itemsCreatedTotal.WithLabelValues(label).Inc()
}

// SessionCounter reports how many live sessions are in each state.
type SessionCounter interface {
	CountByState() map[state.State]int
}

// StateCollector periodically gathers session state counts and emits gauge metrics.
type StateCollector struct {
	sessions SessionCounter
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided session owner.
func NewStateCollector(sessions SessionCounter) *StateCollector {
	return &StateCollector{sessions: sessions, interval: 10 * time.Second}
}

// Run polls the sessions every 10 seconds, updating gauges until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.sessions == nil {
		return
	}

	for {
		c.Collect()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

// Collect takes one snapshot.
func (c *StateCollector) Collect() {
	counts := c.sessions.CountByState()

	active := 0
	for _, tracked := range state.All {
		count := counts[tracked]
		sessionsByState.WithLabelValues(string(tracked)).Set(float64(count))
		if tracked != state.StateIdle {
			active += count
		}
	}

	activeSessions.Set(float64(active))
}
