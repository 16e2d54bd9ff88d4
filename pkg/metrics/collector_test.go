package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Proton-105/homebox-bot/internal/state"
)

type staticCounter map[state.State]int

func (s staticCounter) CountByState() map[state.State]int { return s }

func TestStateCollector_Collect(t *testing.T) {
	collector := NewStateCollector(staticCounter{
		state.StateIdle:                 4,
		state.StateConfirmingSuggestion: 2,
		state.StateViewingLocations:     1,
	})

	collector.Collect()

	assert.Equal(t, float64(3), testutil.ToFloat64(activeSessions))
	assert.Equal(t, float64(2), testutil.ToFloat64(sessionsByState.WithLabelValues(string(state.StateConfirmingSuggestion))))
	assert.Equal(t, float64(0), testutil.ToFloat64(sessionsByState.WithLabelValues(string(state.StateSubmitting))))
}

func TestTransitionRecorderRegistered(t *testing.T) {
	before := testutil.ToFloat64(stateTransitionsTotal.WithLabelValues("idle", "awaiting_photo"))

	state.RecordTransition(state.StateIdle, state.StateAwaitingPhoto)

	after := testutil.ToFloat64(stateTransitionsTotal.WithLabelValues("idle", "awaiting_photo"))
	assert.Equal(t, before+1, after)
}

func TestObserveGateway(t *testing.T) {
	before := testutil.ToFloat64(gatewayRequestsTotal.WithLabelValues("homebox", "create_item", "error"))

	ObserveGateway("homebox", "create_item", time.Now(), errors.New("503"))

	assert.Equal(t, before+1, testutil.ToFloat64(gatewayRequestsTotal.WithLabelValues("homebox", "create_item", "error")))
}
