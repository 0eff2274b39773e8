package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveCommit_IncrementsCounterByOutcome(t *testing.T) {
	m := New()
	m.ObserveCommit("ok", 0.01)
	m.ObserveCommit("ok", 0.02)
	m.ObserveCommit("invalid", 0.01)

	require.Equal(t, float64(2), testutil.ToFloat64(m.CommitsTotal.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.CommitsTotal.WithLabelValues("invalid")))
}

func TestNew_RegistersCollectorsWithoutPanicking(t *testing.T) {
	require.NotPanics(t, func() {
		New()
	})
}
