package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.UsageCheckTotal.WithLabelValues("chat", ResultAllowed).Inc()
	m.UsageCheckTotal.WithLabelValues("chat", ResultDenied).Add(2)
	m.SweepExpiredTotal.Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsageCheckTotal.WithLabelValues("chat", ResultAllowed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UsageCheckTotal.WithLabelValues("chat", ResultDenied)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepExpiredTotal))

	n, err := testutil.GatherAndCount(reg, "studybuddy_usage_check_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second set on a separate registry must not collide.
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
