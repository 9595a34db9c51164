package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMetricsVisibleInDefaultRegistry(t *testing.T) {
	m := DefaultMetrics()
	m.IncSent("mailersend")
	m.IncFailed("resend")
	m.IncGateDenied("mailersend", "daily_limit")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["portal_dispatch_sent_total"])
	assert.True(t, names["portal_dispatch_failed_total"])
	assert.True(t, names["portal_dispatch_gate_denied_total"])
}

func TestMetricsRegisterOnCustomRegistry(t *testing.T) {
	m := newMetrics()
	registry := prometheus.NewRegistry()
	m.Register(registry)

	m.IncSent("mailersend")
	m.IncSent("mailersend")

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "portal_dispatch_sent_total" {
			continue
		}
		require.Len(t, family.GetMetric(), 1)
		assert.Equal(t, float64(2), family.GetMetric()[0].GetCounter().GetValue())
		return
	}
	t.Fatal("portal_dispatch_sent_total not gathered")
}
