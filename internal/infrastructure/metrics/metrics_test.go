package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSwap(reg)

	m.QuoteGenerated("USDC/XAUT", false)
	m.QuoteGenerated("USDC/XAUT", false)
	m.QuoteGenerated("USDC/XAUT", true)
	m.SwapFinished("completed", 3*time.Second)
	m.StuckIntentFailed()
	m.ProviderError("0x", "expired")
	m.ReconciliationRecord("recovered")
	m.SecurityEvent("reveal_private_key", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.quotes.WithLabelValues("USDC/XAUT", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotes.WithLabelValues("USDC/XAUT", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.swaps.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stuckFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerErrors.WithLabelValues("0x", "expired")))

	expected := `
# HELP vaultswap_security_events_total Key vault audit events by operation and outcome
# TYPE vaultswap_security_events_total counter
vaultswap_security_events_total{operation="reveal_private_key",outcome="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "vaultswap_security_events_total"))
}
