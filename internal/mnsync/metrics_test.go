package mnsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsConstructors(t *testing.T) {
	nop := NopMetrics()
	require.NotNil(t, nop.SyncStage)
	nop.SyncStage.Set(1)
	nop.RequestsSent.With("kind", "sporks").Add(1)

	// namespace must be unique within the test binary, the collectors
	// register globally
	prom := PrometheusMetrics("mnsync_ctor_test", "network", "regtest")
	require.NotNil(t, prom.SyncProgress)
	prom.SyncProgress.Set(0.5)
	prom.RequestsSent.With("kind", "node-list").Add(1)
	prom.StageTimeouts.Add(1)
}
