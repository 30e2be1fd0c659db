package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ObserveRun(t *testing.T) {
	r := New()
	at := time.Unix(1700000000, 0)

	r.ObserveRun("done", true, at)
	r.ObserveRun("failed", false, at.Add(time.Minute))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(r.LastSuccessTimestamp))
	assert.Equal(t, float64(at.Add(time.Minute).Unix()), testutil.ToFloat64(r.LastRunTimestamp))
}

func TestRegistry_Counters(t *testing.T) {
	r := New()
	r.AddRules(2, 3)
	r.IPChanged()
	r.ObserveRequest("DescribeFirewallRules", "ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.RulesDeleted))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.RulesCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.IPChanges))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.APIRequests.WithLabelValues("DescribeFirewallRules", "ok")))
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	r.ObserveRun("done", true, time.Now())
	r.AddRules(1, 1)
	r.IPChanged()
	r.ObserveRequest("CreateFirewallRules", "ok", time.Second)
	assert.NoError(t, r.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestRegistry_WriteTextfile(t *testing.T) {
	r := New()
	r.AddRules(1, 1)

	path := filepath.Join(t.TempDir(), "dfirewall.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "dfirewall_rules_created_total 1"))
}
