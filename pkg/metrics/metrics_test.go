package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpilot/stackpilot/pkg/report"
	"github.com/stackpilot/stackpilot/pkg/types"
)

func sampleReport() report.Report {
	return report.Aggregate(map[string]types.HealthState{
		"postgres":   types.HealthRunningHealthy,
		"idp-server": types.HealthStopped,
	}, []report.EnvCheck{
		{Name: "disk-usage", OK: true},
		{Name: "volumes", OK: false},
	})
}

func TestRecordAndWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.Record(sampleReport())

	path := filepath.Join(t.TempDir(), "stackpilot.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `stackpilot_service_healthy{service="postgres",state="running-healthy"} 1`)
	assert.Contains(t, text, `stackpilot_service_healthy{service="idp-server",state="stopped"} 0`)
	assert.Contains(t, text, `stackpilot_env_check_ok{check="disk-usage"} 1`)
	assert.Contains(t, text, `stackpilot_env_check_ok{check="volumes"} 0`)
	assert.Contains(t, text, "stackpilot_last_health_check_timestamp_seconds")
}

func TestRecordReplacesPreviousState(t *testing.T) {
	c := NewCollector()
	c.Record(sampleReport())

	// A recovered service drops its old state label entirely
	c.Record(report.Aggregate(map[string]types.HealthState{
		"idp-server": types.HealthRunningHealthy,
	}, nil))

	path := filepath.Join(t.TempDir(), "stackpilot.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `stackpilot_service_healthy{service="idp-server",state="running-healthy"} 1`)
	assert.NotContains(t, text, `state="stopped"`)
	assert.NotContains(t, text, "postgres")
}
