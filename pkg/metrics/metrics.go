package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stackpilot/stackpilot/pkg/report"
	"github.com/stackpilot/stackpilot/pkg/types"
)

// Collector exposes health-check results for node-exporter style
// textfile collection
type Collector struct {
	registry *prometheus.Registry

	serviceHealthy *prometheus.GaugeVec
	envCheckOK     *prometheus.GaugeVec
	lastRun        prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.serviceHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stackpilot_service_healthy",
		Help: "1 when the service reports running-healthy, 0 otherwise.",
	}, []string{"service", "state"})

	c.envCheckOK = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stackpilot_env_check_ok",
		Help: "1 when the environment check passed, 0 otherwise.",
	}, []string{"check"})

	c.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stackpilot_last_health_check_timestamp_seconds",
		Help: "Unix time of the last completed health check.",
	})

	c.registry.MustRegister(c.serviceHealthy, c.envCheckOK, c.lastRun)
	return c
}

// Record replaces the collector's state with one report's results
func (c *Collector) Record(r report.Report) {
	c.serviceHealthy.Reset()
	c.envCheckOK.Reset()

	for _, svc := range r.Services {
		value := 0.0
		if svc.State == types.HealthRunningHealthy {
			value = 1.0
		}
		c.serviceHealthy.WithLabelValues(svc.Name, string(svc.State)).Set(value)
	}

	for _, check := range r.Checks {
		value := 0.0
		if check.OK {
			value = 1.0
		}
		c.envCheckOK.WithLabelValues(check.Name).Set(value)
	}

	c.lastRun.Set(float64(time.Now().Unix()))
}

// WriteTextfile atomically writes the registry in exposition format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
