package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/smartcharge/core/factory"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
)

// Sink types accepted in metrics.sinks.
const (
	SinkNop        = "nop"
	SinkPrometheus = "prometheus"
	SinkInflux     = "influx"
)

func init() {
	builtins := map[string]factory.Factory[coremetrics.MetricsSink]{
		SinkNop: func(map[string]any) (coremetrics.MetricsSink, error) {
			return coremetrics.NopSink{}, nil
		},
		SinkPrometheus: func(map[string]any) (coremetrics.MetricsSink, error) {
			// Collectors go to the default registry served on /metrics.
			return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
		},
		SinkInflux: newInfluxFromConf,
	}
	for name, f := range builtins {
		if err := coremetrics.RegisterMetricsSink(name, f); err != nil {
			panic(fmt.Sprintf("register %s sink: %v", name, err))
		}
	}
}

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.URL == "" {
		return nil, fmt.Errorf("influx sink: url is required")
	}
	return NewInfluxSinkWithFallback(c), nil
}
