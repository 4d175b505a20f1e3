package metrics

import (
	"fmt"

	"github.com/kilianp07/smartcharge/core/factory"
)

// Config lists the sinks receiving schedule, profile and request events.
// An empty list disables metrics.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink makes a sink type available to NewMetricsSink.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// NewMetricsSink builds the configured sinks. Several sinks are wrapped in a
// MultiSink; none yields a NopSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	built := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinks.Create(c)
		if err != nil {
			return nil, fmt.Errorf("sink %d (%s): %w", i, c.Type, err)
		}
		built = append(built, s)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	default:
		return NewMultiSink(built...), nil
	}
}
