// Package metrics defines the observability port of the charging service.
// Sinks record composite schedule computations and profile changes. The
// factory helpers build sinks from configuration and return a MultiSink when
// several sinks are configured.
package metrics
