// Package infra groups the adapters behind the core ports: OCPP message
// conversion, MQTT transport, profile persistence and metrics exporters.
package infra
