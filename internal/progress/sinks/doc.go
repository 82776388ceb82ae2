// Package sinks implements progress consumers: structured logging, Prometheus
// collectors and run history persisted through a store.RunRepository.
package sinks
