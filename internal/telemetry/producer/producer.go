// Package producer publishes auth events to Kafka and reads them back for the audit worker.
package producer

import "danus-dashboard/backend/internal/telemetry"

// Producer publishes events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
