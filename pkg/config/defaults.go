package config

import "time"

// Update defaults.
const (
	DefaultUpdatesInterval = 7 * 24 * time.Hour
	DefaultUpdatesEnabled  = true
)

// Plugin run defaults.
const (
	DefaultPluginsTimeout = 60 * time.Second
	DefaultPluginsWorkers = 1
)

// Output defaults.
const (
	DefaultOutputFormat  = FormatText
	DefaultOutputNoColor = false
	DefaultOutputVerbose = false
)

// Logging defaults.
const (
	DefaultLoggingLevel = "warn"
	DefaultLoggingJSON  = false
)

// Telemetry defaults.
const (
	DefaultTelemetryOTLPEndpoint    = ""
	DefaultTelemetryOTLPInsecure    = false
	DefaultTelemetryMetricsTextfile = ""
)
