package config

// DefaultSocketPath is the WebSocket endpoint on the view-model server.
const DefaultSocketPath = "/ws"

// DefaultStartPath is the landing page; the server redirects "/" here too.
const DefaultStartPath = "/start/ctl"

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "info"

// Timing defaults, in milliseconds.
const (
	DefaultDebounceMs         = 400
	DefaultScrollDelayMs      = 1000
	DefaultReconnectInitialMs = 1000
	DefaultReconnectMaxMs     = 5000
	DefaultInitRetryMs        = 100
	DefaultDiscoverTimeoutMs  = 3000
)

// DefaultReconnectAttempts bounds consecutive reconnects.
const DefaultReconnectAttempts = 10

// Environment overrides.
const (
	EnvServerURL = "HOMECTL_SERVER_URL"
	EnvLogLevel  = "HOMECTL_LOG_LEVEL"
)
