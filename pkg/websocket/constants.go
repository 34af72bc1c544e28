package websocket

const (
	// default tuning values
	DefaultMaxConnections    = 100000
	DefaultHeartbeatInterval = 30 // seconds
	DefaultConnectionTimeout = 60 // seconds
	DefaultMessageBufferSize = 256
	DefaultReadBufferSize    = 4096
	DefaultWriteBufferSize   = 4096
	DefaultMaxMessageSize    = 2 << 20 // voice clips travel base64-inline

	// environment configuration keys
	EnvMaxConnections    = "WEBSOCKET_MAX_CONNECTIONS"
	EnvHeartbeatInterval = "WEBSOCKET_HEARTBEAT_INTERVAL"
	EnvConnectionTimeout = "WEBSOCKET_CONNECTION_TIMEOUT"
	EnvMessageBufferSize = "WEBSOCKET_MESSAGE_BUFFER_SIZE"
	EnvReadBufferSize    = "WEBSOCKET_READ_BUFFER_SIZE"
	EnvWriteBufferSize   = "WEBSOCKET_WRITE_BUFFER_SIZE"
	EnvMaxMessageSize    = "WEBSOCKET_MAX_MESSAGE_SIZE"
	EnvEnableCompression = "WEBSOCKET_ENABLE_COMPRESSION"
	EnvDropOnFull        = "WEBSOCKET_DROP_ON_FULL"
	EnvSendTimeoutMs     = "WEBSOCKET_SEND_TIMEOUT_MS"

	// route paths
	RouteWebSocket       = "/ws"
	RouteWebSocketStats  = "/ws/stats"
	RouteWebSocketHealth = "/ws/health"
)
