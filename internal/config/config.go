package config

import "time"

// ClientConfig is the root configuration for a relay chat client.
type ClientConfig struct {
	Relay     RelayConfig     `yaml:"relay"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Transport TransportConfig `yaml:"transport"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
}

// RelayConfig identifies the relay and the local participant.
type RelayConfig struct {
	URL      string `yaml:"url"`      // ws:// or wss:// endpoint
	Identity string `yaml:"identity"` // Display name sent with every message
}

// ReconnectConfig holds the fixed-interval retry policy.
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

// TransportConfig holds WebSocket session settings.
type TransportConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	ReadLimit        int64         `yaml:"read_limit"` // Max inbound frame size in bytes
	SendBuffer       int           `yaml:"send_buffer"`
}

// EventsConfig sizes the manager's event queue.
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
