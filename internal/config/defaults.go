package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultMaxAttempts       = 3
	DefaultReconnectInterval = 3 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultReadLimit         = 64 * 1024
	DefaultSendBuffer        = 64
	DefaultEventBufferSize   = 64
	DefaultLogLevel          = "info"
)

// Default returns a config with every optional field set. Relay settings
// are left empty.
func Default() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *ClientConfig) applyDefaults() {
	// Reconnect defaults
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.Interval == 0 {
		c.Reconnect.Interval = DefaultReconnectInterval
	}

	// Transport defaults
	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PingTimeout == 0 {
		c.Transport.PingTimeout = DefaultPingTimeout
	}
	if c.Transport.ReadLimit == 0 {
		c.Transport.ReadLimit = DefaultReadLimit
	}
	if c.Transport.SendBuffer == 0 {
		c.Transport.SendBuffer = DefaultSendBuffer
	}

	// Events defaults
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = DefaultEventBufferSize
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
