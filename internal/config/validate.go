package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/relay-chat/internal/chat"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if strings.TrimSpace(c.Relay.URL) == "" {
		return errors.New("relay.url is required")
	}
	if _, err := chat.ParseEndpoint(c.Relay.URL); err != nil {
		return fmt.Errorf("relay.url: %w", err)
	}
	if _, err := chat.ParseIdentity(c.Relay.Identity); err != nil {
		return errors.New("relay.identity is required")
	}

	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must be >= 0, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.Interval < 0 {
		return errors.New("reconnect.interval must be >= 0")
	}

	if c.Transport.HandshakeTimeout <= 0 {
		return errors.New("transport.handshake_timeout must be > 0")
	}
	if c.Transport.WriteTimeout <= 0 {
		return errors.New("transport.write_timeout must be > 0")
	}
	if c.Transport.PingInterval > 0 && c.Transport.PingTimeout <= c.Transport.PingInterval {
		return fmt.Errorf("transport.ping_timeout (%v) must exceed ping_interval (%v)",
			c.Transport.PingTimeout, c.Transport.PingInterval)
	}
	if c.Transport.ReadLimit < 1 {
		return errors.New("transport.read_limit must be >= 1")
	}
	if c.Transport.SendBuffer < 1 {
		return errors.New("transport.send_buffer must be >= 1")
	}

	if c.Events.BufferSize < 1 {
		return errors.New("events.buffer_size must be >= 1")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses the configured level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", l.Level)
	}
}
