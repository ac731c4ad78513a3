package chat

import (
	"fmt"
	"net/url"
	"strings"
)

// Accepted relay URI schemes.
const (
	SchemeSecure = "wss://"
	SchemePlain  = "ws://"
)

// Endpoint is a validated relay URI.
type Endpoint string

// ParseEndpoint checks the scheme prefix and that the remainder names a host.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, SchemeSecure) && !strings.HasPrefix(raw, SchemePlain) {
		return "", fmt.Errorf("%w: must start with ws:// or wss://, got %q", ErrInvalidEndpoint, raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}

	return Endpoint(raw), nil
}

// Secure reports whether the endpoint uses TLS.
func (e Endpoint) Secure() bool {
	return strings.HasPrefix(string(e), SchemeSecure)
}

// String returns the raw URI.
func (e Endpoint) String() string {
	return string(e)
}
