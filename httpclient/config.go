package httpclient

import "time"

// Config represents configuration settings for network connections.
// It can be unmarshalled from either JSON or YAML formats.
type Config struct {
	// Timeout specifies the maximum duration for the entire request.
	// Zero means no timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// TLSHandshakeTimeout specifies the maximum duration to wait for
	// a TLS handshake to complete. Zero means no timeout.
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout" yaml:"tls_handshake_timeout"`

	// Dialer contains configuration specific to the connection dialer.
	Dialer struct {
		// Timeout is the maximum duration for dialing a connection.
		Timeout time.Duration `json:"timeout" yaml:"timeout"`

		// KeepAlive specifies the keep-alive period for network
		// connections. Zero selects the platform default.
		KeepAlive time.Duration `json:"keep_alive" yaml:"keep_alive"`
	} `json:"dialer" yaml:"dialer"`
}
