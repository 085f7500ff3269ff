// Package tlsutil centralizes the TLS settings used by the API server and
// the Redis connection. TLS 1.2+, AEAD cipher suites only.
package tlsutil

import (
	"crypto/tls"
)

// ServerConfig returns the hardened TLS configuration for the API listener.
func ServerConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// ClientConfig returns the TLS configuration for outbound connections such
// as the Redis client.
func ClientConfig() *tls.Config {
	return ServerConfig()
}
