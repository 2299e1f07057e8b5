// Package httpclient builds the HTTP clients used to reach the model
// provider. The embedding and chat clients need different request timeouts
// (a chat completion runs far longer than an embedding call) but talk to
// the same host, so they share one transport and its warm connection pool
// instead of each paying TLS handshakes.
package httpclient

import (
	"net/http"
	"time"
)

// providerTransport is shared by every client returned from this package.
// Sized for two clients multiplexing over one provider host.
var providerTransport = &http.Transport{
	MaxIdleConns:        20,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     120 * time.Second,
}

// NewPooledClient returns a client with its own request timeout on top of
// the shared transport.
func NewPooledClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: providerTransport,
	}
}
