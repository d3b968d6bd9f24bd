// Package factory builds the shared, pooled HTTP client the forwarder uses
// to talk to upstream endpoints.
package factory

import (
	"net/http"
	"time"
)

// SharedClientFactory owns one pooled transport so forwarded requests reuse
// idle connections to upstream endpoints instead of reconnecting per
// request.
type SharedClientFactory struct {
	forwardClient *http.Client
}

const (
	// ForwardDialTimeout bounds the connection handshake of upstream
	// requests, distinct from the overall response timeout which callers
	// set per-request via context.
	ForwardDialTimeout = 10 * time.Second
)

// NewSharedClientFactory builds a factory with a connection-pooled
// transport sized for a handful of concurrent upstream endpoints.
func NewSharedClientFactory() *SharedClientFactory {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: ForwardDialTimeout,
		DisableCompression:  false,
	}

	return &SharedClientFactory{
		forwardClient: &http.Client{
			Transport: transport,
			// No client-level Timeout: the forwarder streams long-lived
			// responses and governs its own deadlines via context.
		},
	}
}

// ForwardClient returns the shared client used to issue upstream requests.
func (f *SharedClientFactory) ForwardClient() *http.Client {
	return f.forwardClient
}
