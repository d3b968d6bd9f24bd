// Package forward implements the proxy forwarder: it binds each incoming
// HTTP request to the current endpoint selection for the request's entire
// lifetime, streams the upstream response back to the client, and keeps the
// connection tracker up to date so a graceful switch knows when it is safe
// to stop caring about the endpoint a request was bound to.
package forward

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/config"
	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/internal/core/registry"
	"github.com/beaconsage/claude-zephyr/internal/core/switcher"
	"github.com/beaconsage/claude-zephyr/internal/core/tracker"
	"github.com/beaconsage/claude-zephyr/internal/logger"
	"github.com/beaconsage/claude-zephyr/internal/util"
	"github.com/beaconsage/claude-zephyr/pkg/pool"
)

const streamBufferSize = 32 * 1024

var streamBufferPool = pool.NewLitePool(func() []byte {
	return make([]byte, streamBufferSize)
})

// Forwarder accepts client HTTP requests and forwards them to whichever
// endpoint the switch coordinator currently prefers, sticky for the
// lifetime of the request.
type Forwarder struct {
	registry *registry.Registry
	switcher *switcher.Coordinator
	tracker  *tracker.Tracker
	client   *http.Client
	log      *logger.StyledLogger
	retry    config.RetryConfig
}

func New(
	reg *registry.Registry,
	sw *switcher.Coordinator,
	trk *tracker.Tracker,
	client *http.Client,
	log *logger.StyledLogger,
	retry config.RetryConfig,
) *Forwarder {
	return &Forwarder{
		registry: reg,
		switcher: sw,
		tracker:  trk,
		client:   client,
		log:      log,
		retry:    retry,
	}
}

// ServeHTTP binds the request to the current endpoint selection for its
// entire lifetime: build the upstream request, forward it with
// same-endpoint retries on I/O failure, then stream the response back.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := util.GenerateRequestID()
	clientIP := util.GetClientIP(r, false, nil)

	selection := f.switcher.Current()
	if selection.EndpointID == "" {
		f.writeNoHealthyEndpoint(w, requestID)
		return
	}

	endpoint, group := f.registry.FindEndpoint(selection.EndpointID)
	if endpoint == nil {
		f.writeNoHealthyEndpoint(w, requestID)
		return
	}

	connID := f.tracker.Open(endpoint.ID())
	defer f.tracker.Close(connID)

	upstreamReq, err := f.buildUpstreamRequest(r, endpoint, group.Credential)
	if err != nil {
		f.log.ErrorWithEndpoint("failed to build upstream request", endpoint.Name, "request_id", requestID, "client_ip", clientIP, "error", err)
		http.Error(w, "bad upstream request", http.StatusBadGateway)
		return
	}

	resp, err := f.doWithRetry(upstreamReq)
	if err != nil {
		if errors.Is(r.Context().Err(), context.Canceled) {
			f.tracker.MarkInterrupted(connID)
			discErr := domain.NewUpstreamError(domain.ErrKindClientDisconnect, requestID, endpoint.ID(), 0, err)
			f.log.Debug("client disconnected before upstream responded", "request_id", requestID, "error", discErr)
			return
		}
		upErr := domain.NewUpstreamError(classifyTransportError(err), requestID, endpoint.ID(), 0, err)
		f.log.WarnWithEndpoint("upstream request failed after retries", endpoint.Name, "request_id", requestID, "client_ip", clientIP, "error_kind", string(upErr.Kind), "error", upErr)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		// Forwarded verbatim and only logged. The forwarder does not update
		// endpoint health for this, nor for a connect/IO failure above;
		// endpoint state changes only through probe rounds.
		httpErr := domain.NewUpstreamError(domain.ErrKindUpstreamHTTP, requestID, endpoint.ID(), resp.StatusCode, nil)
		f.log.InfoWithEndpoint("upstream responded with error status", endpoint.Name, "request_id", requestID, "status", resp.StatusCode, "error", httpErr)
	}

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	if err := f.streamBody(r.Context(), w, resp.Body, connID); err != nil {
		f.tracker.MarkInterrupted(connID)
		if errors.Is(err, context.Canceled) {
			discErr := domain.NewUpstreamError(domain.ErrKindClientDisconnect, requestID, endpoint.ID(), 0, err)
			f.log.Debug("client disconnected mid-stream", "request_id", requestID, "error", discErr)
		} else {
			upErr := domain.NewUpstreamError(domain.ErrKindUpstreamIO, requestID, endpoint.ID(), 0, err)
			f.log.WarnWithEndpoint("stream to client interrupted", endpoint.Name, "request_id", requestID, "client_ip", clientIP, "error", upErr)
		}
	}
}

// buildUpstreamRequest rewrites the request target to the endpoint's
// upstream base URL, preserving method/path/query/headers, and injects the
// group credential, overwriting any client-supplied auth.
func (f *Forwarder) buildUpstreamRequest(r *http.Request, endpoint *domain.Endpoint, credential string) (*http.Request, error) {
	target := *endpoint.URL
	target.Path = util.JoinURLPath(endpoint.URL.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	// Buffer the body so a same-endpoint retry can resend it - r.Body is a
	// one-shot stream otherwise.
	var bodyBytes []byte
	if r.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		r.Body.Close()
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, err
	}
	upstreamReq.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(bodyBytes)), nil
	}
	upstreamReq.Header = r.Header.Clone()
	upstreamReq.Header.Set("Authorization", "Bearer "+credential)
	upstreamReq.Header.Set("x-api-key", credential)
	upstreamReq.ContentLength = int64(len(bodyBytes))

	return upstreamReq, nil
}

// doWithRetry issues the upstream request, retrying against the same
// endpoint on I/O error for up to retry.max_attempts attempts in total (a
// single attempt when retry is disabled). There is never a cross-endpoint
// retry - selection is sticky for the request.
func (f *Forwarder) doWithRetry(req *http.Request) (*http.Response, error) {
	maxAttempts := 1
	if f.retry.Enabled && f.retry.MaxAttempts > 0 {
		maxAttempts = int(f.retry.MaxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := f.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if req.Context().Err() != nil {
			return nil, err
		}
		if attempt < maxAttempts {
			delay := util.CalculateExponentialBackoff(attempt, f.retry.BaseDelay(), 30*time.Second, float64(f.retry.BackoffMultiplier), 0.2)
			time.Sleep(delay)
		}
	}
	return nil, lastErr
}

// classifyTransportError tells a failure establishing the upstream
// connection apart from one that happened over an already-established one,
// so the forwarder's error log and exhausted-retry response carry which
// kind actually occurred instead of a bare string.
func classifyTransportError(err error) domain.ErrorKind {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return domain.ErrKindUpstreamConnect
	}
	return domain.ErrKindUpstreamIO
}

// streamBody copies the upstream response to the client chunk by chunk,
// touching the tracker on each chunk so idle/ghost detection has an
// accurate last-activity time.
func (f *Forwarder) streamBody(ctx context.Context, w http.ResponseWriter, body io.Reader, connID string) error {
	flusher, _ := w.(http.Flusher)
	buf := streamBufferPool.Get()
	defer streamBufferPool.Put(buf)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			f.tracker.Touch(connID)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

func (f *Forwarder) writeNoHealthyEndpoint(w http.ResponseWriter, requestID string) {
	noHealthy := &domain.NoHealthyEndpointError{}
	f.log.Warn(noHealthy.Error(), "request_id", requestID, "error_kind", string(domain.ErrKindNoHealthyEndpoint))
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("all_endpoints_failed"))
}
