// Package probe implements domain.ProbeExecutor: running one synthetic
// completion through the real Claude CLI binary and classifying the
// outcome.
package probe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
)

const (
	// CanonicalPrompt is the fixed, minimal completion request every probe
	// sends - cheap, deterministic, and exercises the full request path.
	CanonicalPrompt = "test"

	stdoutLineBufferInitial = 64 * 1024
	stdoutLineBufferMax     = 1 * 1024 * 1024
)

// CLIExecutor shells out to the `claude` binary once per probe, exactly the
// way a real client would invoke it: ANTHROPIC_BASE_URL and
// ANTHROPIC_AUTH_TOKEN point it at the candidate endpoint and credential.
type CLIExecutor struct {
	BinaryPath string
	SoftLatency time.Duration
}

// NewCLIExecutor returns an executor invoking the named claude binary
// (resolved from PATH if not absolute).
func NewCLIExecutor(binaryPath string, softLatency time.Duration) *CLIExecutor {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	return &CLIExecutor{BinaryPath: binaryPath, SoftLatency: softLatency}
}

// Probe implements domain.ProbeExecutor.
func (e *CLIExecutor) Probe(ctx context.Context, endpoint *domain.Endpoint, credential string, timeout time.Duration) domain.ProbeOutcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	cmd := exec.CommandContext(ctx, e.BinaryPath, "--print")
	cmd.Env = buildEnv(endpoint, credential)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return domain.ProbeOutcome{Kind: domain.ProbeUnknown, Detail: err.Error(), ErrorKind: domain.ErrKindProbeUnknown}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return domain.ProbeOutcome{Kind: domain.ProbeUnknown, Detail: err.Error(), ErrorKind: domain.ErrKindProbeUnknown}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return domain.ProbeOutcome{Kind: domain.ProbeUnknown, Detail: err.Error(), ErrorKind: domain.ErrKindProbeUnknown}
	}

	if err := cmd.Start(); err != nil {
		return domain.ProbeOutcome{Kind: domain.ProbeUnknown, Detail: err.Error(), ErrorKind: domain.ErrKindProbeUnknown}
	}

	go func() {
		defer stdin.Close()
		_, _ = stdin.Write([]byte(CanonicalPrompt))
	}()

	var stderrBuf strings.Builder
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			stderrBuf.WriteString(scanner.Text())
			stderrBuf.WriteByte('\n')
		}
	}()

	firstByteCh := make(chan time.Time, 1)
	lineCh := make(chan string, 16)
	scanErrCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, stdoutLineBufferInitial), stdoutLineBufferMax)
		first := true
		for scanner.Scan() {
			if first {
				select {
				case firstByteCh <- time.Now():
				default:
				}
				first = false
			}
			select {
			case lineCh <- scanner.Text():
			case <-ctx.Done():
				close(lineCh)
				scanErrCh <- ctx.Err()
				return
			}
		}
		close(lineCh)
		scanErrCh <- scanner.Err()
	}()

	var stdoutBuf strings.Builder
	for line := range lineCh {
		stdoutBuf.WriteString(line)
		stdoutBuf.WriteByte('\n')
	}

	// Must drain the scanner goroutine before calling Wait - it is incorrect
	// to call Wait before all reads from the pipe have completed.
	scanErr := <-scanErrCh
	<-stderrDone

	waitErr := cmd.Wait()
	total := time.Since(start)

	if ctx.Err() != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return domain.ProbeOutcome{Kind: domain.ProbeTimedOut, Latency: total, ErrorKind: domain.ErrKindProbeTimeout}
	}

	if scanErr != nil {
		return domain.ProbeOutcome{Kind: domain.ProbeUnknown, Latency: total, Detail: scanErr.Error(), ErrorKind: domain.ErrKindProbeUnknown}
	}

	stderrText := stderrBuf.String()

	if waitErr != nil {
		return classifyFailure(waitErr, stderrText, total)
	}

	if stdoutBuf.Len() == 0 {
		return domain.ProbeOutcome{Kind: domain.ProbeUnknown, Latency: total, Detail: "empty stdout on exit 0", ErrorKind: domain.ErrKindProbeUnknown}
	}

	var firstByte time.Time
	select {
	case firstByte = <-firstByteCh:
	default:
		firstByte = time.Now()
	}
	latency := firstByte.Sub(start)

	if e.SoftLatency > 0 && latency > e.SoftLatency {
		return domain.ProbeOutcome{Kind: domain.ProbeDegraded, Latency: latency}
	}
	return domain.ProbeOutcome{Kind: domain.ProbeHealthy, Latency: latency}
}

func buildEnv(endpoint *domain.Endpoint, credential string) []string {
	env := os.Environ()
	filtered := env[:0]
	for _, e := range env {
		if strings.HasPrefix(e, "ANTHROPIC_BASE_URL=") || strings.HasPrefix(e, "ANTHROPIC_AUTH_TOKEN=") {
			continue
		}
		filtered = append(filtered, e)
	}
	filtered = append(filtered,
		fmt.Sprintf("ANTHROPIC_BASE_URL=%s", endpoint.URL.String()),
		fmt.Sprintf("ANTHROPIC_AUTH_TOKEN=%s", credential),
	)
	return filtered
}

// classifyFailure maps a non-zero exit into one of the structured outcome
// kinds, using stderr patterns to distinguish auth from network failures.
func classifyFailure(waitErr error, stderrText string, total time.Duration) domain.ProbeOutcome {
	lower := strings.ToLower(stderrText)

	switch {
	case containsAny(lower, "unauthorized", "invalid api key", "authentication_error", "401", "403"):
		return domain.ProbeOutcome{Kind: domain.ProbeAuthFailed, Latency: total, Detail: stderrText, ErrorKind: domain.ErrKindProbeAuthFailed}
	case containsAny(lower, "connection refused", "no such host", "dial tcp", "tls handshake", "network is unreachable", "timeout"):
		return domain.ProbeOutcome{Kind: domain.ProbeNetworkFailed, Latency: total, Detail: stderrText, ErrorKind: domain.ErrKindProbeNetworkFailed}
	default:
		return domain.ProbeOutcome{Kind: domain.ProbeUnknown, Latency: total, Detail: fmt.Sprintf("%v: %s", waitErr, stderrText), ErrorKind: domain.ErrKindProbeUnknown}
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
