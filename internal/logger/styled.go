package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/beaconsage/claude-zephyr/internal/core/domain"
	"github.com/beaconsage/claude-zephyr/theme"
)

// StyledLogger wraps slog.Logger with theme-aware formatting for the
// handful of message shapes the orchestrator, forwarder and control
// surface log often enough to deserve their own helper.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	return &StyledLogger{logger: logger, theme: theme}
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Counts}.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithEndpoint(msg string, endpoint string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Endpoint}.Sprint(endpoint))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithEndpoint(msg string, endpoint string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Endpoint}.Sprint(endpoint))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) ErrorWithEndpoint(msg string, endpoint string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Endpoint}.Sprint(endpoint))
	sl.logger.Error(styledMsg, args...)
}

// InfoHealthStatus logs an endpoint status transition, coloured by the new
// status.
func (sl *StyledLogger) InfoHealthStatus(msg string, name string, status domain.EndpointStatus, args ...any) {
	var statusColor pterm.Color
	switch status {
	case domain.StatusHealthy:
		statusColor = sl.theme.HealthHealthy
	case domain.StatusDegraded:
		statusColor = sl.theme.HealthDegraded
	case domain.StatusFailed:
		statusColor = sl.theme.HealthFailed
	default:
		statusColor = sl.theme.HealthUnknown
	}
	styledMsg := fmt.Sprintf("%s %s is %s", msg,
		pterm.Style{sl.theme.Endpoint}.Sprint(name),
		pterm.Style{statusColor}.Sprint(status.String()))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithHealthStats(msg string, healthy, degraded, failed int, args ...any) {
	healthyStyled := pterm.Style{sl.theme.HealthHealthy}.Sprint(healthy)
	degradedStyled := pterm.Style{sl.theme.HealthDegraded}.Sprint(degraded)
	failedStyled := pterm.Style{sl.theme.HealthFailed}.Sprint(failed)

	allArgs := make([]any, 0, len(args)+6)
	allArgs = append(allArgs, args...)
	allArgs = append(allArgs, "healthy", healthyStyled, "degraded", degradedStyled, "failed", failedStyled)

	sl.logger.Info(msg, allArgs...)
}

// GetUnderlying returns the wrapped slog.Logger for call sites that need
// direct access (e.g. slog.SetDefault).
func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *StyledLogger) WithAttrs(attrs ...slog.Attr) *StyledLogger {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

// NewWithTheme creates both the plain slog.Logger and its styled wrapper
// from one Config.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	plain, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	appTheme := theme.GetTheme(cfg.Theme)
	styled := NewStyledLogger(plain, appTheme)

	return plain, styled, cleanup, nil
}
