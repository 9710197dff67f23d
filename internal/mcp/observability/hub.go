// Package observability wires the MCP server's error management, circuit
// breaking, graceful degradation, recovery guidance, metrics collection,
// and alerting components into a single set shared by the tool registry
// and the source health probe.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/mcp/alerting"
	mcperrors "github.com/tierdx/tierdx/internal/mcp/errors"
	"github.com/tierdx/tierdx/internal/mcp/logging"
	"github.com/tierdx/tierdx/internal/mcp/monitoring"
)

// Hub is the composition root for the MCP server's cross-cutting
// concerns: every tool invocation and every evidence-source probe flows
// through it.
type Hub struct {
	Metrics       *monitoring.MetricsCollector
	Errors        *mcperrors.ErrorManager
	ToolValidator *mcperrors.ToolErrorHandler
	Recovery      *mcperrors.RecoveryGuidanceManager
	Breakers      *mcperrors.CircuitBreakerManager
	Degradation   *mcperrors.GracefulDegradationManager
	Logging       *logging.MCPLogger

	alerts *alerting.AlertManager
	log    *logrus.Logger
}

// New builds a Hub. Besides the alert manager's built-in DefaultAlertRules,
// it adds one alert rule watching the fraction of evidence-source circuit
// breakers currently open; the breaker metric provider answers only that
// rule's query.
func New(log *logrus.Logger) *Hub {
	metrics := monitoring.NewMetricsCollector(log, monitoring.MetricsConfig{
		EnableCollection:   true,
		CollectionInterval: 30 * time.Second,
		RetentionPeriod:    24 * time.Hour,
		EnableHistograms:   true,
	})

	errMgr := mcperrors.NewErrorManager(log, mcperrors.ErrorManagerConfig{
		CorrelationTTL:        time.Hour,
		MaxCorrelations:       1000,
		AuditRetention:        24 * time.Hour,
		DetailedErrorMessages: true,
	})

	breakers := mcperrors.NewCircuitBreakerManager(mcperrors.CircuitBreakerConfig{
		DefaultThreshold: 3,
		DefaultTimeout:   30 * time.Second,
	})
	degradation := mcperrors.NewGracefulDegradationManager(log, breakers)
	recovery := mcperrors.NewRecoveryGuidanceManager(log)
	toolValidator := mcperrors.NewToolErrorHandler(log)

	mcpLogger := logging.NewMCPLogger(logging.MCPLoggingConfig{
		Level:                log.GetLevel().String(),
		Format:               "json",
		EnableCorrelation:    true,
		CorrelationTTL:       time.Hour,
		EnablePerformanceLog: true,
		EnableAuditTrail:     true,
		MaxCorrelations:      1000,
	})

	alerts := alerting.NewAlertManager(alerting.AlertConfig{
		EnableAlerting:     true,
		EvaluationInterval: 30 * time.Second,
		MaxAlertHistory:    200,
		DefaultSeverity:    string(alerting.SeverityWarning),
		RateLimitDuration:  5 * time.Minute,
		RetryAttempts:      1,
		RetryDelay:         time.Second,
	})
	alerts.RegisterChannel(&logChannel{log: log})
	alerts.AddRule(alerting.AlertRule{
		Name:      "evidence_source_breakers_open",
		Query:     "source_breaker_open_ratio",
		Condition: alerting.AlertCondition{Operator: alerting.OperatorGreaterThan, Value: 0},
		Threshold: 0,
		Severity:  alerting.SeverityWarning,
		Summary:   "one or more evidence sources have an open circuit breaker",
		Description: "{{ .Value }} of wired evidence sources currently have an open " +
			"circuit breaker (threshold {{ .Threshold }})",
		Channels: []string{"log"},
		Enabled:  true,
	})

	return &Hub{
		Metrics:       metrics,
		Errors:        errMgr,
		ToolValidator: toolValidator,
		Recovery:      recovery,
		Breakers:      breakers,
		Degradation:   degradation,
		Logging:       mcpLogger,
		alerts:        alerts,
		log:           log,
	}
}

// Start begins the background alert-evaluation and correlation-cleanup
// routines. Correlation cleanup stops when ctx is canceled; alert
// evaluation does not watch ctx and runs until the alert manager is stopped.
func (h *Hub) Start(ctx context.Context) {
	h.alerts.Start(&breakerMetricProvider{breakers: h.Breakers})
	h.Errors.StartCleanupRoutine(ctx)
}

// Close stops the alert manager's evaluation ticker.
func (h *Hub) Close() {
	h.alerts.Stop()
}

// logChannel delivers alerts via the shared logger; the wired stack has
// no webhook/Slack endpoint configured for this deployment.
type logChannel struct{ log *logrus.Logger }

func (c *logChannel) Name() string { return "log" }

func (c *logChannel) Send(ctx context.Context, alert *alerting.Alert) error {
	c.log.WithFields(logrus.Fields{
		"rule":     alert.RuleName,
		"severity": alert.Severity,
		"status":   alert.Status,
		"value":    alert.Value,
	}).Warn(alert.Summary)
	return nil
}

func (c *logChannel) Test(ctx context.Context) error { return nil }

// breakerMetricProvider answers the alert manager's periodic rule
// evaluation from live circuit breaker state.
type breakerMetricProvider struct {
	breakers *mcperrors.CircuitBreakerManager
}

func (p *breakerMetricProvider) GetMetric(query string) (float64, error) {
	switch query {
	case "source_breaker_open_ratio":
		all := p.breakers.GetAllCircuitBreakers()
		if len(all) == 0 {
			return 0, nil
		}
		open := 0
		for _, b := range all {
			if b.GetMetrics().State == mcperrors.CircuitBreakerOpen {
				open++
			}
		}
		return float64(open) / float64(len(all)), nil
	default:
		return 0, fmt.Errorf("unknown metric query %q", query)
	}
}
