package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/domain"
	mcperrors "github.com/tierdx/tierdx/internal/mcp/errors"
	"github.com/tierdx/tierdx/internal/mcp/protocol"
)

// ListSourceHealthTool implements the list_source_health MCP tool: it
// probes every wired evidence source with a canary lookup through a
// per-source circuit breaker and reports each one's current fetch state,
// breaker state, and degradation fallback when the breaker is open.
type ListSourceHealthTool struct {
	logger      *logrus.Logger
	clients     []domain.SourceClient
	canary      domain.NormalizedVariant
	breakers    *mcperrors.CircuitBreakerManager
	degradation *mcperrors.GracefulDegradationManager
}

// SourceHealth describes one source's canary probe outcome.
type SourceHealth struct {
	Source        string `json:"source"`
	State         string `json:"state"`
	Latency       string `json:"latency"`
	Error         string `json:"error,omitempty"`
	BreakerState  string `json:"breaker_state"`
	BreakerOpened bool   `json:"breaker_opened"`
	Fallback      string `json:"fallback,omitempty"`
}

// NewListSourceHealthTool builds a list_source_health tool over clients,
// probing with a fixed, always-valid canary variant through breakers and
// registering each client with degradation.
func NewListSourceHealthTool(logger *logrus.Logger, clients []domain.SourceClient, breakers *mcperrors.CircuitBreakerManager, degradation *mcperrors.GracefulDegradationManager) *ListSourceHealthTool {
	for _, client := range clients {
		degradation.RegisterService(&mcperrors.ServiceConfig{
			Name:             string(client.Name()),
			Priority:         3,
			MaxRetries:       1,
			FallbackEnabled:  true,
			DegradationLevel: mcperrors.DegradationNone,
		})
	}

	return &ListSourceHealthTool{
		logger:      logger,
		clients:     clients,
		canary:      domain.NormalizedVariant{Gene: "BRAF", VariantNormalized: "V600E"},
		breakers:    breakers,
		degradation: degradation,
	}
}

func (t *ListSourceHealthTool) ValidateParams(params interface{}) error { return nil }

func (t *ListSourceHealthTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        "list_source_health",
		Description: "Probe every wired evidence source through its circuit breaker with a canary variant and report its current fetch and breaker state",
	}
}

func (t *ListSourceHealthTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	results := make([]SourceHealth, len(t.clients))
	for i, client := range t.clients {
		source := string(client.Name())
		breaker := t.breakers.GetOrCreateCircuitBreaker(source)

		start := time.Now()
		var state domain.FetchState
		callErr := breaker.Call(ctx, func(probeCtx context.Context) error {
			deadlineCtx, cancel := context.WithTimeout(probeCtx, 10*time.Second)
			defer cancel()
			_, s, err := client.Fetch(deadlineCtx, domain.SourceRequest{Variant: t.canary})
			state = s
			return err
		})

		health := SourceHealth{
			Source:       source,
			State:        string(state),
			Latency:      time.Since(start).String(),
			BreakerState: breaker.GetMetrics().State,
		}
		if callErr != nil {
			health.Error = callErr.Error()
			t.logger.WithError(callErr).WithField("source", source).Warn("source health probe failed")

			if health.BreakerState == mcperrors.CircuitBreakerOpen {
				health.BreakerOpened = true
				if fallback, _ := t.degradation.HandleServiceFailure(ctx, source, callErr); fallback != nil {
					health.Fallback = fmt.Sprintf("%s (%s)", fallback.Source, fallback.Quality)
				}
			}
		}
		results[i] = health
	}

	return &protocol.JSONRPC2Response{Result: results}
}
