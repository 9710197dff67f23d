package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/assess"
	"github.com/tierdx/tierdx/internal/domain"
	mcperrors "github.com/tierdx/tierdx/internal/mcp/errors"
	"github.com/tierdx/tierdx/internal/mcp/observability"
	"github.com/tierdx/tierdx/internal/mcp/protocol"
	"github.com/tierdx/tierdx/internal/validate"
)

// ToolRegistry manages registration of all MCP tools.
type ToolRegistry struct {
	logger *logrus.Logger
	router *protocol.MessageRouter
	obs    *observability.Hub
}

// NewToolRegistry creates a new tool registry backed by obs for metrics,
// parameter validation, and error handling around every tool call.
func NewToolRegistry(logger *logrus.Logger, router *protocol.MessageRouter, obs *observability.Hub) *ToolRegistry {
	return &ToolRegistry{logger: logger, router: router, obs: obs}
}

// RegisterAllTools registers the tiering tool surface with the MCP router.
func (tr *ToolRegistry) RegisterAllTools(pipeline *assess.Pipeline, validator *validate.Validator, sourceClients []domain.SourceClient) error {
	tr.logger.Info("registering tiering tools")

	tr.router.RegisterToolHandler("classify_variant", NewClassifyVariantTool(tr.logger, pipeline))
	tr.router.RegisterToolHandler("run_validation", NewRunValidationTool(tr.logger, validator))
	tr.router.RegisterToolHandler("get_cached_evidence", NewGetCachedEvidenceTool(tr.logger, pipeline.Normalizer, pipeline.Aggregator))
	tr.router.RegisterToolHandler("list_source_health", NewListSourceHealthTool(tr.logger, sourceClients, tr.obs.Breakers, tr.obs.Degradation))

	tr.registerParamValidators()

	tr.logger.Info("registered all tiering tools")
	return nil
}

// registerParamValidators declares each tool's required parameters with
// the shared tool error handler, so malformed calls are rejected with a
// structured, suggestion-bearing error before they ever reach the
// handler's own ParseParams step.
func (tr *ToolRegistry) registerParamValidators() {
	tr.obs.ToolValidator.RegisterToolValidator(mcperrors.ToolValidator{
		Name:           "classify_variant",
		RequiredParams: []string{"gene", "variant"},
	})
	tr.obs.ToolValidator.RegisterToolValidator(mcperrors.ToolValidator{
		Name:           "get_cached_evidence",
		RequiredParams: []string{"gene", "variant"},
	})
	tr.obs.ToolValidator.RegisterToolValidator(mcperrors.ToolValidator{
		Name:           "run_validation",
		RequiredParams: []string{"cases"},
	})
	tr.obs.ToolValidator.RegisterToolValidator(mcperrors.ToolValidator{
		Name:           "list_source_health",
		RequiredParams: []string{},
	})
}

// ExecuteTool dispatches req to the named tool's handler directly,
// bypassing MessageRouter.HandleRequest (which only routes system
// methods); the MCP SDK transport bridge calls this per tool invocation.
// Every call is validated, timed, and recorded through the observability
// hub, and any handler error is enriched with a correlation ID and
// recovery guidance before it reaches the caller.
func (tr *ToolRegistry) ExecuteTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	handler, ok := tr.router.GetToolHandler(req.Method)
	if !ok {
		return &protocol.JSONRPC2Response{
			Error: &protocol.RPCError{Code: protocol.MethodNotFound, Message: "unknown tool", Data: req.Method},
		}
	}

	params, _ := toParamMap(req.Params)
	ctx, operationID := tr.obs.Logging.StartOperation(ctx, "tool_call", req.Method, params)

	if resp := tr.validateCall(ctx, req); resp != nil {
		tr.obs.Metrics.RecordToolInvocation(req.Method, 0, false, false)
		tr.obs.Logging.EndOperation(ctx, operationID, false, 0, fmt.Errorf("%s", resp.Error.Message))
		return resp
	}

	start := time.Now()
	resp := handler.HandleTool(ctx, req)
	duration := time.Since(start)

	if resp.Error != nil {
		tr.obs.Metrics.RecordToolInvocation(req.Method, duration, false, false)
		tr.obs.Logging.EndOperation(ctx, operationID, false, 0, fmt.Errorf("%s", resp.Error.Message))
		resp.Error = tr.enrichError(ctx, req.Method, resp.Error)
		return resp
	}

	tr.obs.Metrics.RecordToolInvocation(req.Method, duration, true, false)
	tr.obs.Logging.EndOperation(ctx, operationID, true, estimateResultSize(resp.Result), nil)
	return resp
}

// estimateResultSize returns a rough byte-size estimate of a tool result
// for logging purposes, without failing the call if result isn't JSON-safe.
func estimateResultSize(result interface{}) int {
	raw, err := json.Marshal(result)
	if err != nil {
		return 0
	}
	return len(raw)
}

// validateCall runs req's parameters through the shared tool validator,
// returning a ready-to-send error response when validation fails and nil
// when the call may proceed.
func (tr *ToolRegistry) validateCall(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	params, err := toParamMap(req.Params)
	if err != nil {
		return nil
	}
	if err := tr.obs.ToolValidator.ValidateToolCall(req.Method, params); err != nil {
		mcpErr := tr.obs.Errors.HandleError(ctx, err, map[string]interface{}{"tool": req.Method})
		return &protocol.JSONRPC2Response{Error: toRPCError(tr.obs, mcpErr)}
	}
	return nil
}

// enrichError runs a failed tool call through the error manager for
// correlation and audit, attaches a recovery plan, and returns the
// JSON-RPC error to send back to the client.
func (tr *ToolRegistry) enrichError(ctx context.Context, toolName string, rpcErr *protocol.RPCError) *protocol.RPCError {
	mcpErr := tr.obs.Errors.HandleError(ctx, fmt.Errorf("%s", rpcErr.Message), map[string]interface{}{"tool": toolName})

	plan, err := tr.obs.Recovery.GenerateRecoveryPlan(ctx, &mcperrors.ErrorContext{
		Error:         fmt.Errorf("%s", rpcErr.Message),
		OperationName: toolName,
		Timestamp:     time.Now(),
	})
	if err == nil && len(plan.RecommendedActions) > 0 {
		if mcpErr.Data == nil {
			mcpErr.Data = make(map[string]interface{})
		}
		mcpErr.Data["recovery_action"] = plan.RecommendedActions[0].Action.Name
	}

	return toRPCError(tr.obs, mcpErr)
}

func toRPCError(obs *observability.Hub, mcpErr *mcperrors.MCPError) *protocol.RPCError {
	jsonRPC := obs.Errors.ToJSONRPCError(mcpErr)
	out := &protocol.RPCError{Code: mcpErr.Code, Message: mcpErr.Message}
	if data, ok := jsonRPC["data"]; ok {
		out.Data = data
	} else if len(mcpErr.Data) > 0 {
		out.Data = mcpErr.Data
	}
	return out
}

func toParamMap(params interface{}) (map[string]interface{}, error) {
	if params == nil {
		return map[string]interface{}{}, nil
	}
	if m, ok := params.(map[string]interface{}); ok {
		return m, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetRegisteredToolsInfo returns information about all registered tools.
func (tr *ToolRegistry) GetRegisteredToolsInfo() []protocol.ToolInfo {
	toolHandlers := tr.router.GetToolHandlers()
	toolsInfo := make([]protocol.ToolInfo, 0, len(toolHandlers))
	for _, handler := range toolHandlers {
		toolsInfo = append(toolsInfo, handler.GetToolInfo())
	}
	return toolsInfo
}

// ValidateAllTools validates every registered tool's metadata is complete.
func (tr *ToolRegistry) ValidateAllTools() error {
	toolHandlers := tr.router.GetToolHandlers()
	for name, handler := range toolHandlers {
		toolInfo := handler.GetToolInfo()
		if toolInfo.Name == "" {
			tr.logger.WithField("tool", name).Error("tool missing name")
			continue
		}
		if toolInfo.Description == "" {
			tr.logger.WithField("tool", name).Warn("tool missing description")
		}
	}
	return nil
}
