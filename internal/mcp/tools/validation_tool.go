package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/domain"
	"github.com/tierdx/tierdx/internal/mcp/protocol"
	"github.com/tierdx/tierdx/internal/validate"
)

// RunValidationTool implements the run_validation MCP tool: a batch of
// labeled cases in, a scored ValidationReport out.
type RunValidationTool struct {
	logger    *logrus.Logger
	validator *validate.Validator
}

// RunValidationParams is the run_validation request body.
type RunValidationParams struct {
	Cases []domain.ValidationCase `json:"cases" validate:"required"`
}

// NewRunValidationTool builds a run_validation tool bound to validator.
func NewRunValidationTool(logger *logrus.Logger, validator *validate.Validator) *RunValidationTool {
	return &RunValidationTool{logger: logger, validator: validator}
}

func (t *RunValidationTool) ValidateParams(params interface{}) error {
	var p RunValidationParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if len(p.Cases) == 0 {
		return fmt.Errorf("cases must not be empty")
	}
	return nil
}

func (t *RunValidationTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        "run_validation",
		Description: "Run a labeled batch of variants through the tiering pipeline and score against expected tiers",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"cases": map[string]interface{}{"type": "array"},
			},
			"required": []string{"cases"},
		},
	}
}

func (t *RunValidationTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params RunValidationParams
	if err := ParseParams(req.Params, &params); err != nil {
		return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.InvalidParams, Message: "invalid parameters", Data: err.Error()}}
	}

	report, err := t.validator.Run(ctx, params.Cases)
	if err != nil {
		t.logger.WithError(err).Error("validation run failed")
		return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.MCPToolError, Message: "validation run failed", Data: err.Error()}}
	}

	t.logger.WithFields(logrus.Fields{
		"cases": report.TotalCases, "accuracy": report.OverallAccuracy,
	}).Info("validation run complete")

	return &protocol.JSONRPC2Response{Result: report}
}
