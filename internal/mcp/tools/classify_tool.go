package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/assess"
	"github.com/tierdx/tierdx/internal/domain"
	"github.com/tierdx/tierdx/internal/mcp/protocol"
)

// ClassifyVariantTool implements the classify_variant MCP tool: one
// variant in, one tiered Assessment out.
type ClassifyVariantTool struct {
	logger   *logrus.Logger
	pipeline *assess.Pipeline
}

// ClassifyVariantParams is the classify_variant request body.
type ClassifyVariantParams struct {
	Gene      string `json:"gene" validate:"required"`
	Variant   string `json:"variant" validate:"required"`
	TumorType string `json:"tumor_type,omitempty"`
}

// NewClassifyVariantTool builds a classify_variant tool bound to pipeline.
func NewClassifyVariantTool(logger *logrus.Logger, pipeline *assess.Pipeline) *ClassifyVariantTool {
	return &ClassifyVariantTool{logger: logger, pipeline: pipeline}
}

func (t *ClassifyVariantTool) ValidateParams(params interface{}) error {
	var p ClassifyVariantParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.Gene == "" || p.Variant == "" {
		return fmt.Errorf("gene and variant are required")
	}
	return nil
}

func (t *ClassifyVariantTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        "classify_variant",
		Description: "Classify a somatic variant into its AMP/ASCO/CAP tier and sublevel",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"gene":       map[string]interface{}{"type": "string"},
				"variant":    map[string]interface{}{"type": "string"},
				"tumor_type": map[string]interface{}{"type": "string"},
			},
			"required": []string{"gene", "variant"},
		},
	}
}

func (t *ClassifyVariantTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	start := time.Now()
	var params ClassifyVariantParams
	if err := ParseParams(req.Params, &params); err != nil {
		return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.InvalidParams, Message: "invalid parameters", Data: err.Error()}}
	}

	assessment, err := t.pipeline.Run(ctx, domain.VariantInput{Gene: params.Gene, Variant: params.Variant, TumorType: params.TumorType})
	if err != nil {
		if rejected, ok := err.(*domain.RejectedVariantError); ok {
			return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.InvalidParams, Message: "variant not admitted", Data: rejected.Error()}}
		}
		t.logger.WithError(err).WithField("gene", params.Gene).Error("classification failed")
		return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.MCPToolError, Message: "classification failed", Data: err.Error()}}
	}

	t.logger.WithFields(logrus.Fields{
		"gene": params.Gene, "variant": params.Variant, "tier": assessment.Tier,
		"elapsed": time.Since(start).String(),
	}).Info("classified variant")

	return &protocol.JSONRPC2Response{Result: assessment}
}
