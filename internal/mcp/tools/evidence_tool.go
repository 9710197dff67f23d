package tools

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/domain"
	"github.com/tierdx/tierdx/internal/mcp/protocol"
)

// GetCachedEvidenceTool implements the get_cached_evidence MCP tool: it
// runs normalization and evidence gathering without the tier cascade, for
// clients that want the raw multi-source dossier behind a classification.
type GetCachedEvidenceTool struct {
	logger     *logrus.Logger
	normalizer domain.Normalizer
	aggregator domain.Aggregator
}

// GetCachedEvidenceParams is the get_cached_evidence request body.
type GetCachedEvidenceParams struct {
	Gene      string `json:"gene" validate:"required"`
	Variant   string `json:"variant" validate:"required"`
	TumorType string `json:"tumor_type,omitempty"`
}

// NewGetCachedEvidenceTool builds a get_cached_evidence tool.
func NewGetCachedEvidenceTool(logger *logrus.Logger, normalizer domain.Normalizer, aggregator domain.Aggregator) *GetCachedEvidenceTool {
	return &GetCachedEvidenceTool{logger: logger, normalizer: normalizer, aggregator: aggregator}
}

func (t *GetCachedEvidenceTool) ValidateParams(params interface{}) error {
	var p GetCachedEvidenceParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.Gene == "" || p.Variant == "" {
		return fmt.Errorf("gene and variant are required")
	}
	return nil
}

func (t *GetCachedEvidenceTool) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        "get_cached_evidence",
		Description: "Fetch the merged multi-source evidence dossier for a variant without running the tier cascade",
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

func (t *GetCachedEvidenceTool) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params GetCachedEvidenceParams
	if err := ParseParams(req.Params, &params); err != nil {
		return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.InvalidParams, Message: "invalid parameters", Data: err.Error()}}
	}

	input := domain.VariantInput{Gene: params.Gene, Variant: params.Variant, TumorType: params.TumorType}
	input.Normalize()

	normalized, err := t.normalizer.Normalize(input)
	if err != nil {
		return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.InvalidParams, Message: "variant not admitted", Data: err.Error()}}
	}

	evidence, err := t.aggregator.Gather(ctx, *normalized, params.TumorType)
	if err != nil {
		t.logger.WithError(err).Error("evidence gathering failed")
		return &protocol.JSONRPC2Response{Error: &protocol.RPCError{Code: protocol.MCPToolError, Message: "evidence gathering failed", Data: err.Error()}}
	}

	return &protocol.JSONRPC2Response{Result: evidence}
}
