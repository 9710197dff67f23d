package sources

import (
	"context"

	"github.com/tierdx/tierdx/internal/domain"
)

// oncoKBCancerGenes is the static cancer gene list OncoKB exposes; loaded
// once at startup rather than fetched per request, mirroring a curated
// reference list rather than a live API.
var oncoKBCancerGenes = map[string]bool{
	"BRAF": true, "KRAS": true, "EGFR": true, "KIT": true, "PIK3CA": true,
	"PTEN": true, "TP53": true, "NF1": true, "VHL": true, "TSC1": true,
	"TSC2": true, "ALK": true, "ROS1": true, "MET": true, "ERBB2": true,
	"NRAS": true, "HRAS": true, "IDH1": true, "IDH2": true, "FGFR1": true,
	"FGFR2": true, "FGFR3": true, "RET": true, "NTRK1": true, "NTRK2": true,
	"NTRK3": true, "BRCA1": true, "BRCA2": true, "APC": true, "SMAD4": true,
	"STK11": true, "CDKN2A": true, "RB1": true, "ATM": true, "POLE": true,
}

// OncoKBClient exposes IsCancerGene over the static startup list; it is a
// source client in name only (it has no Fetch-time I/O).
type OncoKBClient struct{}

func NewOncoKBClient() *OncoKBClient { return &OncoKBClient{} }

func (c *OncoKBClient) Name() domain.SourceName { return domain.SourceOncoKB }

// IsCancerGene reports whether gene appears on the static OncoKB cancer
// gene list.
func (c *OncoKBClient) IsCancerGene(gene string) bool {
	return oncoKBCancerGenes[gene]
}

func (c *OncoKBClient) Fetch(_ context.Context, req domain.SourceRequest) (any, domain.FetchState, error) {
	return c.IsCancerGene(req.Variant.Gene), domain.FetchPresent, nil
}
