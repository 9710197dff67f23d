package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/tierdx/tierdx/internal/domain"
)

// MyVariantClient queries MyVariant.info, attempting three query shapes in
// order until one returns a hit.
type MyVariantClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rateLimiterAdapter
	retry      RetryConfig
}

// NewMyVariantClient builds a client bound to the shared transport, a
// dedicated circuit breaker, and the default per-host concurrency policy.
func NewMyVariantClient(baseURL string, timeout int) *MyVariantClient {
	return &MyVariantClient{
		baseURL:    baseURL,
		httpClient: NewHTTPClient(secondsOrDefault(timeout, 30)),
		breaker:    NewBreaker("myvariant"),
		limiter:    newConcurrencyLimiter(4),
		retry:      DefaultRetryConfig(),
	}
}

func (c *MyVariantClient) Name() domain.SourceName { return domain.SourceMyVariant }

type myVariantHit struct {
	Hits []struct {
		ClinVar struct {
			VariationID    json.Number `json:"variant_id"`
			CLNSig         string      `json:"clinsig"`
		} `json:"clinvar"`
		Cosmic struct {
			CosmicID string `json:"cosmic_id"`
		} `json:"cosmic"`
		DbSNP struct {
			RSID string `json:"rsid"`
		} `json:"dbsnp"`
		DbNSFP struct {
			Polyphen2HDIVScore float64 `json:"polyphen2_hdiv_score"`
			CADDPhred          float64 `json:"cadd_phred"`
		} `json:"dbnsfp"`
		GnomadExome struct {
			AF float64 `json:"af"`
		} `json:"gnomad_exome"`
		HGVS string `json:"_id"`
	} `json:"hits"`
}

// Fetch tries "GENE p.VARIANT", then "GENE:VARIANT", then "GENE VARIANT".
func (c *MyVariantClient) Fetch(ctx context.Context, req domain.SourceRequest) (any, domain.FetchState, error) {
	release, err := c.limiter.acquire(ctx)
	if err != nil {
		return nil, domain.FetchAbsent, err
	}
	defer release()

	queries := []string{
		fmt.Sprintf("%s p.%s", req.Variant.Gene, req.Variant.VariantNormalized),
		fmt.Sprintf("%s:%s", req.Variant.Gene, req.Variant.VariantNormalized),
		fmt.Sprintf("%s %s", req.Variant.Gene, req.Variant.VariantNormalized),
	}

	var hit *myVariantHit
	for _, q := range queries {
		var resp *myVariantHit
		err := Retry(ctx, c.retry, func() error {
			out, cbErr := c.breaker.Execute(func() (any, error) {
				return c.query(ctx, q)
			})
			if cbErr != nil {
				return cbErr
			}
			resp = out.(*myVariantHit)
			return nil
		})
		if err != nil {
			return Absent(c.Name(), err)
		}
		if len(resp.Hits) > 0 {
			hit = resp
			break
		}
	}
	if hit == nil || len(hit.Hits) == 0 {
		return &domain.MyVariantFragment{State: domain.FetchPresent}, domain.FetchPresent, nil
	}

	h := hit.Hits[0]
	frag := &domain.MyVariantFragment{
		State:               domain.FetchPresent,
		COSMICID:            h.Cosmic.CosmicID,
		DbSNPID:             h.DbSNP.RSID,
		ClinVarID:           h.ClinVar.VariationID.String(),
		HGVS:                h.HGVS,
		PolyPhen2:           h.DbNSFP.Polyphen2HDIVScore,
		CADD:                h.DbNSFP.CADDPhred,
		GnomADAF:            h.GnomadExome.AF,
		ClinVarSignificance: h.ClinVar.CLNSig,
	}
	return frag, domain.FetchPresent, nil
}

func (c *MyVariantClient) query(ctx context.Context, q string) (*myVariantHit, error) {
	u := fmt.Sprintf("%s/query?q=%s", c.baseURL, url.QueryEscape(q))
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, wrapErr("build myvariant request", err)
	}
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, wrapErr("execute myvariant request", err)
	}
	defer resp.Body.Close()
	if IsTransient(resp.StatusCode) {
		return nil, fmt.Errorf("myvariant transient status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("myvariant status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr("read myvariant response", err)
	}
	var out myVariantHit
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, wrapErr("parse myvariant response", err)
	}
	return &out, nil
}
