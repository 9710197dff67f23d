package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/tierdx/tierdx/internal/domain"
)

// FDAClient queries the openFDA drug label search endpoint.
type FDAClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rateLimiterAdapter
	retry      RetryConfig
}

func NewFDAClient(baseURL string, timeout int) *FDAClient {
	return &FDAClient{
		baseURL:    baseURL,
		httpClient: NewHTTPClient(secondsOrDefault(timeout, 30)),
		breaker:    NewBreaker("fda"),
		limiter:    newConcurrencyLimiter(4),
		retry:      DefaultRetryConfig(),
	}
}

func (c *FDAClient) Name() domain.SourceName { return domain.SourceFDA }

type fdaLabelResponse struct {
	Results []struct {
		OpenFDA struct {
			BrandName     []string `json:"brand_name"`
			GenericName   []string `json:"generic_name"`
			RouteOfAdmin  []string `json:"route"`
		} `json:"openfda"`
		IndicationsAndUsage []string `json:"indications_and_usage"`
	} `json:"results"`
}

// Fetch runs the full-text query GENE AND VARIANT across all label
// fields; on an empty result it falls back to an indications-only query
// scoped to the gene.
func (c *FDAClient) Fetch(ctx context.Context, req domain.SourceRequest) (any, domain.FetchState, error) {
	release, err := c.limiter.acquire(ctx)
	if err != nil {
		return nil, domain.FetchAbsent, err
	}
	defer release()

	primary := fmt.Sprintf("_exists_:indications_and_usage+AND+%s+AND+%s", req.Variant.Gene, req.Variant.VariantNormalized)
	resp, ferr := c.search(ctx, primary)
	if ferr != nil {
		return Absent(c.Name(), ferr)
	}
	if len(resp.Results) == 0 {
		fallback := fmt.Sprintf("indications_and_usage:%s", req.Variant.Gene)
		resp, ferr = c.search(ctx, fallback)
		if ferr != nil {
			return Absent(c.Name(), ferr)
		}
	}

	frag := &domain.FDAFragment{State: domain.FetchPresent}
	lowerVariant := strings.ToLower(req.Variant.VariantNormalized)
	for _, r := range resp.Results {
		indication := strings.Join(r.IndicationsAndUsage, " ")
		match := domain.FDALabelMatch{
			IndicationText: indication,
		}
		if len(r.OpenFDA.GenericName) > 0 {
			match.Drug = r.OpenFDA.GenericName[0]
		}
		if len(r.OpenFDA.BrandName) > 0 {
			match.Brand = r.OpenFDA.BrandName[0]
		}
		frag.Matches = append(frag.Matches, match)
		if strings.Contains(strings.ToLower(indication), lowerVariant) {
			frag.MentionsVariantInLabel = true
		}
	}
	return frag, domain.FetchPresent, nil
}

func (c *FDAClient) search(ctx context.Context, query string) (*fdaLabelResponse, error) {
	var out *fdaLabelResponse
	err := Retry(ctx, c.retry, func() error {
		res, cbErr := c.breaker.Execute(func() (any, error) {
			return c.doSearch(ctx, query)
		})
		if cbErr != nil {
			return cbErr
		}
		out = res.(*fdaLabelResponse)
		return nil
	})
	return out, err
}

func (c *FDAClient) doSearch(ctx context.Context, query string) (*fdaLabelResponse, error) {
	u := fmt.Sprintf("%s/drug/label.json?search=%s&limit=20", c.baseURL, url.QueryEscape(query))
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, wrapErr("build fda request", err)
	}
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, wrapErr("execute fda request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return &fdaLabelResponse{}, nil
	}
	if IsTransient(resp.StatusCode) {
		return nil, fmt.Errorf("fda transient status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fda status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr("read fda response", err)
	}
	var out fdaLabelResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, wrapErr("parse fda response", err)
	}
	return &out, nil
}
