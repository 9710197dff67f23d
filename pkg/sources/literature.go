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

// maxPapers bounds how many unique papers the literature client merges
// per request, before the aggregator's relevance scorer filters further.
const maxPapers = 6

// LiteratureClient searches Semantic Scholar. It rate-limits at 1
// request/second via a token bucket, per the Semantic Scholar policy, and
// returns raw unscored papers; scoring and knowledge extraction are an
// aggregator-level concern applied to the raw fragment.
type LiteratureClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rateAdapter
	retry      RetryConfig
}

func NewLiteratureClient(baseURL string, timeout int) *LiteratureClient {
	return &LiteratureClient{
		baseURL:    baseURL,
		httpClient: NewHTTPClient(secondsOrDefault(timeout, 30)),
		breaker:    NewBreaker("literature"),
		limiter:    newRateAdapter(1.0),
		retry:      DefaultRetryConfig(),
	}
}

func (c *LiteratureClient) Name() domain.SourceName { return domain.SourceLiterature }

type semanticScholarResponse struct {
	Data []struct {
		PaperID   string `json:"paperId"`
		Title     string `json:"title"`
		Year      int    `json:"year"`
		Citations int    `json:"citationCount"`
		Abstract  string `json:"abstract"`
		TLDR      *struct {
			Text string `json:"text"`
		} `json:"tldr"`
	} `json:"data"`
}

func (c *LiteratureClient) Fetch(ctx context.Context, req domain.SourceRequest) (any, domain.FetchState, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return nil, domain.FetchAbsent, err
	}

	query := fmt.Sprintf("%s %s", req.Variant.Gene, req.Variant.VariantNormalized)
	if req.TumorType != "" {
		query += " " + req.TumorType
	}

	var resp *semanticScholarResponse
	rerr := Retry(ctx, c.retry, func() error {
		out, cbErr := c.breaker.Execute(func() (any, error) { return c.search(ctx, query) })
		if cbErr != nil {
			return cbErr
		}
		resp = out.(*semanticScholarResponse)
		return nil
	})
	if rerr != nil {
		return Absent(c.Name(), rerr)
	}

	seen := make(map[string]bool)
	frag := &domain.LiteratureFragment{State: domain.FetchPresent}
	for _, d := range resp.Data {
		if seen[d.PaperID] || len(frag.Papers) >= maxPapers {
			continue
		}
		seen[d.PaperID] = true
		p := domain.LiteraturePaper{
			PaperID: d.PaperID, Title: d.Title, Year: d.Year,
			Citations: d.Citations, Abstract: d.Abstract,
		}
		if d.TLDR != nil {
			p.TLDR = d.TLDR.Text
		}
		frag.Papers = append(frag.Papers, p)
	}
	return frag, domain.FetchPresent, nil
}

func (c *LiteratureClient) search(ctx context.Context, query string) (*semanticScholarResponse, error) {
	u := fmt.Sprintf("%s/graph/v1/paper/search?query=%s&fields=title,year,citationCount,abstract,tldr&limit=20",
		c.baseURL, url.QueryEscape(query))
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, wrapErr("build literature request", err)
	}
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, wrapErr("execute literature request", err)
	}
	defer resp.Body.Close()
	if IsTransient(resp.StatusCode) {
		return nil, fmt.Errorf("literature transient status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("literature status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr("read literature response", err)
	}
	var out semanticScholarResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, wrapErr("parse literature response", err)
	}
	return &out, nil
}
