package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/tierdx/tierdx/internal/domain"
)

// compoundMutationMarkers flag free-text association notes describing
// resistance arising from a secondary mutation, which must not be
// attributed to the queried variant.
var compoundMutationMarkers = []string{
	"secondary mutation", "acquired mutation",
}

var harboringPattern = regexp.MustCompile(`harboring\s+\S+\s+and\s+\S+`)

// VICCClient queries the VICC meta-knowledgebase aggregator.
type VICCClient struct {
	baseURL    string
	enabled    bool
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rateLimiterAdapter
	retry      RetryConfig
}

func NewVICCClient(baseURL string, enabled bool, timeout int) *VICCClient {
	return &VICCClient{
		baseURL:    baseURL,
		enabled:    enabled,
		httpClient: NewHTTPClient(secondsOrDefault(timeout, 30)),
		breaker:    NewBreaker("vicc"),
		limiter:    newConcurrencyLimiter(4),
		retry:      DefaultRetryConfig(),
	}
}

func (c *VICCClient) Name() domain.SourceName { return domain.SourceVICC }

type viccResponse struct {
	Associations []struct {
		Drug          string `json:"drug"`
		Response      string `json:"response"`
		EvidenceLevel string `json:"evidence_level"`
		OncoKBLevel   string `json:"oncokb_level"`
		Source        string `json:"source"`
		Tumor         string `json:"tumor"`
		Description   string `json:"description"`
	} `json:"associations"`
}

func (c *VICCClient) Fetch(ctx context.Context, req domain.SourceRequest) (any, domain.FetchState, error) {
	if !c.enabled {
		return nil, domain.FetchAbsent, nil
	}
	release, err := c.limiter.acquire(ctx)
	if err != nil {
		return nil, domain.FetchAbsent, err
	}
	defer release()

	query := fmt.Sprintf("gene:%s AND variant:%s", req.Variant.Gene, req.Variant.VariantNormalized)
	var resp *viccResponse
	rerr := Retry(ctx, c.retry, func() error {
		out, cbErr := c.breaker.Execute(func() (any, error) { return c.query(ctx, query) })
		if cbErr != nil {
			return cbErr
		}
		resp = out.(*viccResponse)
		return nil
	})
	if rerr != nil {
		return Absent(c.Name(), rerr)
	}

	frag := &domain.VICCFragment{State: domain.FetchPresent}
	for _, a := range resp.Associations {
		response := domain.DrugResponse(strings.ToLower(a.Response))
		if response == domain.ResponseResistant && isCompoundMutation(a.Description) {
			continue
		}
		frag.Associations = append(frag.Associations, domain.VICCAssociation{
			Drug: a.Drug, Response: response,
			EvidenceLevel: domain.EvidenceLevel(strings.ToUpper(a.EvidenceLevel)),
			OncoKBLevel:   a.OncoKBLevel, Source: a.Source, Tumor: a.Tumor,
		})
	}
	return frag, domain.FetchPresent, nil
}

func isCompoundMutation(description string) bool {
	lower := strings.ToLower(description)
	for _, marker := range compoundMutationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return harboringPattern.MatchString(lower)
}

func (c *VICCClient) query(ctx context.Context, q string) (*viccResponse, error) {
	u := fmt.Sprintf("%s/associations?q=%s", c.baseURL, url.QueryEscape(q))
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, wrapErr("build vicc request", err)
	}
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, wrapErr("execute vicc request", err)
	}
	defer resp.Body.Close()
	if IsTransient(resp.StatusCode) {
		return nil, fmt.Errorf("vicc transient status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vicc status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr("read vicc response", err)
	}
	var out viccResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, wrapErr("parse vicc response", err)
	}
	return &out, nil
}
