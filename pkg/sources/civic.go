package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/tierdx/tierdx/internal/domain"
)

// CIViCClient queries CIViC's GraphQL endpoint for evidence items and
// assertions by molecular-profile name. The aggregator queries it on every
// request alongside the other sources.
type CIViCClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rateLimiterAdapter
	retry      RetryConfig
}

func NewCIViCClient(baseURL string, timeout int) *CIViCClient {
	return &CIViCClient{
		baseURL:    baseURL,
		httpClient: NewHTTPClient(secondsOrDefault(timeout, 30)),
		breaker:    NewBreaker("civic"),
		limiter:    newConcurrencyLimiter(4),
		retry:      DefaultRetryConfig(),
	}
}

func (c *CIViCClient) Name() domain.SourceName { return domain.SourceCIViC }

const civicQuery = `query($profileName: String!) {
  molecularProfiles(name: $profileName) {
    nodes {
      evidenceItems { nodes { evidenceLevel significance evidenceDirection therapies { name } disease { name } } }
      assertions { nodes { ampLevel significance therapies { name } disease { name } fdaCompanionTest nccnGuideline } }
    }
  }
}`

type civicGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type civicGraphQLResponse struct {
	Data struct {
		MolecularProfiles struct {
			Nodes []struct {
				EvidenceItems struct {
					Nodes []struct {
						EvidenceLevel      string   `json:"evidenceLevel"`
						Significance       string   `json:"significance"`
						EvidenceDirection  string   `json:"evidenceDirection"`
						Therapies          []struct{ Name string `json:"name"` } `json:"therapies"`
						Disease            struct{ Name string `json:"name"` } `json:"disease"`
					} `json:"nodes"`
				} `json:"evidenceItems"`
				Assertions struct {
					Nodes []struct {
						AMPLevel          string   `json:"ampLevel"`
						Significance      string   `json:"significance"`
						Therapies         []struct{ Name string `json:"name"` } `json:"therapies"`
						Disease           struct{ Name string `json:"name"` } `json:"disease"`
						FDACompanionTest  bool     `json:"fdaCompanionTest"`
						NCCNGuideline     bool     `json:"nccnGuideline"`
					} `json:"nodes"`
				} `json:"assertions"`
			} `json:"nodes"`
		} `json:"molecularProfiles"`
	} `json:"data"`
}

func (c *CIViCClient) Fetch(ctx context.Context, req domain.SourceRequest) (any, domain.FetchState, error) {
	release, err := c.limiter.acquire(ctx)
	if err != nil {
		return nil, domain.FetchAbsent, err
	}
	defer release()

	profileName := fmt.Sprintf("%s %s", req.Variant.Gene, req.Variant.VariantNormalized)
	var resp *civicGraphQLResponse
	rerr := Retry(ctx, c.retry, func() error {
		out, cbErr := c.breaker.Execute(func() (any, error) { return c.query(ctx, profileName) })
		if cbErr != nil {
			return cbErr
		}
		resp = out.(*civicGraphQLResponse)
		return nil
	})
	if rerr != nil {
		return Absent(c.Name(), rerr)
	}

	frag := &domain.CIViCFragment{State: domain.FetchPresent}
	for _, profile := range resp.Data.MolecularProfiles.Nodes {
		for _, item := range profile.EvidenceItems.Nodes {
			frag.Items = append(frag.Items, domain.CIViCEvidenceItem{
				Level:        domain.EvidenceLevel(strings.ToUpper(item.EvidenceLevel)),
				Significance: domain.CIViCSignificance(strings.ToUpper(item.Significance)),
				Response:     directionToResponse(item.EvidenceDirection),
				Therapies:    therapyNames(item.Therapies),
				Disease:      item.Disease.Name,
			})
		}
		for _, a := range profile.Assertions.Nodes {
			frag.Assertions = append(frag.Assertions, domain.CIViCAssertion{
				AMPTier:          ampLevelToTier(a.AMPLevel),
				AMPLevel:         domain.EvidenceLevel(ampLevelToLetter(a.AMPLevel)),
				Significance:     domain.CIViCSignificance(strings.ToUpper(a.Significance)),
				Therapies:        therapyNames(a.Therapies),
				Disease:          a.Disease.Name,
				FDACompanionTest: a.FDACompanionTest,
				NCCNGuideline:    a.NCCNGuideline,
			})
		}
	}
	return frag, domain.FetchPresent, nil
}

func therapyNames(in []struct{ Name string `json:"name"` }) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, t.Name)
	}
	return out
}

func directionToResponse(direction string) domain.DrugResponse {
	if strings.EqualFold(direction, "does_not_support") {
		return domain.ResponseResistant
	}
	return domain.ResponseSensitive
}

// ampLevelToTier and ampLevelToLetter parse CIViC's combined tier/level
// encoding such as "TIER_I_LEVEL_A" into its AMP tier and letter parts.
func ampLevelToTier(raw string) string {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(upper, "TIER_I_"):
		return "I"
	case strings.Contains(upper, "TIER_II"):
		return "II"
	case strings.Contains(upper, "TIER_III"):
		return "III"
	case strings.Contains(upper, "TIER_IV"):
		return "IV"
	}
	return ""
}

func ampLevelToLetter(raw string) string {
	upper := strings.ToUpper(raw)
	for _, letter := range []string{"A", "B", "C", "D"} {
		if strings.HasSuffix(upper, "_LEVEL_"+letter) {
			return letter
		}
	}
	return ""
}

func (c *CIViCClient) query(ctx context.Context, profileName string) (*civicGraphQLResponse, error) {
	body, err := json.Marshal(civicGraphQLRequest{
		Query:     civicQuery,
		Variables: map[string]any{"profileName": profileName},
	})
	if err != nil {
		return nil, wrapErr("marshal civic request", err)
	}
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr("build civic request", err)
	}
	r.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, wrapErr("execute civic request", err)
	}
	defer resp.Body.Close()
	if IsTransient(resp.StatusCode) {
		return nil, fmt.Errorf("civic transient status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("civic status %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr("read civic response", err)
	}
	var out civicGraphQLResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, wrapErr("parse civic response", err)
	}
	return &out, nil
}
