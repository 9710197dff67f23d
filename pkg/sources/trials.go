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

// TrialsClient queries ClinicalTrials.gov v2 studies search, first at
// variant level and then, on an empty result, at gene level.
type TrialsClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rateLimiterAdapter
	retry      RetryConfig
}

func NewTrialsClient(baseURL string, timeout int) *TrialsClient {
	return &TrialsClient{
		baseURL:    baseURL,
		httpClient: NewHTTPClient(secondsOrDefault(timeout, 30)),
		breaker:    NewBreaker("trials"),
		limiter:    newConcurrencyLimiter(4),
		retry:      DefaultRetryConfig(),
	}
}

func (c *TrialsClient) Name() domain.SourceName { return domain.SourceTrials }

type ctgovResponse struct {
	Studies []struct {
		ProtocolSection struct {
			IdentificationModule struct {
				NCTId string `json:"nctId"`
			} `json:"identificationModule"`
			StatusModule struct {
				OverallStatus string `json:"overallStatus"`
			} `json:"statusModule"`
			DesignModule struct {
				PhaseList []string `json:"phases"`
			} `json:"designModule"`
			SponsorCollaboratorsModule struct {
				LeadSponsor struct {
					Name string `json:"name"`
				} `json:"leadSponsor"`
			} `json:"sponsorCollaboratorsModule"`
			ArmsInterventionsModule struct {
				Interventions []struct {
					Name string `json:"name"`
				} `json:"interventions"`
			} `json:"armsInterventionsModule"`
			EligibilityModule struct {
				EligibilityCriteria string `json:"eligibilityCriteria"`
			} `json:"eligibilityModule"`
		} `json:"protocolSection"`
	} `json:"studies"`
}

func (c *TrialsClient) Fetch(ctx context.Context, req domain.SourceRequest) (any, domain.FetchState, error) {
	release, err := c.limiter.acquire(ctx)
	if err != nil {
		return nil, domain.FetchAbsent, err
	}
	defer release()

	variantTerm := fmt.Sprintf("%s %s", req.Variant.Gene, req.Variant.VariantNormalized)
	resp, ferr := c.search(ctx, variantTerm)
	if ferr != nil {
		return Absent(c.Name(), ferr)
	}
	if len(resp.Studies) == 0 {
		resp, ferr = c.search(ctx, req.Variant.Gene)
		if ferr != nil {
			return Absent(c.Name(), ferr)
		}
	}

	frag := &domain.TrialsFragment{State: domain.FetchPresent}
	lowerVariant := strings.ToLower(req.Variant.VariantNormalized)
	for _, s := range resp.Studies {
		ps := s.ProtocolSection
		trial := domain.ClinicalTrial{
			NCTID:   ps.IdentificationModule.NCTId,
			Status:  ps.StatusModule.OverallStatus,
			Sponsor: ps.SponsorCollaboratorsModule.LeadSponsor.Name,
		}
		if len(ps.DesignModule.PhaseList) > 0 {
			trial.Phase = ps.DesignModule.PhaseList[0]
		}
		for _, iv := range ps.ArmsInterventionsModule.Interventions {
			trial.Drugs = append(trial.Drugs, iv.Name)
		}
		criteria := strings.ToLower(ps.EligibilityModule.EligibilityCriteria)
		trial.VariantExplicitlyMentioned = strings.Contains(criteria, lowerVariant)
		frag.Trials = append(frag.Trials, trial)
	}
	return frag, domain.FetchPresent, nil
}

func (c *TrialsClient) search(ctx context.Context, term string) (*ctgovResponse, error) {
	var out *ctgovResponse
	rerr := Retry(ctx, c.retry, func() error {
		res, cbErr := c.breaker.Execute(func() (any, error) { return c.doSearch(ctx, term) })
		if cbErr != nil {
			return cbErr
		}
		out = res.(*ctgovResponse)
		return nil
	})
	return out, rerr
}

func (c *TrialsClient) doSearch(ctx context.Context, term string) (*ctgovResponse, error) {
	u := fmt.Sprintf("%s/studies?query.term=%s&pageSize=25", c.baseURL, url.QueryEscape(term))
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, wrapErr("build trials request", err)
	}
	resp, err := c.httpClient.Do(r)
	if err != nil {
		return nil, wrapErr("execute trials request", err)
	}
	defer resp.Body.Close()
	if IsTransient(resp.StatusCode) {
		return nil, fmt.Errorf("trials transient status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trials status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr("read trials response", err)
	}
	var out2 ctgovResponse
	if err := json.Unmarshal(body, &out2); err != nil {
		return nil, wrapErr("parse trials response", err)
	}
	return &out2, nil
}
