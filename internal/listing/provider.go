package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jobtailor/jobtailor/internal/filter"
	"github.com/jobtailor/jobtailor/internal/model"
	"github.com/jobtailor/jobtailor/internal/ratelimit"
)

// Actor identifiers on the scraping platform.
const (
	actorJobSearch     = "apimaestro~linkedin-jobs-scraper-api"
	actorJobDetail     = "apimaestro~linkedin-job-detail"
	actorCompanyDetail = "apimaestro~linkedin-company-detail"
)

// quotaMarker appears in the platform's error body once the monthly usage
// hard limit is exhausted. It is a hard stop, unlike a plain 429.
const quotaMarker = "Monthly usage hard limit exceeded"

// BulkProvider reaches the scraping platform's run-sync actor API for job
// search, job detail, and company detail fetches. A quota hard limit opens
// the shared availability breaker; all bulk operations short-circuit until
// the cooldown elapses.
type BulkProvider struct {
	baseURL      string
	token        string
	httpClient   *http.Client
	availability *ratelimit.Availability
	throttle     *ratelimit.Throttle
	logger       *slog.Logger
}

// NewBulkProvider creates a provider client. The availability breaker is
// shared so other components can observe provider health.
func NewBulkProvider(baseURL, token string, timeout time.Duration, availability *ratelimit.Availability, throttle *ratelimit.Throttle, logger *slog.Logger) *BulkProvider {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &BulkProvider{
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: timeout},
		availability: availability,
		throttle:     throttle,
		logger:       logger,
	}
}

// Available reports whether bulk operations may be attempted right now.
func (p *BulkProvider) Available() bool {
	return p.token != "" && p.availability.Available()
}

// Search runs one job search. A structured intent maps directly to actor
// input; a raw search URL is decomposed into the same parameters.
func (p *BulkProvider) Search(ctx context.Context, intent model.SearchIntent) ([]model.Posting, error) {
	if !p.Available() {
		return nil, model.ErrUnavailable
	}

	input, err := searchInput(intent)
	if err != nil {
		return nil, err
	}

	var items []searchItem
	if err := p.runActor(ctx, actorJobSearch, input, &items); err != nil {
		return nil, err
	}

	postings := make([]model.Posting, 0, len(items))
	for _, it := range items {
		postings = append(postings, model.Posting{
			Title:       it.Title,
			Company:     it.CompanyName,
			URL:         it.JobURL,
			Location:    it.Location,
			Description: it.Description,
		})
	}
	return postings, nil
}

// FetchOverviewsBulk fetches company profiles and returns overviews keyed
// by normalized company name. Companies the platform could not resolve are
// simply absent.
func (p *BulkProvider) FetchOverviewsBulk(ctx context.Context, companies []string) (map[string]string, error) {
	if len(companies) == 0 {
		return nil, nil
	}
	if !p.Available() {
		return nil, model.ErrUnavailable
	}

	var items []companyItem
	input := map[string]any{"identifier": companies}
	if err := p.runActor(ctx, actorCompanyDetail, input, &items); err != nil {
		return nil, err
	}

	overviews := make(map[string]string, len(items))
	for _, it := range items {
		name := it.BasicInfo.Name
		if name == "" || it.BasicInfo.Description == "" {
			continue
		}
		overviews[filter.NormalizeCompany(name)] = it.BasicInfo.Description
	}
	return overviews, nil
}

// FetchDescriptionsBulk fetches full job details for the given platform job
// IDs. Echoed title and company let callers pair results with records.
func (p *BulkProvider) FetchDescriptionsBulk(ctx context.Context, jobIDs []string) ([]model.JobDetails, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	if !p.Available() {
		return nil, model.ErrUnavailable
	}

	var items []jobDetailItem
	input := map[string]any{"job_id": jobIDs}
	if err := p.runActor(ctx, actorJobDetail, input, &items); err != nil {
		return nil, err
	}

	details := make([]model.JobDetails, 0, len(items))
	for _, it := range items {
		details = append(details, model.JobDetails{
			Title:              it.JobInfo.Title,
			Company:            it.CompanyInfo.Name,
			Description:        it.JobInfo.Description,
			CompanyDescription: it.CompanyInfo.Description,
		})
	}
	return details, nil
}

type searchItem struct {
	Title       string `json:"title"`
	CompanyName string `json:"company_name"`
	JobURL      string `json:"job_url"`
	Location    string `json:"location"`
	Description string `json:"job_description"`
}

type companyItem struct {
	BasicInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"basic_info"`
}

type jobDetailItem struct {
	JobInfo struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"job_info"`
	CompanyInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"company_info"`
}

// runActor POSTs input to the run-sync endpoint and decodes the dataset
// items. A quota hard limit opens the availability breaker and surfaces as
// ErrUnavailable.
func (p *BulkProvider) runActor(ctx context.Context, actor string, input any, out any) error {
	if err := p.throttle.Wait(ctx, "listing"); err != nil {
		return err
	}

	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("marshal actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s",
		p.baseURL, actor, url.QueryEscape(p.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create actor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("run actor %s: %w", actor, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read actor %s response: %w", actor, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if strings.Contains(string(respBody), quotaMarker) {
			p.logger.Error("provider monthly quota exhausted, disabling bulk operations",
				"actor", actor, "cooldown", "until breaker closes")
			p.availability.MarkUnavailable()
			return model.ErrUnavailable
		}
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("actor %s: %s", actor, truncate(respBody, 200)),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse actor %s items: %w", actor, err)
	}
	return nil
}

// searchInput builds actor input from a structured intent or decomposes a
// raw search URL into the equivalent parameters.
func searchInput(intent model.SearchIntent) (map[string]any, error) {
	if intent.SearchURL != "" {
		return searchInputFromURL(intent.SearchURL)
	}
	if intent.Keywords == "" {
		return nil, fmt.Errorf("search intent has neither keywords nor URL")
	}
	return map[string]any{
		"keywords":    intent.Keywords,
		"location":    intent.Location,
		"sort":        "recent",
		"date_posted": "week",
		"limit":       100,
	}, nil
}

var (
	remoteByCode = map[string]string{"1": "onsite", "2": "remote", "3": "hybrid"}
	expByCode    = map[string]string{
		"1": "internship", "2": "entry", "3": "associate",
		"4": "mid_senior", "5": "director", "6": "executive",
	}
	sortByCode   = map[string]string{"R": "relevant", "DD": "recent"}
	postedByCode = map[string]string{"r2592000": "month", "r604800": "week", "r86400": "day"}
)

func searchInputFromURL(raw string) (map[string]any, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	q := u.Query()

	firstCode := func(param string) string {
		v := q.Get(param)
		code, _, _ := strings.Cut(v, ",")
		return code
	}

	input := map[string]any{
		"keywords":        q.Get("keywords"),
		"location":        q.Get("geoId"),
		"remote":          remoteByCode[firstCode("f_WT")],
		"experienceLevel": expByCode[firstCode("f_E")],
		"sort":            sortByCode[q.Get("sortBy")],
		"date_posted":     postedByCode[q.Get("f_TPR")],
		"limit":           100,
	}
	if q.Has("f_AL") {
		input["easy_apply"] = "true"
	}
	return input, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ model.ListingProvider = (*BulkProvider)(nil)
