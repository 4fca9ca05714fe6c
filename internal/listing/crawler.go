package listing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/k3a/html2text"

	"github.com/jobtailor/jobtailor/internal/model"
	"github.com/jobtailor/jobtailor/internal/ratelimit"
)

// Phrases a job page shows once the posting is closed. Checked lowercase.
var expiredMarkers = []string{
	"no longer accepting applications",
	"this job has expired",
}

// descriptionPattern captures the description container on a job posting
// page. The class name is stable across page variants.
var descriptionPattern = regexp.MustCompile(`(?s)<div[^>]*class="[^"]*show-more-less-html__markup[^"]*"[^>]*>(.*?)</div>`)

// aboutPattern captures the about section on a company page.
var aboutPattern = regexp.MustCompile(`(?s)<p[^>]*class="[^"]*about-us__description[^"]*"[^>]*>(.*?)</p>`)

var jobIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`view/(\d+)`),
	regexp.MustCompile(`currentJobId=(\d+)`),
}

// ExtractJobID pulls the numeric platform job ID out of a posting URL.
// Returns "" when the URL carries no recognizable ID.
func ExtractJobID(jobURL string) string {
	for _, p := range jobIDPatterns {
		if m := p.FindStringSubmatch(jobURL); m != nil {
			return m[1]
		}
	}
	return ""
}

// Crawler fetches individual posting and company pages over plain HTTP.
// It is the primary per-job description path; the bulk provider is only
// the fallback once crawl failures pile up.
type Crawler struct {
	httpClient *http.Client
	throttle   *ratelimit.Throttle
	logger     *slog.Logger
}

// NewCrawler creates a page crawler sharing the provider throttle.
func NewCrawler(timeout time.Duration, throttle *ratelimit.Throttle, logger *slog.Logger) *Crawler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Crawler{
		httpClient: &http.Client{Timeout: timeout},
		throttle:   throttle,
		logger:     logger,
	}
}

// FetchDescription fetches one job page. A gone page (404/410) or an
// expired marker in the body reports Expired rather than an error, so the
// caller can mark the record instead of retrying forever.
func (c *Crawler) FetchDescription(ctx context.Context, jobURL string) (model.CrawlResult, error) {
	body, status, err := c.get(ctx, jobURL)
	if err != nil {
		return model.CrawlResult{}, err
	}
	if status == http.StatusNotFound || status == http.StatusGone {
		return model.CrawlResult{Expired: true}, nil
	}
	if status != http.StatusOK {
		return model.CrawlResult{}, &model.HTTPError{
			StatusCode: status,
			Err:        fmt.Errorf("job page %s", jobURL),
		}
	}

	lower := strings.ToLower(body)
	for _, marker := range expiredMarkers {
		if strings.Contains(lower, marker) {
			return model.CrawlResult{Expired: true}, nil
		}
	}

	m := descriptionPattern.FindStringSubmatch(body)
	if m == nil {
		return model.CrawlResult{}, fmt.Errorf("no description block on %s", jobURL)
	}
	desc := strings.TrimSpace(html2text.HTML2Text(m[1]))
	if desc == "" {
		return model.CrawlResult{}, fmt.Errorf("empty description on %s", jobURL)
	}
	return model.CrawlResult{Description: desc}, nil
}

// FetchOverview fetches a company's about page and extracts the overview
// text.
func (c *Crawler) FetchOverview(ctx context.Context, company string) (string, error) {
	slug := companySlug(company)
	pageURL := fmt.Sprintf("https://www.linkedin.com/company/%s/about/", slug)

	body, status, err := c.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", &model.HTTPError{
			StatusCode: status,
			Err:        fmt.Errorf("company page for %s", company),
		}
	}

	m := aboutPattern.FindStringSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no overview section for %s", company)
	}
	return strings.TrimSpace(html2text.HTML2Text(m[1])), nil
}

func (c *Crawler) get(ctx context.Context, pageURL string) (string, int, error) {
	if err := c.throttle.Wait(ctx, "crawl"); err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create crawl request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("crawl %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read page %s: %w", pageURL, err)
	}
	return string(body), resp.StatusCode, nil
}

func companySlug(company string) string {
	keep := func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}
	var parts []string
	for _, f := range strings.Fields(strings.ToLower(company)) {
		if p := strings.Map(keep, f); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

var _ model.PageCrawler = (*Crawler)(nil)
