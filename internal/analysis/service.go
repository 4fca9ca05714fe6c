package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jobtailor/jobtailor/internal/filter"
	"github.com/jobtailor/jobtailor/internal/model"
)

// Gateway endpoint paths.
const (
	pathAnalyzeJob     = "/analyze-job-posting"
	pathBulkQualify    = "/bulk-qualify"
	pathSustainability = "/classify-sustainability"
	pathSearchIntents  = "/generate-search-intents"
)

// Service implements model.AnalysisService against the LLM gateway.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService wraps a gateway client as the fit-analysis service.
func NewService(client *Client, logger *slog.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Analyze returns the gateway's free-text fit narrative for one job.
// Callers parse a fit score out of it with ParseFitScore.
func (s *Service) Analyze(ctx context.Context, job model.JobContext, resume model.ResumeProfile) (string, error) {
	jobContext, err := json.Marshal(map[string]string{
		"company_name": job.Company,
		"job_title":    job.Title,
		"location":     job.Location,
		"job_url":      job.JobURL,
	})
	if err != nil {
		return "", fmt.Errorf("marshal job context: %w", err)
	}

	var resp struct {
		Analysis string `json:"analysis"`
	}
	err = s.client.Post(ctx, pathAnalyzeJob, map[string]any{
		"job_posting_text":     job.Description,
		"company_overview":     job.CompanyOverview,
		"job_specific_context": string(jobContext),
		"resume_json_data":     string(resume.Raw),
		"additional_details":   resume.AdditionalDetails,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Analysis == "" {
		return "", fmt.Errorf("%s: empty analysis", pathAnalyzeJob)
	}
	return resp.Analysis, nil
}

// BulkQualify sends a batch of (title, company) pairs for a coarse keep or
// filter judgment plus any generalizable skip keywords the model noticed.
func (s *Service) BulkQualify(ctx context.Context, items []model.TitleCompany, resume model.ResumeProfile) (model.BulkQualifyResult, error) {
	jobs := make([]map[string]string, 0, len(items))
	for _, it := range items {
		jobs = append(jobs, map[string]string{"title": it.Title, "company": it.Company})
	}

	var resp struct {
		Result string `json:"result"`
	}
	err := s.client.Post(ctx, pathBulkQualify, map[string]any{
		"jobs":             jobs,
		"resume_json_data": string(resume.Raw),
	}, &resp)
	if err != nil {
		return model.BulkQualifyResult{}, err
	}

	var parsed struct {
		FilteredTitles  []string            `json:"filtered_titles"`
		NewSkipKeywords map[string][]string `json:"new_skip_keywords"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(resp.Result)), &parsed); err != nil {
		return model.BulkQualifyResult{}, fmt.Errorf("parse bulk-qualify result: %w", err)
	}
	return model.BulkQualifyResult{
		FilteredTitles:  parsed.FilteredTitles,
		NewSkipKeywords: parsed.NewSkipKeywords,
	}, nil
}

// ClassifySustainability returns verdicts keyed by normalized company name.
// Companies the model skipped are absent from the map, not failures.
func (s *Service) ClassifySustainability(ctx context.Context, companies []model.CompanyContext) (map[string]model.SustainabilityVerdict, error) {
	items := make([]map[string]string, 0, len(companies))
	for _, c := range companies {
		items = append(items, map[string]string{
			"company":     c.Company,
			"overview":    c.Overview,
			"description": c.Description,
		})
	}

	var resp struct {
		Result string `json:"result"`
	}
	err := s.client.Post(ctx, pathSustainability, map[string]any{"companies": items}, &resp)
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Company     string `json:"company"`
		Sustainable bool   `json:"sustainable"`
		Reasoning   string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(StripCodeFence(resp.Result)), &parsed); err != nil {
		return nil, fmt.Errorf("parse sustainability result: %w", err)
	}

	verdicts := make(map[string]model.SustainabilityVerdict, len(parsed))
	for _, p := range parsed {
		v := model.SustainabilityVerdict{Sustainable: model.Unsustainable, Reasoning: p.Reasoning}
		if p.Sustainable {
			v.Sustainable = model.Sustainable
		}
		verdicts[filter.NormalizeCompany(p.Company)] = v
	}
	return verdicts, nil
}

// GenerateSearchIntents asks the gateway for fresh search parameters based
// on the resume. Used to self-seed collection when no cached intents exist.
func (s *Service) GenerateSearchIntents(ctx context.Context, resume model.ResumeProfile) ([]model.SearchIntent, error) {
	var resp struct {
		Result string `json:"result"`
	}
	err := s.client.Post(ctx, pathSearchIntents, map[string]any{
		"resume_json_data":   string(resume.Raw),
		"additional_details": resume.AdditionalDetails,
	}, &resp)
	if err != nil {
		return nil, err
	}

	var parsed []model.SearchIntent
	if err := json.Unmarshal([]byte(StripCodeFence(resp.Result)), &parsed); err != nil {
		return nil, fmt.Errorf("parse search intents: %w", err)
	}

	intents := parsed[:0]
	for _, in := range parsed {
		if in.Keywords == "" && in.SearchURL == "" {
			continue
		}
		intents = append(intents, in)
	}
	return intents, nil
}

// StripCodeFence removes a surrounding markdown code fence from LLM output,
// which arrives as either bare JSON or ```json ... ```.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line.
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var _ model.AnalysisService = (*Service)(nil)
