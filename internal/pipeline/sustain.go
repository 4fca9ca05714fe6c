package pipeline

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jobtailor/jobtailor/internal/filter"
	"github.com/jobtailor/jobtailor/internal/model"
)

const insufficientOverviewReason = "Insufficient company overview (cannot evaluate sustainability)"

// minOverviewLen is the shortest overview worth classifying. Anything below
// is a boilerplate stub that the classifier cannot judge.
const minOverviewLen = 50

// Validate settles the sustainability verdict for every record that still
// lacks one. It runs in three passes: records whose overview fetch already
// failed or came back too thin are ruled out directly; the keyword screen
// re-runs now that overview text exists; the remaining unique companies go
// to the LLM classifier in small batches, cache first.
func (p *Pipeline) Validate(ctx context.Context) (int, error) {
	if !p.deps.Features.CheckSustainability {
		return 0, nil
	}

	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	progress, err := p.ruleOutThinOverviews(ctx, records)
	if err != nil {
		return progress, err
	}

	n, err := p.keywordScreenWithOverview(ctx, records)
	progress += n
	if err != nil {
		return progress, err
	}

	n, err = p.classifyRemaining(ctx, records)
	progress += n
	return progress, err
}

// sustainabilityCandidate reports whether a record still needs a verdict.
// bad_analysis rows stay in even when their score would otherwise
// disqualify them, because a re-analysis is coming and needs the verdict.
func sustainabilityCandidate(r *model.JobRecord) bool {
	if r.Sustainable != model.SustainabilityUnknown {
		return false
	}
	if r.Applied || r.Expired {
		return false
	}
	if disqualified(r.FitScore) && !r.BadAnalysis {
		return false
	}
	return true
}

// ruleOutThinOverviews marks records whose overview fetch was attempted but
// produced nothing usable. Without an overview the classifier has no signal,
// so the record is treated as unsustainable rather than retried forever.
func (p *Pipeline) ruleOutThinOverviews(ctx context.Context, records []model.JobRecord) (int, error) {
	var updates []model.KeyedUpdate
	for i := range records {
		r := &records[i]
		if !sustainabilityCandidate(r) {
			continue
		}
		if !r.COFetchAttempted || len(strings.TrimSpace(r.CompanyOverview)) >= minOverviewLen {
			continue
		}

		fields := model.Fields{model.FieldSustainable: model.Unsustainable}
		if r.FitScore == model.Unscored {
			fields[model.FieldFitScore] = model.VeryPoorFit
			fields[model.FieldJobAnalysis] = insufficientOverviewReason
		}
		updates = append(updates, model.KeyedUpdate{Key: r.Key(), Fields: fields})
		r.Sustainable = model.Unsustainable
		p.verdicts.Put(r.Company, model.Unsustainable)
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := p.deps.Store.BulkUpdateByKey(ctx, updates); err != nil {
		return 0, err
	}
	return len(updates), nil
}

// keywordScreenWithOverview reruns the sustainability keyword screen now
// that overview text is available. Negative matches settle the verdict
// without an LLM call; positive matches are recorded for audit.
func (p *Pipeline) keywordScreenWithOverview(ctx context.Context, records []model.JobRecord) (int, error) {
	cfg := p.deps.Filters.Get()
	var updates []model.KeyedUpdate

	for i := range records {
		r := &records[i]
		if !sustainabilityCandidate(r) || r.CompanyOverview == "" {
			continue
		}

		skip, reason, matches := filter.ApplySustainabilityKeywordFilters(
			r.JobTitle, r.Company, r.Location, r.CompanyOverview, cfg)
		if skip {
			fields := model.Fields{model.FieldSustainable: model.Unsustainable}
			if r.FitScore == model.Unscored {
				fields[model.FieldFitScore] = model.VeryPoorFit
				fields[model.FieldJobAnalysis] = reason
			}
			updates = append(updates, model.KeyedUpdate{Key: r.Key(), Fields: fields})
			r.Sustainable = model.Unsustainable
			p.verdicts.Put(r.Company, model.Unsustainable)
			continue
		}
		if matches != "" && r.SustainabilityKeywordMatches != matches {
			updates = append(updates, model.KeyedUpdate{
				Key:    r.Key(),
				Fields: model.Fields{model.FieldSustainabilityMatch: matches},
			})
		}
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := p.deps.Store.BulkUpdateByKey(ctx, updates); err != nil {
		return 0, err
	}
	return len(updates), nil
}

// classifyRemaining sends the still-unknown companies to the LLM classifier.
// Each unique company is classified once; the verdict fans out to every
// record of that company.
func (p *Pipeline) classifyRemaining(ctx context.Context, records []model.JobRecord) (int, error) {
	progress := 0
	seen := make(map[string]bool)
	var contexts []model.CompanyContext

	for i := range records {
		r := &records[i]
		if !sustainabilityCandidate(r) || len(strings.TrimSpace(r.CompanyOverview)) < minOverviewLen {
			continue
		}
		key := filter.NormalizeCompany(r.Company)
		if seen[key] {
			continue
		}
		seen[key] = true

		if verdict, ok := p.verdicts.Get(r.Company); ok {
			n, err := p.fanOutVerdict(ctx, records, key, model.SustainabilityVerdict{Sustainable: verdict})
			progress += n
			if err != nil {
				return progress, err
			}
			continue
		}
		contexts = append(contexts, model.CompanyContext{
			Company:     r.Company,
			Overview:    r.CompanyOverview,
			Description: r.JobDescription,
		})
	}

	sort.Slice(contexts, func(i, j int) bool { return contexts[i].Company < contexts[j].Company })

	size := p.deps.Batch.Sustainability
	for start := 0; start < len(contexts); start += size {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		end := min(start+size, len(contexts))

		verdicts, err := p.deps.Analysis.ClassifySustainability(ctx, contexts[start:end])
		if err != nil {
			if errors.Is(err, model.ErrRateLimited) {
				p.rateLimited = true
				p.deps.Logger.Warn("sustainability classification rate limited, deferring rest")
				return progress, nil
			}
			return progress, err
		}

		for _, c := range contexts[start:end] {
			key := filter.NormalizeCompany(c.Company)
			verdict, ok := matchVerdict(key, verdicts)
			if !ok {
				continue
			}
			p.verdicts.Put(c.Company, verdict.Sustainable)
			n, err := p.fanOutVerdict(ctx, records, key, verdict)
			progress += n
			if err != nil {
				return progress, err
			}
		}

		if end < len(contexts) {
			p.interBatchDelay(ctx)
		}
	}

	return progress, nil
}

// matchVerdict pairs a company with its classification: exact normalized
// match first, substring containment as the fallback for provider-side name
// variations.
func matchVerdict(companyKey string, verdicts map[string]model.SustainabilityVerdict) (model.SustainabilityVerdict, bool) {
	if v, ok := verdicts[companyKey]; ok {
		return v, true
	}
	for name, v := range verdicts {
		if strings.Contains(name, companyKey) || strings.Contains(companyKey, name) {
			return v, true
		}
	}
	return model.SustainabilityVerdict{}, false
}

// fanOutVerdict writes one company's verdict to every record of that
// company that still lacks one. A negative verdict also disqualifies
// unscored records; an existing score is never overwritten.
func (p *Pipeline) fanOutVerdict(ctx context.Context, records []model.JobRecord, companyKey string, verdict model.SustainabilityVerdict) (int, error) {
	if verdict.Sustainable == model.SustainabilityUnknown {
		return 0, nil
	}

	var updates []model.KeyedUpdate
	for i := range records {
		r := &records[i]
		if r.Sustainable != model.SustainabilityUnknown {
			continue
		}
		if filter.NormalizeCompany(r.Company) != companyKey {
			continue
		}

		fields := model.Fields{model.FieldSustainable: verdict.Sustainable}
		if verdict.Sustainable == model.Unsustainable && r.FitScore == model.Unscored {
			fields[model.FieldFitScore] = model.VeryPoorFit
			reason := "Unsustainable company"
			if verdict.Reasoning != "" {
				reason += ": " + verdict.Reasoning
			}
			fields[model.FieldJobAnalysis] = reason
		}
		updates = append(updates, model.KeyedUpdate{Key: r.Key(), Fields: fields})
		r.Sustainable = verdict.Sustainable
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := p.deps.Store.BulkUpdateByKey(ctx, updates); err != nil {
		return 0, err
	}
	return len(updates), nil
}
