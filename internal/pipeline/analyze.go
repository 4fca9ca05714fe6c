package pipeline

import (
	"context"
	"errors"

	"github.com/jobtailor/jobtailor/internal/analysis"
	"github.com/jobtailor/jobtailor/internal/model"
)

// maxConsecutiveAnalysisFailures aborts the stage when the service is
// clearly broken rather than burning quota on a dead endpoint.
const maxConsecutiveAnalysisFailures = 5

// analysisGate names one reason a record is not ready for fit analysis.
// Gates run in declaration order and the first match wins, so a record
// that is both expired and missing its description reports "expired".
type analysisGate struct {
	name  string
	holds func(p *Pipeline, r *model.JobRecord) bool
}

var analysisGates = []analysisGate{
	{"expired", func(p *Pipeline, r *model.JobRecord) bool {
		return r.Expired
	}},
	{"missing job description", func(p *Pipeline, r *model.JobRecord) bool {
		return r.JobDescription == ""
	}},
	{"missing company overview", func(p *Pipeline, r *model.JobRecord) bool {
		return r.CompanyOverview == ""
	}},
	{"sustainability unresolved", func(p *Pipeline, r *model.JobRecord) bool {
		return p.deps.Features.CheckSustainability && r.Sustainable != model.Sustainable
	}},
	{"already applied", func(p *Pipeline, r *model.JobRecord) bool {
		return r.Applied
	}},
	{"disqualified by score", func(p *Pipeline, r *model.JobRecord) bool {
		return disqualified(r.FitScore) && !r.BadAnalysis
	}},
	{"already scored", func(p *Pipeline, r *model.JobRecord) bool {
		return r.FitScore != model.Unscored && !r.BadAnalysis
	}},
}

// analysisGateFor returns the first gate holding the record back, or ""
// when the record is ready for analysis.
func (p *Pipeline) analysisGateFor(r *model.JobRecord) string {
	for _, g := range analysisGates {
		if g.holds(p, r) {
			return g.name
		}
	}
	return ""
}

// Analyze runs the per-job LLM fit analysis for every record that clears
// the readiness gates, parses the categorical score out of the analysis
// text, and persists both. A record scored Very good fit gets its
// application artifacts generated inline so the strongest matches are
// ready the moment they appear in review.
//
// A rate limit aborts the remaining records for this cycle. So do several
// consecutive failures of any kind.
func (p *Pipeline) Analyze(ctx context.Context) (int, error) {
	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	progress := 0
	consecutiveFailures := 0

	for i := range records {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		r := &records[i]
		if gate := p.analysisGateFor(r); gate != "" {
			continue
		}

		text, err := p.deps.Analysis.Analyze(ctx, jobContext(r), p.deps.Resume)
		if err != nil {
			if errors.Is(err, model.ErrRateLimited) {
				p.rateLimited = true
				p.deps.Logger.Warn("fit analysis rate limited, deferring rest of cycle")
				return progress, nil
			}
			consecutiveFailures++
			p.deps.Logger.Warn("fit analysis failed",
				"title", r.JobTitle, "company", r.Company,
				"consecutive_failures", consecutiveFailures, "error", err)
			if consecutiveFailures >= maxConsecutiveAnalysisFailures {
				p.deps.Logger.Error("aborting analysis after repeated failures")
				return progress, nil
			}
			continue
		}
		consecutiveFailures = 0

		score := analysis.ParseFitScore(text)
		fields := model.Fields{
			model.FieldFitScore:    score,
			model.FieldJobAnalysis: text,
		}
		if r.BadAnalysis {
			// A fresh analysis supersedes the user's complaint about the old one.
			fields[model.FieldBadAnalysis] = false
		}
		if _, err := p.deps.Store.UpdateByKey(ctx, r.Key(), fields); err != nil {
			return progress, err
		}
		r.FitScore = score
		r.JobAnalysis = text
		r.BadAnalysis = false
		progress++

		p.deps.Logger.Info("analyzed job",
			"title", r.JobTitle, "company", r.Company, "score", score.String())

		if score == model.VeryGoodFit && p.deps.Artifacts != nil && p.deps.Files != nil {
			if _, err := p.generateForRecord(ctx, r); err != nil {
				if errors.Is(err, model.ErrRateLimited) {
					p.rateLimited = true
					return progress, nil
				}
				p.deps.Logger.Warn("inline artifact generation failed",
					"title", r.JobTitle, "company", r.Company, "error", err)
			}
		}
	}

	return progress, nil
}

func jobContext(r *model.JobRecord) model.JobContext {
	return model.JobContext{
		Company:         r.Company,
		Title:           r.JobTitle,
		Location:        r.Location,
		JobURL:          r.JobURL,
		Description:     r.JobDescription,
		CompanyOverview: r.CompanyOverview,
	}
}
