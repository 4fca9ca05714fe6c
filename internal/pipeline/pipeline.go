package pipeline

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jobtailor/jobtailor/internal/config"
	"github.com/jobtailor/jobtailor/internal/model"
)

// Deps are the collaborators a Pipeline works against. Everything is an
// interface so stage tests run on fakes.
type Deps struct {
	Store     model.RecordStore
	Filters   *config.FilterStore
	Provider  model.ListingProvider
	Crawler   model.PageCrawler
	Analysis  model.AnalysisService
	Artifacts model.ArtifactService
	Files     model.ArtifactFiles
	Resume    model.ResumeProfile
	Features  config.FeatureConfig
	Batch     config.BatchConfig
	Logger    *slog.Logger
}

// Pipeline holds per-run state for the processing stages: the collaborators
// plus the process-lifetime caches and the per-cycle rate-limit flag.
type Pipeline struct {
	deps Deps

	overviews *OverviewCache
	verdicts  *SustainabilityCache

	// rateLimited records that an LLM rate limit was observed this cycle.
	// The controller reads it to pick the short wait over the long backoff.
	rateLimited bool

	// sleep is swapped out in tests to avoid real inter-batch delays.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a pipeline. Caches start empty and are warmed from the store
// on first use.
func New(deps Deps) *Pipeline {
	return &Pipeline{
		deps:      deps,
		overviews: NewOverviewCache(),
		verdicts:  NewSustainabilityCache(),
		sleep:     sleepCtx,
	}
}

// ResetRateLimitFlag clears the per-cycle rate-limit marker.
func (p *Pipeline) ResetRateLimitFlag() { p.rateLimited = false }

// RateLimitObserved reports whether any stage hit an LLM rate limit since
// the last reset.
func (p *Pipeline) RateLimitObserved() bool { return p.rateLimited }

// WarmCaches seeds the in-memory caches from persisted records. Called once
// at startup so a restart does not refetch what previous runs already have.
func (p *Pipeline) WarmCaches(ctx context.Context) error {
	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return err
	}
	p.overviews.Warm(records)
	p.verdicts.Warm(records)
	return nil
}

// disqualified reports whether the fit score is in the poor set that hides
// a record from default review views.
func disqualified(score model.FitScore) bool {
	switch score {
	case model.VeryPoorFit, model.PoorFit, model.QuestionableFit, model.ModerateFit:
		return true
	}
	return false
}

// defaultVisible mirrors the review dashboard's default filter: records the
// user would actually see, and therefore the only ones worth spending
// enrichment quota on.
func (p *Pipeline) defaultVisible(r *model.JobRecord) bool {
	if r.Excluded() {
		return false
	}
	if r.FitScore != model.Unscored && disqualified(r.FitScore) {
		return false
	}
	if p.deps.Features.CheckSustainability && r.Sustainable == model.Unsustainable {
		return false
	}
	return true
}

// interBatchDelay sleeps a short randomized interval between provider
// sub-batches.
func (p *Pipeline) interBatchDelay(ctx context.Context) {
	p.sleep(ctx, 2*time.Second+time.Duration(rand.Int64N(int64(2*time.Second))))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
