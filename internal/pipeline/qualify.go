package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/jobtailor/jobtailor/internal/filter"
	"github.com/jobtailor/jobtailor/internal/model"
)

const bulkFilterReason = "Filtered out by bulk qualification"

// Qualify runs the coarse LLM accept/reject screen over records that have
// not been bulk-filtered yet. only scopes the stage to specific keys (nil
// means all); force processes a remainder smaller than the minimum batch,
// used by the end-of-cycle sweep.
//
// Records that already carry a fit score are marked bulk_filtered without a
// service call: this stage is a cost-avoidance gate, not a scoring source
// of truth. The keyword screen also re-runs here, because skip keywords
// learned after a record was inserted must still catch it. A failed batch
// is also marked bulk_filtered so it cannot be reprocessed forever.
func (p *Pipeline) Qualify(ctx context.Context, only map[model.RecordKey]bool, force bool) (int, error) {
	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	cfg := p.deps.Filters.Get()
	var (
		pending   []model.JobRecord
		preScored []model.KeyedUpdate
	)
	for i := range records {
		r := &records[i]
		if r.BulkFiltered || r.Excluded() {
			continue
		}
		if only != nil && !only[r.Key()] {
			continue
		}
		if r.FitScore != model.Unscored {
			preScored = append(preScored, model.KeyedUpdate{
				Key:    r.Key(),
				Fields: model.Fields{model.FieldBulkFiltered: true},
			})
			continue
		}
		if skip, reason := filter.ApplyKeywordFilters(r.JobTitle, r.Company, r.Location, cfg); skip {
			preScored = append(preScored, model.KeyedUpdate{
				Key: r.Key(),
				Fields: model.Fields{
					model.FieldBulkFiltered: true,
					model.FieldFitScore:     model.PoorFit,
					model.FieldJobAnalysis:  reason,
				},
			})
			continue
		}
		pending = append(pending, *r)
	}

	progress := 0
	if len(preScored) > 0 {
		if err := p.deps.Store.BulkUpdateByKey(ctx, preScored); err != nil {
			return 0, err
		}
		progress += len(preScored)
	}

	if len(pending) == 0 {
		return progress, nil
	}
	if !force && len(pending) < p.deps.Batch.BulkQualify {
		p.deps.Logger.Info("holding bulk qualification for a fuller batch",
			"pending", len(pending), "min_batch", p.deps.Batch.BulkQualify)
		return progress, nil
	}

	size := p.deps.Batch.BulkQualify
	for start := 0; start < len(pending); start += size {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		end := min(start+size, len(pending))
		batch := pending[start:end]

		n, err := p.qualifyBatch(ctx, batch)
		if err != nil {
			p.deps.Logger.Warn("bulk qualification batch failed, marking as processed", "error", err)
			if errors.Is(err, model.ErrRateLimited) {
				p.rateLimited = true
			}
		}
		progress += n

		if end < len(pending) {
			p.interBatchDelay(ctx)
		}
	}
	return progress, nil
}

// qualifyBatch sends one batch and applies the verdicts. The batch is
// marked bulk_filtered whether or not the service call succeeded.
func (p *Pipeline) qualifyBatch(ctx context.Context, batch []model.JobRecord) (int, error) {
	items := make([]model.TitleCompany, 0, len(batch))
	for i := range batch {
		items = append(items, model.TitleCompany{Title: batch[i].JobTitle, Company: batch[i].Company})
	}

	result, callErr := p.deps.Analysis.BulkQualify(ctx, items, p.deps.Resume)

	filteredTitles := make(map[string]bool, len(result.FilteredTitles))
	for _, t := range result.FilteredTitles {
		filteredTitles[strings.ToLower(strings.TrimSpace(t))] = true
	}

	updates := make([]model.KeyedUpdate, 0, len(batch))
	for i := range batch {
		r := &batch[i]
		fields := model.Fields{model.FieldBulkFiltered: true}
		if callErr == nil && filteredTitles[strings.ToLower(r.JobTitle)] {
			fields[model.FieldFitScore] = model.VeryPoorFit
			fields[model.FieldJobAnalysis] = bulkFilterReason
		}
		updates = append(updates, model.KeyedUpdate{Key: r.Key(), Fields: fields})
	}
	if err := p.deps.Store.BulkUpdateByKey(ctx, updates); err != nil {
		return 0, err
	}

	if callErr != nil {
		return len(updates), callErr
	}

	if len(result.NewSkipKeywords) > 0 {
		added, err := p.deps.Filters.AppendSkipKeywords(result.NewSkipKeywords)
		if err != nil {
			p.deps.Logger.Warn("merging discovered skip keywords failed", "error", err)
		} else if added > 0 {
			p.deps.Logger.Info("learned new skip keywords", "added", added)
		}
	}
	return len(updates), nil
}
