package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/jobtailor/jobtailor/internal/config"
	"github.com/jobtailor/jobtailor/internal/filter"
	"github.com/jobtailor/jobtailor/internal/model"
)

// Collect pulls candidate postings for every configured search intent,
// filters and deduplicates them, and inserts new records. Returns the
// natural keys of newly inserted records so later stages can scope work to
// them.
//
// When no cached intents exist, or the cached set yielded nothing new, the
// stage asks the analysis service for fresh intents derived from the resume
// and persists them, keeping an otherwise-idle pipeline self-seeding.
func (p *Pipeline) Collect(ctx context.Context) ([]model.RecordKey, error) {
	if p.deps.Provider == nil || !p.deps.Provider.Available() {
		p.deps.Logger.Info("listing provider unavailable, skipping collection")
		return nil, nil
	}

	existing, err := p.existingKeys(ctx)
	if err != nil {
		return nil, err
	}

	intents := p.deps.Filters.Get().SearchIntents
	newKeys, err := p.collectFromIntents(ctx, intents, existing)
	if err != nil {
		return nil, err
	}

	if len(intents) == 0 || len(newKeys) == 0 {
		seeded, err := p.seedSearchIntents(ctx)
		if err != nil {
			p.deps.Logger.Warn("search intent generation failed", "error", err)
			return newKeys, nil
		}
		moreKeys, err := p.collectFromIntents(ctx, seeded, existing)
		if err != nil {
			return newKeys, err
		}
		newKeys = append(newKeys, moreKeys...)
	}

	return newKeys, nil
}

func (p *Pipeline) existingKeys(ctx context.Context) (map[model.RecordKey]bool, error) {
	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[model.RecordKey]bool, len(records))
	for i := range records {
		keys[records[i].Key()] = true
	}
	return keys, nil
}

func (p *Pipeline) collectFromIntents(ctx context.Context, intents []model.SearchIntent, existing map[model.RecordKey]bool) ([]model.RecordKey, error) {
	cfg := p.deps.Filters.Get()
	var newKeys []model.RecordKey

	for _, intent := range intents {
		if ctx.Err() != nil {
			return newKeys, ctx.Err()
		}

		postings, err := p.deps.Provider.Search(ctx, intent)
		if err != nil {
			if errors.Is(err, model.ErrUnavailable) {
				p.deps.Logger.Info("provider became unavailable mid-collection")
				return newKeys, nil
			}
			p.deps.Logger.Warn("search failed", "keywords", intent.Keywords, "error", err)
			continue
		}

		var batch []model.JobRecord
		for _, posting := range postings {
			rec, ok := p.candidateRecord(posting, cfg)
			if !ok {
				continue
			}
			key := rec.Key()
			if existing[key] {
				continue
			}
			existing[key] = true
			batch = append(batch, rec)
		}

		inserted, err := p.deps.Store.UpsertMany(ctx, batch)
		if err != nil {
			return newKeys, err
		}
		// Dedup already ran against existing keys, so the whole batch is new.
		for i := range batch {
			newKeys = append(newKeys, batch[i].Key())
		}
		p.deps.Logger.Info("collected jobs",
			"keywords", intent.Keywords, "found", len(postings), "inserted", inserted)
	}

	return newKeys, nil
}

// candidateRecord normalizes one posting into a new record, or rejects it.
// A malformed item or a filter hit is a silent skip, never an error.
func (p *Pipeline) candidateRecord(posting model.Posting, cfg *config.FilterConfig) (model.JobRecord, bool) {
	title := filter.NormalizeTitle(posting.Title)
	company := trimmed(posting.Company)
	jobURL := trimmed(posting.URL)
	if title == "" || company == "" || jobURL == "" {
		return model.JobRecord{}, false
	}

	if skip, _ := filter.ApplyKeywordFilters(title, company, posting.Location, cfg); skip {
		return model.JobRecord{}, false
	}
	// No overview exists yet; the keyword screen runs on what we have.
	if skip, _, _ := filter.ApplySustainabilityKeywordFilters(title, company, posting.Location, "", cfg); skip {
		return model.JobRecord{}, false
	}

	location := filter.ParseLocation(posting.Location)
	return model.JobRecord{
		JobURL:           jobURL,
		Company:          company,
		JobTitle:         title,
		Location:         location,
		LocationPriority: cfg.LocationPriority(location),
		JobDescription:   trimmed(posting.Description),
	}, true
}

// seedSearchIntents fetches fresh intents from the analysis service and
// persists them for reuse in later cycles.
func (p *Pipeline) seedSearchIntents(ctx context.Context) ([]model.SearchIntent, error) {
	intents, err := p.deps.Analysis.GenerateSearchIntents(ctx, p.deps.Resume)
	if err != nil {
		if errors.Is(err, model.ErrRateLimited) {
			p.rateLimited = true
		}
		return nil, err
	}
	if len(intents) == 0 {
		return nil, nil
	}
	if err := p.deps.Filters.SetSearchIntents(intents); err != nil {
		p.deps.Logger.Warn("persisting search intents failed", "error", err)
	}
	p.deps.Logger.Info("seeded search intents from resume", "count", len(intents))
	return intents, nil
}

func trimmed(s string) string { return strings.TrimSpace(s) }
