package pipeline

import (
	"context"
	"time"

	"github.com/jobtailor/jobtailor/internal/model"
)

// expirationRecheckInterval is how often a shortlisted posting gets
// re-probed for expiry.
const expirationRecheckInterval = time.Hour

// CheckExpirations re-probes shortlisted postings so artifacts do not keep
// pointing at closed jobs. Only records with a qualifying score are worth
// the crawl quota; the expired flag then routes them into artifact cleanup
// on the next generation pass.
func (p *Pipeline) CheckExpirations(ctx context.Context) (int, error) {
	if p.deps.Crawler == nil || !p.deps.Features.CrawlDescriptions {
		return 0, nil
	}

	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	progress := 0

	for i := range records {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		r := &records[i]
		if !r.HasQualifyingScore() || r.Excluded() {
			continue
		}
		if r.LastExpirationCheck != nil && now.Sub(*r.LastExpirationCheck) < expirationRecheckInterval {
			continue
		}

		result, err := p.deps.Crawler.FetchDescription(ctx, r.JobURL)
		if err != nil {
			p.deps.Logger.Warn("expiration probe failed",
				"title", r.JobTitle, "company", r.Company, "error", err)
			continue
		}

		fields := model.Fields{model.FieldLastExpirationCheck: now}
		if result.Expired {
			fields[model.FieldExpired] = true
			progress++
			p.deps.Logger.Info("shortlisted job expired",
				"title", r.JobTitle, "company", r.Company)
		}
		if _, err := p.deps.Store.UpdateByKey(ctx, r.Key(), fields); err != nil {
			return progress, err
		}
	}

	return progress, nil
}
