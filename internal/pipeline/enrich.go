package pipeline

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jobtailor/jobtailor/internal/filter"
	"github.com/jobtailor/jobtailor/internal/listing"
	"github.com/jobtailor/jobtailor/internal/model"
)

// EnrichOverviews fills missing company overviews for records that would be
// visible under the default review filter. Cache hits are applied without
// any fetch; the rest are grouped by normalized company, companies backing
// more records first, and fetched in bulk. The page crawler is the fallback
// when the bulk provider is unavailable.
//
// Every record of an attempted company gets co_fetch_attempted set whether
// or not the fetch produced an overview, so the same companies are not
// retried every cycle.
func (p *Pipeline) EnrichOverviews(ctx context.Context) (int, error) {
	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	// recordsByCompany tracks which records each pending company backs.
	recordsByCompany := make(map[string][]model.RecordKey)
	displayName := make(map[string]string)
	progress := 0

	for i := range records {
		r := &records[i]
		if r.Company == "" || r.CompanyOverview != "" || !p.defaultVisible(r) {
			continue
		}

		if overview, ok := p.overviews.Get(r.Company); ok {
			n, err := p.deps.Store.UpdateByKey(ctx, r.Key(), model.Fields{
				model.FieldCompanyOverview:  overview,
				model.FieldCOFetchAttempted: true,
			})
			if err != nil {
				return progress, err
			}
			progress += int(n)
			continue
		}

		if r.COFetchAttempted {
			continue
		}
		key := filter.NormalizeCompany(r.Company)
		if _, ok := recordsByCompany[key]; !ok {
			displayName[key] = r.Company
		}
		recordsByCompany[key] = append(recordsByCompany[key], r.Key())
	}

	if len(recordsByCompany) == 0 {
		return progress, nil
	}

	companies := make([]string, 0, len(recordsByCompany))
	for key := range recordsByCompany {
		companies = append(companies, key)
	}
	sort.Slice(companies, func(i, j int) bool {
		a, b := companies[i], companies[j]
		if len(recordsByCompany[a]) != len(recordsByCompany[b]) {
			return len(recordsByCompany[a]) > len(recordsByCompany[b])
		}
		return a < b
	})

	if p.deps.Provider != nil && p.deps.Provider.Available() {
		n, err := p.overviewsViaBulk(ctx, companies, displayName, recordsByCompany)
		progress += n
		if err != nil && !errors.Is(err, model.ErrUnavailable) {
			return progress, err
		}
	} else if p.deps.Crawler != nil {
		n, err := p.overviewsViaCrawl(ctx, companies, displayName, recordsByCompany)
		progress += n
		if err != nil {
			return progress, err
		}
	}

	return progress, nil
}

func (p *Pipeline) overviewsViaBulk(ctx context.Context, companies []string, displayName map[string]string, recordsByCompany map[string][]model.RecordKey) (int, error) {
	progress := 0
	size := p.deps.Batch.CompanyOverviews

	for start := 0; start < len(companies); start += size {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		end := min(start+size, len(companies))
		batch := companies[start:end]

		names := make([]string, 0, len(batch))
		for _, key := range batch {
			names = append(names, displayName[key])
		}

		overviews, err := p.deps.Provider.FetchOverviewsBulk(ctx, names)
		if err != nil {
			p.markAttempted(ctx, batch, recordsByCompany)
			return progress, err
		}

		n, err := p.applyOverviews(ctx, batch, overviews, recordsByCompany)
		progress += n
		if err != nil {
			return progress, err
		}

		if end < len(companies) {
			p.interBatchDelay(ctx)
		}
	}
	return progress, nil
}

func (p *Pipeline) overviewsViaCrawl(ctx context.Context, companies []string, displayName map[string]string, recordsByCompany map[string][]model.RecordKey) (int, error) {
	progress := 0
	for _, key := range companies {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}

		overview, err := p.deps.Crawler.FetchOverview(ctx, displayName[key])
		found := map[string]string{}
		if err != nil {
			p.deps.Logger.Warn("overview crawl failed", "company", displayName[key], "error", err)
		} else if overview != "" {
			found[key] = overview
		}

		n, applyErr := p.applyOverviews(ctx, []string{key}, found, recordsByCompany)
		progress += n
		if applyErr != nil {
			return progress, applyErr
		}
	}
	return progress, nil
}

// applyOverviews writes fetched overviews to every backing record and
// marks the whole attempted batch, hits and misses alike.
func (p *Pipeline) applyOverviews(ctx context.Context, attempted []string, overviews map[string]string, recordsByCompany map[string][]model.RecordKey) (int, error) {
	progress := 0
	var updates []model.KeyedUpdate

	for _, companyKey := range attempted {
		overview, ok := matchOverview(companyKey, overviews)
		for _, recKey := range recordsByCompany[companyKey] {
			fields := model.Fields{model.FieldCOFetchAttempted: true}
			if ok {
				fields[model.FieldCompanyOverview] = overview
			}
			updates = append(updates, model.KeyedUpdate{Key: recKey, Fields: fields})
		}
		if ok {
			p.overviews.Put(companyKey, overview)
			progress += len(recordsByCompany[companyKey])
		}
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := p.deps.Store.BulkUpdateByKey(ctx, updates); err != nil {
		return 0, err
	}
	return progress, nil
}

// matchOverview finds the overview for a company key: exact normalized
// match first, then substring containment either way, because provider
// names rarely match listing names letter for letter.
func matchOverview(companyKey string, overviews map[string]string) (string, bool) {
	if v, ok := overviews[companyKey]; ok {
		return v, true
	}
	for name, v := range overviews {
		if strings.Contains(name, companyKey) || strings.Contains(companyKey, name) {
			return v, true
		}
	}
	return "", false
}

func (p *Pipeline) markAttempted(ctx context.Context, companies []string, recordsByCompany map[string][]model.RecordKey) {
	var updates []model.KeyedUpdate
	for _, companyKey := range companies {
		for _, recKey := range recordsByCompany[companyKey] {
			updates = append(updates, model.KeyedUpdate{
				Key:    recKey,
				Fields: model.Fields{model.FieldCOFetchAttempted: true},
			})
		}
	}
	if len(updates) == 0 {
		return
	}
	if err := p.deps.Store.BulkUpdateByKey(ctx, updates); err != nil {
		p.deps.Logger.Warn("marking overview attempts failed", "error", err)
	}
}

// descriptionEligible reports whether a record should get a description
// fetch: not excluded, not already attempted, not explicitly unsustainable,
// and either unscored or still in the acceptable score set.
func descriptionEligible(r *model.JobRecord) bool {
	if r.Excluded() || r.JDCrawlAttempted || r.JobDescription != "" {
		return false
	}
	if r.Sustainable == model.Unsustainable {
		return false
	}
	switch r.FitScore {
	case model.Unscored, model.ModerateFit, model.GoodFit, model.VeryGoodFit:
		return true
	}
	return false
}

// EnrichDescriptions fetches missing job descriptions. The per-job page
// crawl is the primary path; jobs detected as expired are flagged instead
// of described. Once crawl failures pile up past the fallback batch size,
// the failed subset goes to the bulk provider in one call.
func (p *Pipeline) EnrichDescriptions(ctx context.Context) (int, error) {
	if p.deps.Features.SkipDescriptionFetch {
		return 0, nil
	}

	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	var pending []model.JobRecord
	for i := range records {
		if descriptionEligible(&records[i]) {
			pending = append(pending, records[i])
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	progress := 0
	var failed []model.JobRecord

	if p.deps.Features.CrawlDescriptions && p.deps.Crawler != nil {
		for i := range pending {
			if ctx.Err() != nil {
				return progress, ctx.Err()
			}
			r := &pending[i]

			result, err := p.deps.Crawler.FetchDescription(ctx, r.JobURL)
			fields := model.Fields{model.FieldJDCrawlAttempted: true}
			switch {
			case err != nil:
				p.deps.Logger.Warn("description crawl failed",
					"title", r.JobTitle, "company", r.Company, "error", err)
				failed = append(failed, *r)
			case result.Expired:
				fields[model.FieldExpired] = true
				progress++
			default:
				fields[model.FieldJobDescription] = result.Description
				progress++
			}
			if _, err := p.deps.Store.UpdateByKey(ctx, r.Key(), fields); err != nil {
				return progress, err
			}
		}
	} else {
		// No crawl path configured; everything goes to the bulk fallback.
		failed = pending
	}

	if len(failed) >= p.deps.Batch.DescriptionFallback && p.deps.Provider != nil && p.deps.Provider.Available() {
		n, err := p.descriptionsViaBulk(ctx, failed)
		progress += n
		if err != nil && !errors.Is(err, model.ErrUnavailable) {
			return progress, err
		}
	}

	return progress, nil
}

func (p *Pipeline) descriptionsViaBulk(ctx context.Context, failed []model.JobRecord) (int, error) {
	var (
		ids        []string
		byPosition []model.JobRecord
	)
	for i := range failed {
		if id := listing.ExtractJobID(failed[i].JobURL); id != "" {
			ids = append(ids, id)
			byPosition = append(byPosition, failed[i])
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	progress := 0
	size := p.deps.Batch.JobDescriptions
	for start := 0; start < len(ids); start += size {
		if ctx.Err() != nil {
			return progress, ctx.Err()
		}
		end := min(start+size, len(ids))

		details, err := p.deps.Provider.FetchDescriptionsBulk(ctx, ids[start:end])
		if err != nil {
			return progress, err
		}

		for _, d := range details {
			if d.Description == "" {
				continue
			}
			rec := matchDetail(d, byPosition[start:end])
			if rec == nil {
				continue
			}
			fields := model.Fields{
				model.FieldJobDescription:   d.Description,
				model.FieldJDCrawlAttempted: true,
			}
			if d.CompanyDescription != "" && rec.CompanyOverview == "" {
				fields[model.FieldCompanyOverview] = d.CompanyDescription
				fields[model.FieldCOFetchAttempted] = true
				p.overviews.Put(rec.Company, d.CompanyDescription)
			}
			if _, err := p.deps.Store.UpdateByKey(ctx, rec.Key(), fields); err != nil {
				return progress, err
			}
			progress++
		}

		if end < len(ids) {
			p.interBatchDelay(ctx)
		}
	}
	return progress, nil
}

// matchDetail pairs a bulk result with the record it describes by loose
// title containment plus company name containment.
func matchDetail(d model.JobDetails, candidates []model.JobRecord) *model.JobRecord {
	dTitle := strings.ToLower(strings.TrimSpace(d.Title))
	dCompany := filter.NormalizeCompany(d.Company)

	for i := range candidates {
		r := &candidates[i]
		title := strings.ToLower(strings.TrimSpace(r.JobTitle))
		company := filter.NormalizeCompany(r.Company)

		titleMatch := title != "" && (strings.Contains(dTitle, title) || strings.Contains(title, dTitle))
		companyMatch := company == dCompany ||
			(company != "" && dCompany != "" &&
				(strings.Contains(dCompany, company) || strings.Contains(company, dCompany)))
		if titleMatch && companyMatch {
			return r
		}
	}
	return nil
}
