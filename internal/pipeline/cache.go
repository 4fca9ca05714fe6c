package pipeline

import (
	"github.com/jobtailor/jobtailor/internal/filter"
	"github.com/jobtailor/jobtailor/internal/model"
)

// OverviewCache maps normalized company name to overview text for the
// lifetime of the process. It only avoids redundant external fetches; the
// store remains the source of truth.
type OverviewCache struct {
	byCompany map[string]string
}

func NewOverviewCache() *OverviewCache {
	return &OverviewCache{byCompany: make(map[string]string)}
}

// Warm fills the cache from persisted records. First overview per company
// wins.
func (c *OverviewCache) Warm(records []model.JobRecord) {
	for i := range records {
		r := &records[i]
		if r.Company == "" || r.CompanyOverview == "" {
			continue
		}
		key := filter.NormalizeCompany(r.Company)
		if _, ok := c.byCompany[key]; !ok {
			c.byCompany[key] = r.CompanyOverview
		}
	}
}

func (c *OverviewCache) Get(company string) (string, bool) {
	v, ok := c.byCompany[filter.NormalizeCompany(company)]
	return v, ok
}

func (c *OverviewCache) Put(company, overview string) {
	if company == "" || overview == "" {
		return
	}
	c.byCompany[filter.NormalizeCompany(company)] = overview
}

// SustainabilityCache maps normalized company name to a definitive
// classification verdict. Unknown verdicts are never cached.
type SustainabilityCache struct {
	byCompany map[string]model.Sustainability
}

func NewSustainabilityCache() *SustainabilityCache {
	return &SustainabilityCache{byCompany: make(map[string]model.Sustainability)}
}

// Warm fills the cache from persisted records, keeping only definitive
// values.
func (c *SustainabilityCache) Warm(records []model.JobRecord) {
	for i := range records {
		r := &records[i]
		if r.Company == "" || r.Sustainable == model.SustainabilityUnknown {
			continue
		}
		key := filter.NormalizeCompany(r.Company)
		if _, ok := c.byCompany[key]; !ok {
			c.byCompany[key] = r.Sustainable
		}
	}
}

func (c *SustainabilityCache) Get(company string) (model.Sustainability, bool) {
	v, ok := c.byCompany[filter.NormalizeCompany(company)]
	return v, ok
}

func (c *SustainabilityCache) Put(company string, v model.Sustainability) {
	if company == "" || v == model.SustainabilityUnknown {
		return
	}
	c.byCompany[filter.NormalizeCompany(company)] = v
}

// Lookup adapts the cache to the filter engine's lookup signature. The
// filter engine passes already-normalized names.
func (c *SustainabilityCache) Lookup(normalizedCompany string) (model.Sustainability, bool) {
	v, ok := c.byCompany[normalizedCompany]
	return v, ok
}
