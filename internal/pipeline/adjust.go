package pipeline

import (
	"context"
	"sort"
	"strings"
)

const (
	maxPromotedLocations    = 5
	defaultGoodFitThreshold = 5
)

// AutoAdjustFilters promotes the locations that keep producing well-scored
// records into the configured location priorities, so collection and sorting
// favor where the good matches actually are. Gated by the
// auto_filter_adjustment filter section and held back until enough records
// carry a qualifying score. The filter store snapshots the previous
// priorities so the promotion can be reverted.
func (p *Pipeline) AutoAdjustFilters(ctx context.Context) (int, error) {
	adj := p.deps.Filters.Get().AutoAdjust
	if !adj.Enabled {
		return 0, nil
	}
	threshold := adj.GoodFitThreshold
	if threshold <= 0 {
		threshold = defaultGoodFitThreshold
	}

	records, err := p.deps.Store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	counts := make(map[string]int)
	goodFit := 0
	for i := range records {
		r := &records[i]
		if !r.HasQualifyingScore() {
			continue
		}
		goodFit++
		if loc := strings.TrimSpace(r.Location); loc != "" {
			counts[loc]++
		}
	}
	if goodFit < threshold {
		return 0, nil
	}

	locations := make([]string, 0, len(counts))
	for loc := range counts {
		locations = append(locations, loc)
	}
	sort.Slice(locations, func(i, j int) bool {
		if counts[locations[i]] != counts[locations[j]] {
			return counts[locations[i]] > counts[locations[j]]
		}
		return locations[i] < locations[j]
	})
	if len(locations) > maxPromotedLocations {
		locations = locations[:maxPromotedLocations]
	}

	added, err := p.deps.Filters.PromoteLocations(locations)
	if err != nil {
		return 0, err
	}
	if added > 0 {
		p.deps.Logger.Info("promoted locations from well-scored records",
			"added", added, "good_fit", goodFit)
	}
	return added, nil
}
