package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jobtailor/jobtailor/internal/model"
)

// Skip-list names used by FilterConfig and by the bulk-qualification
// keyword-learning response.
const (
	ListTitleSkip    = "title_skip_keywords"
	ListTitleWord    = "title_word_skip_keywords"
	ListCompanySkip  = "company_skip_keywords"
	ListLocationSkip = "location_skip_keywords"
)

// FilterConfig holds the user's filtering rules. The pipeline only ever
// appends to the skip lists and rewrites SearchIntents; user-authored
// entries are never deleted.
type FilterConfig struct {
	TitleSkipKeywords    []string               `yaml:"title_skip_keywords"`
	TitleWordSkip        []string               `yaml:"title_word_skip_keywords"`
	CompanySkipKeywords  []string               `yaml:"company_skip_keywords"`
	LocationSkipKeywords []string               `yaml:"location_skip_keywords"`
	LocationPriorities   map[string]int         `yaml:"location_priorities"`
	Sustainability       SustainabilityKeywords `yaml:"sustainability"`
	AutoAdjust           AutoAdjustConfig       `yaml:"auto_filter_adjustment"`
	SearchIntents        []model.SearchIntent   `yaml:"search_intents"`
}

// AutoAdjustConfig gates automatic location promotion: once enough records
// carry a qualifying score, their most common locations are promoted into
// LocationPriorities. The priorities from before the last promotion are kept
// so it can be reverted.
type AutoAdjustConfig struct {
	Enabled            bool           `yaml:"enabled"`
	GoodFitThreshold   int            `yaml:"good_fit_threshold"`
	LastRun            string         `yaml:"last_run,omitempty"`
	PreviousPriorities map[string]int `yaml:"previous_location_priorities,omitempty"`
}

// SustainabilityKeywords are the positive/negative keyword lists for the
// cheap pre-LLM sustainability screen.
type SustainabilityKeywords struct {
	Positive      []string `yaml:"positive"`
	Negative      []string `yaml:"negative"`
	MatchOverview bool     `yaml:"match_overview"`
}

// DefaultLocationPriority is the priority assigned when no configured
// location matches: one worse than the worst configured priority.
func (f *FilterConfig) DefaultLocationPriority() int {
	if len(f.LocationPriorities) == 0 {
		return 5
	}
	worst := 0
	for _, p := range f.LocationPriorities {
		if p > worst {
			worst = p
		}
	}
	return worst + 1
}

// LocationPriority returns the configured priority for a location string
// (case-insensitive substring match, best configured priority wins).
func (f *FilterConfig) LocationPriority(location string) int {
	loc := strings.ToLower(location)

	type entry struct {
		name     string
		priority int
	}
	entries := make([]entry, 0, len(f.LocationPriorities))
	for name, p := range f.LocationPriorities {
		entries = append(entries, entry{name, p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })

	for _, e := range entries {
		if strings.Contains(loc, strings.ToLower(e.name)) {
			return e.priority
		}
	}
	return f.DefaultLocationPriority()
}

// FilterStore owns loading and saving filters.yaml. Reads after the first
// are served from memory; every mutation writes through to disk.
type FilterStore struct {
	mu     sync.Mutex
	path   string
	loaded *FilterConfig
}

// NewFilterStore creates a store for the filter file at path. The file is
// not read until the first Get.
func NewFilterStore(path string) *FilterStore {
	return &FilterStore{path: path}
}

// Get returns the current FilterConfig. An unreadable or invalid file falls
// back to an empty default rather than halting the pipeline.
func (s *FilterStore) Get() *FilterConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded != nil {
		return s.loaded
	}

	cfg := &FilterConfig{LocationPriorities: map[string]int{}}
	data, err := os.ReadFile(s.path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			cfg = &FilterConfig{LocationPriorities: map[string]int{}}
		}
	}
	if cfg.LocationPriorities == nil {
		cfg.LocationPriorities = map[string]int{}
	}
	s.loaded = cfg
	return cfg
}

// save persists the in-memory config. Callers must hold s.mu.
func (s *FilterStore) save() error {
	data, err := yaml.Marshal(s.loaded)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write filters: %w", err)
	}
	return nil
}

// AppendSkipKeywords merges newly discovered skip keywords into the named
// lists, deduplicating case-insensitively. Returns how many were added.
func (s *FilterStore) AppendSkipKeywords(newKeywords map[string][]string) (int, error) {
	cfg := s.Get()
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for list, words := range newKeywords {
		target := listFor(cfg, list)
		if target == nil {
			continue
		}
		existing := make(map[string]bool, len(*target))
		for _, w := range *target {
			existing[strings.ToLower(w)] = true
		}
		for _, w := range words {
			w = strings.TrimSpace(w)
			if w == "" || existing[strings.ToLower(w)] {
				continue
			}
			*target = append(*target, w)
			existing[strings.ToLower(w)] = true
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.save()
}

// PromoteLocations adds locations to LocationPriorities at the top priority,
// skipping ones already configured (case-insensitive). The priorities from
// before the change are snapshotted for RevertLocationPromotion. Returns how
// many locations were added.
func (s *FilterStore) PromoteLocations(locations []string) (int, error) {
	cfg := s.Get()
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]bool, len(cfg.LocationPriorities))
	snapshot := make(map[string]int, len(cfg.LocationPriorities))
	for name, p := range cfg.LocationPriorities {
		existing[strings.ToLower(strings.TrimSpace(name))] = true
		snapshot[name] = p
	}

	added := 0
	for _, loc := range locations {
		loc = strings.TrimSpace(loc)
		if loc == "" || existing[strings.ToLower(loc)] {
			continue
		}
		cfg.LocationPriorities[loc] = 1
		existing[strings.ToLower(loc)] = true
		added++
	}
	if added == 0 {
		return 0, nil
	}

	cfg.AutoAdjust.PreviousPriorities = snapshot
	cfg.AutoAdjust.LastRun = time.Now().UTC().Format(time.RFC3339)
	return added, s.save()
}

// RevertLocationPromotion restores LocationPriorities from the snapshot taken
// by the last promotion and clears it. Reports whether anything was reverted.
func (s *FilterStore) RevertLocationPromotion() (bool, error) {
	cfg := s.Get()
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.AutoAdjust.PreviousPriorities == nil {
		return false, nil
	}
	cfg.LocationPriorities = cfg.AutoAdjust.PreviousPriorities
	cfg.AutoAdjust.PreviousPriorities = nil
	cfg.AutoAdjust.LastRun = ""
	return true, s.save()
}

// SetSearchIntents replaces the cached search intents and persists them.
func (s *FilterStore) SetSearchIntents(intents []model.SearchIntent) error {
	cfg := s.Get()
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.SearchIntents = intents
	return s.save()
}

func listFor(cfg *FilterConfig, name string) *[]string {
	switch name {
	case ListTitleSkip:
		return &cfg.TitleSkipKeywords
	case ListTitleWord:
		return &cfg.TitleWordSkip
	case ListCompanySkip:
		return &cfg.CompanySkipKeywords
	case ListLocationSkip:
		return &cfg.LocationSkipKeywords
	default:
		return nil
	}
}
