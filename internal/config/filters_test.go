package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jobtailor/jobtailor/internal/model"
)

func TestFilterStoreMissingFileFallsBack(t *testing.T) {
	fs := NewFilterStore(filepath.Join(t.TempDir(), "nope.yaml"))
	cfg := fs.Get()
	if cfg == nil || len(cfg.TitleSkipKeywords) != 0 {
		t.Fatalf("got %+v", cfg)
	}
}

func TestFilterStoreInvalidFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	if err := os.WriteFile(path, []byte("::: not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewFilterStore(path).Get()
	if cfg == nil {
		t.Fatal("expected empty default config")
	}
}

func TestAppendSkipKeywordsDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	if err := os.WriteFile(path, []byte("title_skip_keywords:\n  - Frontend\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewFilterStore(path)

	added, err := fs.AppendSkipKeywords(map[string][]string{
		ListTitleSkip:   {"frontend", "Embedded", "  ", "embedded"},
		"unknown_list":  {"ignored"},
		ListCompanySkip: {"Staffing Agency"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Fatalf("got %d added, want 2", added)
	}

	// Reload from disk to verify write-through.
	cfg := NewFilterStore(path).Get()
	if len(cfg.TitleSkipKeywords) != 2 {
		t.Fatalf("got title keywords %v", cfg.TitleSkipKeywords)
	}
	if len(cfg.CompanySkipKeywords) != 1 || cfg.CompanySkipKeywords[0] != "Staffing Agency" {
		t.Fatalf("got company keywords %v", cfg.CompanySkipKeywords)
	}
}

func TestSetSearchIntentsPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	fs := NewFilterStore(path)

	intents := []model.SearchIntent{
		{Keywords: "go engineer", Location: "Berlin"},
		{SearchURL: "https://example.com/jobs/search?keywords=golang"},
	}
	if err := fs.SetSearchIntents(intents); err != nil {
		t.Fatal(err)
	}

	got := NewFilterStore(path).Get().SearchIntents
	if len(got) != 2 || got[0].Keywords != "go engineer" || got[1].SearchURL == "" {
		t.Fatalf("got %+v", got)
	}
}

func TestPromoteLocationsSnapshotAndRevert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	if err := os.WriteFile(path, []byte("location_priorities:\n  Berlin: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewFilterStore(path)

	added, err := fs.PromoteLocations([]string{"Lisbon", "berlin", "  "})
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 {
		t.Fatalf("got %d added, want 1", added)
	}

	// Reload from disk: the promotion and the snapshot both persist.
	cfg := NewFilterStore(path).Get()
	if cfg.LocationPriorities["Lisbon"] != 1 || cfg.LocationPriorities["Berlin"] != 2 {
		t.Fatalf("got priorities %v", cfg.LocationPriorities)
	}
	if _, ok := cfg.AutoAdjust.PreviousPriorities["Lisbon"]; ok {
		t.Fatal("snapshot must predate the promotion")
	}
	if cfg.AutoAdjust.LastRun == "" {
		t.Fatal("last_run not recorded")
	}

	reverted, err := fs.RevertLocationPromotion()
	if err != nil {
		t.Fatal(err)
	}
	if !reverted {
		t.Fatal("expected a revert")
	}
	cfg = NewFilterStore(path).Get()
	if _, ok := cfg.LocationPriorities["Lisbon"]; ok {
		t.Fatalf("promoted location survived revert: %v", cfg.LocationPriorities)
	}
	if cfg.LocationPriorities["Berlin"] != 2 {
		t.Fatalf("got priorities %v", cfg.LocationPriorities)
	}

	reverted, err = fs.RevertLocationPromotion()
	if err != nil {
		t.Fatal(err)
	}
	if reverted {
		t.Fatal("second revert must be a no-op")
	}
}

func TestPromoteLocationsNoNewEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.yaml")
	if err := os.WriteFile(path, []byte("location_priorities:\n  Berlin: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewFilterStore(path)

	added, err := fs.PromoteLocations([]string{"BERLIN", ""})
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Fatalf("got %d added, want 0", added)
	}
	if fs.Get().AutoAdjust.PreviousPriorities != nil {
		t.Fatal("no-op promotion must not take a snapshot")
	}
}

func TestLocationPriority(t *testing.T) {
	cfg := &FilterConfig{LocationPriorities: map[string]int{
		"berlin":  1,
		"germany": 2,
		"remote":  3,
	}}

	tests := []struct {
		location string
		want     int
	}{
		{"Berlin, Germany", 1}, // best match wins over "germany"
		{"Munich, Germany", 2},
		{"Remote (EU)", 3},
		{"Austin, TX", 4}, // default: worst + 1
	}
	for _, tt := range tests {
		if got := cfg.LocationPriority(tt.location); got != tt.want {
			t.Errorf("LocationPriority(%q) = %d, want %d", tt.location, got, tt.want)
		}
	}
}
