package filter

import (
	"testing"

	"github.com/jobtailor/jobtailor/internal/config"
	"github.com/jobtailor/jobtailor/internal/model"
)

func testFilterConfig() *config.FilterConfig {
	return &config.FilterConfig{
		TitleSkipKeywords:    []string{".NET", "Salesforce"},
		TitleWordSkip:        []string{"java", "PHP"},
		CompanySkipKeywords:  []string{"staffing"},
		LocationSkipKeywords: []string{"on-site"},
		Sustainability: config.SustainabilityKeywords{
			Positive: []string{"solar", "renewable"},
			Negative: []string{"oil & gas"},
		},
	}
}

func TestApplyKeywordFilters(t *testing.T) {
	cfg := testFilterConfig()

	tests := []struct {
		name       string
		title      string
		company    string
		location   string
		wantSkip   bool
		wantReason string
	}{
		{
			name: "clean record passes", title: "Backend Engineer",
			company: "Acme", location: "Berlin",
		},
		{
			name: "title substring match", title: "Senior .NET Developer",
			company: "Acme", location: "Berlin",
			wantSkip: true, wantReason: ReasonUnwantedTitle,
		},
		{
			name: "title substring is case-insensitive", title: "SALESFORCE admin",
			company: "Acme", location: "Berlin",
			wantSkip: true, wantReason: ReasonUnwantedTitle,
		},
		{
			name: "title word match on boundary", title: "Java Engineer",
			company: "Acme", location: "Berlin",
			wantSkip: true, wantReason: ReasonUnwantedTitle,
		},
		{
			name: "word list does not match substrings", title: "JavaScript Engineer",
			company: "Acme", location: "Berlin",
		},
		{
			name: "title wins over company", title: "PHP Developer",
			company: "Best Staffing Inc", location: "Berlin",
			wantSkip: true, wantReason: ReasonUnwantedTitle,
		},
		{
			name: "location before company", title: "Backend Engineer",
			company: "Best Staffing Inc", location: "Berlin (On-Site)",
			wantSkip: true, wantReason: ReasonUnwantedLocation,
		},
		{
			name: "company match", title: "Backend Engineer",
			company: "Best Staffing Inc", location: "Berlin",
			wantSkip: true, wantReason: ReasonUnwantedCompany,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skip, reason := ApplyKeywordFilters(tt.title, tt.company, tt.location, cfg)
			if skip != tt.wantSkip {
				t.Errorf("skip = %v, want %v", skip, tt.wantSkip)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestApplySustainabilityKeywordFilters(t *testing.T) {
	cfg := testFilterConfig()

	skip, reason, _ := ApplySustainabilityKeywordFilters("Engineer", "Oil & Gas Corp", "Houston", "", cfg)
	if !skip {
		t.Fatal("negative keyword should skip")
	}
	if reason == "" {
		t.Error("negative skip must carry a reason")
	}

	skip, _, matches := ApplySustainabilityKeywordFilters("Solar Engineer", "Renewable Co", "Berlin", "", cfg)
	if skip {
		t.Error("positive keywords must not skip")
	}
	if matches != "solar, renewable" {
		t.Errorf("matches = %q, want %q", matches, "solar, renewable")
	}

	// Overview only participates when enabled.
	skip, _, _ = ApplySustainabilityKeywordFilters("Engineer", "Acme", "Berlin", "subsidiary of oil & gas group", cfg)
	if skip {
		t.Error("overview must be ignored when match_overview is off")
	}
	cfg.Sustainability.MatchOverview = true
	skip, _, _ = ApplySustainabilityKeywordFilters("Engineer", "Acme", "Berlin", "subsidiary of oil & gas group", cfg)
	if !skip {
		t.Error("overview negative match should skip when enabled")
	}

	empty := &config.FilterConfig{}
	skip, reason, matches = ApplySustainabilityKeywordFilters("Engineer", "Oil & Gas Corp", "", "", empty)
	if skip || reason != "" || matches != "" {
		t.Error("no configured keywords must be a no-op")
	}
}

func TestClassify(t *testing.T) {
	cfg := testFilterConfig()

	res := Classify("Java Engineer", "Acme", "Berlin", "", cfg, false, nil)
	if res.FitScore != model.PoorFit {
		t.Errorf("keyword-filtered FitScore = %v, want PoorFit", res.FitScore)
	}

	res = Classify("Engineer", "Oil & Gas Corp", "Houston", "", cfg, false, nil)
	if res.FitScore != model.VeryPoorFit {
		t.Errorf("sustainability-filtered FitScore = %v, want VeryPoorFit", res.FitScore)
	}
	if res.Sustainable != model.Unsustainable {
		t.Errorf("Sustainable = %v, want Unsustainable", res.Sustainable)
	}

	lookup := func(company string) (model.Sustainability, bool) {
		if company == "gray co" {
			return model.Unsustainable, true
		}
		return model.SustainabilityUnknown, false
	}

	res = Classify("Engineer", "Gray Co", "Berlin", "an overview", cfg, true, lookup)
	if res.FitScore != model.VeryPoorFit {
		t.Errorf("cached-unsustainable FitScore = %v, want VeryPoorFit", res.FitScore)
	}

	// No overview yet: the cache must not be consulted.
	res = Classify("Engineer", "Gray Co", "Berlin", "", cfg, true, lookup)
	if res.FitScore != model.Unscored {
		t.Errorf("FitScore = %v, want undecided", res.FitScore)
	}

	res = Classify("Solar Engineer", "Acme", "Berlin", "", cfg, false, nil)
	if res.FitScore != model.Unscored {
		t.Errorf("FitScore = %v, want undecided", res.FitScore)
	}
	if res.KeywordMatches != "solar" {
		t.Errorf("KeywordMatches = %q, want %q", res.KeywordMatches, "solar")
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Backend Engineer", "Backend Engineer"},
		{"Backend Engineer\nBackend Engineer", "Backend Engineer"},
		{"Backend Engineer\nbackend engineer", "Backend Engineer"},
		{"Backend Engineer\nwith security clearance", "Backend Engineer with security clearance"},
		{"  Backend Engineer  \n\n  Backend Engineer ", "Backend Engineer"},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCompany(t *testing.T) {
	if got := NormalizeCompany("  Acme   Corp "); got != "acme corp" {
		t.Errorf("NormalizeCompany = %q, want %q", got, "acme corp")
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Berlin, Germany · Reposted 2 days ago · 40 applicants", "Berlin, Germany"},
		{"Remote", "Remote"},
		{"  Munich · Hybrid ", "Munich"},
	}
	for _, tt := range tests {
		if got := ParseLocation(tt.in); got != tt.want {
			t.Errorf("ParseLocation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
