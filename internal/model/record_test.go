package model

import "testing"

func TestFitScoreNamesRoundTrip(t *testing.T) {
	scores := []FitScore{VeryPoorFit, PoorFit, QuestionableFit, ModerateFit, GoodFit, VeryGoodFit}
	for _, s := range scores {
		name := s.String()
		if name == "" {
			t.Fatalf("score %d has no display name", s)
		}
		if got := ParseFitScoreName(name); got != s {
			t.Fatalf("ParseFitScoreName(%q) = %v, want %v", name, got, s)
		}
	}
}

func TestParseFitScoreNameUnknown(t *testing.T) {
	for _, name := range []string{"", "Excellent fit", "good fit"} {
		if got := ParseFitScoreName(name); got != Unscored {
			t.Fatalf("ParseFitScoreName(%q) = %v, want Unscored", name, got)
		}
	}
}

func TestFitScoreRankOrdering(t *testing.T) {
	ordered := []FitScore{Unscored, VeryPoorFit, PoorFit, QuestionableFit, ModerateFit, GoodFit, VeryGoodFit}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Fatalf("rank of %v (%d) not above %v (%d)",
				ordered[i], ordered[i].Rank(), ordered[i-1], ordered[i-1].Rank())
		}
	}
}

func TestHasQualifyingScore(t *testing.T) {
	tests := []struct {
		score FitScore
		want  bool
	}{
		{Unscored, false},
		{VeryPoorFit, false},
		{QuestionableFit, false},
		{ModerateFit, false},
		{GoodFit, true},
		{VeryGoodFit, true},
	}
	for _, tt := range tests {
		r := JobRecord{FitScore: tt.score}
		if got := r.HasQualifyingScore(); got != tt.want {
			t.Errorf("HasQualifyingScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		name   string
		record JobRecord
		want   bool
	}{
		{"clean", JobRecord{}, false},
		{"applied", JobRecord{Applied: true}, true},
		{"bad analysis", JobRecord{BadAnalysis: true}, true},
		{"expired", JobRecord{Expired: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Excluded(); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
