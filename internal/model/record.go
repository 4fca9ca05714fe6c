package model

import "time"

// FitScore is the categorical resume-to-job suitability judgment.
// The zero value means "not yet scored".
type FitScore int

const (
	Unscored FitScore = iota
	VeryPoorFit
	PoorFit
	QuestionableFit
	ModerateFit
	GoodFit
	VeryGoodFit
)

var fitScoreNames = map[FitScore]string{
	Unscored:        "",
	VeryPoorFit:     "Very poor fit",
	PoorFit:         "Poor fit",
	QuestionableFit: "Questionable fit",
	ModerateFit:     "Moderate fit",
	GoodFit:         "Good fit",
	VeryGoodFit:     "Very good fit",
}

func (f FitScore) String() string { return fitScoreNames[f] }

// Rank is the canonical ordinal used for sorting and threshold comparisons.
// It is derived from the enum and never stored independently.
func (f FitScore) Rank() int { return int(f) }

// ParseFitScoreName maps a stored display name back to the enum.
// Unknown names map to Unscored.
func ParseFitScoreName(name string) FitScore {
	for score, n := range fitScoreNames {
		if n == name && name != "" {
			return score
		}
	}
	return Unscored
}

// Sustainability is the tri-state company classification.
type Sustainability int

const (
	SustainabilityUnknown Sustainability = iota
	Unsustainable
	Sustainable
)

func (s Sustainability) String() string {
	switch s {
	case Sustainable:
		return "true"
	case Unsustainable:
		return "false"
	default:
		return "unknown"
	}
}

// RecordKey is the natural key of a job record: the (job URL, company name)
// pair, unique and stable across runs.
type RecordKey struct {
	JobURL  string
	Company string
}

// JobRecord is one row of the persistent job table. Fields are filled in
// append-only fashion as the record moves through the pipeline stages.
type JobRecord struct {
	JobURL   string
	Company  string
	JobTitle string

	Location         string
	LocationPriority int

	JobDescription  string // empty = not yet fetched
	CompanyOverview string // empty = not yet fetched

	COFetchAttempted bool
	JDCrawlAttempted bool

	Sustainable                  Sustainability
	SustainabilityKeywordMatches string

	FitScore FitScore
	// FitScoreRank mirrors FitScore.Rank(); the store keeps it in sync and
	// callers must never write it directly.
	FitScoreRank int

	BulkFiltered bool
	JobAnalysis  string

	TailoredResumeRef     string
	TailoredResumePayload string
	TailoredCoverLetter   string

	ResumeFeedback          string
	ResumeFeedbackAddressed bool
	CLFeedback              string
	CLFeedbackAddressed     bool

	Applied             bool
	BadAnalysis         bool
	Expired             bool
	LastExpirationCheck *time.Time
}

// Key returns the record's natural key.
func (r *JobRecord) Key() RecordKey {
	return RecordKey{JobURL: r.JobURL, Company: r.Company}
}

// Excluded reports whether the record is out of play for new pipeline work:
// applied, user-flagged bad analysis, or expired posting.
func (r *JobRecord) Excluded() bool {
	return r.Applied || r.BadAnalysis || r.Expired
}

// HasQualifyingScore reports whether the record's fit score qualifies it for
// artifact generation.
func (r *JobRecord) HasQualifyingScore() bool {
	return r.FitScore == GoodFit || r.FitScore == VeryGoodFit
}
