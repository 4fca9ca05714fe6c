package model

import "context"

// SearchIntent describes one listing-provider search: either a raw search
// URL or a structured keyword/location pair generated from the resume.
type SearchIntent struct {
	Keywords  string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Location  string `yaml:"location,omitempty" json:"location,omitempty"`
	SearchURL string `yaml:"search_url,omitempty" json:"search_url,omitempty"`
}

// Posting is one normalized candidate item from the listing provider.
// Description may be empty; most sources only return it on detail fetches.
type Posting struct {
	Title       string
	Company     string
	URL         string
	Location    string
	Description string
}

// JobDetails is one item from a bulk description fetch. Title and Company
// echo what the provider matched so callers can pair results with records.
type JobDetails struct {
	Title              string
	Company            string
	Description        string
	CompanyDescription string
}

// ListingProvider is the bulk job-listing source.
type ListingProvider interface {
	// Available reports whether bulk operations may be attempted right now.
	// False means a hard quota was hit and the cooldown has not elapsed.
	Available() bool
	Search(ctx context.Context, intent SearchIntent) ([]Posting, error)
	FetchOverviewsBulk(ctx context.Context, companies []string) (map[string]string, error)
	FetchDescriptionsBulk(ctx context.Context, jobIDs []string) ([]JobDetails, error)
}

// CrawlResult is the outcome of fetching a single job page.
type CrawlResult struct {
	Description string
	Expired     bool
}

// PageCrawler fetches one job posting page directly. It is the primary
// per-job description path; the bulk provider is the fallback.
type PageCrawler interface {
	FetchDescription(ctx context.Context, jobURL string) (CrawlResult, error)
	FetchOverview(ctx context.Context, company string) (string, error)
}

// JobContext carries the per-job fields sent with analysis and generation
// requests.
type JobContext struct {
	Company         string
	Title           string
	Location        string
	JobURL          string
	Description     string
	CompanyOverview string
}

// TitleCompany is one bulk-qualification input item.
type TitleCompany struct {
	Title   string
	Company string
}

// BulkQualifyResult is the coarse accept/reject judgment for a batch, plus
// any generalizable skip keywords the service discovered along the way.
type BulkQualifyResult struct {
	FilteredTitles []string
	// NewSkipKeywords maps FilterConfig list names to keywords to append.
	NewSkipKeywords map[string][]string
}

// CompanyContext is one sustainability-classification input item.
type CompanyContext struct {
	Company     string
	Overview    string
	Description string
}

// SustainabilityVerdict is the classification for one company.
type SustainabilityVerdict struct {
	Sustainable Sustainability
	Reasoning   string
}

// AnalysisService is the LLM-backed fit-analysis collaborator. All methods
// return ErrRateLimited when both credentials are rate limited, meaning
// "skip, try next cycle" rather than a hard failure.
type AnalysisService interface {
	Analyze(ctx context.Context, job JobContext, resume ResumeProfile) (string, error)
	BulkQualify(ctx context.Context, items []TitleCompany, resume ResumeProfile) (BulkQualifyResult, error)
	ClassifySustainability(ctx context.Context, companies []CompanyContext) (map[string]SustainabilityVerdict, error)
	GenerateSearchIntents(ctx context.Context, resume ResumeProfile) ([]SearchIntent, error)
}

// ResumeArtifact is the output of a resume generation call.
type ResumeArtifact struct {
	JSON     string
	Filename string
	PDF      []byte
}

// ArtifactService generates tailored application artifacts.
type ArtifactService interface {
	GenerateResume(ctx context.Context, resume ResumeProfile, job JobContext, priorJSON, feedback string) (ResumeArtifact, error)
	GenerateCoverLetter(ctx context.Context, resume ResumeProfile, job JobContext, priorText, feedback string) (string, error)
}

// ArtifactFiles stores generated artifact blobs locally.
type ArtifactFiles interface {
	SaveResume(pdf []byte, filename string) (string, error)
	SaveCoverLetter(text, filename string) (string, error)
	DeleteResume(ref string) error
}

// RecordStore is the persistent job-record table keyed by natural key.
// Every mutation is a single atomic statement or transaction so external
// readers never observe a partially updated record.
type RecordStore interface {
	GetAll(ctx context.Context) ([]JobRecord, error)
	// UpsertMany inserts records, silently ignoring natural-key duplicates,
	// and returns the number actually inserted.
	UpsertMany(ctx context.Context, records []JobRecord) (int, error)
	// UpdateByKey writes the given fields for the record matching the key
	// and returns the number of rows affected.
	UpdateByKey(ctx context.Context, key RecordKey, fields Fields) (int64, error)
	BulkUpdateByKey(ctx context.Context, updates []KeyedUpdate) error
	// SortByPriority rewrites on-disk ordering: fit rank descending, then
	// location priority ascending.
	SortByPriority(ctx context.Context) error
}
