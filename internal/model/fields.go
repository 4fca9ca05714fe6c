package model

// Column names accepted by RecordStore.UpdateByKey. Stages build partial
// updates against these so a single atomic statement covers each mutation.
const (
	FieldJobTitle            = "job_title"
	FieldLocation            = "location"
	FieldLocationPriority    = "location_priority"
	FieldJobDescription      = "job_description"
	FieldCompanyOverview     = "company_overview"
	FieldCOFetchAttempted    = "co_fetch_attempted"
	FieldJDCrawlAttempted    = "jd_crawl_attempted"
	FieldSustainable         = "sustainable"
	FieldSustainabilityMatch = "sustainability_keyword_matches"
	FieldFitScore            = "fit_score"
	FieldBulkFiltered        = "bulk_filtered"
	FieldJobAnalysis         = "job_analysis"
	FieldTailoredResumeRef   = "tailored_resume_ref"
	FieldTailoredResumeData  = "tailored_resume_payload"
	FieldTailoredCoverLetter = "tailored_cover_letter"
	FieldResumeFeedback      = "resume_feedback"
	FieldResumeFeedbackDone  = "resume_feedback_addressed"
	FieldCLFeedback          = "cl_feedback"
	FieldCLFeedbackDone      = "cl_feedback_addressed"
	FieldApplied             = "applied"
	FieldBadAnalysis         = "bad_analysis"
	FieldExpired             = "expired"
	FieldLastExpirationCheck = "last_expiration_check"
)

// Fields is a partial update keyed by column name. FitScore values may be
// passed directly; the store derives the rank column from them.
type Fields map[string]any

// KeyedUpdate pairs a natural key with the fields to write for it.
type KeyedUpdate struct {
	Key    RecordKey
	Fields Fields
}
