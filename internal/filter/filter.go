package filter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jobtailor/jobtailor/internal/config"
	"github.com/jobtailor/jobtailor/internal/model"
)

// Skip reasons recorded in the job analysis column when a keyword filter
// fires. Stable strings: the review dashboard groups on them.
const (
	ReasonUnwantedTitle    = "Job title contains unwanted technology"
	ReasonUnwantedLocation = "Location not preferred"
	ReasonUnwantedCompany  = "Company name contains unwanted keyword"
)

// Result is the outcome of running a record through the filter chain.
// A zero FitScore means undecided: nothing here disqualified the record.
type Result struct {
	FitScore       model.FitScore
	Reason         string
	Sustainable    model.Sustainability
	KeywordMatches string
}

// ApplyKeywordFilters evaluates the skip lists in fixed priority order:
// title substrings, title words, location substrings, company substrings.
// First match wins. Title checks run first because a title mismatch is the
// cheapest and most certain disqualifier.
func ApplyKeywordFilters(title, company, location string, cfg *config.FilterConfig) (bool, string) {
	lowTitle := strings.ToLower(title)

	for _, kw := range cfg.TitleSkipKeywords {
		if kw != "" && strings.Contains(lowTitle, strings.ToLower(kw)) {
			return true, ReasonUnwantedTitle
		}
	}

	words := splitWords(lowTitle)
	for _, kw := range cfg.TitleWordSkip {
		if kw == "" {
			continue
		}
		low := strings.ToLower(kw)
		for _, w := range words {
			if w == low {
				return true, ReasonUnwantedTitle
			}
		}
	}

	lowLocation := strings.ToLower(location)
	for _, kw := range cfg.LocationSkipKeywords {
		if kw != "" && strings.Contains(lowLocation, strings.ToLower(kw)) {
			return true, ReasonUnwantedLocation
		}
	}

	lowCompany := strings.ToLower(company)
	for _, kw := range cfg.CompanySkipKeywords {
		if kw != "" && strings.Contains(lowCompany, strings.ToLower(kw)) {
			return true, ReasonUnwantedCompany
		}
	}

	return false, ""
}

// ApplySustainabilityKeywordFilters runs the cheap keyword screen that
// precedes any LLM classification. A negative keyword match is an
// unconditional skip. Positive matches never skip; they are collected into
// a summary recorded for audit. With no keywords configured the screen is
// a no-op.
func ApplySustainabilityKeywordFilters(title, company, location, overview string, cfg *config.FilterConfig) (bool, string, string) {
	sk := cfg.Sustainability
	if len(sk.Positive) == 0 && len(sk.Negative) == 0 {
		return false, "", ""
	}

	haystack := strings.ToLower(title + " " + company + " " + location)
	if sk.MatchOverview {
		haystack += " " + strings.ToLower(overview)
	}

	for _, kw := range sk.Negative {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			return true, fmt.Sprintf("Matched non-sustainability keyword: %s", kw), ""
		}
	}

	var matches []string
	for _, kw := range sk.Positive {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			matches = append(matches, kw)
		}
	}
	return false, "", strings.Join(matches, ", ")
}

// SustainabilityLookup consults a per-company cache of prior classification
// verdicts. The second return reports whether a verdict exists.
type SustainabilityLookup func(company string) (model.Sustainability, bool)

// Classify runs the full filter chain for one record: keyword filters, then
// the sustainability keyword screen, then (when the feature is enabled and
// an overview exists) a cached external sustainability verdict. An empty
// Result.FitScore means no filter disqualified the record.
func Classify(title, company, location, overview string, cfg *config.FilterConfig, checkSustainability bool, lookup SustainabilityLookup) Result {
	if skip, reason := ApplyKeywordFilters(title, company, location, cfg); skip {
		return Result{FitScore: model.PoorFit, Reason: reason}
	}

	skip, reason, matches := ApplySustainabilityKeywordFilters(title, company, location, overview, cfg)
	if skip {
		return Result{FitScore: model.VeryPoorFit, Reason: reason, Sustainable: model.Unsustainable}
	}

	res := Result{KeywordMatches: matches}
	if checkSustainability && overview != "" && lookup != nil {
		if verdict, ok := lookup(NormalizeCompany(company)); ok {
			res.Sustainable = verdict
			if verdict == model.Unsustainable {
				res.FitScore = model.VeryPoorFit
				res.Reason = "Company classified as not sustainability-focused"
			}
		}
	}
	return res
}

// NormalizeTitle collapses the duplicate wrapped lines some listing pages
// produce ("Senior Engineer\nSenior Engineer") into a single line.
func NormalizeTitle(title string) string {
	lines := strings.Split(title, "\n")
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if len(out) > 0 && strings.EqualFold(out[len(out)-1], l) {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, " ")
}

// NormalizeCompany canonicalizes a company name for grouping and cache
// keys: lowercase with whitespace collapsed.
func NormalizeCompany(company string) string {
	return strings.Join(strings.Fields(strings.ToLower(company)), " ")
}

// ParseLocation strips listing-page metadata from a location string, which
// arrives as "City, Region · extra · extra".
func ParseLocation(raw string) string {
	loc, _, _ := strings.Cut(raw, "·")
	return strings.TrimSpace(loc)
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '+' && r != '#'
	})
}
