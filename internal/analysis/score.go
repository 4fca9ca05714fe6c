package analysis

import (
	"strings"

	"github.com/jobtailor/jobtailor/internal/model"
)

// fitPhrases is ordered most-specific first: "Very good fit" must be tested
// before "Good fit" or the substring search would misread it.
var fitPhrases = []struct {
	phrase string
	score  model.FitScore
}{
	{"Very good fit", model.VeryGoodFit},
	{"Good fit", model.GoodFit},
	{"Moderate fit", model.ModerateFit},
	{"Very poor fit", model.VeryPoorFit},
	{"Poor fit", model.PoorFit},
}

// ParseFitScore extracts the categorical fit score from a free-text
// analysis narrative. First matching phrase wins; a narrative naming no
// category is QuestionableFit. This is the only place narrative text is
// interpreted; everything downstream works with the enum.
func ParseFitScore(narrative string) model.FitScore {
	low := strings.ToLower(narrative)
	for _, p := range fitPhrases {
		if strings.Contains(low, strings.ToLower(p.phrase)) {
			return p.score
		}
	}
	return model.QuestionableFit
}
