// Package analysis judges recognized label text against a user's allergy and
// diet profile.
//
// Analyze is a pure function of its inputs and safe for concurrent use. It
// never fails: unreadable or non-food labels come back as ordinary results
// with a message telling the user what to do next.
package analysis

import (
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/ingredients"
)

// Category is the product classification.
type Category string

const (
	CategoryFood    Category = "FOOD"
	CategoryNonFood Category = "NON_FOOD"
	CategoryUnknown Category = "UNKNOWN"
)

// RiskLevel summarizes the conflicts found.
type RiskLevel string

const (
	RiskSafe          RiskLevel = "SAFE"
	RiskMedium        RiskLevel = "MEDIUM"
	RiskHigh          RiskLevel = "HIGH"
	RiskNotApplicable RiskLevel = "NOT_APPLICABLE"
	RiskUnknown       RiskLevel = "UNKNOWN"
)

// DietType is a dietary rule set.
type DietType string

const (
	DietNone       DietType = "NONE"
	DietVegan      DietType = "VEGAN"
	DietVegetarian DietType = "VEGETARIAN"
	DietHalal      DietType = "HALAL"
)

// ParseDietType accepts any case. Blank or unknown values mean DietNone.
func ParseDietType(s string) DietType {
	d := DietType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := dietRules[d]; ok {
		return d
	}
	return DietNone
}

// MatchKind tells allergy conflicts from diet conflicts.
type MatchKind string

const (
	KindAllergy MatchKind = "ALLERGY"
	KindDiet    MatchKind = "DIET"
)

// Match is one confirmed conflict. Hit is the text that was found on the
// label; Term is the canonical key it was reported under.
type Match struct {
	Kind   MatchKind `json:"kind"`
	Term   string    `json:"term"`
	Hit    string    `json:"hit"`
	Reason string    `json:"reason"`
}

// Profile is the caller's snapshot of the user's restrictions. The zero value
// is a valid profile with no restrictions.
type Profile struct {
	DietType  DietType `json:"diet_type"`
	Allergens []string `json:"allergens"`
}

// Result is the outcome of analyzing one label.
type Result struct {
	Category      Category  `json:"category"`
	Ingredients   []string  `json:"ingredients"`
	Matches       []Match   `json:"matches"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Quality       Quality   `json:"quality"`
	EvidenceLines []string  `json:"evidence_lines"`
	Message       string    `json:"message"`
}

// User-facing guidance for results that were not fully analyzed.
const (
	MessageLowQuality = "인식된 글자가 너무 적습니다. 원재료명·함유 부분이 화면 2/3 이상 차지하도록 가까이 촬영하세요."
	MessageNonFood    = "비식품으로 판단되어 성분 분석을 수행하지 않았습니다."
	MessageUncertain  = "식품 여부를 확정하기 어렵습니다. 원재료명/영양정보가 선명하게 보이도록 다시 촬영해 주세요."
)

// Analyze classifies the label, extracts its ingredients and matches them
// against the profile.
//
// Illegible text short-circuits to UNKNOWN before classification. Non-food
// labels are NOT_APPLICABLE and uncertain ones UNKNOWN; neither is matched.
// Otherwise any allergy match is HIGH risk, any diet match MEDIUM, else SAFE.
func Analyze(rawText string, profile Profile) Result {
	res := analyze(rawText, profile)
	analysisResults.WithLabelValues(string(res.Category), string(res.RiskLevel)).Inc()
	for _, m := range res.Matches {
		analysisMatches.WithLabelValues(string(m.Kind), metricTerm(m.Term)).Inc()
	}
	return res
}

func analyze(rawText string, profile Profile) Result {
	q := MeasureQuality(rawText)
	if !q.Legible() {
		return skipped(CategoryUnknown, RiskUnknown, q, MessageLowQuality)
	}

	switch Classify(rawText) {
	case CategoryNonFood:
		return skipped(CategoryNonFood, RiskNotApplicable, q, MessageNonFood)
	case CategoryUnknown:
		return skipped(CategoryUnknown, RiskUnknown, q, MessageUncertain)
	}

	tokens := ingredients.Extract(rawText)
	allergy := matchAllergies(rawText, tokens, CanonicalizeAll(profile.Allergens))
	diet := matchDiet(rawText, tokens, ParseDietType(string(profile.DietType)))

	risk := RiskSafe
	switch {
	case len(allergy) > 0:
		risk = RiskHigh
	case len(diet) > 0:
		risk = RiskMedium
	}

	return Result{
		Category:      CategoryFood,
		Ingredients:   tokens,
		Matches:       append(allergy, diet...),
		RiskLevel:     risk,
		Quality:       q,
		EvidenceLines: EvidenceLines(rawText),
	}
}

func skipped(cat Category, risk RiskLevel, q Quality, msg string) Result {
	return Result{
		Category:      cat,
		Ingredients:   []string{},
		Matches:       []Match{},
		RiskLevel:     risk,
		Quality:       q,
		EvidenceLines: []string{},
		Message:       msg,
	}
}

// metricTerm keeps custom user terms out of metric labels.
func metricTerm(term string) string {
	if _, ok := lexicon[term]; ok {
		return term
	}
	if _, ok := dietSynonyms[term]; ok {
		return term
	}
	if term == "lard" {
		return term
	}
	return "custom"
}
