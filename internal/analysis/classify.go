package analysis

import (
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/ingredients"
)

// MinQualityScore is the legibility below which a label is not analyzed.
const MinQualityScore = 30

const maxEvidenceLines = 6

var foodSignals = []string{
	"ingredients", "nutrition", "allergen", "contains", "kcal", "calories", "serving",
	"원재료", "원재료명", "영양", "영양정보", "알레르기", "함유", "포함",
	"나트륨", "탄수화물", "단백질", "지방", "당류", "열량",
}

var nonFoodSignals = []string{
	"wipe", "disinfect", "external use", "do not ingest", "keep out of reach",
	"물티슈", "세정", "소독", "살균", "외용", "먹지", "섭취", "사용방법", "주의사항",
	"화장품", "샴푸", "바디", "세탁", "세제",
}

var evidenceKeywords = []string{
	"원재료", "원재료명", "함유", "포함", "알레르기", "알레르겐", "영양",
	"ingredients", "contains", "allergen", "nutrition",
}

// Quality counts the characters that indicate the label was actually read.
type Quality struct {
	Hangul int `json:"hangul"`
	Latin  int `json:"latin"`
	Digit  int `json:"digit"`
	Score  int `json:"score"`
}

// Legible reports whether the text is worth analyzing.
func (q Quality) Legible() bool { return q.Score >= MinQualityScore }

// MeasureQuality scores raw text as hangul*2 + latin + digit. Only Hangul
// syllables and ASCII letters and digits count.
func MeasureQuality(rawText string) Quality {
	var q Quality
	for _, r := range rawText {
		switch {
		case r >= '가' && r <= '힣':
			q.Hangul++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			q.Latin++
		case r >= '0' && r <= '9':
			q.Digit++
		}
	}
	q.Score = q.Hangul*2 + q.Latin + q.Digit
	return q
}

// Classify decides whether text comes from a food label by counting which
// food and non-food signal words it contains.
func Classify(rawText string) Category {
	t := ingredients.NormalizeLower(rawText)
	food := countSignals(t, foodSignals)
	nonFood := countSignals(t, nonFoodSignals)

	switch {
	case nonFood >= 2 && nonFood > food:
		return CategoryNonFood
	case food >= 2 && food >= nonFood:
		return CategoryFood
	default:
		return CategoryUnknown
	}
}

func countSignals(text string, signals []string) int {
	n := 0
	for _, s := range signals {
		if strings.Contains(text, s) {
			n++
		}
	}
	return n
}

// EvidenceLines picks up to six normalized lines that mention ingredients or
// allergens. When fewer than two are found, up to two comma-heavy lines
// (three or more commas, typical of ingredient lists) are added.
func EvidenceLines(rawText string) []string {
	lines := ingredients.Lines(rawText)

	picked := []string{}
	for _, line := range lines {
		if hasAny(strings.ToLower(line), evidenceKeywords) {
			picked = append(picked, line)
			if len(picked) >= maxEvidenceLines {
				break
			}
		}
	}

	if len(picked) < 2 {
		extra := 0
		for _, line := range lines {
			if extra == 2 {
				break
			}
			if strings.Count(line, ",") >= 3 {
				picked = append(picked, line)
				extra++
			}
		}
	}

	picked = ingredients.Unique(picked)
	if len(picked) > maxEvidenceLines {
		picked = picked[:maxEvidenceLines]
	}
	return picked
}

func hasAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
