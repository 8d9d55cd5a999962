package analysis

import (
	"sort"
	"strings"
)

// lexicon maps canonical allergen keys to their bilingual surface forms.
// Synonym order matters: exact matching reports the first synonym found.
var lexicon = map[string][]string{
	"milk": {
		"milk", "whey", "casein", "lactose", "cheese", "butter", "cream", "yogurt",
		"우유", "유청", "카제인", "유당", "치즈", "버터", "크림", "요거트",
	},
	"egg":       {"egg", "albumen", "ovalbumin", "계란", "난류", "난백", "난황"},
	"peanut":    {"peanut", "groundnut", "땅콩"},
	"soy":       {"soy", "soya", "soybean", "lecithin", "대두", "콩", "레시틴"},
	"wheat":     {"wheat", "gluten", "flour", "밀", "글루텐", "밀가루"},
	"buckwheat": {"buckwheat", "메밀"},
	"sesame":    {"sesame", "참깨", "깨"},
	"fish":      {"fish", "생선", "어류"},
	"shellfish": {"shellfish", "shrimp", "crab", "lobster", "새우", "게", "랍스터", "조개", "갑각류"},
	"pork":      {"pork", "lard", "돼지고기", "돈육", "라드"},
	"beef":      {"beef", "쇠고기", "소고기", "우육"},
	"chicken":   {"chicken", "닭고기", "계육"},
	"alcohol":   {"alcohol", "ethanol", "wine", "beer", "소주", "맥주", "와인", "주류", "알코올", "에탄올"},
}

// dietSynonyms covers diet concepts that are not allergens.
var dietSynonyms = map[string][]string{
	"meat":    {"meat", "육류", "고기", "육", "육가공", "육수"},
	"gelatin": {"gelatin", "젤라틴"},
	"honey":   {"honey", "꿀"},
}

// dietRules lists the canonical keys each diet forbids, in match order.
var dietRules = map[DietType][]string{
	DietNone:       nil,
	DietVegan:      {"milk", "egg", "honey", "gelatin", "meat", "fish", "shellfish", "pork", "beef", "chicken"},
	DietVegetarian: {"meat", "fish", "shellfish", "gelatin", "pork", "beef", "chicken"},
	DietHalal:      {"pork", "alcohol", "lard"},
}

// aliases resolves every lowercased lexicon synonym and key, plus a few
// common label expressions, to a canonical key.
var aliases = buildAliases()

func buildAliases() map[string]string {
	m := make(map[string]string)
	for key, syns := range lexicon {
		for _, s := range syns {
			m[strings.ToLower(s)] = key
		}
		m[key] = key
	}
	m["우유함유"] = "milk"
	m["땅콩함유"] = "peanut"
	m["소"] = "beef"
	return m
}

// Term is a canonicalized allergen: either a KnownAllergen from the lexicon
// or a CustomTerm the user typed that the lexicon does not know.
type Term interface {
	// Key is the canonical identifier matches are reported under.
	Key() string
	isTerm()
}

// KnownAllergen is a lexicon entry.
type KnownAllergen struct {
	Canonical string
}

func (k KnownAllergen) Key() string { return k.Canonical }
func (KnownAllergen) isTerm()       {}

// CustomTerm is a user-supplied term with no lexicon entry. It is matched as
// its own single synonym.
type CustomTerm struct {
	Raw string
}

func (c CustomTerm) Key() string { return c.Raw }
func (CustomTerm) isTerm()       {}

// Canonicalize lowercases and trims term and resolves it through the alias
// table. Unknown terms are never rejected; they come back as a CustomTerm.
// A blank term returns nil.
func Canonicalize(term string) Term {
	t := strings.ToLower(strings.TrimSpace(term))
	if t == "" {
		return nil
	}
	if key, ok := aliases[t]; ok {
		return KnownAllergen{Canonical: key}
	}
	return CustomTerm{Raw: t}
}

// CanonicalizeAll canonicalizes terms, dropping blanks and duplicate keys.
func CanonicalizeAll(terms []string) []Term {
	out := make([]Term, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, raw := range terms {
		t := Canonicalize(raw)
		if t == nil {
			continue
		}
		if _, ok := seen[t.Key()]; ok {
			continue
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Synonyms returns the surface forms searched for key: its lexicon entry,
// else its diet synonyms, else the key itself.
func Synonyms(key string) []string {
	if syns, ok := lexicon[key]; ok {
		return syns
	}
	if syns, ok := dietSynonyms[key]; ok {
		return syns
	}
	return []string{key}
}

// Forbidden returns the canonical keys diet forbids.
func Forbidden(diet DietType) []string {
	return dietRules[diet]
}

// Entry is one canonical key with its synonyms.
type Entry struct {
	Key      string   `json:"key"`
	Synonyms []string `json:"synonyms"`
}

// Lexicon returns the allergen lexicon sorted by key.
func Lexicon() []Entry {
	return sortedEntries(lexicon)
}

// DietLexicon returns the diet concept synonyms sorted by key.
func DietLexicon() []Entry {
	return sortedEntries(dietSynonyms)
}

func sortedEntries(m map[string][]string) []Entry {
	out := make([]Entry, 0, len(m))
	for key, syns := range m {
		out = append(out, Entry{Key: key, Synonyms: append([]string(nil), syns...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
