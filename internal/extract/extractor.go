package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/spigell/locum-chat/internal/catalog"
)

// FilterSet is the structured search constraint set derived from free text
// and/or explicit caller input. Absent fields impose no constraint.
type FilterSet struct {
	State      string   `json:"state,omitempty" mapstructure:"state"`
	Profession string   `json:"profession,omitempty" mapstructure:"profession"`
	Specialty  string   `json:"specialty,omitempty" mapstructure:"specialty"`
	MinRate    *float64 `json:"minRate,omitempty" mapstructure:"minRate"`
	Unit       string   `json:"unit,omitempty" mapstructure:"unit"`
}

// IsEmpty reports whether no field carries a constraint.
func (f FilterSet) IsEmpty() bool {
	return f.State == "" && f.Profession == "" && f.Specialty == "" && f.MinRate == nil && f.Unit == ""
}

// Merge overlays explicit caller-supplied filters on top of the text-derived
// set. Explicit values win per field; absent explicit fields keep the derived
// value.
func (f FilterSet) Merge(explicit FilterSet) FilterSet {
	out := f
	if explicit.State != "" {
		out.State = strings.ToUpper(strings.TrimSpace(explicit.State))
	}
	if explicit.Profession != "" {
		out.Profession = strings.TrimSpace(explicit.Profession)
	}
	if explicit.Specialty != "" {
		out.Specialty = strings.TrimSpace(explicit.Specialty)
	}
	if explicit.MinRate != nil && *explicit.MinRate >= 0 {
		rate := *explicit.MinRate
		out.MinRate = &rate
	}
	if explicit.Unit != "" {
		out.Unit = CanonicalUnit(explicit.Unit)
	}
	return out
}

// CanonicalUnit folds the known rate unit spellings into the catalog enums.
// Unrecognized spellings pass through unchanged so they fail equality checks
// explicitly instead of silently matching.
func CanonicalUnit(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hr", "hour", "hours", "hourly":
		return catalog.UnitHour
	case "day", "days", "daily":
		return catalog.UnitDay
	default:
		return raw
	}
}

type professionRule struct {
	// keywords are matched as substrings of the lowercased message unless
	// standalone is set, in which case they must appear as whole tokens.
	keywords   []string
	standalone bool
	profession string
	specialty  string
}

// professionRules is ordered: the first matching rule sets profession and
// specialty and later rules never overwrite within the same call.
var professionRules = []professionRule{
	{keywords: []string{"crna", "nurse anesthetist"}, profession: "CRNA", specialty: "Anesthesia"},
	{keywords: []string{"urgent care"}, profession: "Physician", specialty: "Urgent Care"},
	{keywords: []string{"radiolog"}, specialty: "Diagnostic Radiology"},
	{keywords: []string{"anesthesiolog"}, profession: "Physician", specialty: "Anesthesiology"},
	{keywords: []string{"hospitalist"}, profession: "Physician", specialty: "Hospital Medicine"},
	{keywords: []string{"emergency medicine"}, profession: "Physician", specialty: "Emergency Medicine"},
	{keywords: []string{"nurse practitioner"}, profession: "NP"},
	{keywords: []string{"physician assistant"}, profession: "PA"},
	{keywords: []string{"np"}, standalone: true, profession: "NP"},
	{keywords: []string{"pa"}, standalone: true, profession: "PA"},
	{keywords: []string{"md"}, standalone: true, profession: "MD"},
}

// rateRe captures a currency-like 2-4 digit number with an optional unit token.
var rateRe = regexp.MustCompile(`(?i)\$?\b(\d{2,4})\b\s*/?\s*(hr|hours|hourly|hour|daily|days|day)?`)

// fullNameOrder lists state codes by descending full-name length so that
// "West Virginia" is tried before "Virginia".
var fullNameOrder []string

func init() {
	fullNameOrder = append(fullNameOrder, stateCodeOrder...)
	sort.SliceStable(fullNameOrder, func(i, j int) bool {
		return len(stateNames[fullNameOrder[i]]) > len(stateNames[fullNameOrder[j]])
	})
}

// FromMessage derives a FilterSet from a free-text message using the
// deterministic pattern rules. A message with no recognizable signal yields an
// all-absent FilterSet, never an error.
func FromMessage(message string) FilterSet {
	f := FilterSet{}
	lower := strings.ToLower(message)
	toks := tokenize(message)

	f.State = extractState(lower, toks)

	for _, rule := range professionRules {
		if rule.matches(lower, toks) {
			f.Profession = rule.profession
			f.Specialty = rule.specialty
			break
		}
	}

	if m := rateRe.FindStringSubmatch(message); m != nil {
		if rate, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.MinRate = &rate
			if m[2] == "" {
				// unit absent or ambiguous: hourly is the default
				f.Unit = catalog.UnitHour
			} else {
				f.Unit = CanonicalUnit(m[2])
			}
		}
	}

	return f
}

// ambiguousStateCodes are state codes that double as common English words.
// They are accepted as a state signal only when the message spells them in
// uppercase, so "in FL" reads as Florida and "find me" carries no state.
var ambiguousStateCodes = map[string]bool{
	"AL": true, "CO": true, "DE": true, "HI": true, "ID": true,
	"IN": true, "LA": true, "MA": true, "MD": true, "ME": true,
	"MO": true, "OH": true, "OK": true, "OR": true, "PA": true,
}

// extractState resolves a state constraint from the message. A full state
// name is the most specific signal and wins over any 2-letter abbreviation;
// abbreviations are matched as whole tokens, first hit wins, and codes that
// are also ordinary words must be uppercase to count.
func extractState(lower string, toks []string) string {
	for _, code := range fullNameOrder {
		if strings.Contains(lower, strings.ToLower(stateNames[code])) {
			return code
		}
	}

	for _, tok := range toks {
		if len(tok) != 2 {
			continue
		}
		up := strings.ToUpper(tok)
		if !IsValidState(up) {
			continue
		}
		if ambiguousStateCodes[up] && tok != up {
			continue
		}
		return up
	}

	return ""
}

func (r professionRule) matches(lower string, toks []string) bool {
	for _, kw := range r.keywords {
		if r.standalone {
			for _, tok := range toks {
				if strings.EqualFold(tok, kw) {
					return true
				}
			}
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func tokenize(message string) []string {
	return strings.FieldsFunc(message, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
