package classification

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const (
	MaxParties     = 5
	maxAttorneys   = 10
	maxDates       = 20
	maxKeywords    = 15
	maxPatternHits = 25
	dateContextLen = 80
)

var (
	caseNumberPattern = regexp.MustCompile(`(?i)\b(?:case|civil\s+action|docket|bankr\.?|adv(?:ersary)?\.?(?:\s+proc\.?)?)\s*(?:no\.?|number|#)\s*:?\s*(\d{1,2}:\d{2}-[a-z]{2,4}-\d{3,6}(?:-[a-z]{2,4})?|\d{2,4}-[a-z]{1,4}-\d{2,6}(?:-[a-z]{2,4})?|\d{2,4}-\d{3,6})`)

	courtPattern = regexp.MustCompile(`(?i)\b((?:united\s+states\s+)?(?:district|bankruptcy|superior|circuit|supreme|family|probate|county|municipal|appellate|tax)\s+court(?:\s+(?:of|for)\s+the\s+(?:northern|southern|eastern|western|middle|central)\s+district\s+of\s+[a-z]+(?:[ \t]+[a-z]+)?|\s+(?:of|for)\s+(?:the\s+)?(?:state\s+of\s+)?[a-z]+(?:[ \t]+county)?)?)`)

	attorneyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/s/\s*([A-Z][a-zA-Z'-]+(?:\s+[A-Z]\.)?\s+[A-Z][a-zA-Z'-]+)`),
		regexp.MustCompile(`\b([A-Z][a-zA-Z'-]+(?:\s+[A-Z]\.)?\s+[A-Z][a-zA-Z'-]+),?\s+(?:Esq\.?|Esquire|Attorney\s+at\s+Law)`),
		regexp.MustCompile(`(?i:attorney|counsel)\s+for\s+[A-Za-z ]+?:\s*([A-Z][a-zA-Z'-]+(?:\s+[A-Z]\.)?\s+[A-Z][a-zA-Z'-]+)`),
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+\d{1,2},?\s+\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	}
	dateLayouts = []string{"January 2 2006", "Jan 2 2006", "1/2/2006", "2006-01-02"}

	partyRolePattern = regexp.MustCompile(`(?m)([A-Z][A-Za-z.&',\- ]{1,60}?),?\s+((?i:(?:plaintiff|defendant|petitioner|respondent|debtor|creditor|appellant|appellee)s?))\b`)
	partyVersus      = regexp.MustCompile(`(?m)^\s*([A-Z][A-Za-z.&' ]{1,60}?),?\s+v(?:s)?\.\s+([A-Z][A-Za-z.&' ]{1,60}?)\s*[,.]?\s*$`)
	partyInRe        = regexp.MustCompile(`(?i)\bin\s+re:?\s+([a-z][a-z.&' ]{1,60}?)\s*(?:,|\n|$)`)

	jurisdictionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bdistrict\s+of\s+([a-z]+(?:\s+[a-z]+)?)`),
		regexp.MustCompile(`(?i)\b(?:state|commonwealth)\s+of\s+([a-z]+(?:\s+[a-z]+)?)`),
		regexp.MustCompile(`(?i)\b([a-z]+(?:\s+[a-z]+)?)\s+(?:superior|supreme|circuit)\s+court\b`),
	}
	federalPattern = regexp.MustCompile(`(?i)\bunited\s+states\s+(?:district|bankruptcy|court\s+of\s+appeals)`)

	citationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d+\s+U\.\s?S\.\s?C\.?\s*§*\s*\d+[a-z0-9()]*`),
		regexp.MustCompile(`\b\d+\s+(?:U\.S\.|S\.\s?Ct\.|L\.\s?Ed\.(?:\s?2d)?|F\.\s?(?:2d|3d|4th)|F\.\s?Supp\.(?:\s?[23]d)?|B\.R\.)\s+\d+`),
		regexp.MustCompile(`Fed\.\s*R\.\s*(?:Civ|Bankr|Crim|App|Evid)\.\s*(?:P\.\s*)?\d+(?:\([a-z0-9]+\))*`),
		regexp.MustCompile(`§§?\s*\d+[0-9a-z.()-]*`),
	}

	spaceRun = regexp.MustCompile(`\s+`)
)

var usStates = map[string]string{}

func init() {
	for _, s := range []string{
		"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado", "Connecticut", "Delaware",
		"Florida", "Georgia", "Hawaii", "Idaho", "Illinois", "Indiana", "Iowa", "Kansas", "Kentucky",
		"Louisiana", "Maine", "Maryland", "Massachusetts", "Michigan", "Minnesota", "Mississippi",
		"Missouri", "Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey", "New Mexico",
		"New York", "North Carolina", "North Dakota", "Ohio", "Oklahoma", "Oregon", "Pennsylvania",
		"Rhode Island", "South Carolina", "South Dakota", "Tennessee", "Texas", "Utah", "Vermont",
		"Virginia", "Washington", "West Virginia", "Wisconsin", "Wyoming", "Columbia",
	} {
		usStates[strings.ToLower(s)] = s
	}
}

// ExtractMetadata runs every metadata extractor independently; one finding
// nothing never blocks the others.
func ExtractMetadata(text string, vocab Vocabulary) domain.DocumentMetadata {
	return domain.DocumentMetadata{
		CaseNumber:   CaseNumber(text),
		CourtName:    CourtName(text),
		Attorneys:    Attorneys(text),
		Dates:        Dates(text),
		Parties:      Parties(text),
		Jurisdiction: Jurisdiction(text),
		Keywords:     findTerms(text, vocab.Keywords, maxKeywords),
	}
}

func ExtractPatterns(text string, vocab Vocabulary) domain.PatternSets {
	var citations []string
	seen := map[string]bool{}
	for _, re := range citationPatterns {
		for _, m := range re.FindAllString(text, -1) {
			m = collapse(m)
			if seen[m] || len(citations) >= maxPatternHits {
				continue
			}
			seen[m] = true
			citations = append(citations, m)
		}
	}
	return domain.PatternSets{
		Citations:       nonNil(citations),
		LegalTerms:      findTerms(text, vocab.LegalTerms, maxPatternHits),
		ProceduralTerms: findTerms(text, vocab.ProceduralTerms, maxPatternHits),
	}
}

// CaseNumber returns the first case number, upper-cased with the label
// stripped ("Case No. 2023-cv-1234" gives "2023-CV-1234").
func CaseNumber(text string) string {
	m := caseNumberPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

func CourtName(text string) string {
	m := courtPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return titleCase(collapse(m[1]))
}

func Attorneys(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, re := range attorneyPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := collapse(m[1])
			key := strings.ToLower(name)
			if seen[key] || len(out) >= maxAttorneys {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return nonNil(out)
}

// Dates finds dates in document order and types each from the words just
// before it.
func Dates(text string) []domain.ExtractedDate {
	type hit struct {
		start, end int
	}
	var hits []hit
	for _, re := range datePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{loc[0], loc[1]})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	out := make([]domain.ExtractedDate, 0, len(hits))
	seen := map[string]bool{}
	for _, h := range hits {
		raw := text[h.start:h.end]
		if seen[raw] || len(out) >= maxDates {
			continue
		}
		seen[raw] = true
		d := domain.ExtractedDate{Text: raw, Kind: dateKind(text[max(0, h.start-dateContextLen):h.start])}
		if t, ok := parseDate(raw); ok {
			d.Date = &t
		}
		out = append(out, d)
	}
	return out
}

func dateKind(before string) domain.DateKind {
	before = strings.ToLower(before)
	// The closest keyword wins.
	best, kind := -1, domain.DateDocument
	for _, k := range []struct {
		word string
		kind domain.DateKind
	}{
		{"filed", domain.DateFiling},
		{"filing", domain.DateFiling},
		{"hearing", domain.DateHearing},
		{"heard", domain.DateHearing},
		{"deadline", domain.DateDeadline},
		{"due", domain.DateDeadline},
		{"no later than", domain.DateDeadline},
		{"on or before", domain.DateDeadline},
	} {
		if i := strings.LastIndex(before, k.word); i > best {
			best, kind = i, k.kind
		}
	}
	return kind
}

func parseDate(raw string) (time.Time, bool) {
	s := strings.ReplaceAll(raw, ",", " ")
	s = strings.ReplaceAll(s, ".", "")
	s = collapse(s)
	fields := strings.Fields(s)
	if len(fields) == 3 {
		month := strings.ToLower(fields[0])
		if strings.HasPrefix(month, "sept") {
			fields[0] = "Sep"
		} else if len(month) > 0 {
			fields[0] = strings.ToUpper(month[:1]) + month[1:]
		}
		s = strings.Join(fields, " ")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Parties applies the caption heuristics and stops at MaxParties names.
func Parties(text string) []domain.ExtractedParty {
	var out []domain.ExtractedParty
	seen := map[string]bool{}
	add := func(name, role string) {
		name = strings.Trim(collapse(name), " ,.")
		if name == "" || len(out) >= MaxParties {
			return
		}
		key := strings.ToLower(name)
		if seen[key] || isCaptionNoise(key) {
			return
		}
		seen[key] = true
		out = append(out, domain.ExtractedParty{Name: name, Role: role})
	}

	for _, m := range partyRolePattern.FindAllStringSubmatch(text, -1) {
		add(lastClause(m[1]), normalizeRole(m[2]))
	}
	for _, m := range partyVersus.FindAllStringSubmatch(text, -1) {
		add(m[1], "plaintiff")
		add(m[2], "defendant")
	}
	for _, m := range partyInRe.FindAllStringSubmatch(text, -1) {
		add(m[1], "debtor")
	}
	return nonNil(out)
}

// lastClause keeps the part of a caption line after the last comma, so
// "Respectfully submitted, JOHN DOE" becomes "JOHN DOE".
func lastClause(s string) string {
	if i := strings.LastIndex(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

func isCaptionNoise(name string) bool {
	switch name {
	case "the", "and", "the court", "court", "case", "motion", "order", "attorney", "counsel":
		return true
	}
	return len(name) < 2
}

func normalizeRole(raw string) string {
	return strings.TrimSuffix(strings.ToLower(raw), "s")
}

func Jurisdiction(text string) string {
	for _, re := range jurisdictionPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if state := matchState(m[1]); state != "" {
				return state
			}
		}
	}
	if federalPattern.MatchString(text) {
		return "Federal"
	}
	return ""
}

// matchState accepts two-word states first, then the first word alone.
func matchState(candidate string) string {
	words := strings.Fields(strings.ToLower(candidate))
	if len(words) >= 2 {
		if s, ok := usStates[words[0]+" "+words[1]]; ok {
			return s
		}
	}
	if len(words) >= 1 {
		return usStates[words[0]]
	}
	return ""
}

func findTerms(text string, terms []string, limit int) []string {
	lower := strings.ToLower(collapse(text))
	out := make([]string, 0)
	for _, term := range terms {
		if len(out) >= limit {
			break
		}
		if containsWord(lower, strings.ToLower(term)) {
			out = append(out, term)
		}
	}
	return out
}

// containsWord requires non-letter boundaries around term.
func containsWord(haystack, term string) bool {
	if term == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(haystack[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		if (start == 0 || !isLetter(haystack[start-1])) && (end == len(haystack) || !isLetter(haystack[end])) {
			return true
		}
		from = start + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		switch {
		case i > 0 && (w == "of" || w == "for" || w == "the"):
		default:
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
