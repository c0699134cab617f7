// Package patterns holds the ordered field-extraction rules used by the
// heuristic reference parser, plus the skip/section patterns used when
// carving a references section out of raw PDF text. All patterns are
// compiled once at init and never mutated.
package patterns

import (
	"regexp"
	"sort"
	"strings"
)

// Fields a pattern can populate.
const (
	FieldAuthors  = "authors"
	FieldYear     = "year"
	FieldTitle    = "title"
	FieldJournal  = "journal"
	FieldPages    = "pages"
	FieldVolume   = "volume"
	FieldDOI      = "doi"
	FieldISBNISSN = "isbn_issn"
	FieldLink     = "link"
)

// Pattern is one ordered extraction rule: a matcher, the field it
// populates, and its rank. Lower priority wins; the first matching rule
// per field is used and later rules for that field are not consulted.
type Pattern struct {
	Field    string
	Priority int
	Re       *regexp.Regexp
}

// Library is the full ordered rule set. Rules for different fields are
// independent of each other.
var Library = []Pattern{
	// DOI: URLs are the most reliable and complete form, then labelled
	// DOIs, then bare identifiers.
	{FieldDOI, 1, regexp.MustCompile(`(?i)https?://(?:dx\.)?doi\.org/(10\.\d{4,}/[^\s\)]+)`)},
	{FieldDOI, 2, regexp.MustCompile(`(?i)doi\.org/(10\.\d{4,}/[^\s\)]+)`)},
	{FieldDOI, 3, regexp.MustCompile(`(?i)doi[:\s]+(10\.\d{4,}/[^\s\)]+)`)},
	{FieldDOI, 4, regexp.MustCompile(`(10\.\d{4,}/[a-zA-Z0-9\.\-]+)`)},

	// Year: parenthesised years are the most trustworthy, then years
	// followed by sentence punctuation, then any plausible 4-digit year.
	{FieldYear, 1, regexp.MustCompile(`\((\d{4})\)`)},
	{FieldYear, 2, regexp.MustCompile(`\b(19\d{2}|20\d{2})[\.,;]`)},
	{FieldYear, 3, regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)},

	// Authors: "Surname, I." lists terminated by the year. The initial's
	// dot is required so the next surname's capital is never consumed as
	// another initial.
	{FieldAuthors, 1, regexp.MustCompile(`^((?:[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?(?:,\s*[A-Z]\.)+,?\s*)+)`)},

	// Title: quoted titles win outright; the positional year-delimited
	// form is handled by the parser itself.
	{FieldTitle, 1, regexp.MustCompile(`["“](.+?)["”]`)},

	// Journal followed by a volume number: "Biol. Conserv. 45" or
	// "Marine Ecology, 123".
	{FieldJournal, 1, regexp.MustCompile(`\.\s+([A-ZÁÉÍÓÚÑ][A-Za-záéíóúñ\s&,\.]+?)(?:,\s*\d+|\s+\d+)`)},

	// Pages.
	{FieldPages, 1, regexp.MustCompile(`pp?\.\s*(\d+[-\x{2013}\x{2014}]\d+)`)},
	{FieldPages, 2, regexp.MustCompile(`(\d+[-\x{2013}\x{2014}]\d+)`)},
	{FieldPages, 3, regexp.MustCompile(`pp?\.\s*(\d+)`)},

	// Volume / edition.
	{FieldVolume, 1, regexp.MustCompile(`[Vv]ol(?:ume)?\.?\s*(\d+)`)},
	{FieldVolume, 2, regexp.MustCompile(`\bv\.\s*(\d+)`)},
	{FieldVolume, 3, regexp.MustCompile(`(\d+)\((\d+)\)`)},

	// ISBN / ISSN.
	{FieldISBNISSN, 1, regexp.MustCompile(`(?i)ISBN[-\s]?(?:13[-\s]?:?)?[-\s]?(\d{13}|\d{10})`)},
	{FieldISBNISSN, 2, regexp.MustCompile(`(?i)ISSN[-\s]?(\d{4}[-\s]?\d{3}[\dX])`)},

	// Link.
	{FieldLink, 1, regexp.MustCompile(`https?://[^\s\)]+`)},
}

var byField map[string][]Pattern

func init() {
	byField = make(map[string][]Pattern)
	for _, p := range Library {
		byField[p.Field] = append(byField[p.Field], p)
	}
	for field := range byField {
		rules := byField[field]
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority < rules[j].Priority })
		byField[field] = rules
	}
}

// ForField returns the rules for one field in priority order.
func ForField(field string) []Pattern {
	return byField[field]
}

// --- references section carving -------------------------------------------

// RefSectionStart matches headings that open a reference list.
var RefSectionStart = regexp.MustCompile(`(?i)^\s*(?:\d+\.?\s*|#{1,2}\s*)?(REFERENCES|REFERENCIAS|BIBLIOGRAPHY|BIBLIOGRAFÍA|LITERATURE\s+CITED|WORKS\s+CITED)\s*$`)

// BookChapter marks a book-chapter reference ("In: Editors (Eds.), Book").
var BookChapter = regexp.MustCompile(`(?i)\bIn:\s*`)

// Editors matches the editor marker inside a book-chapter reference.
var Editors = regexp.MustCompile(`(?i)\(Eds?\.\)`)

// NewReference matches line starts that open a fresh reference entry.
var NewReference = []*regexp.Regexp{
	regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?,\s*[A-Z]`), // Surname, I.
	regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?[\s,]*\(?\d{4}`), // Surname (2004)
	regexp.MustCompile(`^\d+\.\s+[A-Z]`),      // 1. Author
	regexp.MustCompile(`^\[\d+\]\s+[A-Z]`),    // [1] Author
}

// headerSkip matches running headers, footers and page furniture that must
// never survive into a reference string.
var headerSkip = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^Frontiers\b`),
	regexp.MustCompile(`(?i)^Volume\s+\d+`),
	regexp.MustCompile(`(?i)^Article\s+\d+`),
	regexp.MustCompile(`(?i)^doi:`),
	regexp.MustCompile(`(?i)^https?://`),
	regexp.MustCompile(`(?i)^www\.`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`(?i)^Page\s+\d+$`),
}

// endSection matches headings of the back-matter sections that follow a
// reference list; the carve stops there.
var endSection = regexp.MustCompile(`(?i)^(FUNDING|ACKNOWLEDGE?MENTS?|DATA\s+AVAILABILITY|SUPPLEMENTARY(\s+MATERIAL|\s+FIGURE)?|AUTHOR\s+CONTRIBUTIONS|CONFLICT\s+OF\s+INTEREST)\b`)

// invalidPhrases flag boilerplate that is never part of a reference.
var invalidPhrases = []string{
	"THIS RESEARCH WAS SPONSORED",
	"WE APPRECIATE",
	"THE ORIGINAL CONTRIBUTIONS",
	"FURTHER INQUIRIES",
	"SUPPLEMENTARY MATERIAL",
	"AUTHOR CONTRIBUTIONS",
	"ENDORSED BY THE PUBLISHER",
	"NO USE, DISTRIBUTION OR REPRODUCTION",
}

// IsHeaderLine reports whether a line is page furniture.
func IsHeaderLine(line string) bool {
	for _, re := range headerSkip {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// IsEndSection reports whether a line opens a back-matter section that
// terminates the reference list.
func IsEndSection(line string) bool {
	return endSection.MatchString(strings.TrimSpace(line))
}

// ContainsInvalidPhrase reports whether text carries funding or publisher
// boilerplate.
func ContainsInvalidPhrase(text string) bool {
	upper := strings.ToUpper(text)
	for _, phrase := range invalidPhrases {
		if strings.Contains(upper, phrase) {
			return true
		}
	}
	return false
}

// IsNewReference reports whether a line plausibly starts a new entry.
func IsNewReference(line string) bool {
	for _, re := range NewReference {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
