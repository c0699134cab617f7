package services

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ref-mill/models"
	"ref-mill/patterns"
)

// ReferenceParser extracts bibliographic fields from a single free-text
// citation using the ordered pattern library. Fields are independent: a rule
// winning for one field never blocks the rules of another, and a field that
// matches nothing is simply left empty.
type ReferenceParser struct {
	logger *zap.Logger
}

// NewReferenceParser creates a parser.
func NewReferenceParser(logger *zap.Logger) *ReferenceParser {
	return &ReferenceParser{logger: logger}
}

var (
	doiTrim        = ".,;:)"
	doiComplete    = regexp.MustCompile(`^10\.\d{4,}/.+`)
	yearAnywhere   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	authorLeading  = regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+,\s*[A-Z]`)
	authorValid    = regexp.MustCompile(`[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+,\s*[A-Z]`)
	dotSpace       = regexp.MustCompile(`\.\s+`)
	journalTrail   = regexp.MustCompile(`\b(management|strategy|evaluation|applied|the|conservation|of|an|endangered|population)\b`)
	bookTitleEnd   = []*regexp.Regexp{
		regexp.MustCompile(`\s+pp\.`),
		regexp.MustCompile(`(?i)\s+Available\s+from:`),
		regexp.MustCompile(`\.\s+\d{4}`),
	}
	titleEnd = []*regexp.Regexp{
		regexp.MustCompile(`\.\s+[A-Z][a-z]*\.\s+[A-Z]`), // journal abbreviation: ". Biol. Conserv"
		regexp.MustCompile(`\.\s+[A-Z][a-z]+\s+\d+`),     // journal name + volume
		regexp.MustCompile(`\.\s+In:`),
		regexp.MustCompile(`\.\s+pp\.`),
		regexp.MustCompile(`(?i)\.\s+Available`),
	}
)

// IsCompleteDOI reports whether doi carries both a registrant prefix and a
// plausible, non-truncated suffix. "10.1371/journal" fails: the suffix stops
// at a subdirectory boundary.
func IsCompleteDOI(doi string) bool {
	if !doiComplete.MatchString(doi) {
		return false
	}
	parts := strings.SplitN(doi, "/", 2)
	if len(parts) != 2 {
		return false
	}
	suffix := parts[1]
	if len(suffix) < 5 {
		return false
	}
	// A suffix like "journal" that is one short bare word is almost always a
	// truncation of "journal.pone.NNNNNNN". Require either inner structure
	// or enough length to stand on its own.
	if !strings.ContainsAny(suffix, ".-_") && len(suffix) < 8 {
		return false
	}
	return true
}

// ExtractDOI finds the most complete DOI in text. URL and labelled forms are
// trusted first; bare identifiers are collected and the longest complete one
// wins, so a match is never cut short at a registrant boundary.
func ExtractDOI(text string) string {
	for _, rule := range patterns.ForField(patterns.FieldDOI) {
		matches := rule.Re.FindAllStringSubmatch(text, -1)
		if matches == nil {
			continue
		}
		best := ""
		for _, m := range matches {
			doi := strings.TrimRight(m[len(m)-1], doiTrim)
			if !IsCompleteDOI(doi) {
				continue
			}
			if len(doi) > len(best) {
				best = doi
			}
		}
		if best != "" {
			return best
		}
		// Matches existed but all were incomplete: keep scanning with the
		// lower-priority rules, which look further into the text.
	}
	return ""
}

// ExtractYear finds the publication year, preferring the most reliable
// pattern forms and validating the plausible range.
func ExtractYear(text string) int {
	for _, rule := range patterns.ForField(patterns.FieldYear) {
		matches := rule.Re.FindAllStringSubmatch(text, -1)
		if matches == nil {
			continue
		}
		// The publication year is usually the last plausible match.
		for i := len(matches) - 1; i >= 0; i-- {
			y, err := strconv.Atoi(matches[i][1])
			if err == nil && y >= 1900 && y <= 2100 {
				return y
			}
		}
	}
	return 0
}

// ExtractISBNISSN finds an ISBN or ISSN, normalized to bare digits.
func ExtractISBNISSN(text string) string {
	for _, rule := range patterns.ForField(patterns.FieldISBNISSN) {
		if m := rule.Re.FindStringSubmatch(text); m != nil {
			v := strings.NewReplacer(" ", "", "-", "").Replace(m[1])
			return v
		}
	}
	return ""
}

// Parse extracts every field it can from one reference string. It never
// fails; unmatched fields are left empty.
func (p *ReferenceParser) Parse(reference string) Fields {
	text := NormalizeSpacing(NormalizeText(JoinWrappedLines(reference)))
	var f Fields

	f.DOI = ExtractDOI(text)
	f.Year = ExtractYear(text)
	f.ISBNISSN = ExtractISBNISSN(text)
	f.Authors = p.extractAuthors(text)
	f.Title = p.extractTitle(text)

	if patterns.BookChapter.MatchString(text) {
		f.DocType = models.DocTypeBookChapter
		if book := p.extractBookTitle(text); book != "" {
			f.Journal = book
		}
	} else if journal := p.extractJournal(text, f.Title); journal != "" {
		f.Journal = journal
		f.DocType = models.DocTypeJournalArticle
	}

	for _, rule := range patterns.ForField(patterns.FieldPages) {
		if m := rule.Re.FindStringSubmatch(text); m != nil {
			f.Pages = m[1]
			break
		}
	}
	for _, rule := range patterns.ForField(patterns.FieldVolume) {
		if m := rule.Re.FindStringSubmatch(text); m != nil {
			if len(m) > 2 && m[2] != "" {
				f.Volume = m[1] + "(" + m[2] + ")"
			} else {
				f.Volume = m[1]
			}
			break
		}
	}
	for _, rule := range patterns.ForField(patterns.FieldLink) {
		if m := rule.Re.FindString(text); m != "" {
			f.Link = strings.TrimRight(m, ".,;")
			break
		}
	}

	if p.logger != nil {
		p.logger.Debug("reference parsed",
			zap.String("doi", f.DOI),
			zap.Int("year", f.Year),
			zap.Bool("has_title", f.Title != ""))
	}
	return f
}

// extractAuthors pulls the "Surname, I., Surname, I." run preceding the year.
func (p *ReferenceParser) extractAuthors(text string) string {
	yearLoc := yearAnywhere.FindStringIndex(text)
	if yearLoc == nil {
		return ""
	}
	head := strings.TrimSpace(text[:yearLoc[0]])

	for _, rule := range patterns.ForField(patterns.FieldAuthors) {
		if m := rule.Re.FindStringSubmatch(head); m != nil {
			authors := strings.TrimRight(m[1], ", (")
			if authorValid.MatchString(authors) {
				return NormalizeText(authors)
			}
		}
	}
	// Looser fallback: anything before the year that still looks like an
	// author list.
	if strings.Contains(head, ",") && len(head) > 5 && authorValid.MatchString(head) {
		return NormalizeText(strings.TrimRight(head, ", ("))
	}
	return ""
}

// extractTitle finds the title, which in the standard layout follows the
// year: "Authors, Year. Title. Journal Vol, pages."
func (p *ReferenceParser) extractTitle(text string) string {
	for _, rule := range patterns.ForField(patterns.FieldTitle) {
		if m := rule.Re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	yearLoc := yearAnywhere.FindStringIndex(text)
	if yearLoc == nil {
		return ""
	}
	after := text[yearLoc[1]:]

	if in := patterns.BookChapter.FindStringIndex(after); in != nil {
		// Chapter title sits between the year and "In:".
		candidate := strings.Trim(strings.TrimSpace(after[:in[0]]), ".,;: ")
		if len(candidate) > 10 && !authorLeading.MatchString(candidate) {
			return candidate
		}
		return ""
	}

	dot := dotSpace.FindStringIndex(after)
	if dot == nil {
		return ""
	}
	titleText := strings.TrimSpace(after[dot[1]:])

	end := len(titleText)
	for _, re := range titleEnd {
		if loc := re.FindStringIndex(titleText); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	candidate := titleText[:end]
	if end == len(titleText) {
		// No journal marker: fall back to the first sentence.
		if loc := dotSpace.FindStringIndex(titleText); loc != nil {
			candidate = titleText[:loc[0]]
		}
	}
	candidate = strings.Trim(strings.TrimSpace(candidate), ".,;: ")
	if len(candidate) > 10 && !authorLeading.MatchString(candidate) {
		return candidate
	}
	return ""
}

// extractJournal finds the venue, which follows the title and precedes the
// volume number.
func (p *ReferenceParser) extractJournal(text, title string) string {
	search := text
	if title != "" {
		if pos := strings.Index(text, title); pos != -1 {
			search = text[pos+len(title):]
		}
	}
	for _, rule := range patterns.ForField(patterns.FieldJournal) {
		if m := rule.Re.FindStringSubmatch(search); m != nil {
			journal := strings.TrimRight(strings.TrimSpace(m[1]), ".")
			if len(journal) > 2 && len(journal) < 100 && !journalTrail.MatchString(strings.ToLower(journal)) {
				return journal
			}
		}
	}
	return ""
}

// extractBookTitle finds the containing book of a chapter reference: the
// text after "(Eds.)," up to the page numbers.
func (p *ReferenceParser) extractBookTitle(text string) string {
	in := patterns.BookChapter.FindStringIndex(text)
	if in == nil {
		return ""
	}
	afterIn := text[in[1]:]
	eds := patterns.Editors.FindStringIndex(afterIn)
	if eds == nil {
		return ""
	}
	book := strings.TrimLeft(afterIn[eds[1]:], ", ")
	end := len(book)
	for _, re := range bookTitleEnd {
		if loc := re.FindStringIndex(book); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	// Publisher and place follow the first sentence break.
	if loc := dotSpace.FindStringIndex(book); loc != nil && loc[0] < end {
		end = loc[0]
	}
	book = strings.Trim(strings.TrimSpace(book[:end]), ".")
	if len(book) > 10 {
		return book
	}
	return ""
}
