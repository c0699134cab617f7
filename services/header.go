package services

import (
	"regexp"
	"strings"
)

var (
	allCaps     = regexp.MustCompile(`^[^a-z]+$`)
	furniture   = regexp.MustCompile(`(?i)^(received|accepted|published|preprint|submitted|copyright|correspond|e-?mail|citation:|vol\.|volume\s+\d+|issue\s+\d+|page\s+\d+|www\.|https?://|doi)`)
	affiliation = regexp.MustCompile(`(?i)(university|department|institute|faculty|laborator|centre|center|museum)`)

	// Journal banner lines look like "Biological Conservation 235 (2019) 102-110".
	bannerYear = regexp.MustCompile(`\(\d{4}\)`)
)

const headerScanLimit = 4000

// ParseHeader extracts document-level fields from the opening text of a
// paper, for when structured extraction is unavailable or rejected. It
// looks for the first plausible title line, an author line near it, and
// scans the text for identifiers.
func (p *ReferenceParser) ParseHeader(text string) Fields {
	head := text
	if len(head) > headerScanLimit {
		head = head[:headerScanLimit]
	}

	var f Fields
	f.DOI = ExtractDOI(head)
	f.Year = ExtractYear(head)
	f.ISBNISSN = ExtractISBNISSN(head)

	lines := strings.Split(head, "\n")
	titleIdx := -1
	for i, raw := range lines {
		line := NormalizeSpacing(NormalizeText(raw))
		if len(line) < 20 || len(line) > 300 {
			continue
		}
		if furniture.MatchString(line) || allCaps.MatchString(line) || affiliation.MatchString(line) || bannerYear.MatchString(line) {
			continue
		}
		f.Title = line
		titleIdx = i
		break
	}

	if titleIdx >= 0 {
		for _, raw := range lines[titleIdx+1:] {
			line := NormalizeSpacing(NormalizeText(raw))
			if line == "" {
				continue
			}
			if affiliation.MatchString(line) || furniture.MatchString(line) {
				break
			}
			if authorValid.MatchString(line) {
				f.Authors = strings.TrimRight(line, ", *†‡")
				break
			}
		}
	}
	return f
}
