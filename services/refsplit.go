package services

import (
	"strings"

	"go.uber.org/zap"

	"ref-mill/patterns"
)

// minReferenceLen guards against page fragments being taken for entries.
const minReferenceLen = 50

// ReferenceSplitter carves the reference list out of raw page text and
// splits it into individual entries.
type ReferenceSplitter struct {
	logger *zap.Logger
}

// NewReferenceSplitter creates a splitter.
func NewReferenceSplitter(logger *zap.Logger) *ReferenceSplitter {
	return &ReferenceSplitter{logger: logger}
}

// Split returns the individual reference strings found in text. When no
// reference-section heading exists the whole text is scanned, so a file
// that is nothing but a reference list still works.
func (s *ReferenceSplitter) Split(text string) []string {
	section := s.carveSection(stripControl(text))
	lines := strings.Split(section, "\n")

	var refs []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		ref := NormalizeSpacing(NormalizeText(JoinWrappedLines(strings.Join(current, "\n"))))
		current = current[:0]
		if len(ref) < minReferenceLen {
			return
		}
		if ExtractYear(ref) == 0 {
			return
		}
		if patterns.ContainsInvalidPhrase(ref) {
			return
		}
		refs = append(refs, ref)
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if patterns.IsEndSection(line) {
			break
		}
		if patterns.IsHeaderLine(line) {
			continue
		}
		if patterns.RefSectionStart.MatchString(line) {
			continue
		}
		if patterns.IsNewReference(line) {
			flush()
		}
		current = append(current, raw)
	}
	flush()

	if s.logger != nil {
		s.logger.Debug("reference list split", zap.Int("references", len(refs)))
	}
	return refs
}

// carveSection returns the text from the last reference-section heading to
// the end. The last heading matters: "References" may also appear in a table
// of contents.
func (s *ReferenceSplitter) carveSection(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	for i, line := range lines {
		if patterns.RefSectionStart.MatchString(strings.TrimSpace(line)) {
			start = i
		}
	}
	if start == -1 {
		return text
	}
	return strings.Join(lines[start+1:], "\n")
}
