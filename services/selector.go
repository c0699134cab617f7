package services

import (
	"go.uber.org/zap"

	"ref-mill/config"
)

// Selector scores extraction candidates and picks the strategy whose output
// survives the quality gate. Weights and threshold come from configuration
// so the gate can be tuned without a rebuild.
type Selector struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewSelector creates a selector.
func NewSelector(cfg *config.Config, logger *zap.Logger) *Selector {
	return &Selector{Config: cfg, Logger: logger}
}

// ScoreHeader rates a header-extraction result between 0 and 1. Each field
// contributes its configured weight when present and plausible; a title
// shorter than the minimum is treated as absent.
func (s *Selector) ScoreHeader(f Fields) float64 {
	score := 0.0
	if len(f.Title) >= s.Config.QualityMinTitleLen {
		score += s.Config.QualityWeightTitle
	}
	if f.Authors != "" {
		score += s.Config.QualityWeightAuthors
	}
	if f.Year >= 1900 && f.Year <= 2100 {
		score += s.Config.QualityWeightYear
	}
	if IsCompleteDOI(f.DOI) {
		score += s.Config.QualityWeightDOI
	}
	return score
}

// ScoreReferences rates a reference-list extraction as the fraction of
// entries carrying both a title and a year. An empty list scores zero.
func (s *Selector) ScoreReferences(refs []Fields) float64 {
	if len(refs) == 0 {
		return 0
	}
	usable := 0
	for _, r := range refs {
		if r.Title != "" && r.Year != 0 {
			usable++
		}
	}
	return float64(usable) / float64(len(refs))
}

// Score rates a candidate according to its shape: reference lists by entry
// usability, everything else by header fields.
func (s *Selector) Score(c *ExtractionCandidate) float64 {
	if len(c.References) > 0 {
		return s.ScoreReferences(c.References)
	}
	return s.ScoreHeader(c.Fields)
}

// Select picks between the structured candidate and the heuristic fallback.
// A structured result at or above the threshold wins outright and the
// fallback is never consulted; a score exactly at the threshold passes.
// Below the threshold the heuristic result is used whenever it ran. The
// returned flag is true when the stored record should be marked
// low-confidence, which covers both the heuristic path and a failed gate
// with no fallback available.
//
// Either argument may be nil when that strategy did not run.
func (s *Selector) Select(structured, heuristic *ExtractionCandidate) (*ExtractionCandidate, bool) {
	if structured != nil {
		structured.Score = s.Score(structured)
		if structured.Score >= s.Config.QualityThreshold {
			s.logChoice(structured, heuristic)
			return structured, false
		}
		if heuristic == nil {
			s.logChoice(structured, nil)
			return structured, true
		}
	}
	if heuristic == nil {
		return nil, false
	}
	heuristic.Score = s.Score(heuristic)
	s.logChoice(heuristic, structured)
	return heuristic, true
}

func (s *Selector) logChoice(chosen, other *ExtractionCandidate) {
	if s.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("strategy", string(chosen.Strategy)),
		zap.Float64("score", chosen.Score),
	}
	if other != nil {
		fields = append(fields, zap.Float64("rejected_score", other.Score))
	}
	s.Logger.Debug("extraction strategy selected", fields...)
}
