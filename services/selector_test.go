package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ref-mill/config"
)

func testConfig() *config.Config {
	return &config.Config{
		QualityWeightTitle:   0.3,
		QualityWeightAuthors: 0.2,
		QualityWeightYear:    0.2,
		QualityWeightDOI:     0.3,
		QualityThreshold:     0.7,
		QualityMinTitleLen:   10,
	}
}

func fullHeader() Fields {
	return Fields{
		Title:   "Population trends of island seabirds",
		Authors: "Muñoz, A., García, B.",
		Year:    2019,
		DOI:     "10.1016/j.biocon.2019.03.014",
	}
}

func TestScoreHeader(t *testing.T) {
	s := NewSelector(testConfig(), zap.NewNop())

	assert.InDelta(t, 1.0, s.ScoreHeader(fullHeader()), 1e-9)
	assert.InDelta(t, 0.0, s.ScoreHeader(Fields{}), 1e-9)

	f := fullHeader()
	f.DOI = ""
	assert.InDelta(t, 0.7, s.ScoreHeader(f), 1e-9)

	// A too-short title counts as absent.
	f = fullHeader()
	f.Title = "Short"
	assert.InDelta(t, 0.7, s.ScoreHeader(f), 1e-9)

	// A truncated DOI counts as absent.
	f = fullHeader()
	f.DOI = "10.1371/journal"
	assert.InDelta(t, 0.7, s.ScoreHeader(f), 1e-9)

	// An implausible year counts as absent.
	f = fullHeader()
	f.Year = 1342
	assert.InDelta(t, 0.8, s.ScoreHeader(f), 1e-9)
}

func TestScoreReferences(t *testing.T) {
	s := NewSelector(testConfig(), zap.NewNop())

	assert.InDelta(t, 0.0, s.ScoreReferences(nil), 1e-9)

	refs := []Fields{
		{Title: "A usable entry title", Year: 2019},
		{Title: "Another usable entry", Year: 2020},
		{Year: 2001}, // no title
		{Title: "No year on this one"},
	}
	assert.InDelta(t, 0.5, s.ScoreReferences(refs), 1e-9)
}

func TestSelectStructuredAboveThresholdWinsOutright(t *testing.T) {
	s := NewSelector(testConfig(), zap.NewNop())

	structured := &ExtractionCandidate{Strategy: StrategyStructured, Fields: fullHeader()}
	heuristic := &ExtractionCandidate{Strategy: StrategyHeuristic, Fields: fullHeader()}

	chosen, low := s.Select(structured, heuristic)
	require.Same(t, structured, chosen)
	assert.False(t, low)
	// The fallback is never scored when the gate passes.
	assert.Zero(t, heuristic.Score)
}

func TestSelectFallsBackToHeuristic(t *testing.T) {
	s := NewSelector(testConfig(), zap.NewNop())

	structured := &ExtractionCandidate{
		Strategy: StrategyStructured,
		Fields:   Fields{Year: 2019}, // 0.2, below the gate
	}
	heuristic := &ExtractionCandidate{Strategy: StrategyHeuristic, Fields: fullHeader()}

	chosen, low := s.Select(structured, heuristic)
	require.Same(t, heuristic, chosen)
	assert.True(t, low)
}

func TestSelectBelowThresholdAlwaysFallsBack(t *testing.T) {
	s := NewSelector(testConfig(), zap.NewNop())

	// Even when the fallback scores no better, a structured result that
	// failed the gate is not used.
	structured := &ExtractionCandidate{Strategy: StrategyStructured, Fields: Fields{Year: 2019}}
	heuristic := &ExtractionCandidate{Strategy: StrategyHeuristic, Fields: Fields{Year: 2020}}

	chosen, low := s.Select(structured, heuristic)
	require.Same(t, heuristic, chosen)
	assert.True(t, low)
}

func TestSelectNilSides(t *testing.T) {
	s := NewSelector(testConfig(), zap.NewNop())

	heuristic := &ExtractionCandidate{Strategy: StrategyHeuristic, Fields: Fields{Year: 2019}}
	chosen, low := s.Select(nil, heuristic)
	require.Same(t, heuristic, chosen)
	assert.True(t, low)

	// A failed gate with no fallback keeps the structured result but
	// flags it.
	structured := &ExtractionCandidate{Strategy: StrategyStructured, Fields: Fields{Year: 2019}}
	chosen, low = s.Select(structured, nil)
	require.Same(t, structured, chosen)
	assert.True(t, low)

	chosen, low = s.Select(nil, nil)
	assert.Nil(t, chosen)
	assert.False(t, low)
}

func TestSelectReferenceListScoring(t *testing.T) {
	s := NewSelector(testConfig(), zap.NewNop())

	structured := &ExtractionCandidate{
		Strategy: StrategyStructured,
		References: []Fields{
			{Title: "Only one usable out of three", Year: 2019},
			{Year: 2020},
			{Year: 2021},
		},
	}
	heuristic := &ExtractionCandidate{
		Strategy: StrategyHeuristic,
		References: []Fields{
			{Title: "First usable entry title", Year: 2019},
			{Title: "Second usable entry title", Year: 2020},
		},
	}

	chosen, low := s.Select(structured, heuristic)
	require.Same(t, heuristic, chosen)
	assert.True(t, low)
	assert.InDelta(t, 1.0, chosen.Score, 1e-9)
}
