// Package parse converts free-text model output into a validated
// (explanation, score) pair.
//
// The model has produced two incompatible output shapes over time: a JSON
// envelope with score/explanation fields (score on a 0-1 scale), and plain
// prose ending in a 1-10 grade, optionally carrying an embedded
// <GRADE>...</GRADE> marker. Validate tries an ordered list of total
// strategies and the first one that yields wins; it never fails, it only
// degrades to a neutral score.
package parse

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/finbrief/internal/domain/model"
)

// NoAnalysisText is returned for empty or whitespace-only input.
const NoAnalysisText = "No analysis provided"

// Strategy identifies which parsing strategy produced a result.
type Strategy string

// Strategies in priority order.
const (
	StrategyEmpty      Strategy = "empty"
	StrategyLegacyJSON Strategy = "legacy_json"
	StrategyTrailing   Strategy = "trailing_number"
	StrategyGradeTag   Strategy = "grade_tag"
	StrategyFallback   Strategy = "fallback"
)

// Result is a validated parse outcome. Score is always inside
// [model.MinScore, model.MaxScore].
type Result struct {
	Text     string
	Score    float64
	Strategy Strategy
}

var (
	trailingNumberRe = regexp.MustCompile(`(\d+\.?\d*)\s*$`)
	gradeTagRe       = regexp.MustCompile(`<GRADE>(\d+\.?\d*)</GRADE>`)
)

// Validate extracts the explanation text and score from raw model output.
// It is a pure function with no I/O and it always returns a usable pair:
// when no strategy yields a valid score the full trimmed text is kept and
// the score degrades to model.NeutralScore.
func Validate(content string) Result {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Result{Text: NoAnalysisText, Score: model.NeutralScore, Strategy: StrategyEmpty}
	}

	if r, ok := parseLegacyEnvelope(trimmed); ok {
		return r
	}
	if r, ok := parseTrailingNumber(trimmed); ok {
		return r
	}
	if r, ok := parseGradeTag(trimmed); ok {
		return r
	}

	return Result{Text: trimmed, Score: model.NeutralScore, Strategy: StrategyFallback}
}

// parseLegacyEnvelope handles the historical JSON format
// {"score": 0.2, "explanation": "..."}. Scores on the legacy 0-1 scale are
// rescaled linearly onto [1, 10]; a missing score field reads as 0. A score
// field that is present but not numeric disqualifies the envelope entirely
// so later strategies get a chance at the raw text.
func parseLegacyEnvelope(trimmed string) (Result, bool) {
	var envelope map[string]any
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil || envelope == nil {
		return Result{}, false
	}

	score := 0.0
	if raw, present := envelope["score"]; present {
		num, numeric := raw.(float64)
		if !numeric {
			return Result{}, false
		}
		score = num
	}
	if score >= 0 && score <= 1 {
		score = 1 + score*9
	}

	text := trimmed
	if explanation, ok := envelope["explanation"].(string); ok {
		text = explanation
	}
	return Result{Text: text, Score: clamp(score), Strategy: StrategyLegacyJSON}, true
}

// parseTrailingNumber handles prose that ends in a bare grade, e.g.
// "Stable outlook across metrics. 8.5". An embedded <GRADE> marker in the
// remaining text overrides the trailing numeral when its value is also in
// range. A trailing number outside [1, 10] is ignored, leaving the text
// untouched for the tag-only strategy.
func parseTrailingNumber(trimmed string) (Result, bool) {
	loc := trailingNumberRe.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return Result{}, false
	}
	score, err := strconv.ParseFloat(trimmed[loc[2]:loc[3]], 64)
	if err != nil || score < model.MinScore || score > model.MaxScore {
		return Result{}, false
	}

	text := strings.TrimSpace(trimmed[:loc[0]])
	if r, ok := parseGradeTag(text); ok {
		return r, true
	}
	return Result{Text: text, Score: clamp(score), Strategy: StrategyTrailing}, true
}

// parseGradeTag extracts a <GRADE>value</GRADE> marker from text and
// strips it. A tag with an out-of-range value disqualifies the strategy;
// the caller keeps whatever text it already had, tag included.
func parseGradeTag(text string) (Result, bool) {
	m := gradeTagRe.FindStringSubmatch(text)
	if m == nil {
		return Result{}, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil || score < model.MinScore || score > model.MaxScore {
		return Result{}, false
	}
	stripped := strings.TrimSpace(gradeTagRe.ReplaceAllString(text, ""))
	return Result{Text: stripped, Score: clamp(score), Strategy: StrategyGradeTag}, true
}

// clamp forces any non-finite or out-of-range score to the neutral value.
// The text a strategy recovered is never discarded on score failure.
func clamp(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return model.NeutralScore
	}
	if score < model.MinScore || score > model.MaxScore {
		return model.NeutralScore
	}
	return score
}
