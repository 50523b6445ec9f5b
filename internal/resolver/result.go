package resolver

import (
	"encoding/json"
	"math"

	"confetti-quiz/internal/domain"
)

// ParseResult reads a recorded result object. A result counts as finished when it says
// so explicitly or carries a numeric score. Anything that is not an object, or not
// finished, is reported as absent. A missing percentage is left negative so the
// consumer derives it from score and total.
func ParseResult(raw json.RawMessage) (domain.ExternalResult, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return domain.ExternalResult{}, false
	}

	score, hasScore := number(fields["score"])
	var finished bool
	if rawFinished, ok := fields["finished"]; ok {
		_ = json.Unmarshal(rawFinished, &finished)
	}
	if !finished && !hasScore {
		return domain.ExternalResult{}, false
	}

	result := domain.ExternalResult{Score: score, Percentage: -1, Finished: true}
	if total, ok := number(fields["total"]); ok && total > 0 {
		result.Total = total
	}
	if pct, ok := number(fields["percentage"]); ok {
		result.Percentage = pct
	}
	if result.Score < 0 {
		result.Score = 0
	}
	return result, true
}

func number(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Round(f)), true
}
