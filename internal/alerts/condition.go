package alerts

import (
	"strconv"
	"strings"

	"github.com/phantomscan/phantomscan/internal/model"
)

// evalCondition evaluates a rule condition string against a scored candidate.
//
// Supported expressions (field operator value):
//
//	score > 0.8
//	signal:script_risk > 0.9
//	signal:known_hallucination >= 1
//	risk_level == high
//	existence == not-found
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, sc model.ScoredCandidate) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch {
	case field == "risk_level":
		if op == "==" {
			return sc.RiskLevel == rhs, 0
		}
		return false, 0

	case field == "existence":
		if op == "==" {
			return string(sc.Existence.Reason) == rhs, 0
		}
		return false, 0

	case field == "score":
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(sc.Score, op, threshold), sc.Score

	case strings.HasPrefix(field, "signal:"):
		v := sc.Breakdown.Value(strings.TrimPrefix(field, "signal:"))
		threshold, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return false, 0
		}
		return compareFloat(v, op, threshold), v

	default:
		return false, 0
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
