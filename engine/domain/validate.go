package domain

import (
	"encoding/json"
	"sort"
)

// requiredKeys is the exact key set of a decision record. Extra or missing
// keys are a hard failure: downstream systems key off this fixed shape.
var requiredKeys = []string{"intent", "urgency", "action", "confidence"}

// ValidateCandidate checks an arbitrary decoded object against the decision
// schema contract. Checks run in a fixed order and the first failure is
// returned; nothing is coerced into the caller's map.
func ValidateCandidate(candidate map[string]any) error {
	if candidate == nil {
		return NewSchemaError("", "candidate is not a mapping")
	}

	if err := checkKeySet(candidate); err != nil {
		return err
	}

	intent, ok := candidate["intent"].(string)
	if !ok || intent == "" {
		return NewSchemaError("intent", "must be a non-empty string")
	}

	urgency, ok := candidate["urgency"].(string)
	if !ok || !ValidUrgencies[Urgency(urgency)] {
		return NewSchemaError("urgency", "must be one of low, med, high (got %v)", candidate["urgency"])
	}

	action, ok := candidate["action"].(string)
	if !ok || !ValidActions[Action(action)] {
		return NewSchemaError("action", "must be one of rag_query, escalate (got %v)", candidate["action"])
	}

	conf, ok := asFloat(candidate["confidence"])
	if !ok {
		return NewSchemaError("confidence", "must be a number (got %T)", candidate["confidence"])
	}
	if conf < 0.0 || conf > 1.0 {
		return NewSchemaError("confidence", "must be in [0.0, 1.0] (got %g)", conf)
	}

	return nil
}

func checkKeySet(candidate map[string]any) error {
	if len(candidate) != len(requiredKeys) {
		return NewSchemaError("", "must have exactly keys %v, got %v", requiredKeys, sortedKeys(candidate))
	}
	for _, k := range requiredKeys {
		if _, ok := candidate[k]; !ok {
			return NewSchemaError(k, "missing required key")
		}
	}
	return nil
}

// ValidateDecision checks a typed Decision against the same contract. The
// struct enforces the key set by construction, so only value checks remain.
func ValidateDecision(d Decision) error {
	if d.Intent == "" {
		return NewSchemaError("intent", "must be a non-empty string")
	}
	if !ValidUrgencies[d.Urgency] {
		return NewSchemaError("urgency", "must be one of low, med, high (got %q)", d.Urgency)
	}
	if !ValidActions[d.Action] {
		return NewSchemaError("action", "must be one of rag_query, escalate (got %q)", d.Action)
	}
	if d.Confidence < 0.0 || d.Confidence > 1.0 {
		return NewSchemaError("confidence", "must be in [0.0, 1.0] (got %g)", d.Confidence)
	}
	return nil
}

// DecisionFromCandidate converts a validated candidate map into a Decision.
// Call ValidateCandidate first; this does no checking of its own.
func DecisionFromCandidate(candidate map[string]any) Decision {
	conf, _ := asFloat(candidate["confidence"])
	return Decision{
		Intent:     candidate["intent"].(string),
		Urgency:    Urgency(candidate["urgency"].(string)),
		Action:     Action(candidate["action"].(string)),
		Confidence: conf,
	}
}

// asFloat coerces JSON-decoded numerics. encoding/json yields float64 for
// plain decoding and json.Number when configured; accept both plus ints.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
