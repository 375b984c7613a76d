package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The model occasionally returns scores slightly outside the documented
// ranges. Out-of-range values are clamped rather than rejected so a single
// drifting score does not cost the user a paid analysis.

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalizeUrgency(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return "LOW"
	case "MEDIUM":
		return "MEDIUM"
	case "HIGH":
		return "HIGH"
	case "CRITICAL":
		return "CRITICAL"
	default:
		return "MEDIUM"
	}
}

func parseTextAnalysis(jsonText string) (*TextAnalysisResult, error) {
	var result TextAnalysisResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON received: %w", err)
	}

	result.ToxicityScore = clamp(result.ToxicityScore, 0, 10)
	result.SentimentScore = clamp(result.SentimentScore, -1, 1)
	result.ConfidenceScore = clamp(result.ConfidenceScore, 0, 1)
	result.UrgencyLevel = normalizeUrgency(result.UrgencyLevel)
	return &result, nil
}

func parseProfile(jsonText string) (*ProfileResult, error) {
	var result ProfileResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("invalid profile JSON received: %w", err)
	}

	result.ManipulationRisk = clamp(result.ManipulationRisk, 0, 10)
	result.OverallCompatibility = clamp(result.OverallCompatibility, 0, 1)
	result.ConfidenceScore = clamp(result.ConfidenceScore, 0, 1)
	result.UrgencyLevel = normalizeUrgency(result.UrgencyLevel)

	for _, score := range []*float64{
		&result.Narcissism, &result.Control, &result.Gaslighting, &result.Emotion,
		&result.Intimacy, &result.Social, &result.Machiavellianism, &result.Psychopathy,
	} {
		*score = clamp(*score, 0, 10)
	}
	return &result, nil
}

func parseCompatibility(jsonText string) (*CompatibilityResult, error) {
	var result CompatibilityResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("invalid compatibility JSON received: %w", err)
	}

	for _, score := range []*float64{
		&result.OverallScore, &result.CommunicationScore, &result.ValuesScore,
		&result.LifestyleScore, &result.EmotionalScore,
	} {
		*score = clamp(*score, 0, 1)
	}
	return &result, nil
}
