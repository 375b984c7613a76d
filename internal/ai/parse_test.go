package ai

import (
	"testing"
)

func TestParseTextAnalysisClampsScores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		json          string
		wantToxicity  float64
		wantSentiment float64
		wantUrgency   string
	}{
		{
			name:          "in range passes through",
			json:          `{"toxicity_score":7.5,"sentiment_score":-0.8,"urgency_level":"HIGH","red_flags":[],"patterns_detected":[],"recommendation":"","confidence_score":0.9}`,
			wantToxicity:  7.5,
			wantSentiment: -0.8,
			wantUrgency:   "HIGH",
		},
		{
			name:          "out of range is clamped",
			json:          `{"toxicity_score":12,"sentiment_score":-2,"urgency_level":"CRITICAL","red_flags":[],"patterns_detected":[],"recommendation":"","confidence_score":1.5}`,
			wantToxicity:  10,
			wantSentiment: -1,
			wantUrgency:   "CRITICAL",
		},
		{
			name:          "unknown urgency falls back to medium",
			json:          `{"toxicity_score":5,"sentiment_score":0,"urgency_level":"EXTREME","red_flags":[],"patterns_detected":[],"recommendation":"","confidence_score":0.5}`,
			wantToxicity:  5,
			wantSentiment: 0,
			wantUrgency:   "MEDIUM",
		},
		{
			name:          "lowercase urgency is normalized",
			json:          `{"toxicity_score":3,"sentiment_score":0.2,"urgency_level":"low","red_flags":[],"patterns_detected":[],"recommendation":"","confidence_score":0.5}`,
			wantToxicity:  3,
			wantSentiment: 0.2,
			wantUrgency:   "LOW",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := parseTextAnalysis(tc.json)
			if err != nil {
				t.Fatalf("parseTextAnalysis() error = %v", err)
			}
			if result.ToxicityScore != tc.wantToxicity {
				t.Errorf("toxicity = %v, want %v", result.ToxicityScore, tc.wantToxicity)
			}
			if result.SentimentScore != tc.wantSentiment {
				t.Errorf("sentiment = %v, want %v", result.SentimentScore, tc.wantSentiment)
			}
			if result.UrgencyLevel != tc.wantUrgency {
				t.Errorf("urgency = %q, want %q", result.UrgencyLevel, tc.wantUrgency)
			}
		})
	}
}

func TestParseTextAnalysisRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	if _, err := parseTextAnalysis(`{"toxicity_score":`); err == nil {
		t.Error("expected error for truncated JSON")
	}
	if _, err := parseTextAnalysis(`not json at all`); err == nil {
		t.Error("expected error for non-JSON text")
	}
}

func TestParseProfileClampsBlockScores(t *testing.T) {
	t.Parallel()

	jsonText := `{
        "personality_type": "скрытый нарцисс",
        "manipulation_risk": 11,
        "urgency_level": "HIGH",
        "narcissism_score": 15,
        "control_score": -3,
        "gaslighting_score": 8,
        "emotion_score": 6,
        "intimacy_score": 4,
        "social_score": 7,
        "machiavellianism_score": 9,
        "psychopathy_score": 2,
        "overall_compatibility": 1.4,
        "red_flags": ["обесценивание"],
        "positive_traits": [],
        "warning_signs": [],
        "relationship_advice": "",
        "communication_tips": "",
        "confidence_score": 0.8
    }`

	result, err := parseProfile(jsonText)
	if err != nil {
		t.Fatalf("parseProfile() error = %v", err)
	}
	if result.ManipulationRisk != 10 {
		t.Errorf("manipulation_risk = %v, want 10", result.ManipulationRisk)
	}
	if result.Narcissism != 10 {
		t.Errorf("narcissism = %v, want 10", result.Narcissism)
	}
	if result.Control != 0 {
		t.Errorf("control = %v, want 0", result.Control)
	}
	if result.Gaslighting != 8 {
		t.Errorf("gaslighting = %v, want 8", result.Gaslighting)
	}
	if result.OverallCompatibility != 1 {
		t.Errorf("overall_compatibility = %v, want 1", result.OverallCompatibility)
	}
}

func TestParseCompatibility(t *testing.T) {
	t.Parallel()

	jsonText := `{
        "overall_score": 0.72,
        "communication_score": 0.8,
        "values_score": 1.3,
        "lifestyle_score": 0.6,
        "emotional_score": -0.1,
        "strengths": ["общие ценности"],
        "challenges": ["разный ритм жизни"],
        "advice": "Говорите друг с другом."
    }`

	result, err := parseCompatibility(jsonText)
	if err != nil {
		t.Fatalf("parseCompatibility() error = %v", err)
	}
	if result.OverallScore != 0.72 {
		t.Errorf("overall = %v, want 0.72", result.OverallScore)
	}
	if result.ValuesScore != 1 {
		t.Errorf("values = %v, want 1 after clamping", result.ValuesScore)
	}
	if result.EmotionalScore != 0 {
		t.Errorf("emotional = %v, want 0 after clamping", result.EmotionalScore)
	}
	if len(result.Strengths) != 1 {
		t.Errorf("strengths length = %d, want 1", len(result.Strengths))
	}
}

func TestFormatAnswersIsDeterministic(t *testing.T) {
	t.Parallel()

	answers := map[string]string{
		"Как он реагирует на критику?": "Злится",
		"Контролирует ли он расходы?":  "Да, полностью",
	}

	first := formatAnswers(answers)
	for i := 0; i < 10; i++ {
		if got := formatAnswers(answers); got != first {
			t.Fatalf("formatAnswers() is not deterministic:\n%s\nvs\n%s", first, got)
		}
	}
}
