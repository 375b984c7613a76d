package ai

import "google.golang.org/genai"

var urgencyEnum = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}

func stringArraySchema(desc string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       &genai.Schema{Type: genai.TypeString},
		Description: desc,
	}
}

var textAnalysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"toxicity_score":    {Type: genai.TypeNumber, Description: "Overall toxicity, 0 to 10."},
		"sentiment_score":   {Type: genai.TypeNumber, Description: "Sentiment, -1 to 1."},
		"urgency_level":     {Type: genai.TypeString, Enum: urgencyEnum},
		"red_flags":         stringArraySchema("Concrete warning signs found in the text, in Russian."),
		"patterns_detected": stringArraySchema("Names of manipulation techniques detected."),
		"recommendation":    {Type: genai.TypeString, Description: "One short actionable recommendation, in Russian."},
		"confidence_score":  {Type: genai.TypeNumber, Description: "Model confidence, 0 to 1."},
	},
	Required: []string{
		"toxicity_score", "sentiment_score", "urgency_level",
		"red_flags", "patterns_detected", "recommendation", "confidence_score",
	},
}

var partnerProfileSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"personality_type":       {Type: genai.TypeString, Description: "Short personality type label, in Russian."},
		"manipulation_risk":      {Type: genai.TypeNumber, Description: "Overall manipulation risk, 0 to 10."},
		"urgency_level":          {Type: genai.TypeString, Enum: urgencyEnum},
		"narcissism_score":       {Type: genai.TypeNumber, Description: "0 to 10."},
		"control_score":          {Type: genai.TypeNumber, Description: "0 to 10."},
		"gaslighting_score":      {Type: genai.TypeNumber, Description: "0 to 10."},
		"emotion_score":          {Type: genai.TypeNumber, Description: "0 to 10."},
		"intimacy_score":         {Type: genai.TypeNumber, Description: "0 to 10."},
		"social_score":           {Type: genai.TypeNumber, Description: "0 to 10."},
		"machiavellianism_score": {Type: genai.TypeNumber, Description: "0 to 10."},
		"psychopathy_score":      {Type: genai.TypeNumber, Description: "0 to 10."},
		"overall_compatibility":  {Type: genai.TypeNumber, Description: "0 to 1."},
		"red_flags":              stringArraySchema("Warning signs, in Russian."),
		"positive_traits":        stringArraySchema("Positive traits, in Russian."),
		"warning_signs":          stringArraySchema("Behaviors to watch for, in Russian."),
		"relationship_advice":    {Type: genai.TypeString, Description: "Relationship advice, in Russian."},
		"communication_tips":     {Type: genai.TypeString, Description: "Communication tips, in Russian."},
		"confidence_score":       {Type: genai.TypeNumber, Description: "Model confidence, 0 to 1."},
	},
	Required: []string{
		"personality_type", "manipulation_risk", "urgency_level",
		"narcissism_score", "control_score", "gaslighting_score", "emotion_score",
		"intimacy_score", "social_score", "machiavellianism_score", "psychopathy_score",
		"overall_compatibility", "red_flags", "positive_traits", "warning_signs",
		"relationship_advice", "communication_tips", "confidence_score",
	},
}

var compatibilitySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"overall_score":       {Type: genai.TypeNumber, Description: "Overall compatibility, 0 to 1."},
		"communication_score": {Type: genai.TypeNumber, Description: "0 to 1."},
		"values_score":        {Type: genai.TypeNumber, Description: "0 to 1."},
		"lifestyle_score":     {Type: genai.TypeNumber, Description: "0 to 1."},
		"emotional_score":     {Type: genai.TypeNumber, Description: "0 to 1."},
		"strengths":           stringArraySchema("Couple strengths, in Russian."),
		"challenges":          stringArraySchema("Risk areas, in Russian."),
		"advice":              {Type: genai.TypeString, Description: "Advice for the couple, in Russian."},
	},
	Required: []string{
		"overall_score", "communication_score", "values_score",
		"lifestyle_score", "emotional_score", "strengths", "challenges", "advice",
	},
}
