package database

import (
	"errors"
	"fmt"
)

// ErrValidation marks errors caused by out-of-range or malformed values
// rejected before persistence. Callers can test for it with errors.Is.
var ErrValidation = errors.New("validation error")

// Validate checks score ranges and required fields before persistence.
func (a *TextAnalysis) Validate() error {
	if a.UserID == 0 {
		return fmt.Errorf("%w: text analysis must have a user_id", ErrValidation)
	}
	if a.OriginalText == "" {
		return fmt.Errorf("%w: text analysis must have non-empty original_text", ErrValidation)
	}
	if a.ToxicityScore < 0 || a.ToxicityScore > 10 {
		return fmt.Errorf("%w: toxicity_score %.2f out of range [0,10]", ErrValidation, a.ToxicityScore)
	}
	if a.SentimentScore < -1 || a.SentimentScore > 1 {
		return fmt.Errorf("%w: sentiment_score %.2f out of range [-1,1]", ErrValidation, a.SentimentScore)
	}
	if !a.UrgencyLevel.Valid() {
		return fmt.Errorf("%w: unknown urgency level %q", ErrValidation, a.UrgencyLevel)
	}
	return nil
}

// Validate checks score ranges and required fields before persistence.
func (p *PartnerProfile) Validate() error {
	if p.UserID == 0 {
		return fmt.Errorf("%w: partner profile must have a user_id", ErrValidation)
	}
	if len(p.QuestionnaireData) == 0 {
		return fmt.Errorf("%w: partner profile must have questionnaire answers", ErrValidation)
	}
	if p.ManipulationRisk < 0 || p.ManipulationRisk > 10 {
		return fmt.Errorf("%w: manipulation_risk %.2f out of range [0,10]", ErrValidation, p.ManipulationRisk)
	}
	if p.OverallCompatibility < 0 || p.OverallCompatibility > 1 {
		return fmt.Errorf("%w: overall_compatibility %.2f out of range [0,1]", ErrValidation, p.OverallCompatibility)
	}
	if !p.UrgencyLevel.Valid() {
		return fmt.Errorf("%w: unknown urgency level %q", ErrValidation, p.UrgencyLevel)
	}
	for name, score := range map[string]float64{
		"narcissism":       p.Narcissism,
		"control":          p.Control,
		"gaslighting":      p.Gaslighting,
		"emotion":          p.Emotion,
		"intimacy":         p.Intimacy,
		"social":           p.Social,
		"machiavellianism": p.Machiavellianism,
		"psychopathy":      p.Psychopathy,
	} {
		if score < 0 || score > 10 {
			return fmt.Errorf("%w: block score %s %.2f out of range [0,10]", ErrValidation, name, score)
		}
	}
	return nil
}

// Validate checks required fields and date ordering before persistence.
func (s *Subscription) Validate() error {
	if s.UserID == 0 {
		return fmt.Errorf("%w: subscription must have a user_id", ErrValidation)
	}
	if s.SubscriptionType != SubscriptionPremium && s.SubscriptionType != SubscriptionVIP {
		return fmt.Errorf("%w: invalid subscription type %q", ErrValidation, s.SubscriptionType)
	}
	if !s.EndDate.After(s.StartDate) {
		return fmt.Errorf("%w: subscription end_date must be after start_date", ErrValidation)
	}
	return nil
}
