// Package ai implements integration with Google's Gemini API. It turns raw
// user submissions and questionnaire answers into structured risk
// assessments plus Russian-language narratives.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/avdotin/psychodetective/internal/config"
)

// TextAnalysisResult is the structured outcome of analyzing a single text
// submission.
type TextAnalysisResult struct {
	ToxicityScore    float64  `json:"toxicity_score"`
	SentimentScore   float64  `json:"sentiment_score"`
	UrgencyLevel     string   `json:"urgency_level"`
	RedFlags         []string `json:"red_flags"`
	PatternsDetected []string `json:"patterns_detected"`
	Recommendation   string   `json:"recommendation"`
	ConfidenceScore  float64  `json:"confidence_score"`

	// Narrative is the human-readable breakdown produced by the second call.
	Narrative string `json:"-"`
	ModelUsed string `json:"-"`
}

// ProfileRequest carries one completed profiling questionnaire.
type ProfileRequest struct {
	PartnerName        string
	PartnerDescription string
	Answers            map[string]string
	// Technique names the analysis method requested by the user. Included in
	// the narrative prompt only.
	Technique string
}

// ProfileResult is the structured outcome of partner profiling.
type ProfileResult struct {
	PersonalityType      string   `json:"personality_type"`
	ManipulationRisk     float64  `json:"manipulation_risk"`
	UrgencyLevel         string   `json:"urgency_level"`
	Narcissism           float64  `json:"narcissism_score"`
	Control              float64  `json:"control_score"`
	Gaslighting          float64  `json:"gaslighting_score"`
	Emotion              float64  `json:"emotion_score"`
	Intimacy             float64  `json:"intimacy_score"`
	Social               float64  `json:"social_score"`
	Machiavellianism     float64  `json:"machiavellianism_score"`
	Psychopathy          float64  `json:"psychopathy_score"`
	OverallCompatibility float64  `json:"overall_compatibility"`
	RedFlags             []string `json:"red_flags"`
	PositiveTraits       []string `json:"positive_traits"`
	WarningSigns         []string `json:"warning_signs"`
	RelationshipAdvice   string   `json:"relationship_advice"`
	CommunicationTips    string   `json:"communication_tips"`
	ConfidenceScore      float64  `json:"confidence_score"`

	Narrative string `json:"-"`
	ModelUsed string `json:"-"`
}

// CompatibilityRequest carries both answer sets for a compatibility test.
type CompatibilityRequest struct {
	PartnerName    string
	UserAnswers    map[string]string
	PartnerAnswers map[string]string
}

// CompatibilityResult is the structured outcome of a compatibility test.
type CompatibilityResult struct {
	OverallScore       float64  `json:"overall_score"`
	CommunicationScore float64  `json:"communication_score"`
	ValuesScore        float64  `json:"values_score"`
	LifestyleScore     float64  `json:"lifestyle_score"`
	EmotionalScore     float64  `json:"emotional_score"`
	Strengths          []string `json:"strengths"`
	Challenges         []string `json:"challenges"`
	Advice             string   `json:"advice"`

	ModelUsed string `json:"-"`
}

// Client defines the interface for AI operations used throughout the
// application.
type Client interface {
	AnalyzeText(ctx context.Context, text string) (*TextAnalysisResult, error)
	ProfilePartner(ctx context.Context, req *ProfileRequest) (*ProfileResult, error)
	AssessCompatibility(ctx context.Context, req *CompatibilityRequest) (*CompatibilityResult, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	baseConfig  *genai.GenerateContentConfig
	modelName   string
	maxRetries  int
	retryDelay  time.Duration
	timeout     time.Duration
}

// NewClient creates a new Gemini AI client with the provided configuration.
func NewClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (Client, error) {
	if cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.AIAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.AITemperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,

		// The whole domain of this bot is abusive language, so blocking
		// harassment content would block the input itself.
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "ai_client")
	logger.Info("AI client initialized", "model", cfg.AIModel)
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		baseConfig:  baseCfg,
		modelName:   cfg.AIModel,
		maxRetries:  cfg.AIRetryAttempts,
		retryDelay:  cfg.AIRetryDelay,
		timeout:     cfg.AITimeout,
	}, nil
}

// attemptContext bounds a single API attempt so a hung call does not eat the
// whole retry budget.
func (c *sdkClient) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *sdkClient) generateWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		attemptCtx, cancel := c.attemptContext(ctx)
		resp, err = c.genaiClient.Models.GenerateContent(attemptCtx, c.modelName, contents, cfg)
		cancel()
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.WarnContext(ctx, "AI API call failed, retrying",
					"attempt", i+1, "max_retries", c.maxRetries, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			return nil, fmt.Errorf("AI API call failed after %d retries (code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		c.log.ErrorContext(ctx, "AI API call failed with non-retriable error", "error", err)
		return nil, fmt.Errorf("AI API call failed: %w", err)
	}
	return nil, err
}

// generateJSON runs a schema-constrained call and returns the raw JSON text.
func (c *sdkClient) generateJSON(ctx context.Context, systemInstruction, prompt string, schema *genai.Schema) (string, error) {
	cfg := *c.baseConfig
	cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.generateWithRetries(ctx, contents, &cfg)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

// generateNarrative runs a plain text call for human-readable output.
func (c *sdkClient) generateNarrative(ctx context.Context, prompt string) (string, error) {
	cfg := *c.baseConfig
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.generateWithRetries(ctx, contents, &cfg)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (c *sdkClient) AnalyzeText(ctx context.Context, text string) (*TextAnalysisResult, error) {
	c.log.DebugContext(ctx, "Analyzing text", "length", len(text))

	jsonText, err := c.generateJSON(ctx, textAnalysisSystemInstruction, text, textAnalysisSchema)
	if err != nil {
		return nil, fmt.Errorf("text analysis failed: %w", err)
	}

	result, err := parseTextAnalysis(jsonText)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to parse analysis response", "error", err, "response", jsonText)
		return nil, err
	}

	narrative, err := c.generateNarrative(ctx,
		fmt.Sprintf(textNarrativePrompt, text, result.ToxicityScore, result.UrgencyLevel))
	if err != nil {
		return nil, fmt.Errorf("narrative generation failed: %w", err)
	}
	result.Narrative = narrative
	result.ModelUsed = c.modelName

	c.log.DebugContext(ctx, "Text analysis completed",
		"toxicity", result.ToxicityScore, "urgency", result.UrgencyLevel)
	return result, nil
}

func (c *sdkClient) ProfilePartner(ctx context.Context, req *ProfileRequest) (*ProfileResult, error) {
	if req == nil || len(req.Answers) == 0 {
		return nil, fmt.Errorf("profile request must include questionnaire answers")
	}
	c.log.DebugContext(ctx, "Profiling partner", "answers", len(req.Answers))

	answersText := formatAnswers(req.Answers)
	prompt := fmt.Sprintf("Партнёр: %s\n%s\n\nОтветы анкеты:\n%s",
		req.PartnerName, req.PartnerDescription, answersText)

	jsonText, err := c.generateJSON(ctx, partnerProfileSystemInstruction, prompt, partnerProfileSchema)
	if err != nil {
		return nil, fmt.Errorf("partner profiling failed: %w", err)
	}

	result, err := parseProfile(jsonText)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to parse profile response", "error", err, "response", jsonText)
		return nil, err
	}

	technique := req.Technique
	if technique == "" {
		technique = "стандартный"
	}
	narrative, err := c.generateNarrative(ctx,
		fmt.Sprintf(profileNarrativePrompt, technique, answersText, result.ManipulationRisk, result.PersonalityType))
	if err != nil {
		return nil, fmt.Errorf("profile narrative generation failed: %w", err)
	}
	result.Narrative = narrative
	result.ModelUsed = c.modelName

	c.log.DebugContext(ctx, "Partner profiling completed",
		"risk", result.ManipulationRisk, "urgency", result.UrgencyLevel)
	return result, nil
}

func (c *sdkClient) AssessCompatibility(ctx context.Context, req *CompatibilityRequest) (*CompatibilityResult, error) {
	if req == nil || len(req.UserAnswers) == 0 || len(req.PartnerAnswers) == 0 {
		return nil, fmt.Errorf("compatibility request must include both answer sets")
	}
	c.log.DebugContext(ctx, "Assessing compatibility",
		"user_answers", len(req.UserAnswers), "partner_answers", len(req.PartnerAnswers))

	prompt := fmt.Sprintf("Партнёр: %s\n\nОтветы пользовательницы:\n%s\nОтветы за партнёра:\n%s",
		req.PartnerName, formatAnswers(req.UserAnswers), formatAnswers(req.PartnerAnswers))

	jsonText, err := c.generateJSON(ctx, compatibilitySystemInstruction, prompt, compatibilitySchema)
	if err != nil {
		return nil, fmt.Errorf("compatibility assessment failed: %w", err)
	}

	result, err := parseCompatibility(jsonText)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to parse compatibility response", "error", err, "response", jsonText)
		return nil, err
	}
	result.ModelUsed = c.modelName

	c.log.DebugContext(ctx, "Compatibility assessment completed", "overall", result.OverallScore)
	return result, nil
}

func formatAnswers(answers map[string]string) string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		sb.WriteString(fmt.Sprintf(answerLineFormat, i+1, k, answers[k]))
	}
	return sb.String()
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("request blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("model returned no content, finish reason: %s", finishReason)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned empty text")
	}
	return text, nil
}
