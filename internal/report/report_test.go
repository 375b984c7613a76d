package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/avdotin/psychodetective/internal/database"
)

func sampleProfile() *database.PartnerProfile {
	return &database.PartnerProfile{
		ID:               1,
		CreatedAt:        time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		UserID:           1,
		PartnerName:      "Игорь",
		PersonalityType:  "скрытый нарцисс",
		ManipulationRisk: 8.2,
		UrgencyLevel:     database.UrgencyHigh,
		RedFlags:         []string{"тотальный контроль", "обесценивание"},
		PositiveTraits:   []string{"щедрость в начале отношений"},
		WarningSigns:     []string{"вспышки ревности"},
		PsychologicalProfile: "Партнёр демонстрирует устойчивые паттерны контроля.",
		RelationshipAdvice:   "Выстраивайте личные границы.",
		CommunicationTips:    "Фиксируйте договорённости письменно.",
		BlockScores: database.BlockScores{
			Narcissism:       8,
			Control:          9,
			Gaslighting:      7,
			Emotion:          6,
			Intimacy:         4,
			Social:           7,
			Machiavellianism: 8.5,
			Psychopathy:      3,
		},
	}
}

func TestRenderProfileProducesPDF(t *testing.T) {
	t.Parallel()

	// No font file at this path: exercises the Helvetica fallback.
	g := NewGenerator("testdata/missing.ttf", nil)

	data, err := g.RenderProfile(sampleProfile(), &database.User{ID: 1, FirstName: "Анна"})
	if err != nil {
		t.Fatalf("RenderProfile() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("RenderProfile() returned empty output")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("output does not start with PDF magic, got %q", data[:8])
	}
}

func TestRenderProfileNil(t *testing.T) {
	t.Parallel()

	g := NewGenerator("testdata/missing.ttf", nil)
	if _, err := g.RenderProfile(nil, nil); err == nil {
		t.Error("expected error for nil profile")
	}
}

func TestRenderProfileExtremeScores(t *testing.T) {
	t.Parallel()

	g := NewGenerator("testdata/missing.ttf", nil)

	for _, risk := range []float64{0, 10} {
		p := sampleProfile()
		p.ManipulationRisk = risk
		p.BlockScores = database.BlockScores{}
		if risk == 10 {
			p.BlockScores = database.BlockScores{
				Narcissism: 10, Control: 10, Gaslighting: 10, Emotion: 10,
				Intimacy: 10, Social: 10, Machiavellianism: 10, Psychopathy: 10,
			}
		}

		data, err := g.RenderProfile(p, nil)
		if err != nil {
			t.Fatalf("RenderProfile() with risk %v error = %v", risk, err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			t.Errorf("risk %v: output is not a PDF", risk)
		}
	}
}
