// Package report renders partner profiles as PDF documents: a title block,
// a risk gauge, per-block score bars, a dark-triad breakdown, and the text
// sections of the assessment.
package report

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/jung-kurt/gofpdf"

	"github.com/avdotin/psychodetective/internal/database"
)

const (
	pageWidth  = 210.0
	marginX    = 20.0
	contentW   = pageWidth - 2*marginX
	fontFamily = "report"
)

// Generator renders PDF reports. Safe for concurrent use: each render builds
// its own document.
type Generator struct {
	fontPath string
	hasFont  bool
	logger   *slog.Logger
}

// NewGenerator creates a report generator. fontPath must point to a TTF with
// Cyrillic coverage; when the file is missing the generator falls back to
// the built-in Helvetica, which renders Cyrillic text incorrectly but keeps
// the service functional.
func NewGenerator(fontPath string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "report")

	hasFont := false
	if _, err := os.Stat(fontPath); err == nil {
		hasFont = true
	} else {
		logger.Warn("Report font not found, falling back to Helvetica", "path", fontPath)
	}
	return &Generator{fontPath: fontPath, hasFont: hasFont, logger: logger}
}

func (g *Generator) newDocument() (*gofpdf.Fpdf, string) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginX, 20, marginX)
	pdf.SetAutoPageBreak(true, 25)

	family := "Helvetica"
	if g.hasFont {
		pdf.AddUTF8Font(fontFamily, "", g.fontPath)
		pdf.AddUTF8Font(fontFamily, "B", g.fontPath)
		family = fontFamily
	}
	return pdf, family
}

// RenderProfile renders a complete partner profile report.
func (g *Generator) RenderProfile(profile *database.PartnerProfile, owner *database.User) ([]byte, error) {
	if profile == nil {
		return nil, fmt.Errorf("cannot render nil profile")
	}

	pdf, family := g.newDocument()
	pdf.AddPage()

	// Title block.
	pdf.SetFont(family, "B", 22)
	pdf.SetTextColor(40, 40, 60)
	pdf.CellFormat(contentW, 12, "Психологический портрет партнёра", "", 1, "C", false, 0, "")
	pdf.SetFont(family, "", 12)
	pdf.SetTextColor(110, 110, 120)
	pdf.CellFormat(contentW, 8, profile.PartnerName, "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 6,
		fmt.Sprintf("Отчёт подготовлен %s", profile.CreatedAt.Format("02.01.2006")),
		"", 1, "C", false, 0, "")
	pdf.Ln(6)

	g.drawRiskGauge(pdf, family, profile.ManipulationRisk, string(profile.UrgencyLevel))
	pdf.Ln(8)

	g.sectionTitle(pdf, family, "Оценки по блокам")
	g.drawBlockBars(pdf, family, profile)
	pdf.Ln(6)

	g.sectionTitle(pdf, family, "Тёмная триада")
	g.drawDarkTriad(pdf, family, profile)
	pdf.Ln(6)

	if len(profile.RedFlags) > 0 {
		g.sectionTitle(pdf, family, "Тревожные сигналы")
		g.bulletList(pdf, family, profile.RedFlags, 200, 60, 60)
	}
	if len(profile.PositiveTraits) > 0 {
		g.sectionTitle(pdf, family, "Сильные стороны")
		g.bulletList(pdf, family, profile.PositiveTraits, 60, 150, 90)
	}

	if profile.PsychologicalProfile != "" {
		g.sectionTitle(pdf, family, "Психологический профиль")
		g.paragraph(pdf, family, profile.PsychologicalProfile)
	}
	if profile.RelationshipAdvice != "" {
		g.sectionTitle(pdf, family, "Рекомендации")
		g.paragraph(pdf, family, profile.RelationshipAdvice)
	}
	if profile.CommunicationTips != "" {
		g.sectionTitle(pdf, family, "Как общаться")
		g.paragraph(pdf, family, profile.CommunicationTips)
	}

	// Footer disclaimer.
	pdf.Ln(8)
	pdf.SetFont(family, "", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.MultiCell(contentW, 4,
		"Отчёт сформирован автоматически на основе ваших ответов и не заменяет консультацию специалиста. Если вы в опасности, обратитесь за помощью.",
		"", "C", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	g.logger.Debug("Profile report rendered",
		"profile_id", profile.ID, "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (g *Generator) sectionTitle(pdf *gofpdf.Fpdf, family, title string) {
	pdf.SetFont(family, "B", 14)
	pdf.SetTextColor(40, 40, 60)
	pdf.CellFormat(contentW, 10, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(220, 220, 230)
	x, y := pdf.GetX(), pdf.GetY()
	pdf.Line(x, y, x+contentW, y)
	pdf.Ln(3)
}

// drawRiskGauge renders the 0-10 manipulation risk as a horizontal gauge
// with a green-to-red scale and a marker at the score.
func (g *Generator) drawRiskGauge(pdf *gofpdf.Fpdf, family string, risk float64, urgency string) {
	pdf.SetFont(family, "B", 13)
	pdf.SetTextColor(40, 40, 60)
	pdf.CellFormat(contentW, 8,
		fmt.Sprintf("Риск манипуляций: %.1f из 10 (%s)", risk, urgencyLabel(urgency)),
		"", 1, "L", false, 0, "")
	pdf.Ln(2)

	x := marginX
	y := pdf.GetY()
	const gaugeH = 8.0

	// Three colored segments: safe, caution, danger.
	segments := []struct {
		from, to float64
		r, g, b  int
	}{
		{0, 4, 120, 190, 110},
		{4, 7, 240, 190, 80},
		{7, 10, 220, 90, 80},
	}
	for _, seg := range segments {
		segX := x + contentW*seg.from/10
		segW := contentW * (seg.to - seg.from) / 10
		pdf.SetFillColor(seg.r, seg.g, seg.b)
		pdf.Rect(segX, y, segW, gaugeH, "F")
	}

	// Marker triangle above the score position.
	markerX := x + contentW*risk/10
	pdf.SetFillColor(40, 40, 60)
	pdf.Polygon([]gofpdf.PointType{
		{X: markerX, Y: y + gaugeH + 1},
		{X: markerX - 2, Y: y + gaugeH + 5},
		{X: markerX + 2, Y: y + gaugeH + 5},
	}, "F")

	pdf.SetY(y + gaugeH + 7)
}

var blockLabels = []struct {
	label string
	score func(*database.PartnerProfile) float64
}{
	{"Контроль", func(p *database.PartnerProfile) float64 { return p.Control }},
	{"Газлайтинг", func(p *database.PartnerProfile) float64 { return p.Gaslighting }},
	{"Нарциссизм", func(p *database.PartnerProfile) float64 { return p.Narcissism }},
	{"Эмоциональная нестабильность", func(p *database.PartnerProfile) float64 { return p.Emotion }},
	{"Проблемы с близостью", func(p *database.PartnerProfile) float64 { return p.Intimacy }},
	{"Социальная изоляция", func(p *database.PartnerProfile) float64 { return p.Social }},
}

// drawBlockBars renders one horizontal bar per assessment block.
func (g *Generator) drawBlockBars(pdf *gofpdf.Fpdf, family string, profile *database.PartnerProfile) {
	const barH = 5.0
	const labelW = 70.0
	barW := contentW - labelW - 12

	pdf.SetFont(family, "", 10)
	for _, block := range blockLabels {
		score := block.score(profile)

		pdf.SetTextColor(60, 60, 70)
		pdf.CellFormat(labelW, barH+2, block.label, "", 0, "L", false, 0, "")

		x, y := pdf.GetX(), pdf.GetY()
		pdf.SetFillColor(235, 235, 240)
		pdf.Rect(x, y+1, barW, barH, "F")

		r, gr, b := barColor(score)
		pdf.SetFillColor(r, gr, b)
		pdf.Rect(x, y+1, barW*score/10, barH, "F")

		pdf.SetX(x + barW + 2)
		pdf.SetTextColor(110, 110, 120)
		pdf.CellFormat(10, barH+2, fmt.Sprintf("%.1f", score), "", 1, "R", false, 0, "")
	}
}

// drawDarkTriad renders the three dark-triad scores as a triangle radar.
func (g *Generator) drawDarkTriad(pdf *gofpdf.Fpdf, family string, profile *database.PartnerProfile) {
	cx := pageWidth / 2
	cy := pdf.GetY() + 32
	const radius = 26.0

	axes := []struct {
		label string
		score float64
	}{
		{"Нарциссизм", profile.Narcissism},
		{"Макиавеллизм", profile.Machiavellianism},
		{"Психопатия", profile.Psychopathy},
	}

	point := func(i int, scale float64) (float64, float64) {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/3
		return cx + radius*scale*math.Cos(angle), cy + radius*scale*math.Sin(angle)
	}

	// Grid triangles at 50% and 100%.
	pdf.SetDrawColor(220, 220, 230)
	for _, scale := range []float64{0.5, 1.0} {
		var pts []gofpdf.PointType
		for i := range axes {
			x, y := point(i, scale)
			pts = append(pts, gofpdf.PointType{X: x, Y: y})
		}
		pdf.Polygon(pts, "D")
	}

	// Score polygon.
	var pts []gofpdf.PointType
	for i, axis := range axes {
		x, y := point(i, axis.score/10)
		pts = append(pts, gofpdf.PointType{X: x, Y: y})
	}
	pdf.SetFillColor(220, 90, 80)
	pdf.SetAlpha(0.5, "Normal")
	pdf.Polygon(pts, "F")
	pdf.SetAlpha(1, "Normal")

	// Axis labels.
	pdf.SetFont(family, "", 8)
	pdf.SetTextColor(60, 60, 70)
	for i, axis := range axes {
		x, y := point(i, 1.25)
		pdf.SetXY(x-20, y-2)
		pdf.CellFormat(40, 4, fmt.Sprintf("%s %.1f", axis.label, axis.score), "", 0, "C", false, 0, "")
	}

	pdf.SetY(cy + radius + 12)
}

func (g *Generator) bulletList(pdf *gofpdf.Fpdf, family string, items []string, r, gr, b int) {
	pdf.SetFont(family, "", 11)
	for _, item := range items {
		pdf.SetTextColor(r, gr, b)
		pdf.CellFormat(5, 6, "•", "", 0, "L", false, 0, "")
		pdf.SetTextColor(60, 60, 70)
		pdf.MultiCell(contentW-5, 6, item, "", "L", false)
	}
	pdf.Ln(2)
}

func (g *Generator) paragraph(pdf *gofpdf.Fpdf, family, text string) {
	pdf.SetFont(family, "", 11)
	pdf.SetTextColor(60, 60, 70)
	pdf.MultiCell(contentW, 5.5, text, "", "L", false)
	pdf.Ln(3)
}

func barColor(score float64) (int, int, int) {
	switch {
	case score >= 7:
		return 220, 90, 80
	case score >= 4:
		return 240, 190, 80
	default:
		return 120, 190, 110
	}
}

func urgencyLabel(urgency string) string {
	switch urgency {
	case "LOW":
		return "низкая срочность"
	case "MEDIUM":
		return "средняя срочность"
	case "HIGH":
		return "высокая срочность"
	case "CRITICAL":
		return "критическая срочность"
	default:
		return urgency
	}
}
