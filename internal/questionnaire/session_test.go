package questionnaire

import (
	"fmt"
	"testing"
)

func TestProfileFlow(t *testing.T) {
	t.Parallel()
	m := NewManager()

	s := m.Start(42, KindProfile)
	if s.Stage != StagePartnerName {
		t.Fatalf("new session stage = %v, want partner name", s.Stage)
	}
	if s.Current() != nil {
		t.Error("no question should be active before the partner name is set")
	}

	s.SetPartnerName("Игорь")
	if s.Stage != StageUserAnswers {
		t.Fatalf("stage after name = %v, want user answers", s.Stage)
	}

	total := len(ProfileQuestions)
	for i := 0; i < total; i++ {
		q := s.Current()
		if q == nil {
			t.Fatalf("question %d is nil", i)
		}
		pos, n := s.Progress()
		if pos != i+1 || n != total {
			t.Errorf("progress = %d/%d, want %d/%d", pos, n, i+1, total)
		}
		done := s.Answer(fmt.Sprintf("ответ %d", i))
		if done != (i == total-1) {
			t.Errorf("Answer() on question %d returned done=%v", i, done)
		}
	}

	if len(s.UserAnswers) != total {
		t.Errorf("recorded %d answers, want %d", len(s.UserAnswers), total)
	}
	if s.Stage != StageDone {
		t.Errorf("final stage = %v, want done", s.Stage)
	}
}

func TestCompatibilityFlowRunsTwice(t *testing.T) {
	t.Parallel()
	m := NewManager()

	s := m.Start(42, KindCompatibility)
	s.SetPartnerName("Игорь")

	total := len(CompatibilityQuestions)

	// First pass: the user's own answers.
	for i := 0; i < total; i++ {
		if done := s.Answer("мой ответ"); done {
			t.Fatalf("flow completed after first pass question %d", i)
		}
	}
	if s.Stage != StagePartnerAnswers {
		t.Fatalf("stage after first pass = %v, want partner answers", s.Stage)
	}
	if s.Index != 0 {
		t.Errorf("index after first pass = %d, want 0", s.Index)
	}

	// Second pass: answering for the partner.
	for i := 0; i < total; i++ {
		done := s.Answer("его ответ")
		if done != (i == total-1) {
			t.Errorf("second pass question %d done=%v", i, done)
		}
	}

	if len(s.UserAnswers) != total || len(s.PartnerAnswers) != total {
		t.Errorf("answer counts = (%d, %d), want (%d, %d)",
			len(s.UserAnswers), len(s.PartnerAnswers), total, total)
	}
}

func TestManagerReplacesSession(t *testing.T) {
	t.Parallel()
	m := NewManager()

	first := m.Start(42, KindProfile)
	first.SetPartnerName("Игорь")
	first.Answer("ответ")

	second := m.Start(42, KindCompatibility)
	if got := m.Get(42); got != second {
		t.Error("Start() did not replace the existing session")
	}
	if second.Kind != KindCompatibility {
		t.Errorf("replacement session kind = %v", second.Kind)
	}
}

func TestManagerGetUnknownUser(t *testing.T) {
	t.Parallel()
	m := NewManager()

	if s := m.Get(999); s != nil {
		t.Errorf("Get() for unknown user = %+v, want nil", s)
	}

	m.Start(42, KindProfile)
	m.Finish(42)
	if s := m.Get(42); s != nil {
		t.Error("session survived Finish()")
	}
}

func TestQuestionIDsAreUnique(t *testing.T) {
	t.Parallel()

	for _, set := range [][]Question{ProfileQuestions, CompatibilityQuestions} {
		seen := make(map[string]bool)
		for _, q := range set {
			if seen[q.ID] {
				t.Errorf("duplicate question ID %q", q.ID)
			}
			seen[q.ID] = true
			if q.Text == "" || len(q.Options) == 0 {
				t.Errorf("question %q has empty text or options", q.ID)
			}
		}
	}
}
