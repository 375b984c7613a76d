package questionnaire

import (
	"sync"
	"time"
)

// Stage of a session. Compatibility runs the question set twice, first for
// the user, then answering on the partner's behalf.
type Stage int

const (
	StagePartnerName Stage = iota
	StageUserAnswers
	StagePartnerAnswers
	StageDone
)

// sessionTTL bounds how long an abandoned session is kept.
const sessionTTL = time.Hour

// Session is the mutable state of one questionnaire flow for one user.
type Session struct {
	Kind        Kind
	Stage       Stage
	PartnerName string
	Index       int

	UserAnswers    map[string]string
	PartnerAnswers map[string]string

	startedAt time.Time
}

// Current returns the question awaiting an answer, or nil when the session
// is not in an answering stage.
func (s *Session) Current() *Question {
	if s.Stage != StageUserAnswers && s.Stage != StagePartnerAnswers {
		return nil
	}
	questions := QuestionsFor(s.Kind)
	if s.Index >= len(questions) {
		return nil
	}
	return &questions[s.Index]
}

// Progress returns the 1-based position and total count for progress display.
func (s *Session) Progress() (int, int) {
	total := len(QuestionsFor(s.Kind))
	pos := s.Index + 1
	if pos > total {
		pos = total
	}
	return pos, total
}

// Answer records the answer to the current question and advances the
// session. It returns true when the whole flow is complete.
func (s *Session) Answer(text string) bool {
	q := s.Current()
	if q == nil {
		return s.Stage == StageDone
	}

	switch s.Stage {
	case StageUserAnswers:
		s.UserAnswers[q.Text] = text
	case StagePartnerAnswers:
		s.PartnerAnswers[q.Text] = text
	}
	s.Index++

	if s.Index >= len(QuestionsFor(s.Kind)) {
		if s.Kind == KindCompatibility && s.Stage == StageUserAnswers {
			s.Stage = StagePartnerAnswers
			s.Index = 0
			return false
		}
		s.Stage = StageDone
		return true
	}
	return false
}

// SetPartnerName records the partner's name and moves to the answering
// stage.
func (s *Session) SetPartnerName(name string) {
	s.PartnerName = name
	s.Stage = StageUserAnswers
	s.Index = 0
}

// Manager tracks at most one active session per Telegram user. All methods
// are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[int64]*Session)}
}

// Start begins a new session for the user, replacing any existing one.
func (m *Manager) Start(telegramID int64, kind Kind) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{
		Kind:           kind,
		Stage:          StagePartnerName,
		UserAnswers:    make(map[string]string),
		PartnerAnswers: make(map[string]string),
		startedAt:      time.Now(),
	}
	m.sessions[telegramID] = s
	return s
}

// Get returns the user's active session, or nil. Expired sessions are
// dropped on access.
func (m *Manager) Get(telegramID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[telegramID]
	if !ok {
		return nil
	}
	if time.Since(s.startedAt) > sessionTTL {
		delete(m.sessions, telegramID)
		return nil
	}
	return s
}

// Finish removes the user's session.
func (m *Manager) Finish(telegramID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, telegramID)
}
