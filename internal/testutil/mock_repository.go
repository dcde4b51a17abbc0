package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/repository"
)

// MockRepository is a thread-safe in-memory implementation of
// repository.Repository. Transcript timestamps are strictly increasing in
// append order, the way the database assigns them inside one transaction.
type MockRepository struct {
	mu sync.Mutex

	Sessions    map[string]*repository.Session
	Transcripts []repository.TranscriptEntry
	Glossary    []repository.GlossaryTerm

	CreateErr          error
	GetErr             error
	CodeExistsErr      error
	TransitionErr      error
	AppendErr          error
	ListTranscriptsErr error
	GlossaryErr        error

	CreateCalls     int
	CodeExistsCalls int
	AppendCalls     int
	GlossaryCalls   int

	// ExistsOverride forces SessionCodeExists to report a code as taken.
	ExistsOverride map[string]bool

	nextSessionID int64
	nextEntryID   int64
	clock         time.Time
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		Sessions:       make(map[string]*repository.Session),
		ExistsOverride: make(map[string]bool),
		clock:          time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *MockRepository) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

// AddSession stores a session directly, bypassing code generation.
func (m *MockRepository) AddSession(code string, createdBy int64, status repository.SessionStatus, projectID *int64) *repository.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSessionID++
	s := &repository.Session{
		ID:         m.nextSessionID,
		Code:       code,
		ProjectID:  projectID,
		CreatedBy:  createdBy,
		ModuleType: repository.ModuleTypePhysicalMeeting,
		Status:     status,
		CreatedAt:  m.tick(),
	}
	m.Sessions[code] = s
	cp := *s
	return &cp
}

func (m *MockRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if _, ok := m.Sessions[input.Code]; ok {
		return nil, repository.ErrCodeTaken
	}
	m.nextSessionID++
	s := &repository.Session{
		ID:         m.nextSessionID,
		Code:       input.Code,
		ProjectID:  input.ProjectID,
		CreatedBy:  input.CreatedBy,
		ModuleType: input.ModuleType,
		Status:     repository.SessionStatusActive,
		CreatedAt:  m.tick(),
	}
	m.Sessions[input.Code] = s
	cp := *s
	return &cp, nil
}

func (m *MockRepository) GetSessionByCode(_ context.Context, code string) (*repository.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.Sessions[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockRepository) SessionCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CodeExistsCalls++
	if m.CodeExistsErr != nil {
		return false, m.CodeExistsErr
	}
	if m.ExistsOverride[code] {
		return true, nil
	}
	_, ok := m.Sessions[code]
	return ok, nil
}

func (m *MockRepository) TransitionSession(_ context.Context, input repository.TransitionSessionInput) (*repository.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TransitionErr != nil {
		return nil, m.TransitionErr
	}
	s, ok := m.Sessions[input.Code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.Status != input.From {
		return nil, repository.ErrStaleStatus
	}
	s.Status = input.To
	if input.EndedAt != nil {
		t := *input.EndedAt
		s.EndedAt = &t
	}
	cp := *s
	return &cp, nil
}

func (m *MockRepository) ListSessionsByCreator(_ context.Context, userID int64) ([]repository.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.Session, 0)
	for _, s := range m.Sessions {
		if s.CreatedBy == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MockRepository) AppendTranscript(_ context.Context, input repository.AppendTranscriptInput) (*repository.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}
	var sess *repository.Session
	for _, s := range m.Sessions {
		if s.ID == input.SessionID {
			sess = s
			break
		}
	}
	if sess == nil {
		return nil, repository.ErrNotFound
	}
	if sess.Status != repository.SessionStatusActive {
		return nil, repository.ErrSessionNotActive
	}
	m.nextEntryID++
	e := repository.TranscriptEntry{
		ID:               m.nextEntryID,
		SessionID:        input.SessionID,
		UserID:           input.UserID,
		SpeakerName:      input.SpeakerName,
		OriginalText:     input.OriginalText,
		OriginalLanguage: input.OriginalLanguage,
		Translations:     input.Translations,
		Timestamp:        m.tick(),
	}
	m.Transcripts = append(m.Transcripts, e)
	return &e, nil
}

func (m *MockRepository) ListTranscripts(_ context.Context, sessionID int64) ([]repository.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListTranscriptsErr != nil {
		return nil, m.ListTranscriptsErr
	}
	out := make([]repository.TranscriptEntry, 0)
	for _, e := range m.Transcripts {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) ListGlossaryTerms(_ context.Context, projectID int64, source, target language.Code) ([]repository.GlossaryTerm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GlossaryCalls++
	if m.GlossaryErr != nil {
		return nil, m.GlossaryErr
	}
	out := make([]repository.GlossaryTerm, 0)
	for _, g := range m.Glossary {
		if g.ProjectID == projectID && g.SourceLang == source && g.TargetLang == target {
			out = append(out, g)
		}
	}
	return out, nil
}

// SetStatus changes a session status in place, as another request would.
func (m *MockRepository) SetStatus(code string, status repository.SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Sessions[code]; ok {
		s.Status = status
	}
}

func (m *MockRepository) TranscriptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Transcripts)
}
