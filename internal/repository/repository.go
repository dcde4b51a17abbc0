package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCodeTaken        = errors.New("session code already taken")
	ErrSessionNotActive = errors.New("session is not active")
	// ErrStaleStatus is returned when a conditional status update found the
	// session no longer in the expected status.
	ErrStaleStatus = errors.New("session status changed concurrently")
)

type CreateSessionInput struct {
	Code       string
	ProjectID  *int64
	CreatedBy  int64
	ModuleType ModuleType
}

type TransitionSessionInput struct {
	Code    string
	From    SessionStatus
	To      SessionStatus
	EndedAt *time.Time
}

type AppendTranscriptInput struct {
	SessionID        int64
	UserID           *int64
	SpeakerName      string
	OriginalText     string
	OriginalLanguage language.Code
	Translations     Translations
}

type SessionRepository interface {
	// CreateSession returns ErrCodeTaken when the code collides with an existing session.
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	GetSessionByCode(ctx context.Context, code string) (*Session, error)
	SessionCodeExists(ctx context.Context, code string) (bool, error)
	// TransitionSession moves a session from input.From to input.To and
	// returns ErrStaleStatus if it was not in input.From.
	TransitionSession(ctx context.Context, input TransitionSessionInput) (*Session, error)
	ListSessionsByCreator(ctx context.Context, userID int64) ([]Session, error)
}

type TranscriptRepository interface {
	// AppendTranscript assigns the entry id and timestamp. It fails with
	// ErrSessionNotActive when the session is not active at write time.
	AppendTranscript(ctx context.Context, input AppendTranscriptInput) (*TranscriptEntry, error)
	ListTranscripts(ctx context.Context, sessionID int64) ([]TranscriptEntry, error)
}

type GlossaryRepository interface {
	ListGlossaryTerms(ctx context.Context, projectID int64, source, target language.Code) ([]GlossaryTerm, error)
}

type Repository interface {
	SessionRepository
	TranscriptRepository
	GlossaryRepository
}
