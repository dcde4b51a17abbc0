package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const sessionColumns = `id, session_code, project_id, created_by, module_type, status, created_at, ended_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func scanSession(row pgx.Row) (*repository.Session, error) {
	var (
		s          repository.Session
		moduleType string
		status     string
		endedAt    *time.Time
	)
	if err := row.Scan(&s.ID, &s.Code, &s.ProjectID, &s.CreatedBy, &moduleType, &status, &s.CreatedAt, &endedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	s.ModuleType = repository.ModuleType(moduleType)
	s.Status = repository.SessionStatus(status)
	s.EndedAt = endedAt
	return &s, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO meeting_sessions (session_code, project_id, created_by, module_type, status)
		 VALUES ($1, $2, $3, $4, 'active')
		 RETURNING `+sessionColumns,
		input.Code, input.ProjectID, input.CreatedBy, string(input.ModuleType))
	s, err := scanSession(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, repository.ErrCodeTaken
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) GetSessionByCode(ctx context.Context, code string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM meeting_sessions WHERE session_code = $1`, code)
	return scanSession(row)
}

func (r *PostgresRepository) SessionCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM meeting_sessions WHERE session_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *PostgresRepository) TransitionSession(ctx context.Context, input repository.TransitionSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE meeting_sessions
		 SET status = $3, ended_at = COALESCE($4, ended_at)
		 WHERE session_code = $1 AND status = $2
		 RETURNING `+sessionColumns,
		input.Code, string(input.From), string(input.To), input.EndedAt)
	s, err := scanSession(row)
	if errors.Is(err, repository.ErrNotFound) {
		exists, existsErr := r.SessionCodeExists(ctx, input.Code)
		if existsErr != nil {
			return nil, existsErr
		}
		if exists {
			return nil, repository.ErrStaleStatus
		}
		return nil, repository.ErrNotFound
	}
	return s, err
}

func (r *PostgresRepository) ListSessionsByCreator(ctx context.Context, userID int64) ([]repository.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM meeting_sessions
		 WHERE created_by = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]repository.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// AppendTranscript holds a share lock on the session row while inserting,
// so a concurrent end or cancel waits for the write and later writes see
// the terminal status.
func (r *PostgresRepository) AppendTranscript(ctx context.Context, input repository.AppendTranscriptInput) (*repository.TranscriptEntry, error) {
	entry := repository.TranscriptEntry{
		SessionID:        input.SessionID,
		UserID:           input.UserID,
		SpeakerName:      input.SpeakerName,
		OriginalText:     input.OriginalText,
		OriginalLanguage: input.OriginalLanguage,
		Translations:     input.Translations,
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM meeting_sessions WHERE id = $1 FOR SHARE`, input.SessionID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		if repository.SessionStatus(status) != repository.SessionStatusActive {
			return repository.ErrSessionNotActive
		}
		return tx.QueryRow(ctx,
			`INSERT INTO transcripts
			   (session_id, user_id, speaker_name, original_text, original_language, translated_ko, translated_bn, translated_en)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING id, spoken_at`,
			input.SessionID, input.UserID, input.SpeakerName, input.OriginalText, string(input.OriginalLanguage),
			input.Translations.Ko, input.Translations.Bn, input.Translations.En,
		).Scan(&entry.ID, &entry.Timestamp)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *PostgresRepository) ListTranscripts(ctx context.Context, sessionID int64) ([]repository.TranscriptEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, user_id, speaker_name, original_text, original_language,
		        translated_ko, translated_bn, translated_en, spoken_at
		 FROM transcripts WHERE session_id = $1 ORDER BY spoken_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]repository.TranscriptEntry, 0)
	for rows.Next() {
		var (
			e    repository.TranscriptEntry
			lang string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserID, &e.SpeakerName, &e.OriginalText, &lang,
			&e.Translations.Ko, &e.Translations.Bn, &e.Translations.En, &e.Timestamp); err != nil {
			return nil, err
		}
		e.OriginalLanguage = language.Code(lang)
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) ListGlossaryTerms(ctx context.Context, projectID int64, source, target language.Code) ([]repository.GlossaryTerm, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, project_id, source_term, target_term, source_lang, target_lang
		 FROM glossary_terms
		 WHERE project_id = $1 AND source_lang = $2 AND target_lang = $3
		 ORDER BY id ASC`,
		projectID, string(source), string(target))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]repository.GlossaryTerm, 0)
	for rows.Next() {
		var (
			g          repository.GlossaryTerm
			srcLang    string
			targetLang string
		)
		if err := rows.Scan(&g.ID, &g.ProjectID, &g.SourceTerm, &g.TargetTerm, &srcLang, &targetLang); err != nil {
			return nil, err
		}
		g.SourceLang = language.Code(srcLang)
		g.TargetLang = language.Code(targetLang)
		list = append(list, g)
	}
	return list, rows.Err()
}

// Shutdown closes the pool.
func (r *PostgresRepository) Shutdown() {
	r.pool.Close()
}
