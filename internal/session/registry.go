package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/discord"
	"github.com/foxseedlab/ko2bn/internal/events"
	"github.com/foxseedlab/ko2bn/internal/metrics"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/webhook"
)

const (
	CodeLength      = 6
	maxCodeAttempts = 10
	archiveTimeout  = 2 * time.Minute
)

// CodeGenerator draws one candidate session code.
type CodeGenerator func() (string, error)

// RandomCode draws CodeLength decimal digits from crypto/rand.
func RandomCode() (string, error) {
	buf := make([]byte, CodeLength)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

type CreateInput struct {
	ProjectID  *int64
	ModuleType repository.ModuleType
	CreatorID  int64
}

// Registry owns session lifecycle and the transcript log.
type Registry struct {
	cfg     *config.Config
	repo    repository.Repository
	webhook webhook.Sender
	discord discord.Client
	events  events.Publisher
	metrics *metrics.Metrics

	newCode CodeGenerator
	now     func() time.Time

	archives sync.WaitGroup
	log      *slog.Logger
}

// NewRegistry accepts a nil Publisher and a nil Metrics.
func NewRegistry(cfg *config.Config, repo repository.Repository, wh webhook.Sender, dc discord.Client, pub events.Publisher, m *metrics.Metrics) *Registry {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Registry{
		cfg:     cfg,
		repo:    repo,
		webhook: wh,
		discord: dc,
		events:  pub,
		metrics: m,
		newCode: RandomCode,
		now:     time.Now,
		log:     slog.With("component", "session_registry"),
	}
}

func (r *Registry) CreateSession(ctx context.Context, input CreateInput) (*repository.Session, error) {
	moduleType := input.ModuleType
	if moduleType == "" {
		moduleType = repository.ModuleTypePhysicalMeeting
	}
	if !moduleType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModuleType, input.ModuleType)
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate session code: %w", err)
		}
		exists, err := r.repo.SessionCodeExists(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("check session code: %w", err)
		}
		if exists {
			r.log.Debug("session code collision; retrying", "attempt", attempt)
			continue
		}
		sess, err := r.repo.CreateSession(ctx, repository.CreateSessionInput{
			Code:       code,
			ProjectID:  input.ProjectID,
			CreatedBy:  input.CreatorID,
			ModuleType: moduleType,
		})
		if errors.Is(err, repository.ErrCodeTaken) {
			r.log.Debug("session code taken concurrently; retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		r.log.Info("session created", "session_code", sess.Code, "session_id", sess.ID, "created_by", sess.CreatedBy, "module_type", sess.ModuleType)
		r.publishStatus(ctx, sess, sess.CreatedAt)
		return sess, nil
	}

	r.log.Error("session code generation exhausted", "attempts", maxCodeAttempts)
	return nil, ErrCodeGenerationExhausted
}

func (r *Registry) GetByCode(ctx context.Context, code string) (*repository.Session, error) {
	sess, err := r.repo.GetSessionByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", code, err)
	}
	return sess, nil
}

// Join returns the session only while it accepts participants.
func (r *Registry) Join(ctx context.Context, code string) (*repository.Session, error) {
	sess, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess.Status != repository.SessionStatusActive {
		return nil, ErrSessionNotActive
	}
	return sess, nil
}

// EndSession completes the session and archives its transcript in the background.
func (r *Registry) EndSession(ctx context.Context, code string, requesterID int64) (*repository.Session, error) {
	endedAt := r.now()
	sess, err := r.transition(ctx, code, requesterID, repository.SessionStatusCompleted, &endedAt)
	if err != nil {
		return nil, err
	}
	r.startArchive(*sess)
	return sess, nil
}

func (r *Registry) CancelSession(ctx context.Context, code string, requesterID int64) (*repository.Session, error) {
	return r.transition(ctx, code, requesterID, repository.SessionStatusCancelled, nil)
}

func (r *Registry) transition(ctx context.Context, code string, requesterID int64, to repository.SessionStatus, endedAt *time.Time) (*repository.Session, error) {
	sess, err := r.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if sess.CreatedBy != requesterID {
		r.log.Warn("session transition refused for non-creator", "session_code", code, "requester_id", requesterID, "to", to)
		return nil, ErrForbidden
	}
	if sess.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, sess.Status, to)
	}

	updated, err := r.repo.TransitionSession(ctx, repository.TransitionSessionInput{
		Code:    code,
		From:    sess.Status,
		To:      to,
		EndedAt: endedAt,
	})
	if errors.Is(err, repository.ErrStaleStatus) {
		return nil, fmt.Errorf("%w: session %s changed concurrently", ErrInvalidStateTransition, code)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transition session %s: %w", code, err)
	}
	r.log.Info("session transitioned", "session_code", code, "from", sess.Status, "to", to)
	r.publishStatus(ctx, updated, r.now())
	return updated, nil
}

func (r *Registry) AppendTranscript(ctx context.Context, input repository.AppendTranscriptInput) (*repository.TranscriptEntry, error) {
	entry, err := r.repo.AppendTranscript(ctx, input)
	switch {
	case errors.Is(err, repository.ErrSessionNotActive):
		return nil, ErrSessionNotActive
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("append transcript: %w", err)
	}
	return entry, nil
}

// ListTranscripts returns entries in persistence order.
func (r *Registry) ListTranscripts(ctx context.Context, sessionID int64) ([]repository.TranscriptEntry, error) {
	entries, err := r.repo.ListTranscripts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return entries, nil
}

func (r *Registry) ListByCreator(ctx context.Context, userID int64) ([]repository.Session, error) {
	sessions, err := r.repo.ListSessionsByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions by creator: %w", err)
	}
	return sessions, nil
}

// Wait blocks until every archive started by EndSession has finished.
func (r *Registry) Wait() {
	r.archives.Wait()
}

func (r *Registry) publishStatus(ctx context.Context, sess *repository.Session, at time.Time) {
	r.metrics.RecordSessionStatus(string(sess.Status))
	if err := r.events.PublishSessionStatus(ctx, events.SessionEvent{
		SessionCode: sess.Code,
		Status:      string(sess.Status),
		At:          at,
	}); err != nil {
		r.log.Warn("failed to publish session status", "session_code", sess.Code, "status", sess.Status, "error", err)
	}
}

func (r *Registry) startArchive(sess repository.Session) {
	r.archives.Add(1)
	go func() {
		defer r.archives.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		r.archive(ctx, sess)
	}()
}

func (r *Registry) archive(ctx context.Context, sess repository.Session) {
	entries, err := r.repo.ListTranscripts(ctx, sess.ID)
	if err != nil {
		r.log.Error("failed to load transcript for archive", "session_code", sess.Code, "error", err)
		return
	}
	if len(entries) == 0 {
		r.log.Info("no transcript entries; archive skipped", "session_code", sess.Code)
		return
	}

	endedAt := r.now()
	if sess.EndedAt != nil {
		endedAt = *sess.EndedAt
	}
	loc := r.cfg.Location()
	timezone := r.cfg.TranscriptTimezone

	if r.webhook != nil && r.cfg.TranscriptWebhookURL != "" {
		payload := buildTranscriptWebhookPayload(sess, endedAt, timezone, loc, entries)
		err := r.webhook.SendTranscript(ctx, payload)
		r.metrics.RecordArchive("webhook", err)
		if err != nil {
			r.log.Error("failed to send transcript webhook", "session_code", sess.Code, "error", err)
		} else {
			r.log.Info("transcript webhook sent", "session_code", sess.Code, "entries", len(entries))
		}
	}

	if r.discord != nil && r.cfg.DiscordArchiveChannelID != "" {
		err := r.discord.SendChannelMessageWithFile(discord.FileMessage{
			ChannelID: r.cfg.DiscordArchiveChannelID,
			Content:   messageArchiveTitle,
			Filename:  transcriptFilename(sess, loc),
			FileBody:  buildTranscriptText(sess, endedAt, timezone, loc, entries),
		})
		r.metrics.RecordArchive("discord", err)
		if err != nil {
			r.log.Error("failed to post transcript to discord", "session_code", sess.Code, "error", err)
		} else {
			r.log.Info("transcript posted to discord", "session_code", sess.Code, "entries", len(entries))
		}
	}
}
