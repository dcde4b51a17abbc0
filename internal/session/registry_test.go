package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foxseedlab/ko2bn/internal/config"
	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/metrics"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/testutil"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

type registryFixture struct {
	registry  *Registry
	repo      *testutil.MockRepository
	webhook   *testutil.MockWebhookSender
	discord   *testutil.MockDiscordClient
	publisher *testutil.MockPublisher
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	cfg := &config.Config{
		TranscriptTimezone:      "Asia/Seoul",
		TranscriptWebhookURL:    "https://hooks.example.com/transcripts",
		DiscordArchiveChannelID: "archive-channel",
	}
	f := &registryFixture{
		repo:      testutil.NewMockRepository(),
		webhook:   &testutil.MockWebhookSender{},
		discord:   &testutil.MockDiscordClient{},
		publisher: &testutil.MockPublisher{},
	}
	f.registry = NewRegistry(cfg, f.repo, f.webhook, f.discord, f.publisher, nil)
	return f
}

func sequenceCodes(codes ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

// existsBlindRepository never reports a code as taken up front, so collisions
// only surface from CreateSession.
type existsBlindRepository struct {
	*testutil.MockRepository
}

func (existsBlindRepository) SessionCodeExists(context.Context, string) (bool, error) {
	return false, nil
}

func TestCreateSession_Defaults(t *testing.T) {
	f := newRegistryFixture(t)

	sess, err := f.registry.CreateSession(context.Background(), CreateInput{CreatorID: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sess.Code) != CodeLength || strings.Trim(sess.Code, "0123456789") != "" {
		t.Fatalf("expected %d-digit numeric code, got %q", CodeLength, sess.Code)
	}
	if sess.Status != repository.SessionStatusActive {
		t.Fatalf("expected active session, got %s", sess.Status)
	}
	if sess.ModuleType != repository.ModuleTypePhysicalMeeting {
		t.Fatalf("expected default module type, got %s", sess.ModuleType)
	}
	if len(f.publisher.SessionEvents) != 1 || f.publisher.SessionEvents[0].Status != "active" {
		t.Fatalf("expected one active status event, got %+v", f.publisher.SessionEvents)
	}
}

func TestCreateSession_InvalidModuleType(t *testing.T) {
	f := newRegistryFixture(t)
	_, err := f.registry.CreateSession(context.Background(), CreateInput{CreatorID: 7, ModuleType: "hologram"})
	if !errors.Is(err, ErrInvalidModuleType) {
		t.Fatalf("expected ErrInvalidModuleType, got %v", err)
	}
}

func TestCreateSession_RetriesFirstDrawCollision(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	f.registry.newCode = sequenceCodes("111111", "222222")

	sess, err := f.registry.CreateSession(context.Background(), CreateInput{CreatorID: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Code != "222222" {
		t.Fatalf("expected retried code, got %s", sess.Code)
	}
	if f.repo.CodeExistsCalls != 2 {
		t.Fatalf("expected two existence checks, got %d", f.repo.CodeExistsCalls)
	}
}

func TestCreateSession_RetriesInsertRace(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	f.registry.repo = existsBlindRepository{f.repo}
	f.registry.newCode = sequenceCodes("111111", "333333")

	sess, err := f.registry.CreateSession(context.Background(), CreateInput{CreatorID: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Code != "333333" {
		t.Fatalf("expected retried code, got %s", sess.Code)
	}
}

func TestCreateSession_Exhausted(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	f.registry.newCode = sequenceCodes("111111")

	_, err := f.registry.CreateSession(context.Background(), CreateInput{CreatorID: 7})
	if !errors.Is(err, ErrCodeGenerationExhausted) {
		t.Fatalf("expected ErrCodeGenerationExhausted, got %v", err)
	}
	if f.repo.CodeExistsCalls != maxCodeAttempts {
		t.Fatalf("expected %d attempts, got %d", maxCodeAttempts, f.repo.CodeExistsCalls)
	}
	if f.repo.CreateCalls != 0 {
		t.Fatalf("expected no inserts, got %d", f.repo.CreateCalls)
	}
}

func TestCreateSession_CodesAreUnique(t *testing.T) {
	f := newRegistryFixture(t)
	f.registry.newCode = sequenceCodes("100000", "100000", "100001", "100001", "100002")

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		sess, err := f.registry.CreateSession(context.Background(), CreateInput{CreatorID: 7})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[sess.Code] {
			t.Fatalf("duplicate code %s", sess.Code)
		}
		seen[sess.Code] = true
	}
}

func TestGetByCode_NotFound(t *testing.T) {
	f := newRegistryFixture(t)
	if _, err := f.registry.GetByCode(context.Background(), "000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoin_RequiresActive(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusCompleted, nil)
	if _, err := f.registry.Join(context.Background(), "111111"); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if _, err := f.registry.Join(context.Background(), "999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEndSession_ForbiddenForNonCreator(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)

	if _, err := f.registry.EndSession(context.Background(), "111111", 2); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	sess, _ := f.registry.GetByCode(context.Background(), "111111")
	if sess.Status != repository.SessionStatusActive {
		t.Fatalf("expected session to stay active, got %s", sess.Status)
	}
}

func TestEndSession_CompletesAndRejectsFurtherTransitions(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)

	sess, err := f.registry.EndSession(context.Background(), "111111", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.registry.Wait()
	if sess.Status != repository.SessionStatusCompleted || sess.EndedAt == nil {
		t.Fatalf("expected completed session with end time, got %+v", sess)
	}

	if _, err := f.registry.EndSession(context.Background(), "111111", 1); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition on second end, got %v", err)
	}
	if _, err := f.registry.CancelSession(context.Background(), "111111", 1); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition on cancel after end, got %v", err)
	}
}

func TestCancelSession_DoesNotStampEndTime(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)

	sess, err := f.registry.CancelSession(context.Background(), "111111", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != repository.SessionStatusCancelled || sess.EndedAt != nil {
		t.Fatalf("expected cancelled session without end time, got %+v", sess)
	}
	f.registry.Wait()
	if len(f.webhook.Payloads) != 0 {
		t.Fatal("expected no archive for cancelled session")
	}
}

func TestTransition_StaleStatusIsInvalidTransition(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	f.repo.TransitionErr = repository.ErrStaleStatus

	if _, err := f.registry.CancelSession(context.Background(), "111111", 1); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestAppendTranscript_RejectsInactiveSession(t *testing.T) {
	f := newRegistryFixture(t)
	sess := f.repo.AddSession("111111", 1, repository.SessionStatusCancelled, nil)

	_, err := f.registry.AppendTranscript(context.Background(), repository.AppendTranscriptInput{
		SessionID:        sess.ID,
		SpeakerName:      "late",
		OriginalText:     "hello",
		OriginalLanguage: language.English,
	})
	if !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if f.repo.TranscriptCount() != 0 {
		t.Fatal("expected no transcript entries")
	}
}

func TestEndSession_ArchivesTranscript(t *testing.T) {
	f := newRegistryFixture(t)
	sess := f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	hello := "Hello"
	_, err := f.registry.AppendTranscript(context.Background(), repository.AppendTranscriptInput{
		SessionID:        sess.ID,
		SpeakerName:      "Minji",
		OriginalText:     "안녕하세요",
		OriginalLanguage: language.Korean,
		Translations:     repository.Translations{En: &hello},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.registry.EndSession(context.Background(), "111111", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.registry.Wait()

	if len(f.webhook.Payloads) != 1 {
		t.Fatalf("expected one webhook payload, got %d", len(f.webhook.Payloads))
	}
	if f.webhook.Payloads[0].SessionCode != "111111" || f.webhook.Payloads[0].EntryCount != 1 {
		t.Fatalf("unexpected webhook payload: %+v", f.webhook.Payloads[0])
	}
	if len(f.discord.FileCalls) != 1 {
		t.Fatalf("expected one discord file message, got %d", len(f.discord.FileCalls))
	}
	msg := f.discord.FileCalls[0]
	if msg.ChannelID != "archive-channel" || !strings.HasPrefix(msg.Filename, "ko2bn_111111_") {
		t.Fatalf("unexpected discord message: %+v", msg)
	}
	if !strings.Contains(string(msg.FileBody), "[Minji] (ko) 안녕하세요") {
		t.Fatalf("unexpected archive body: %s", msg.FileBody)
	}
}

func TestEndSession_ArchiveFailureDoesNotFailEnd(t *testing.T) {
	f := newRegistryFixture(t)
	sess := f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	_, _ = f.registry.AppendTranscript(context.Background(), repository.AppendTranscriptInput{
		SessionID: sess.ID, SpeakerName: "A", OriginalText: "hi", OriginalLanguage: language.English,
	})
	f.webhook.Err = errors.New("webhook down")
	f.discord.Err = errors.New("discord down")

	if _, err := f.registry.EndSession(context.Background(), "111111", 1); err != nil {
		t.Fatalf("expected end to succeed despite archive failure, got %v", err)
	}
	f.registry.Wait()
}

func TestEndSession_NoWebhookURLSkipsWebhook(t *testing.T) {
	f := newRegistryFixture(t)
	m := metrics.New()
	f.registry.metrics = m
	f.registry.cfg.TranscriptWebhookURL = ""
	sess := f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	_, _ = f.registry.AppendTranscript(context.Background(), repository.AppendTranscriptInput{
		SessionID: sess.ID, SpeakerName: "A", OriginalText: "hi", OriginalLanguage: language.English,
	})

	if _, err := f.registry.EndSession(context.Background(), "111111", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.registry.Wait()

	if len(f.webhook.Payloads) != 0 {
		t.Fatalf("expected no webhook payload, got %d", len(f.webhook.Payloads))
	}
	if got := promtestutil.CollectAndCount(m.ArchiveDeliveries); got != 1 {
		t.Fatalf("expected only the discord archive series, got %d", got)
	}
	if len(f.discord.FileCalls) != 1 {
		t.Fatalf("expected discord archive to still run, got %d", len(f.discord.FileCalls))
	}
}

func TestListByCreator(t *testing.T) {
	f := newRegistryFixture(t)
	f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	f.repo.AddSession("222222", 2, repository.SessionStatusActive, nil)
	f.repo.AddSession("333333", 1, repository.SessionStatusCompleted, nil)

	sessions, err := f.registry.ListByCreator(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 2 || sessions[0].Code != "333333" {
		t.Fatalf("expected newest-first sessions of creator, got %+v", sessions)
	}
}

func TestEndSession_PublishesStatusAndRecordsMetrics(t *testing.T) {
	f := newRegistryFixture(t)
	m := metrics.New()
	f.registry.metrics = m
	sess := f.repo.AddSession("111111", 1, repository.SessionStatusActive, nil)
	_, _ = f.registry.AppendTranscript(context.Background(), repository.AppendTranscriptInput{
		SessionID: sess.ID, SpeakerName: "A", OriginalText: "hi", OriginalLanguage: language.English,
	})
	f.discord.Err = errors.New("discord down")

	if _, err := f.registry.EndSession(context.Background(), "111111", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.registry.Wait()

	if len(f.publisher.SessionEvents) != 1 || f.publisher.SessionEvents[0].Status != "completed" || f.publisher.SessionEvents[0].SessionCode != "111111" {
		t.Fatalf("expected one completed status event, got %+v", f.publisher.SessionEvents)
	}
	if got := promtestutil.ToFloat64(m.SessionTransitions.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected one completed transition, got %v", got)
	}
	if got := promtestutil.ToFloat64(m.ArchiveDeliveries.WithLabelValues("webhook", "ok")); got != 1 {
		t.Fatalf("expected one delivered webhook archive, got %v", got)
	}
	if got := promtestutil.ToFloat64(m.ArchiveDeliveries.WithLabelValues("discord", "error")); got != 1 {
		t.Fatalf("expected one failed discord archive, got %v", got)
	}
}
