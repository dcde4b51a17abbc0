package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/ko2bn/internal/audio"
	"github.com/foxseedlab/ko2bn/internal/events"
	"github.com/foxseedlab/ko2bn/internal/glossary"
	"github.com/foxseedlab/ko2bn/internal/hub"
	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/metrics"
	"github.com/foxseedlab/ko2bn/internal/protocol"
	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/synthesizer"
	"github.com/foxseedlab/ko2bn/internal/transcriber"
	"github.com/foxseedlab/ko2bn/internal/translator"
)

// Pipeline turns one inbound utterance into a persisted, broadcast
// transcript entry. Calls for the same connection must not overlap; calls
// for different connections may run concurrently.
type Pipeline struct {
	registry   *Registry
	glossary   repository.GlossaryRepository
	hub        *hub.Hub
	stt        transcriber.Transcriber
	translator *glossary.Translator
	tts        synthesizer.Synthesizer
	opus       audio.OpusDecoder
	events     events.Publisher
	metrics    *metrics.Metrics

	// callTimeout bounds each external call when positive. Zero leaves
	// calls unbounded.
	callTimeout time.Duration
	log         *slog.Logger
}

type PipelineDeps struct {
	Registry    *Registry
	Glossary    repository.GlossaryRepository
	Hub         *hub.Hub
	Transcriber transcriber.Transcriber
	Translator  translator.Translator
	Synthesizer synthesizer.Synthesizer
	Opus        audio.OpusDecoder
	Events      events.Publisher
	Metrics     *metrics.Metrics
	CallTimeout time.Duration
}

func NewPipeline(d PipelineDeps) *Pipeline {
	pub := d.Events
	if pub == nil {
		pub = events.Noop{}
	}
	return &Pipeline{
		registry:    d.Registry,
		glossary:    d.Glossary,
		hub:         d.Hub,
		stt:         d.Transcriber,
		translator:  glossary.NewTranslator(d.Translator),
		tts:         d.Synthesizer,
		opus:        d.Opus,
		events:      pub,
		metrics:     d.Metrics,
		callTimeout: d.CallTimeout,
		log:         slog.With("component", "pipeline"),
	}
}

type utterance struct {
	text          string
	language      language.Code
	speakerName   string
	participantID *int64
}

// Handle processes one decoded client message from conn. ctx must not be
// tied to conn's lifetime: an utterance whose sender disconnects mid-way
// is still persisted and broadcast.
func (p *Pipeline) Handle(ctx context.Context, code string, conn hub.Conn, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.PingMessage:
		p.reply(ctx, code, conn, protocol.Pong{})
	case protocol.TextMessage:
		sess, ok := p.resolve(ctx, code, conn)
		if !ok {
			return
		}
		p.process(ctx, sess, conn, utterance{
			text:          m.Text,
			language:      m.Language,
			speakerName:   m.SpeakerName,
			participantID: m.ParticipantID,
		})
	case protocol.AudioMessage:
		sess, ok := p.resolve(ctx, code, conn)
		if !ok {
			return
		}
		p.handleAudio(ctx, sess, conn, m)
	default:
		p.log.Warn("unhandled client message", "session_code", code, "type", fmt.Sprintf("%T", msg))
	}
}

func (p *Pipeline) resolve(ctx context.Context, code string, conn hub.Conn) (*repository.Session, bool) {
	sess, err := p.registry.GetByCode(ctx, code)
	switch {
	case errors.Is(err, ErrNotFound):
		p.reply(ctx, code, conn, protocol.Error{Message: messageSessionNotFound})
		return nil, false
	case err != nil:
		p.log.Error("failed to resolve session", "session_code", code, "error", err)
		p.reply(ctx, code, conn, protocol.Error{Message: messageSessionLookupFailed})
		return nil, false
	case sess.Status != repository.SessionStatusActive:
		p.reply(ctx, code, conn, protocol.Error{Message: messageSessionNotActive})
		return nil, false
	}
	return sess, true
}

func (p *Pipeline) handleAudio(ctx context.Context, sess *repository.Session, conn hub.Conn, m protocol.AudioMessage) {
	input := transcriber.Input{Audio: m.Audio, Encoding: m.Encoding}
	if m.Encoding == protocol.EncodingOpusFrames {
		pcm, err := p.decodeOpusFrames(m.Audio)
		if err != nil {
			p.log.Warn("failed to decode opus frames", "session_code", sess.Code, "conn_id", conn.ID(), "error", err)
			msg := messageAudioDecodeFailed
			if errors.Is(err, audio.ErrOpusUnsupported) {
				msg = messageOpusUnsupported
			}
			p.reply(ctx, sess.Code, conn, protocol.Error{Message: msg})
			return
		}
		input = transcriber.Input{
			Audio:        pcm,
			Encoding:     transcriber.EncodingLinear16,
			SampleRateHz: audio.OpusSampleRate,
			Channels:     audio.OpusChannels,
		}
	}

	res := p.transcribe(ctx, sess.Code, input)
	if !res.IsOk() {
		p.hub.Broadcast(ctx, sess.Code, protocol.Error{Message: messageCouldNotTranscribe})
		return
	}
	p.process(ctx, sess, conn, utterance{
		text:          res.Value.Text,
		language:      res.Value.Language,
		speakerName:   m.SpeakerName,
		participantID: m.ParticipantID,
	})
}

func (p *Pipeline) decodeOpusFrames(framed []byte) ([]byte, error) {
	if p.opus == nil {
		return nil, audio.ErrOpusUnsupported
	}
	packets, err := audio.SplitPackets(framed)
	if err != nil {
		return nil, err
	}
	return p.opus.DecodePackets(packets)
}

func (p *Pipeline) transcribe(ctx context.Context, code string, input transcriber.Input) Result[transcriber.Result] {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	p.log.Debug("transcription started", "session_code", code, "encoding", input.Encoding, "audio_bytes", len(input.Audio))
	started := time.Now()
	res, err := p.stt.Transcribe(callCtx, input)
	p.metrics.ObserveCall(metrics.ServiceSTT, "", started, err)
	if err != nil {
		p.log.Error("transcription failed", "session_code", code, "error", err)
		return Fail[transcriber.Result](fmt.Errorf("%w: transcribe: %v", ErrExternalService, err))
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		p.log.Info("transcription returned no text", "session_code", code)
		return Fail[transcriber.Result](errors.New("empty transcription"))
	}
	if res.Language == "" {
		res.Language = language.Unknown
	}
	p.log.Info("transcription finished", "session_code", code, "detected_lang", res.Language, "chars", len([]rune(res.Text)))
	return Ok(res)
}

func (p *Pipeline) process(ctx context.Context, sess *repository.Session, conn hub.Conn, u utterance) {
	translations := p.translateAll(ctx, sess, u)

	var fields repository.Translations
	for _, target := range language.Targets {
		if r := translations[target]; r.IsOk() {
			fields.Set(target, r.Value)
		}
	}

	audioFiles := p.synthesizeAll(ctx, sess.Code, u, translations)

	p.log.Debug("persisting transcript", "session_code", sess.Code)
	started := time.Now()
	entry, err := p.registry.AppendTranscript(ctx, repository.AppendTranscriptInput{
		SessionID:        sess.ID,
		UserID:           u.participantID,
		SpeakerName:      u.speakerName,
		OriginalText:     u.text,
		OriginalLanguage: u.language,
		Translations:     fields,
	})
	p.metrics.ObserveCall(metrics.ServicePersistence, "", started, err)
	if errors.Is(err, ErrSessionNotActive) {
		p.log.Warn("session ended before transcript was saved", "session_code", sess.Code, "conn_id", conn.ID())
		p.reply(ctx, sess.Code, conn, protocol.Error{Message: messageSessionNotActive})
		return
	}
	if err != nil {
		p.log.Error("failed to persist transcript", "session_code", sess.Code, "conn_id", conn.ID(), "error", err)
		p.reply(ctx, sess.Code, conn, protocol.Error{Message: messageSaveFailed})
		return
	}
	p.log.Info("transcript persisted", "session_code", sess.Code, "entry_id", entry.ID, "audio_langs", len(audioFiles))
	p.metrics.RecordTranscript()

	p.hub.Broadcast(ctx, sess.Code, protocol.Transcript{
		ID:               entry.ID,
		SpeakerName:      entry.SpeakerName,
		OriginalText:     entry.OriginalText,
		OriginalLanguage: entry.OriginalLanguage,
		Translations: protocol.TranslationFields{
			Ko: entry.Translations.Ko,
			Bn: entry.Translations.Bn,
			En: entry.Translations.En,
		},
		AudioFiles: audioFiles,
		Timestamp:  entry.Timestamp,
	})

	if err := p.events.PublishTranscript(ctx, events.TranscriptEvent{
		SessionCode:      sess.Code,
		EntryID:          entry.ID,
		SpeakerName:      entry.SpeakerName,
		OriginalText:     entry.OriginalText,
		OriginalLanguage: string(entry.OriginalLanguage),
		Translations:     entry.Translations.ByLanguage(),
		Timestamp:        entry.Timestamp,
	}); err != nil {
		p.log.Warn("failed to publish transcript event", "session_code", sess.Code, "entry_id", entry.ID, "error", err)
	}
}

// translateAll returns one result per target language. The source language
// slot is the original text and costs no call. Each goroutine owns one slice
// index; the map is built only after all of them finish.
func (p *Pipeline) translateAll(ctx context.Context, sess *repository.Session, u utterance) map[language.Code]Result[string] {
	results := make([]Result[string], len(language.Targets))
	var wg sync.WaitGroup
	for i, target := range language.Targets {
		if target == u.language {
			results[i] = Ok(u.text)
			continue
		}
		wg.Add(1)
		go func(i int, target language.Code) {
			defer wg.Done()
			results[i] = p.translate(ctx, sess, u, target)
		}(i, target)
	}
	wg.Wait()

	out := make(map[language.Code]Result[string], len(language.Targets))
	for i, target := range language.Targets {
		out[target] = results[i]
	}
	return out
}

func (p *Pipeline) translate(ctx context.Context, sess *repository.Session, u utterance, target language.Code) Result[string] {
	source := u.language.TranslationSource()
	terms := p.glossaryTerms(ctx, sess, source, target)

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	p.log.Debug("translation started", "session_code", sess.Code, "source_lang", source, "target_lang", target, "terms", len(terms))
	started := time.Now()
	res, err := p.translator.Translate(callCtx, translator.Request{
		Text:   u.text,
		Source: source,
		Target: target,
	}, terms)
	p.metrics.ObserveCall(metrics.ServiceTranslation, string(target), started, err)
	if err != nil {
		p.log.Warn("translation failed", "session_code", sess.Code, "target_lang", target, "error", err)
		return Fail[string](fmt.Errorf("%w: translate to %s: %v", ErrExternalService, target, err))
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		p.log.Warn("translation returned empty text", "session_code", sess.Code, "target_lang", target)
		return Fail[string](fmt.Errorf("%w: empty translation to %s", ErrExternalService, target))
	}
	p.log.Info("translation finished", "session_code", sess.Code, "target_lang", target, "confidence", res.Confidence)
	return Ok(text)
}

// glossaryTerms applies only when the session belongs to a project and the
// source language is known.
func (p *Pipeline) glossaryTerms(ctx context.Context, sess *repository.Session, source, target language.Code) []glossary.Term {
	if sess.ProjectID == nil || source == language.Auto || p.glossary == nil {
		return nil
	}
	rows, err := p.glossary.ListGlossaryTerms(ctx, *sess.ProjectID, source, target)
	if err != nil {
		p.log.Warn("failed to load glossary; translating without terms", "session_code", sess.Code, "project_id", *sess.ProjectID, "target_lang", target, "error", err)
		return nil
	}
	return glossary.TermsFromRepository(rows)
}

func (p *Pipeline) synthesizeAll(ctx context.Context, code string, u utterance, translations map[language.Code]Result[string]) map[language.Code]string {
	results := make(map[language.Code]Result[synthesizer.Audio], len(language.Targets))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, target := range language.Targets {
		r := translations[target]
		if !r.IsOk() || r.Value == "" || r.Value == u.text {
			continue
		}
		wg.Add(1)
		go func(target language.Code, text string) {
			defer wg.Done()
			res := p.synthesize(ctx, code, text, target)
			mu.Lock()
			results[target] = res
			mu.Unlock()
		}(target, r.Value)
	}
	wg.Wait()

	files := make(map[language.Code]string, len(results))
	for target, r := range results {
		if r.IsOk() {
			files[target] = base64.StdEncoding.EncodeToString(r.Value.Data)
		}
	}
	return files
}

func (p *Pipeline) synthesize(ctx context.Context, code, text string, lang language.Code) Result[synthesizer.Audio] {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	p.log.Debug("speech synthesis started", "session_code", code, "target_lang", lang)
	started := time.Now()
	a, err := p.tts.Synthesize(callCtx, text, lang)
	p.metrics.ObserveCall(metrics.ServiceTTS, string(lang), started, err)
	if err != nil {
		p.log.Warn("speech synthesis failed; audio omitted", "session_code", code, "target_lang", lang, "error", err)
		return Fail[synthesizer.Audio](fmt.Errorf("%w: synthesize %s: %v", ErrExternalService, lang, err))
	}
	if len(a.Data) == 0 {
		p.log.Warn("speech synthesis returned no audio", "session_code", code, "target_lang", lang)
		return Fail[synthesizer.Audio](fmt.Errorf("%w: empty audio for %s", ErrExternalService, lang))
	}
	p.log.Info("speech synthesis finished", "session_code", code, "target_lang", lang, "audio_bytes", len(a.Data))
	return Ok(a)
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.callTimeout > 0 {
		return context.WithTimeout(ctx, p.callTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) reply(ctx context.Context, code string, conn hub.Conn, msg protocol.ServerMessage) {
	if err := p.hub.SendTo(ctx, conn, msg); err != nil {
		p.log.Warn("failed to reply to connection", "session_code", code, "conn_id", conn.ID(), "kind", msg.Kind(), "error", err)
	}
}
