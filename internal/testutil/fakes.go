package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/foxseedlab/ko2bn/internal/discord"
	"github.com/foxseedlab/ko2bn/internal/events"
	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/synthesizer"
	"github.com/foxseedlab/ko2bn/internal/transcriber"
	"github.com/foxseedlab/ko2bn/internal/translator"
	"github.com/foxseedlab/ko2bn/internal/webhook"
)

type FakeTranscriber struct {
	mu sync.Mutex

	Result transcriber.Result
	Err    error
	Inputs []transcriber.Input
}

func (f *FakeTranscriber) Transcribe(_ context.Context, input transcriber.Input) (transcriber.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Inputs = append(f.Inputs, input)
	if f.Err != nil {
		return transcriber.Result{}, f.Err
	}
	return f.Result, nil
}

// FakeTranslator answers "[target] text" unless Texts or Fail says otherwise.
type FakeTranslator struct {
	mu sync.Mutex

	Texts    map[language.Code]string
	Fail     map[language.Code]error
	Requests []translator.Request
	// Block, when set, is waited on before answering.
	Block chan struct{}
}

func (f *FakeTranslator) Translate(ctx context.Context, req translator.Request) (translator.Result, error) {
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return translator.Result{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if err := f.Fail[req.Target]; err != nil {
		return translator.Result{}, err
	}
	if text, ok := f.Texts[req.Target]; ok {
		return translator.Result{Text: text, Confidence: 0.95}, nil
	}
	return translator.Result{Text: fmt.Sprintf("[%s] %s", req.Target, req.Text), Confidence: 0.95}, nil
}

func (f *FakeTranslator) RequestsFor(target language.Code) []translator.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []translator.Request
	for _, r := range f.Requests {
		if r.Target == target {
			out = append(out, r)
		}
	}
	return out
}

type SynthesisCall struct {
	Text string
	Lang language.Code
}

type FakeSynthesizer struct {
	mu sync.Mutex

	Fail  map[language.Code]error
	Calls []SynthesisCall
}

func (f *FakeSynthesizer) Synthesize(_ context.Context, text string, lang language.Code) (synthesizer.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, SynthesisCall{Text: text, Lang: lang})
	if err := f.Fail[lang]; err != nil {
		return synthesizer.Audio{}, err
	}
	return synthesizer.Audio{Data: []byte("wav:" + string(lang)), MIMEType: "audio/wav"}, nil
}

func (f *FakeSynthesizer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

type FakeOpusDecoder struct {
	PCM     []byte
	Err     error
	Packets [][]byte
}

func (f *FakeOpusDecoder) DecodePackets(packets [][]byte) ([]byte, error) {
	f.Packets = packets
	if f.Err != nil {
		return nil, f.Err
	}
	return f.PCM, nil
}

type MockWebhookSender struct {
	mu       sync.Mutex
	Err      error
	Payloads []webhook.TranscriptWebhookPayload
}

func (m *MockWebhookSender) SendTranscript(_ context.Context, payload webhook.TranscriptWebhookPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payloads = append(m.Payloads, payload)
	return m.Err
}

type MockDiscordClient struct {
	mu        sync.Mutex
	Err       error
	FileCalls []discord.FileMessage
}

func (m *MockDiscordClient) SendChannelMessageWithFile(msg discord.FileMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FileCalls = append(m.FileCalls, msg)
	return m.Err
}

type MockPublisher struct {
	mu            sync.Mutex
	Err           error
	Transcripts   []events.TranscriptEvent
	SessionEvents []events.SessionEvent
}

func (m *MockPublisher) PublishTranscript(_ context.Context, event events.TranscriptEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transcripts = append(m.Transcripts, event)
	return m.Err
}

func (m *MockPublisher) PublishSessionStatus(_ context.Context, event events.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionEvents = append(m.SessionEvents, event)
	return m.Err
}

func (m *MockPublisher) TranscriptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Transcripts)
}
