package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
}

// CloudSpeechTranscriber recognises one utterance per call with the Speech
// v2 Recognize API, letting the service pick among the meeting languages.
type CloudSpeechTranscriber struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string

	mu     sync.Mutex
	client *speech.Client
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig) *CloudSpeechTranscriber {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	return &CloudSpeechTranscriber{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		location:        location,
		model:           strings.TrimSpace(cfg.Model),
	}
}

func (t *CloudSpeechTranscriber) speechClient(ctx context.Context) (*speech.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client, nil
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("cloud speech client initialized", "location", t.location, "model", t.model)
	t.client = client
	return client, nil
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, input transcriber.Input) (transcriber.Result, error) {
	client, err := t.speechClient(ctx)
	if err != nil {
		return transcriber.Result{Language: language.Unknown}, err
	}

	req := t.buildRecognizeRequest(input)
	resp, err := client.Recognize(ctx, req)
	if err != nil && isRetryableRecognizeError(err) {
		slog.Warn("cloud speech recognize failed with retryable error; retrying once", "error", err)
		resp, err = client.Recognize(ctx, req)
	}
	if err != nil {
		return transcriber.Result{Language: language.Unknown}, fmt.Errorf("recognize: %w", err)
	}
	return resultFromResponse(resp), nil
}

func (t *CloudSpeechTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *CloudSpeechTranscriber) buildRecognizeRequest(input transcriber.Input) *speechpb.RecognizeRequest {
	langs := make([]string, 0, len(language.Targets))
	for _, l := range language.Targets {
		langs = append(langs, l.BCP47())
	}
	cfg := &speechpb.RecognitionConfig{
		Model:         t.model,
		LanguageCodes: langs,
		Features: &speechpb.RecognitionFeatures{
			EnableAutomaticPunctuation: true,
		},
	}
	setDecodingConfig(cfg, input)
	return &speechpb.RecognizeRequest{
		Recognizer:  fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.projectID, t.location),
		Config:      cfg,
		AudioSource: &speechpb.RecognizeRequest_Content{Content: input.Audio},
	}
}

// setDecodingConfig spells out raw PCM; containers are left to the service's
// header detection.
func setDecodingConfig(cfg *speechpb.RecognitionConfig, input transcriber.Input) {
	if input.Encoding != transcriber.EncodingLinear16 {
		cfg.DecodingConfig = &speechpb.RecognitionConfig_AutoDecodingConfig{
			AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
		}
		return
	}
	channels := input.Channels
	if channels <= 0 {
		channels = 1
	}
	cfg.DecodingConfig = &speechpb.RecognitionConfig_ExplicitDecodingConfig{
		ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
			Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
			SampleRateHertz:   int32(input.SampleRateHz),
			AudioChannelCount: int32(channels),
		},
	}
}

func resultFromResponse(resp *speechpb.RecognizeResponse) transcriber.Result {
	var (
		parts []string
		lang  = language.Unknown
	)
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		text := strings.TrimSpace(alts[0].GetTranscript())
		if text == "" {
			continue
		}
		parts = append(parts, text)
		if lang == language.Unknown && result.GetLanguageCode() != "" {
			lang = language.Parse(result.GetLanguageCode())
		}
	}
	if len(parts) == 0 {
		return transcriber.Result{Language: language.Unknown}
	}
	return transcriber.Result{Text: strings.Join(parts, " "), Language: lang}
}

func isRetryableRecognizeError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.Unavailable || st.Code() == codes.ResourceExhausted
}
