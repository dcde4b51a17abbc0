package transcriber

import (
	"errors"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/ko2bn/internal/language"
	"github.com/foxseedlab/ko2bn/internal/transcriber"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestBuildRecognizeRequest_ContainerUsesAutoDecoding(t *testing.T) {
	tr := NewCloudSpeechTranscriber(CloudSpeechConfig{ProjectID: "p", Location: "asia-northeast1", Model: "chirp_3"})
	req := tr.buildRecognizeRequest(transcriber.Input{Audio: []byte("webm"), Encoding: transcriber.EncodingWebmOpus})

	if req.GetRecognizer() != "projects/p/locations/asia-northeast1/recognizers/_" {
		t.Fatalf("unexpected recognizer: %s", req.GetRecognizer())
	}
	if req.GetConfig().GetAutoDecodingConfig() == nil {
		t.Fatal("expected auto decoding config for container audio")
	}
	got := req.GetConfig().GetLanguageCodes()
	if len(got) != 3 || got[0] != "ko-KR" || got[1] != "bn-BD" || got[2] != "en-US" {
		t.Fatalf("unexpected language codes: %v", got)
	}
	if string(req.GetContent()) != "webm" {
		t.Fatalf("unexpected content: %q", req.GetContent())
	}
}

func TestBuildRecognizeRequest_Linear16UsesExplicitDecoding(t *testing.T) {
	tr := NewCloudSpeechTranscriber(CloudSpeechConfig{ProjectID: "p"})
	req := tr.buildRecognizeRequest(transcriber.Input{
		Audio: []byte{0, 1}, Encoding: transcriber.EncodingLinear16, SampleRateHz: 48000, Channels: 1,
	})

	explicit := req.GetConfig().GetExplicitDecodingConfig()
	if explicit == nil {
		t.Fatal("expected explicit decoding config")
	}
	if explicit.GetEncoding() != speechpb.ExplicitDecodingConfig_LINEAR16 || explicit.GetSampleRateHertz() != 48000 || explicit.GetAudioChannelCount() != 1 {
		t.Fatalf("unexpected explicit config: %+v", explicit)
	}
	if req.GetRecognizer() != "projects/p/locations/global/recognizers/_" {
		t.Fatalf("expected global location by default, got %s", req.GetRecognizer())
	}
}

func TestResultFromResponse(t *testing.T) {
	resp := &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{},
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " 안녕하세요 "}},
				LanguageCode: "ko-kr",
			},
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "반갑습니다"}},
				LanguageCode: "en-us",
			},
		},
	}
	got := resultFromResponse(resp)
	if got.Text != "안녕하세요 반갑습니다" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
	if got.Language != language.Korean {
		t.Fatalf("expected language of first result, got %s", got.Language)
	}
}

func TestResultFromResponse_Empty(t *testing.T) {
	got := resultFromResponse(&speechpb.RecognizeResponse{})
	if got.Text != "" || got.Language != language.Unknown {
		t.Fatalf("expected empty unknown result, got %+v", got)
	}
}

func TestIsRetryableRecognizeError(t *testing.T) {
	if !isRetryableRecognizeError(status.Error(codes.Unavailable, "try again")) {
		t.Fatal("expected unavailable to be retryable")
	}
	if isRetryableRecognizeError(status.Error(codes.InvalidArgument, "bad audio")) {
		t.Fatal("expected invalid argument not to be retryable")
	}
	if isRetryableRecognizeError(errors.New("plain")) {
		t.Fatal("expected non-grpc error not to be retryable")
	}
}
