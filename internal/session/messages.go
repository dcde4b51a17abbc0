package session

import "github.com/foxseedlab/ko2bn/internal/repository"

const (
	messageSessionNotFound     = "session not found"
	messageSessionNotActive    = "session is not active"
	messageSessionLookupFailed = "failed to load session"
	messageCouldNotTranscribe  = "could not transcribe audio"
	messageAudioDecodeFailed   = "could not decode audio"
	messageOpusUnsupported     = "opus_frames audio is not supported by this server"
	messageSaveFailed          = "failed to save transcript"

	messageArchiveTitle = ":page_facing_up:  **Meeting transcript**"
)

func moduleTypeLabel(m repository.ModuleType) string {
	switch m {
	case repository.ModuleTypeVirtualMeeting:
		return "Virtual meeting"
	default:
		return "Physical meeting"
	}
}
