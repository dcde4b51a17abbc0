package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/ko2bn/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string   `env:"ENV" envDefault:"production"`
	HTTPAddr                   string   `env:"HTTP_ADDR" envDefault:":8000"`
	DatabaseURL                string   `env:"DATABASE_URL,required"`
	GoogleCloudProjectID       string   `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string   `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string   `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string   `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	GeminiAPIKey               string   `env:"GEMINI_API_KEY,required"`
	GeminiTranslationModel     string   `env:"GEMINI_TRANSLATION_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiTTSModel             string   `env:"GEMINI_TTS_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	GeminiTTSVoice             string   `env:"GEMINI_TTS_VOICE" envDefault:"Kore"`
	LanguageCallTimeoutSec     int      `env:"LANGUAGE_CALL_TIMEOUT_SEC" envDefault:"0"`
	WSMaxMessageBytes          int64    `env:"WS_MAX_MESSAGE_BYTES" envDefault:"16777216"`
	WSWriteTimeoutSec          int      `env:"WS_WRITE_TIMEOUT_SEC" envDefault:"10"`
	AllowedOrigins             []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	TranscriptTimezone         string   `env:"TRANSCRIPT_TIMEZONE" envDefault:"Asia/Seoul"`
	TranscriptWebhookURL       string   `env:"TRANSCRIPT_WEBHOOK_URL"`
	DiscordToken               string   `env:"DISCORD_TOKEN"`
	DiscordArchiveChannelID    string   `env:"DISCORD_ARCHIVE_CHANNEL_ID"`
	NatsURL                    string   `env:"NATS_URL"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return loadFromEnv()
}

func loadFromEnv() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		DatabaseURL:                raw.DatabaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiTranslationModel:     raw.GeminiTranslationModel,
		GeminiTTSModel:             raw.GeminiTTSModel,
		GeminiTTSVoice:             raw.GeminiTTSVoice,
		LanguageCallTimeoutSec:     raw.LanguageCallTimeoutSec,
		WSMaxMessageBytes:          raw.WSMaxMessageBytes,
		WSWriteTimeoutSec:          raw.WSWriteTimeoutSec,
		AllowedOrigins:             raw.AllowedOrigins,
		TranscriptTimezone:         raw.TranscriptTimezone,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		DiscordToken:               raw.DiscordToken,
		DiscordArchiveChannelID:    raw.DiscordArchiveChannelID,
		NatsURL:                    raw.NatsURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
