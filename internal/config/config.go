package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Env                        string
	HTTPAddr                   string
	DatabaseURL                string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	GeminiAPIKey               string
	GeminiTranslationModel     string
	GeminiTTSModel             string
	GeminiTTSVoice             string
	LanguageCallTimeoutSec     int
	WSMaxMessageBytes          int64
	WSWriteTimeoutSec          int
	AllowedOrigins             []string
	TranscriptTimezone         string
	TranscriptWebhookURL       string
	DiscordToken               string
	DiscordArchiveChannelID    string
	NatsURL                    string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.LanguageCallTimeoutSec < 0 {
		return fmt.Errorf("LANGUAGE_CALL_TIMEOUT_SEC must not be negative, got %d", c.LanguageCallTimeoutSec)
	}
	if c.WSMaxMessageBytes <= 0 {
		return fmt.Errorf("WS_MAX_MESSAGE_BYTES must be positive, got %d", c.WSMaxMessageBytes)
	}
	if c.WSWriteTimeoutSec <= 0 {
		return fmt.Errorf("WS_WRITE_TIMEOUT_SEC must be positive, got %d", c.WSWriteTimeoutSec)
	}
	if (c.DiscordToken == "") != (c.DiscordArchiveChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_ARCHIVE_CHANNEL_ID must be set together")
	}
	if c.TranscriptTimezone == "" {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "GEMINI_API_KEY", value: c.GeminiAPIKey},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// LanguageCallTimeout is zero when external language calls run without a deadline.
func (c *Config) LanguageCallTimeout() time.Duration {
	return time.Duration(c.LanguageCallTimeoutSec) * time.Second
}

func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutSec) * time.Second
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TranscriptTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) OriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
