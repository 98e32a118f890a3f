package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	EngineCloud     = "cloud"
	EngineDictation = "dictation"

	AudioFormatPCM     = "pcm"
	AudioFormatOggOpus = "ogg-opus"

	opusSampleRate = 48000
)

type Config struct {
	Env                        string
	ListenAddr                 string
	InputLanguage              string
	TargetLanguages            []string
	AutoStart                  bool
	MessageMaxLifetime         time.Duration
	Engine                     string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	OpenAIAPIKey               string
	OpenAIModel                string
	OpenAIBaseURL              string
	AudioInputPath             string
	AudioFormat                string
	AudioSampleRate            int
	AudioChannels              int
	DictationInputPath         string
	DatabaseURL                string
	TranscriptWebhookURL       string
	TranscriptTimezone         string
	DiscordToken               string
	DiscordMirrorChannelID     string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if strings.TrimSpace(req.value) == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.MessageMaxLifetime <= 0 {
		return fmt.Errorf("MESSAGE_MAX_LIFETIME must be positive, got %s", c.MessageMaxLifetime)
	}
	switch c.Engine {
	case EngineCloud:
		if err := c.validateCloud(); err != nil {
			return err
		}
	case EngineDictation:
	default:
		return fmt.Errorf("ENGINE must be %q or %q, got %q", EngineCloud, EngineDictation, c.Engine)
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	if c.DiscordMirrorChannelID != "" && c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required when DISCORD_MIRROR_CHANNEL_ID is set")
	}
	return nil
}

func (c *Config) validateCloud() error {
	if c.GoogleCloudProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required when ENGINE=%s", EngineCloud)
	}
	if c.GoogleCloudCredentialsJSON == "" {
		return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON is required when ENGINE=%s", EngineCloud)
	}
	if c.AudioSampleRate <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
	}
	if c.AudioChannels <= 0 {
		return fmt.Errorf("AUDIO_CHANNELS must be positive, got %d", c.AudioChannels)
	}
	switch c.AudioFormat {
	case AudioFormatPCM:
	case AudioFormatOggOpus:
		if c.AudioSampleRate != opusSampleRate {
			return fmt.Errorf("AUDIO_SAMPLE_RATE must be %d when AUDIO_FORMAT=%s", opusSampleRate, AudioFormatOggOpus)
		}
	default:
		return fmt.Errorf("AUDIO_FORMAT must be %q or %q, got %q", AudioFormatPCM, AudioFormatOggOpus, c.AudioFormat)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "INPUT_LANGUAGE", value: c.InputLanguage},
		{name: "TRANSCRIPT_TIMEZONE", value: c.TranscriptTimezone},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UsesArchive reports whether sessions are archived in PostgreSQL.
func (c *Config) UsesArchive() bool {
	return c.DatabaseURL != ""
}
