package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/transrelay/internal/config"
)

const configFileEnvKey = "CONFIG_FILE"

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	ListenAddr                 string        `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8083"`
	InputLanguage              string        `env:"INPUT_LANGUAGE" envDefault:"en-US"`
	TargetLanguages            []string      `env:"TARGET_LANGUAGES" envSeparator:","`
	AutoStart                  bool          `env:"AUTO_START" envDefault:"false"`
	MessageMaxLifetime         time.Duration `env:"MESSAGE_MAX_LIFETIME" envDefault:"5m"`
	Engine                     string        `env:"ENGINE" envDefault:"cloud"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	OpenAIAPIKey               string        `env:"OPENAI_API_KEY"`
	OpenAIModel                string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL              string        `env:"OPENAI_BASE_URL"`
	AudioInputPath             string        `env:"AUDIO_INPUT_PATH" envDefault:"-"`
	AudioFormat                string        `env:"AUDIO_FORMAT" envDefault:"pcm"`
	AudioSampleRate            int           `env:"AUDIO_SAMPLE_RATE" envDefault:"16000"`
	AudioChannels              int           `env:"AUDIO_CHANNELS" envDefault:"1"`
	DictationInputPath         string        `env:"DICTATION_INPUT_PATH" envDefault:"-"`
	DatabaseURL                string        `env:"DATABASE_URL"`
	TranscriptWebhookURL       string        `env:"TRANSCRIPT_WEBHOOK_URL"`
	TranscriptTimezone         string        `env:"TRANSCRIPT_TIMEZONE" envDefault:"UTC"`
	DiscordToken               string        `env:"DISCORD_TOKEN"`
	DiscordMirrorChannelID     string        `env:"DISCORD_MIRROR_CHANNEL_ID"`
}

func Load() (*internalconfig.Config, error) {
	return load(os.Environ())
}

func load(environ []string) (*internalconfig.Config, error) {
	environment := toMap(environ)
	if path := environment[configFileEnvKey]; path != "" {
		fileValues, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileValues {
			if _, ok := environment[k]; !ok {
				environment[k] = v
			}
		}
	}

	var raw envConfig
	if err := env.ParseWithOptions(&raw, env.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		InputLanguage:              strings.TrimSpace(raw.InputLanguage),
		TargetLanguages:            cleanList(raw.TargetLanguages),
		AutoStart:                  raw.AutoStart,
		MessageMaxLifetime:         raw.MessageMaxLifetime,
		Engine:                     strings.ToLower(strings.TrimSpace(raw.Engine)),
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		OpenAIAPIKey:               raw.OpenAIAPIKey,
		OpenAIModel:                raw.OpenAIModel,
		OpenAIBaseURL:              raw.OpenAIBaseURL,
		AudioInputPath:             raw.AudioInputPath,
		AudioFormat:                strings.ToLower(strings.TrimSpace(raw.AudioFormat)),
		AudioSampleRate:            raw.AudioSampleRate,
		AudioChannels:              raw.AudioChannels,
		DictationInputPath:         raw.DictationInputPath,
		DatabaseURL:                raw.DatabaseURL,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		TranscriptTimezone:         raw.TranscriptTimezone,
		DiscordToken:               raw.DiscordToken,
		DiscordMirrorChannelID:     raw.DiscordMirrorChannelID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func toMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
