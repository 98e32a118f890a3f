package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/foxseedlab/transrelay/internal/translator"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const systemPromptFormat = "You translate live speech transcripts from %s to %s. Reply with the translation only, without quotes or commentary."

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAITranslator struct {
	client     openai.Client
	model      string
	configured bool
}

func NewOpenAITranslator(cfg OpenAIConfig) translator.Translator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAITranslator{
		client:     openai.NewClient(opts...),
		model:      strings.TrimSpace(cfg.Model),
		configured: strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (t *OpenAITranslator) Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error) {
	if !t.configured {
		return "", translator.ErrNotConfigured
	}
	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPromptFormat, sourceLanguage, targetLanguage)),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("translate to %s: status %d: %w", targetLanguage, apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("translate to %s: %w", targetLanguage, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translate to %s: empty response", targetLanguage)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
