package translator

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("translator is not configured")

type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}
