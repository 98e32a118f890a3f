package api

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/foxseedlab/transrelay/internal/message"
)

const (
	languageParam           = "Language"
	misspelledLanguageParam = "Langauge"

	responseOK              = "OK"
	responseMissingLanguage = "Missing Language parameter"
	responseUnknownPrefix   = "Unknown Command: "
	responseInternalError   = "Internal Error"
)

// TargetSet is the mutable set of translation targets.
type TargetSet interface {
	SetSingle(lang string) bool
	Add(lang string) bool
	Remove(lang string) bool
}

// MessageSource hands out fresh messages, removing them from the queue.
type MessageSource interface {
	DrainFresh(maxAge time.Duration) []message.Message
}

type Handler struct {
	targets     TargetSet
	messages    MessageSource
	maxLifetime time.Duration
}

func NewHandler(targets TargetSet, messages MessageSource, maxLifetime time.Duration) *Handler {
	return &Handler{targets: targets, messages: messages, maxLifetime: maxLifetime}
}

func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	h.mutateTargets(w, r, "SetLanguage", h.targets.SetSingle)
}

func (h *Handler) AddLanguage(w http.ResponseWriter, r *http.Request) {
	h.mutateTargets(w, r, "AddLanguage", h.targets.Add)
}

func (h *Handler) RemoveLanguage(w http.ResponseWriter, r *http.Request) {
	h.mutateTargets(w, r, "RemoveLanguage", h.targets.Remove)
}

func (h *Handler) GetMessages(w http.ResponseWriter, _ *http.Request) {
	writeText(w, message.Render(h.messages.DrainFresh(h.maxLifetime)))
}

func (h *Handler) UnknownCommand(w http.ResponseWriter, r *http.Request) {
	slog.Warn("unknown command", "method", r.Method, "path", r.URL.Path)
	writeText(w, responseUnknownPrefix+r.URL.Path)
}

func (h *Handler) mutateTargets(w http.ResponseWriter, r *http.Request, command string, mutate func(string) bool) {
	lang, ok := languageFromQuery(r)
	if !ok {
		slog.Warn("language parameter missing", "command", command)
		writeText(w, responseMissingLanguage)
		return
	}
	changed := mutate(lang)
	slog.Info("target languages updated", "command", command, "language", lang, "changed", changed)
	writeText(w, responseOK)
}

func languageFromQuery(r *http.Request) (string, bool) {
	q := r.URL.Query()
	if lang := strings.TrimSpace(q.Get(languageParam)); lang != "" {
		return lang, true
	}
	if lang := strings.TrimSpace(q.Get(misspelledLanguageParam)); lang != "" {
		slog.Warn("deprecated query key used", "key", misspelledLanguageParam, "path", r.URL.Path)
		return lang, true
	}
	return "", false
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
