package target

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
)

type Restarter interface {
	RequestRestart(targets []string)
}

// Set is the mutable set of translation target languages. Every mutator that
// changes membership requests exactly one restart; mutators that leave the set
// as it was request none.
type Set struct {
	mu        sync.Mutex
	langs     map[string]struct{}
	restarter Restarter
}

func NewSet(restarter Restarter, initial ...string) *Set {
	s := &Set{
		langs:     make(map[string]struct{}, len(initial)),
		restarter: restarter,
	}
	for _, lang := range initial {
		if lang = normalize(lang); lang != "" {
			s.langs[lang] = struct{}{}
		}
	}
	return s
}

func (s *Set) SetSingle(lang string) bool {
	lang = normalize(lang)
	return s.apply("set", lang, func(langs map[string]struct{}) bool {
		if _, ok := langs[lang]; ok && len(langs) == 1 {
			return false
		}
		clear(langs)
		langs[lang] = struct{}{}
		return true
	})
}

func (s *Set) Add(lang string) bool {
	lang = normalize(lang)
	return s.apply("add", lang, func(langs map[string]struct{}) bool {
		if _, ok := langs[lang]; ok {
			return false
		}
		langs[lang] = struct{}{}
		return true
	})
}

func (s *Set) Remove(lang string) bool {
	lang = normalize(lang)
	return s.apply("remove", lang, func(langs map[string]struct{}) bool {
		if _, ok := langs[lang]; !ok {
			return false
		}
		delete(langs, lang)
		return true
	})
}

func (s *Set) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Set) Contains(lang string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.langs[normalize(lang)]
	return ok
}

// apply is the only place where membership changes.
func (s *Set) apply(op, lang string, mutate func(map[string]struct{}) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !mutate(s.langs) {
		slog.Debug("translation targets unchanged", "op", op, "language", lang)
		return false
	}
	snapshot := s.snapshotLocked()
	slog.Info("translation targets changed", "op", op, "language", lang, "targets", snapshot)
	if s.restarter != nil {
		s.restarter.RequestRestart(snapshot)
	}
	return true
}

func (s *Set) snapshotLocked() []string {
	list := make([]string, 0, len(s.langs))
	for lang := range s.langs {
		list = append(list, lang)
	}
	slices.Sort(list)
	return list
}

func normalize(lang string) string {
	return strings.TrimSpace(lang)
}
