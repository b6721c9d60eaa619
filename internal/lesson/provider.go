// Package lesson loads and serves the lesson catalog from static definition
// files.
package lesson

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"codetutor/internal/domain"
)

// Provider serves lessons to the tutor core.
type Provider interface {
	// Get returns the lesson with the given id, or
	// domain.ErrLessonNotFound.
	Get(id string) (*domain.Lesson, error)

	// All returns lesson summaries in catalog order.
	All() []domain.LessonSummary
}

// DirProvider is a Provider backed by a directory of YAML lesson files,
// ordered by lesson id.
type DirProvider struct {
	lessons map[string]*domain.Lesson
	order   []string
}

// LoadDir reads every *.yaml/*.yml file in dir as a lesson definition. A
// missing directory yields an empty catalog rather than an error.
func LoadDir(dir string) (*DirProvider, error) {
	p := &DirProvider{lessons: make(map[string]*domain.Lesson)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Lessons directory does not exist", "dir", dir)
			return p, nil
		}
		return nil, fmt.Errorf("read lessons directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read lesson file %s: %w", path, err)
		}

		var l domain.Lesson
		if err := yaml.Unmarshal(data, &l); err != nil {
			return nil, fmt.Errorf("parse lesson file %s: %w", path, err)
		}
		if l.ID == "" {
			return nil, fmt.Errorf("lesson file %s has no id", path)
		}

		slog.Info("Loaded lesson", "id", l.ID, "title", l.Title)
		p.order = append(p.order, l.ID)
		p.lessons[l.ID] = &l
	}

	sort.Strings(p.order)
	return p, nil
}

// Get returns the lesson with the given id.
func (p *DirProvider) Get(id string) (*domain.Lesson, error) {
	l, ok := p.lessons[id]
	if !ok {
		return nil, domain.ErrLessonNotFound
	}
	return l, nil
}

// All returns lesson summaries in id order.
func (p *DirProvider) All() []domain.LessonSummary {
	summaries := make([]domain.LessonSummary, 0, len(p.order))
	for _, id := range p.order {
		summaries = append(summaries, p.lessons[id].Summary())
	}
	return summaries
}
