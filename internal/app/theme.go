package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

func (t Theme) IsValid() bool {
	return t == ThemeLight || t == ThemeDark
}

// ThemeStore persists the client-local theme key.
type ThemeStore interface {
	// Load returns ok=false when nothing has been saved yet.
	Load() (theme Theme, ok bool, err error)
	Save(Theme) error
}

type prefs struct {
	Theme Theme `yaml:"theme"`
}

// FileThemeStore keeps preferences in a small YAML file.
type FileThemeStore struct {
	path string
}

func NewFileThemeStore(path string) *FileThemeStore {
	return &FileThemeStore{path: path}
}

func (s *FileThemeStore) Load() (Theme, bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var p prefs
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return "", false, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if !p.Theme.IsValid() {
		return "", false, nil
	}
	return p.Theme, true, nil
}

func (s *FileThemeStore) Save(t Theme) error {
	raw, err := yaml.Marshal(prefs{Theme: t})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	// write then rename so a crash never leaves a half-written file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
