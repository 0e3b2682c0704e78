package store

import (
	"context"
	"fmt"
)

// Persisted keys outside the task handoff.
const (
	KeyTheme        = "theme"
	KeyProjectStack = "projectStack"
)

// Theme is the panel color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark:
		return Theme(s), nil
	}
	return "", fmt.Errorf("unknown theme %q (want light or dark)", s)
}

// Theme returns the saved theme, light when unset.
func (s *KV) Theme(ctx context.Context) (Theme, error) {
	v, ok, err := s.Get(ctx, KeyTheme)
	if err != nil {
		return ThemeLight, err
	}
	if !ok || Theme(v) != ThemeDark {
		return ThemeLight, nil
	}
	return ThemeDark, nil
}

// SetTheme saves the theme.
func (s *KV) SetTheme(ctx context.Context, t Theme) error {
	return s.Set(ctx, KeyTheme, string(t))
}

// ProjectStack returns the stack label classified for the current project session.
func (s *KV) ProjectStack(ctx context.Context) (string, bool, error) {
	return s.Get(ctx, KeyProjectStack)
}

// SetProjectStack saves the classified stack label.
func (s *KV) SetProjectStack(ctx context.Context, stack string) error {
	return s.Set(ctx, KeyProjectStack, stack)
}

// ForgetProjectStack removes the stack label so a new project session reclassifies.
func (s *KV) ForgetProjectStack(ctx context.Context) error {
	return s.Delete(ctx, KeyProjectStack)
}
