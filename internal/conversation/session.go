// Package conversation holds the ordered transcript sent to the model.
package conversation

import (
	"fmt"

	"github.com/google/uuid"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Turn is one message. Text is what the model receives; Display is what the
// user sees, and falls back to Text when empty.
type Turn struct {
	Role    Role
	Text    string
	Display string
}

// Shown returns the user-facing text of the turn.
func (t Turn) Shown() string {
	if t.Display != "" {
		return t.Display
	}
	return t.Text
}

// User builds a user turn whose displayed text differs from what is sent.
func User(text, display string) Turn {
	if display == text {
		display = ""
	}
	return Turn{Role: RoleUser, Text: text, Display: display}
}

// Model builds a model turn.
func Model(text string) Turn {
	return Turn{Role: RoleModel, Text: text}
}

// Session is an ordered turn list. It is a value type: every mutator returns
// a new Session and leaves the receiver untouched, so callers can hold on to
// earlier snapshots.
type Session struct {
	ID    string
	turns []Turn
}

// New returns an empty session with a fresh ID.
func New() Session {
	return Session{ID: uuid.NewString()}
}

// Len returns the number of turns.
func (s Session) Len() int {
	return len(s.turns)
}

// Empty reports whether the session has no turns.
func (s Session) Empty() bool {
	return len(s.turns) == 0
}

// Turns returns a copy of the transcript.
func (s Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Last returns the final turn.
func (s Session) Last() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Append returns s with t added.
func (s Session) Append(t Turn) Session {
	turns := make([]Turn, len(s.turns), len(s.turns)+1)
	copy(turns, s.turns)
	return Session{ID: s.ID, turns: append(turns, t)}
}

// Rewrite replaces the transmitted text of turn i, keeping its displayed text.
// Only the first user turn is ever rewritten.
func (s Session) Rewrite(i int, text string) (Session, error) {
	if i < 0 || i >= len(s.turns) {
		return s, fmt.Errorf("rewrite turn %d: out of range (len %d)", i, len(s.turns))
	}
	turns := s.Turns()
	t := turns[i]
	if t.Display == "" {
		t.Display = t.Text
	}
	t.Text = text
	turns[i] = t
	return Session{ID: s.ID, turns: turns}, nil
}

// Rollback truncates the session to n turns.
func (s Session) Rollback(n int) Session {
	if n < 0 {
		n = 0
	}
	if n >= len(s.turns) {
		return s
	}
	turns := make([]Turn, n)
	copy(turns, s.turns[:n])
	return Session{ID: s.ID, turns: turns}
}

// Wellformed reports whether every user turn except possibly the last is
// immediately followed by a model turn.
func (s Session) Wellformed() bool {
	for i, t := range s.turns {
		if t.Role != RoleUser || i == len(s.turns)-1 {
			continue
		}
		if s.turns[i+1].Role != RoleModel {
			return false
		}
	}
	return true
}
