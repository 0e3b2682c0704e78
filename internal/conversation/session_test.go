package conversation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionHasFreshID(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Empty())
}

func TestAppendDoesNotAlias(t *testing.T) {
	s := New().Append(User("hi", ""))
	left := s.Append(Model("one"))
	right := s.Append(Model("two"))

	assert.Equal(t, 1, s.Len())
	lt, _ := left.Last()
	rt, _ := right.Last()
	assert.Equal(t, "one", lt.Text)
	assert.Equal(t, "two", rt.Text)
}

func TestRewriteKeepsDisplay(t *testing.T) {
	s := New().Append(User("Build a todo app", ""))

	s, err := s.Rewrite(0, "You are an expert React mentor... Build a todo app")
	require.NoError(t, err)

	want := []Turn{{
		Role:    RoleUser,
		Text:    "You are an expert React mentor... Build a todo app",
		Display: "Build a todo app",
	}}
	if diff := cmp.Diff(want, s.Turns()); diff != "" {
		t.Errorf("turns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Build a todo app", s.Turns()[0].Shown())

	_, err = s.Rewrite(3, "x")
	assert.Error(t, err)
}

func TestRollback(t *testing.T) {
	s := New().Append(User("q1", "")).Append(Model("a1")).Append(User("q2", ""))

	r := s.Rollback(2)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, s.ID, r.ID)
	assert.Equal(t, 3, s.Len(), "rollback leaves the original untouched")

	assert.Equal(t, 0, s.Rollback(-1).Len())
	assert.Equal(t, 3, s.Rollback(10).Len())
}

func TestWellformed(t *testing.T) {
	assert.True(t, New().Wellformed())
	assert.True(t, New().Append(User("q", "")).Wellformed())
	assert.True(t, New().Append(User("q", "")).Append(Model("a")).Wellformed())
	assert.False(t, New().Append(User("q", "")).Append(User("q2", "")).Wellformed())
}

func TestUserDropsRedundantDisplay(t *testing.T) {
	assert.Equal(t, Turn{Role: RoleUser, Text: "x"}, User("x", "x"))
	assert.Equal(t, "shown", User("sent", "shown").Shown())
}
