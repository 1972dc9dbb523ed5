package users

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidUsername(t *testing.T) {
	cases := map[string]bool{
		"alice":           true,
		"a1":              false, // too short
		"1alice":          false, // starts with a digit
		"alice_bob":       false, // underscore not allowed
		strings.Repeat("a", 16): true,
		strings.Repeat("a", 17): false,
	}
	for username, want := range cases {
		t.Run(username, func(t *testing.T) {
			assert.Equal(t, want, ValidUsername(username))
		})
	}
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("alice", "hunter2", "", false, ""))

	rec, err := s.Authenticate("alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)

	_, err = s.Authenticate("alice", "wrong-password")
	assert.Error(t, err)
}

func TestCreate_RejectsDuplicateUsername(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("alice", "hunter2", "", false, ""))
	err := s.Create("alice", "other", "", false, "")
	assert.Error(t, err)
}

func TestCreate_RejectsInvalidUsername(t *testing.T) {
	s := NewStore()
	err := s.Create("1bad", "hunter2", "", false, "")
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("alice", "hunter2", "", false, ""))

	require.NoError(t, s.ChangePassword("alice", "hunter2", "newpass"))
	_, err := s.Authenticate("alice", "hunter2")
	assert.Error(t, err, "old password must no longer work")

	_, err = s.Authenticate("alice", "newpass")
	assert.NoError(t, err)
}

func TestChangePassword_WrongOldPasswordRejected(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("alice", "hunter2", "", false, ""))
	err := s.ChangePassword("alice", "wrong", "newpass")
	assert.Error(t, err)
}

func TestGetSetConfig(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("alice", "hunter2", "", false, ""))

	require.NoError(t, s.SetConfig("alice", "hunter2", `{"theme":"dark"}`))
	cfg, err := s.GetConfig("alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, `{"theme":"dark"}`, cfg)
}

func TestIsAdmin(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Create("root", "hunter2", "", true, ""))
	require.NoError(t, s.Create("alice", "hunter2", "", false, ""))

	isAdmin, err := s.IsAdmin("root", "hunter2")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = s.IsAdmin("alice", "hunter2")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestRestoreAndAll(t *testing.T) {
	s := NewStore()
	s.Restore([]Record{
		{Username: "alice", PasswordHash: "h1"},
		{Username: "bob", PasswordHash: "h2"},
	})
	all := s.All()
	assert.Len(t, all, 2)
}
