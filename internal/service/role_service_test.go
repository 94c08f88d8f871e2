package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schoolbot/internal/models"
)

type countingChecker struct {
	names      map[string]bool
	registered map[string]bool
	calls      int
}

func (c *countingChecker) Exists(ctx context.Context, username string) (bool, error) {
	c.calls++
	return c.names[username], nil
}

func (c *countingChecker) IsRegistered(ctx context.Context, username string) (bool, error) {
	c.calls++
	return c.registered[username], nil
}

func newRoleFixture() (*RoleService, *countingChecker, *countingChecker) {
	teachers := &countingChecker{
		names:      map[string]bool{"mrsmith": true},
		registered: map[string]bool{"mrsmith": true},
	}
	students := &countingChecker{
		names:      map[string]bool{"alice": true},
		registered: map[string]bool{"alice": true},
	}
	svc := NewRoleService("director_dan", teachers, students, nil, nil)
	return svc, teachers, students
}

func TestResolvePrecedence(t *testing.T) {
	svc, _, students := newRoleFixture()
	// Director wins even when the same username is enrolled elsewhere.
	students.names["director_dan"] = true
	students.registered["director_dan"] = true

	cases := map[string]models.Role{
		"director_dan": models.RoleDirector,
		"mrsmith":      models.RoleTeacher,
		"alice":        models.RoleStudent,
		"stranger":     models.RoleUnknown,
	}
	for username, want := range cases {
		role, err := svc.Resolve(context.Background(), username)
		require.NoError(t, err)
		assert.Equal(t, want, role, username)
	}
}

func TestResolveNormalizesUsername(t *testing.T) {
	svc, _, _ := newRoleFixture()

	role, err := svc.Resolve(context.Background(), "  MrSmith ")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, role)
}

func TestResolveMemoizesKnownRoles(t *testing.T) {
	svc, teachers, _ := newRoleFixture()

	for i := 0; i < 3; i++ {
		_, err := svc.Resolve(context.Background(), "mrsmith")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, teachers.calls)
}

func TestResolveNeverCachesUnknown(t *testing.T) {
	svc, teachers, students := newRoleFixture()

	role, err := svc.Resolve(context.Background(), "newkid")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUnknown, role)

	// The user becomes a student between messages and must be picked up.
	students.names["newkid"] = true
	students.registered["newkid"] = true
	role, err = svc.Resolve(context.Background(), "newkid")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)
	assert.Equal(t, 2, teachers.calls)
}

func TestResolveRequiresBoundChat(t *testing.T) {
	svc, _, students := newRoleFixture()
	// Enrolled on the roster but never opened the bot.
	students.names["bob"] = true

	role, err := svc.Resolve(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUnknown, role)

	// The /start handshake still recognizes the enrollment.
	role, err = svc.Eligible(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)

	// Once the chat id is bound the role resolves normally.
	students.registered["bob"] = true
	role, err = svc.Resolve(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)
}

func TestInvalidateDropsMemo(t *testing.T) {
	svc, teachers, _ := newRoleFixture()

	_, err := svc.Resolve(context.Background(), "mrsmith")
	require.NoError(t, err)
	svc.Invalidate(context.Background(), "mrsmith")
	_, err = svc.Resolve(context.Background(), "mrsmith")
	require.NoError(t, err)
	assert.Equal(t, 2, teachers.calls)
}

func TestResolveEmptyUsername(t *testing.T) {
	svc, _, _ := newRoleFixture()

	role, err := svc.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUnknown, role)
}
