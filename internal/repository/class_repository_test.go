package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schoolbot/internal/models"
)

func TestNormalizeClassName(t *testing.T) {
	cases := map[string]string{
		"10-A":        "10-a",
		"  10-a  ":    "10-a",
		`"10-A"`:      "10-a",
		"'10-a'":      "10-a",
		`" 10-A "`:    "10-a",
		"Biology 101": "biology 101",
		// Quotes anywhere in the name are stripped, matching the SQL side.
		"Sasha's group": "sashas group",
		`10-"A"`:        "10-a",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeClassName(input), "input %q", input)
	}
}

func TestFindByNameNormalizesLookup(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClassRepository(db)

	mock.ExpectQuery("SELECT name, teacher_username FROM classes").
		WithArgs("mrsmith", "10-a").
		WillReturnRows(sqlmock.NewRows([]string{"name", "teacher_username"}).AddRow("10-A", "mrsmith"))

	class, err := repo.FindByName(context.Background(), "mrsmith", `"10-A"`)
	require.NoError(t, err)
	assert.Equal(t, "10-A", class.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByNameMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClassRepository(db)

	mock.ExpectQuery("SELECT name, teacher_username FROM classes").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByName(context.Background(), "mrsmith", "9-Z")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestIsMember(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClassRepository(db)
	class := models.Class{Name: "10-A", TeacherUsername: "mrsmith"}

	mock.ExpectQuery("SELECT 1 FROM class_members").
		WithArgs("alice", "10-A", "mrsmith").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	member, err := repo.IsMember(context.Background(), "alice", class)
	require.NoError(t, err)
	assert.True(t, member)

	mock.ExpectQuery("SELECT 1 FROM class_members").
		WillReturnError(sql.ErrNoRows)

	member, err = repo.IsMember(context.Background(), "bob", class)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestMembersIncludeUnregistered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewClassRepository(db)
	class := models.Class{Name: "10-A", TeacherUsername: "mrsmith"}

	rows := sqlmock.NewRows([]string{"student_username", "chat_id"}).
		AddRow("alice", int64(100)).
		AddRow("bob", nil)

	mock.ExpectQuery("SELECT cm.student_username, s.chat_id").
		WithArgs("10-A", "mrsmith").
		WillReturnRows(rows)

	members, err := repo.Members(context.Background(), class)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.NotNil(t, members[0].ChatID)
	assert.Equal(t, int64(100), *members[0].ChatID)
	assert.Nil(t, members[1].ChatID)
}
