package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schoolbot/internal/models"
	"github.com/noah-isme/schoolbot/internal/repository"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

type mockTeacherRoster struct {
	existing map[string]bool
	created  []string
	rosters  []models.ClassRoster
}

func (m *mockTeacherRoster) Exists(ctx context.Context, username string) (bool, error) {
	return m.existing[username], nil
}

func (m *mockTeacherRoster) Create(ctx context.Context, username string) error {
	m.created = append(m.created, username)
	return nil
}

func (m *mockTeacherRoster) ClassesWithStudents(ctx context.Context, username string) ([]models.ClassRoster, error) {
	return m.rosters, nil
}

type mockStudentRoster struct {
	existing map[string]bool
	created  []string
	classes  []models.StudentClass
}

func (m *mockStudentRoster) Exists(ctx context.Context, username string) (bool, error) {
	return m.existing[username], nil
}

func (m *mockStudentRoster) Create(ctx context.Context, username string) error {
	m.created = append(m.created, username)
	return nil
}

func (m *mockStudentRoster) ClassesWithActiveCounts(ctx context.Context, username string) ([]models.StudentClass, error) {
	return m.classes, nil
}

type mockClassRepo struct {
	byName  map[string]*models.Class
	created []models.Class
	members map[string]bool
	added   []string
	names   []string
}

func (m *mockClassRepo) Create(ctx context.Context, class models.Class) error {
	m.created = append(m.created, class)
	return nil
}

func (m *mockClassRepo) FindByName(ctx context.Context, teacher, name string) (*models.Class, error) {
	if c, ok := m.byName[repository.NormalizeClassName(name)]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ListByTeacher(ctx context.Context, teacher string) ([]string, error) {
	return m.names, nil
}

func (m *mockClassRepo) AddMember(ctx context.Context, student string, class models.Class) error {
	m.added = append(m.added, student)
	return nil
}

func (m *mockClassRepo) IsMember(ctx context.Context, student string, class models.Class) (bool, error) {
	return m.members[student], nil
}

func (m *mockClassRepo) Members(ctx context.Context, class models.Class) ([]models.ClassMember, error) {
	return nil, nil
}

type mockRoleInvalidator struct {
	dropped []string
}

func (m *mockRoleInvalidator) Invalidate(ctx context.Context, username string) {
	m.dropped = append(m.dropped, username)
}

func newRosterFixture() (*RosterService, *mockTeacherRoster, *mockStudentRoster, *mockClassRepo, *mockRoleInvalidator) {
	teachers := &mockTeacherRoster{existing: map[string]bool{"mrsmith": true}}
	students := &mockStudentRoster{existing: map[string]bool{"alice": true}}
	classes := &mockClassRepo{
		byName:  map[string]*models.Class{"10-a": {Name: "10-A", TeacherUsername: "mrsmith"}},
		members: map[string]bool{"alice": true},
	}
	roles := &mockRoleInvalidator{}
	return NewRosterService(teachers, students, classes, roles), teachers, students, classes, roles
}

func TestCreateClass(t *testing.T) {
	svc, _, _, classes, _ := newRosterFixture()

	err := svc.CreateClass(context.Background(), "mrsmith", "11-B")
	require.NoError(t, err)
	require.Len(t, classes.created, 1)
	assert.Equal(t, "11-B", classes.created[0].Name)
	assert.Equal(t, "mrsmith", classes.created[0].TeacherUsername)
}

func TestCreateClassDuplicateNameCaseInsensitive(t *testing.T) {
	svc, _, _, classes, _ := newRosterFixture()

	err := svc.CreateClass(context.Background(), "mrsmith", `"10-a"`)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, classes.created)
}

func TestCreateClassRejectsEmptyName(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	err := svc.CreateClass(context.Background(), "mrsmith", "   ")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestAddStudentCreatesRecordOnFirstMention(t *testing.T) {
	svc, _, students, classes, roles := newRosterFixture()

	err := svc.AddStudent(context.Background(), "mrsmith", "10-A", "@NewKid")
	require.NoError(t, err)
	assert.Equal(t, []string{"newkid"}, students.created)
	assert.Equal(t, []string{"newkid"}, classes.added)
	assert.Equal(t, []string{"newkid"}, roles.dropped)
}

func TestAddStudentExistingStudentNotRecreated(t *testing.T) {
	svc, _, students, classes, _ := newRosterFixture()
	classes.members = map[string]bool{}

	err := svc.AddStudent(context.Background(), "mrsmith", "10-A", "alice")
	require.NoError(t, err)
	assert.Empty(t, students.created)
	assert.Equal(t, []string{"alice"}, classes.added)
}

func TestAddStudentDuplicateMember(t *testing.T) {
	svc, _, _, classes, _ := newRosterFixture()

	err := svc.AddStudent(context.Background(), "mrsmith", "10-A", "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, classes.added)
}

func TestAddStudentUnknownClass(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	err := svc.AddStudent(context.Background(), "mrsmith", "9-Z", "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestAddStudentInvalidUsername(t *testing.T) {
	svc, _, _, _, _ := newRosterFixture()

	for _, bad := range []string{"", "has space", "way_too_long_username_over_32_chars_x", "semi;colon"} {
		err := svc.AddStudent(context.Background(), "mrsmith", "10-A", bad)
		require.Error(t, err, "username %q", bad)
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	}
}

func TestAddTeacher(t *testing.T) {
	svc, teachers, _, _, roles := newRosterFixture()

	err := svc.AddTeacher(context.Background(), "@MsJones")
	require.NoError(t, err)
	assert.Equal(t, []string{"msjones"}, teachers.created)
	assert.Equal(t, []string{"msjones"}, roles.dropped)
}

func TestAddTeacherAlreadyTeacher(t *testing.T) {
	svc, teachers, _, _, _ := newRosterFixture()

	err := svc.AddTeacher(context.Background(), "mrsmith")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, teachers.created)
}

func TestAddTeacherEnrolledAsStudent(t *testing.T) {
	svc, teachers, _, _, _ := newRosterFixture()

	err := svc.AddTeacher(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Empty(t, teachers.created)
}
