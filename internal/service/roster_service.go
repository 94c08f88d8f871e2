package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/schoolbot/internal/models"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

const maxClassNameLength = 64

// TeacherRosterRepo is the slice of teacher persistence the roster needs.
type TeacherRosterRepo interface {
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, username string) error
	ClassesWithStudents(ctx context.Context, username string) ([]models.ClassRoster, error)
}

// StudentRosterRepo is the slice of student persistence the roster needs.
type StudentRosterRepo interface {
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, username string) error
	ClassesWithActiveCounts(ctx context.Context, username string) ([]models.StudentClass, error)
}

// ClassRepo manages class rows and memberships.
type ClassRepo interface {
	Create(ctx context.Context, class models.Class) error
	FindByName(ctx context.Context, teacherUsername, name string) (*models.Class, error)
	ListByTeacher(ctx context.Context, teacherUsername string) ([]string, error)
	AddMember(ctx context.Context, studentUsername string, class models.Class) error
	IsMember(ctx context.Context, studentUsername string, class models.Class) (bool, error)
	Members(ctx context.Context, class models.Class) ([]models.ClassMember, error)
}

// RoleInvalidator drops cached roles after role-changing writes.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, username string)
}

// RosterService manages teachers, classes, and class membership.
type RosterService struct {
	teachers TeacherRosterRepo
	students StudentRosterRepo
	classes  ClassRepo
	roles    RoleInvalidator
}

// NewRosterService constructs a RosterService.
func NewRosterService(teachers TeacherRosterRepo, students StudentRosterRepo, classes ClassRepo, roles RoleInvalidator) *RosterService {
	return &RosterService{teachers: teachers, students: students, classes: classes, roles: roles}
}

// CreateClass creates a class owned by the teacher. Names are unique per
// teacher, compared case-insensitively with surrounding quotes ignored.
func (s *RosterService) CreateClass(ctx context.Context, teacherUsername, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxClassNameLength {
		return apperrors.Clone(apperrors.ErrValidation, "class name must be 1-64 characters")
	}

	_, err := s.classes.FindByName(ctx, teacherUsername, name)
	if err == nil {
		return apperrors.Clone(apperrors.ErrConflict, "you already have a class with this name")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create class: %w", err)
	}

	if err := s.classes.Create(ctx, models.Class{Name: name, TeacherUsername: teacherUsername}); err != nil {
		return err
	}
	return nil
}

// AddStudent enrolls a student into the teacher's class, creating the student
// record on first mention. Enrollment does not register the student; their
// chat id is bound when they first open the bot.
func (s *RosterService) AddStudent(ctx context.Context, teacherUsername, className, studentUsername string) error {
	studentUsername = normalizeHandle(studentUsername)
	if err := validateUsername(studentUsername); err != nil {
		return err
	}

	class, err := s.classes.FindByName(ctx, teacherUsername, className)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrNotFound, "you have no class with this name")
		}
		return fmt.Errorf("add student: %w", err)
	}

	exists, err := s.students.Exists(ctx, studentUsername)
	if err != nil {
		return fmt.Errorf("add student: %w", err)
	}
	if !exists {
		if err := s.students.Create(ctx, studentUsername); err != nil {
			return err
		}
		if s.roles != nil {
			s.roles.Invalidate(ctx, studentUsername)
		}
	}

	member, err := s.classes.IsMember(ctx, studentUsername, *class)
	if err != nil {
		return fmt.Errorf("add student: %w", err)
	}
	if member {
		return apperrors.Clone(apperrors.ErrConflict, "this student is already in the class")
	}

	return s.classes.AddMember(ctx, studentUsername, *class)
}

// AddTeacher registers a new teacher username. Rejected when the username is
// already a teacher or already enrolled as a student.
func (s *RosterService) AddTeacher(ctx context.Context, username string) error {
	username = normalizeHandle(username)
	if err := validateUsername(username); err != nil {
		return err
	}

	isTeacher, err := s.teachers.Exists(ctx, username)
	if err != nil {
		return fmt.Errorf("add teacher: %w", err)
	}
	if isTeacher {
		return apperrors.Clone(apperrors.ErrConflict, "this user is already a teacher")
	}

	isStudent, err := s.students.Exists(ctx, username)
	if err != nil {
		return fmt.Errorf("add teacher: %w", err)
	}
	if isStudent {
		return apperrors.Clone(apperrors.ErrConflict, "this user is enrolled as a student")
	}

	if err := s.teachers.Create(ctx, username); err != nil {
		return err
	}
	if s.roles != nil {
		s.roles.Invalidate(ctx, username)
	}
	return nil
}

// TeacherClasses returns the teacher's classes with their member usernames.
func (s *RosterService) TeacherClasses(ctx context.Context, teacherUsername string) ([]models.ClassRoster, error) {
	return s.teachers.ClassesWithStudents(ctx, teacherUsername)
}

// StudentClasses returns the classes the student belongs to, with the count
// of active assignments per class.
func (s *RosterService) StudentClasses(ctx context.Context, studentUsername string) ([]models.StudentClass, error) {
	return s.students.ClassesWithActiveCounts(ctx, studentUsername)
}

// ClassNames returns the teacher's class names for flow prompts.
func (s *RosterService) ClassNames(ctx context.Context, teacherUsername string) ([]string, error) {
	return s.classes.ListByTeacher(ctx, teacherUsername)
}

// normalizeHandle strips the leading @ and lowercases, matching how the chat
// platform reports usernames.
func normalizeHandle(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
