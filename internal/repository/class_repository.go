package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/schoolbot/internal/models"
)

// ClassRepository manages classes and their memberships.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

var classNameQuotes = strings.NewReplacer(`"`, "", "'", "")

// NormalizeClassName lowercases, trims, and strips quote characters so
// lookups tolerate how users type class names in chat. Quote stripping must
// match the REPLACE calls in FindByName, which remove quotes anywhere in the
// stored name. Storage keeps the original casing.
func NormalizeClassName(name string) string {
	return strings.ToLower(strings.TrimSpace(classNameQuotes.Replace(name)))
}

// Create inserts a class owned by the teacher.
func (r *ClassRepository) Create(ctx context.Context, class models.Class) error {
	const query = `INSERT INTO classes (name, teacher_username) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, class.Name, class.TeacherUsername); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// FindByName resolves a user-typed class name to the stored class,
// matching case-insensitively with surrounding quotes stripped.
// Returns sql.ErrNoRows when the teacher owns no such class.
func (r *ClassRepository) FindByName(ctx context.Context, teacherUsername, name string) (*models.Class, error) {
	var class models.Class
	const query = `SELECT name, teacher_username FROM classes
        WHERE teacher_username = $1
          AND REPLACE(REPLACE(LOWER(TRIM(name)), '"', ''), '''', '') = $2
        LIMIT 1`
	if err := r.db.GetContext(ctx, &class, query, teacherUsername, NormalizeClassName(name)); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListByTeacher returns the teacher's class names ordered alphabetically.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherUsername string) ([]string, error) {
	var names []string
	const query = `SELECT name FROM classes WHERE teacher_username = $1 ORDER BY name`
	if err := r.db.SelectContext(ctx, &names, query, teacherUsername); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return names, nil
}

// AddMember inserts a (student, class) membership row.
func (r *ClassRepository) AddMember(ctx context.Context, studentUsername string, class models.Class) error {
	const query = `INSERT INTO class_members (student_username, class_name, teacher_username)
        VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, studentUsername, class.Name, class.TeacherUsername); err != nil {
		return fmt.Errorf("add class member: %w", err)
	}
	return nil
}

// IsMember checks whether the student already belongs to the class.
func (r *ClassRepository) IsMember(ctx context.Context, studentUsername string, class models.Class) (bool, error) {
	var exists int
	const query = `SELECT 1 FROM class_members
        WHERE student_username = $1 AND class_name = $2 AND teacher_username = $3 LIMIT 1`
	err := r.db.GetContext(ctx, &exists, query, studentUsername, class.Name, class.TeacherUsername)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class member: %w", err)
	}
	return true, nil
}

// Members returns every current member of the class with their chat ids,
// shaped for assignment fan-out and notification.
func (r *ClassRepository) Members(ctx context.Context, class models.Class) ([]models.ClassMember, error) {
	var members []models.ClassMember
	const query = `SELECT cm.student_username, s.chat_id
        FROM class_members cm
        LEFT JOIN students s ON s.username = cm.student_username
        WHERE cm.class_name = $1 AND cm.teacher_username = $2
        ORDER BY cm.student_username`
	if err := r.db.SelectContext(ctx, &members, query, class.Name, class.TeacherUsername); err != nil {
		return nil, fmt.Errorf("class members: %w", err)
	}
	return members, nil
}
