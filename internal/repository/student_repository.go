package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/schoolbot/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Exists checks whether a student row exists for the username.
func (r *StudentRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM students WHERE username = $1 LIMIT 1`, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student: %w", err)
	}
	return true, nil
}

// IsRegistered reports whether the student has completed the chat handshake.
func (r *StudentRepository) IsRegistered(ctx context.Context, username string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		`SELECT 1 FROM students WHERE username = $1 AND chat_id IS NOT NULL LIMIT 1`, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student registration: %w", err)
	}
	return true, nil
}

// Create inserts a student row without a chat channel, used when a teacher
// references a username that has never opened the bot.
func (r *StudentRepository) Create(ctx context.Context, username string) error {
	const query = `INSERT INTO students (username, first_seen) VALUES ($1, now())`
	if _, err := r.db.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Register upserts the student row and binds the chat channel id and display name.
func (r *StudentRepository) Register(ctx context.Context, username string, chatID int64, displayName string) error {
	const query = `INSERT INTO students (username, chat_id, first_seen, display_name)
        VALUES ($1, $2, now(), NULLIF($3, ''))
        ON CONFLICT (username) DO UPDATE
        SET chat_id = EXCLUDED.chat_id,
            display_name = COALESCE(EXCLUDED.display_name, students.display_name)`
	if _, err := r.db.ExecContext(ctx, query, username, chatID, displayName); err != nil {
		return fmt.Errorf("register student: %w", err)
	}
	return nil
}

// Find returns the student row, or sql.ErrNoRows.
func (r *StudentRepository) Find(ctx context.Context, username string) (*models.Student, error) {
	var student models.Student
	const query = `SELECT username, chat_id, first_seen, display_name FROM students WHERE username = $1`
	if err := r.db.GetContext(ctx, &student, query, username); err != nil {
		return nil, err
	}
	return &student, nil
}

// ClassesWithActiveCounts lists the student's classes with the number of
// active assignments issued through each class.
func (r *StudentRepository) ClassesWithActiveCounts(ctx context.Context, username string) ([]models.StudentClass, error) {
	var classes []models.StudentClass
	const query = `SELECT c.name,
            (SELECT COUNT(*) FROM assignments a
             WHERE a.student_username = $1 AND a.status = 'active'
               AND a.class_name = c.name AND a.teacher_username = c.teacher_username) AS active_count
        FROM classes c
        JOIN class_members cm ON cm.class_name = c.name AND cm.teacher_username = c.teacher_username
        WHERE cm.student_username = $1
        ORDER BY c.name`
	if err := r.db.SelectContext(ctx, &classes, query, username); err != nil {
		return nil, fmt.Errorf("student classes: %w", err)
	}
	return classes, nil
}
