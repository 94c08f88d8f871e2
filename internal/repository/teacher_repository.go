package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/schoolbot/internal/models"
)

// TeacherRepository manages persistence for teacher records.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// Exists checks whether a teacher row exists for the username.
func (r *TeacherRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM teachers WHERE username = $1 LIMIT 1`, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher: %w", err)
	}
	return true, nil
}

// IsRegistered reports whether the teacher has completed the chat handshake.
func (r *TeacherRepository) IsRegistered(ctx context.Context, username string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists,
		`SELECT 1 FROM teachers WHERE username = $1 AND chat_id IS NOT NULL LIMIT 1`, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teacher registration: %w", err)
	}
	return true, nil
}

// Create inserts a teacher row without a chat channel. The chat id is acquired
// lazily when the teacher first opens the bot.
func (r *TeacherRepository) Create(ctx context.Context, username string) error {
	const query = `INSERT INTO teachers (username, first_seen) VALUES ($1, now())`
	if _, err := r.db.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Register upserts the teacher row and binds the chat channel id.
func (r *TeacherRepository) Register(ctx context.Context, username string, chatID int64) error {
	const query = `INSERT INTO teachers (username, chat_id, first_seen)
        VALUES ($1, $2, now())
        ON CONFLICT (username) DO UPDATE SET chat_id = EXCLUDED.chat_id`
	if _, err := r.db.ExecContext(ctx, query, username, chatID); err != nil {
		return fmt.Errorf("register teacher: %w", err)
	}
	return nil
}

// ChatID returns the teacher's chat channel id, or nil when the teacher has
// never opened the bot.
func (r *TeacherRepository) ChatID(ctx context.Context, username string) (*int64, error) {
	var chatID *int64
	err := r.db.GetContext(ctx, &chatID, `SELECT chat_id FROM teachers WHERE username = $1`, username)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("teacher chat id: %w", err)
	}
	return chatID, nil
}

// ClassesWithStudents returns the teacher's classes with their member usernames.
func (r *TeacherRepository) ClassesWithStudents(ctx context.Context, username string) ([]models.ClassRoster, error) {
	type row struct {
		Name    string  `db:"name"`
		Student *string `db:"student_username"`
	}
	var rows []row
	const query = `SELECT c.name, cm.student_username
        FROM classes c
        LEFT JOIN class_members cm ON cm.class_name = c.name AND cm.teacher_username = c.teacher_username
        WHERE c.teacher_username = $1
        ORDER BY c.name, cm.student_username`
	if err := r.db.SelectContext(ctx, &rows, query, username); err != nil {
		return nil, fmt.Errorf("teacher classes: %w", err)
	}

	var rosters []models.ClassRoster
	index := map[string]int{}
	for _, rec := range rows {
		i, ok := index[rec.Name]
		if !ok {
			rosters = append(rosters, models.ClassRoster{Name: rec.Name})
			i = len(rosters) - 1
			index[rec.Name] = i
		}
		if rec.Student != nil {
			rosters[i].Students = append(rosters[i].Students, *rec.Student)
		}
	}
	return rosters, nil
}
