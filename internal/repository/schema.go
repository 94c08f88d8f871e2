package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
        username   TEXT PRIMARY KEY,
        chat_id    BIGINT,
        first_seen TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS students (
        username     TEXT PRIMARY KEY,
        chat_id      BIGINT,
        first_seen   TIMESTAMPTZ NOT NULL DEFAULT now(),
        display_name TEXT
    )`,
	`CREATE TABLE IF NOT EXISTS classes (
        name             TEXT NOT NULL,
        teacher_username TEXT NOT NULL REFERENCES teachers(username),
        PRIMARY KEY (name, teacher_username)
    )`,
	`CREATE TABLE IF NOT EXISTS class_members (
        student_username TEXT NOT NULL REFERENCES students(username),
        class_name       TEXT NOT NULL,
        teacher_username TEXT NOT NULL,
        PRIMARY KEY (student_username, class_name, teacher_username),
        FOREIGN KEY (class_name, teacher_username) REFERENCES classes(name, teacher_username)
    )`,
	`CREATE TABLE IF NOT EXISTS assignments (
        id                 BIGSERIAL PRIMARY KEY,
        teacher_username   TEXT NOT NULL REFERENCES teachers(username),
        student_username   TEXT NOT NULL REFERENCES students(username),
        body               TEXT NOT NULL,
        kind               TEXT NOT NULL,
        class_name         TEXT,
        file_id            TEXT,
        file_type          TEXT,
        file_name          TEXT,
        created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
        deadline           TIMESTAMPTZ,
        status             TEXT NOT NULL DEFAULT 'active',
        response_text      TEXT,
        response_file_id   TEXT,
        response_file_type TEXT,
        submitted_at       TIMESTAMPTZ,
        grade              INTEGER,
        graded_at          TIMESTAMPTZ,
        message_id         BIGINT
    )`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_student_status ON assignments (student_username, status)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_teacher_status ON assignments (teacher_username, status)`,
}

// EnsureSchema creates the tables required by the bot if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedDirector inserts the director's teacher row if missing. The director is
// implicitly a teacher regardless of explicit registration. The username is
// normalized the same way inbound senders are, so a mixed-case configuration
// value still matches the rows assignments reference.
func SeedDirector(ctx context.Context, db *sqlx.DB, username string) error {
	username = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if username == "" {
		return nil
	}
	const query = `INSERT INTO teachers (username) VALUES ($1) ON CONFLICT (username) DO NOTHING`
	if _, err := db.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("seed director: %w", err)
	}
	return nil
}
