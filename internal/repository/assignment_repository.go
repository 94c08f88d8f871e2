package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/schoolbot/internal/models"
)

// AssignmentRepository manages persistence for assignment rows.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, teacher_username, student_username, body, kind, class_name,
        file_id, file_type, file_name, created_at, deadline, status,
        response_text, response_file_id, response_file_type, submitted_at,
        grade, graded_at, message_id`

// Insert creates a new assignment row and fills in the generated id and
// creation timestamp.
func (r *AssignmentRepository) Insert(ctx context.Context, a *models.Assignment) error {
	const query = `INSERT INTO assignments
        (teacher_username, student_username, body, kind, class_name, file_id, file_type, file_name, deadline, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query,
		a.TeacherUsername, a.StudentUsername, a.Body, a.Kind, a.ClassName,
		a.FileID, a.FileType, a.FileName, a.Deadline)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	a.Status = models.StatusActive
	return nil
}

// UpdateActiveAttachment replaces the attachment of an existing active,
// ungraded individual assignment matching (teacher, student, body). Returns
// false when no such row exists. Multiple matches are all updated; callers
// must keep the body text specific enough to disambiguate.
func (r *AssignmentRepository) UpdateActiveAttachment(ctx context.Context, teacherUsername, studentUsername, body string, att *models.Attachment) (bool, error) {
	var fileID, fileType, fileName *string
	if att != nil {
		fileID = &att.FileID
		ft := string(att.Type)
		fileType = &ft
		fileName = att.Name
	}
	const query = `UPDATE assignments
        SET file_id = $1, file_type = $2, file_name = $3
        WHERE teacher_username = $4 AND student_username = $5 AND body = $6
          AND kind = 'individual' AND status = 'active' AND grade IS NULL`
	res, err := r.db.ExecContext(ctx, query, fileID, fileType, fileName, teacherUsername, studentUsername, body)
	if err != nil {
		return false, fmt.Errorf("update assignment attachment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update assignment attachment: %w", err)
	}
	return affected > 0, nil
}

// ActiveByStudent lists the student's active assignments, oldest first.
func (r *AssignmentRepository) ActiveByStudent(ctx context.Context, studentUsername string) ([]models.Assignment, error) {
	var assignments []models.Assignment
	query := fmt.Sprintf(`SELECT %s FROM assignments
        WHERE student_username = $1 AND status = 'active'
        ORDER BY created_at ASC`, assignmentColumns)
	if err := r.db.SelectContext(ctx, &assignments, query, studentUsername); err != nil {
		return nil, fmt.Errorf("active assignments: %w", err)
	}
	return assignments, nil
}

// ActiveByIDAndStudent fetches one active assignment owned by the student.
// Returns sql.ErrNoRows when absent, already submitted, or owned by another student.
func (r *AssignmentRepository) ActiveByIDAndStudent(ctx context.Context, id int64, studentUsername string) (*models.Assignment, error) {
	var a models.Assignment
	query := fmt.Sprintf(`SELECT %s FROM assignments
        WHERE id = $1 AND student_username = $2 AND status = 'active'`, assignmentColumns)
	if err := r.db.GetContext(ctx, &a, query, id, studentUsername); err != nil {
		return nil, err
	}
	return &a, nil
}

// SubmitResponse transitions an active assignment to submitted and stores the
// response payload. Returns false when no active row matched.
func (r *AssignmentRepository) SubmitResponse(ctx context.Context, id int64, studentUsername, responseText string, att *models.Attachment) (bool, error) {
	var fileID, fileType *string
	if att != nil {
		fileID = &att.FileID
		ft := string(att.Type)
		fileType = &ft
	}
	const query = `UPDATE assignments
        SET status = 'submitted', response_text = $1, response_file_id = $2,
            response_file_type = $3, submitted_at = now()
        WHERE id = $4 AND student_username = $5 AND status = 'active'`
	res, err := r.db.ExecContext(ctx, query, responseText, fileID, fileType, id, studentUsername)
	if err != nil {
		return false, fmt.Errorf("submit response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("submit response: %w", err)
	}
	return affected > 0, nil
}

// SubmittedByTeacher lists submitted works owned by the teacher, most recent first.
func (r *AssignmentRepository) SubmittedByTeacher(ctx context.Context, teacherUsername string, limit int) ([]models.SubmittedWork, error) {
	if limit <= 0 {
		limit = 100
	}
	var works []models.SubmittedWork
	query := fmt.Sprintf(`SELECT %s, COALESCE(s.display_name, s.username) AS student_name
        FROM assignments a
        JOIN students s ON s.username = a.student_username
        WHERE a.teacher_username = $1 AND a.status = 'submitted'
        ORDER BY a.submitted_at DESC
        LIMIT $2`, prefixColumns("a", assignmentColumns))
	if err := r.db.SelectContext(ctx, &works, query, teacherUsername, limit); err != nil {
		return nil, fmt.Errorf("submitted works: %w", err)
	}
	return works, nil
}

// SubmittedByIDAndTeacher fetches one submitted work owned by the teacher.
// Returns sql.ErrNoRows when absent, still active, or owned by another teacher.
func (r *AssignmentRepository) SubmittedByIDAndTeacher(ctx context.Context, id int64, teacherUsername string) (*models.SubmittedWork, error) {
	var work models.SubmittedWork
	query := fmt.Sprintf(`SELECT %s, COALESCE(s.display_name, s.username) AS student_name
        FROM assignments a
        JOIN students s ON s.username = a.student_username
        WHERE a.id = $1 AND a.teacher_username = $2 AND a.status = 'submitted'`,
		prefixColumns("a", assignmentColumns))
	if err := r.db.GetContext(ctx, &work, query, id, teacherUsername); err != nil {
		return nil, err
	}
	return &work, nil
}

// SetGrade stores the grade and grading timestamp on a submitted assignment
// owned by the teacher, returning the student and assignment body for
// notification. Re-grading overwrites. Returns sql.ErrNoRows when no
// submitted row matched.
func (r *AssignmentRepository) SetGrade(ctx context.Context, id int64, teacherUsername string, grade int) (studentUsername, body string, err error) {
	const query = `UPDATE assignments
        SET grade = $1, graded_at = now()
        WHERE id = $2 AND teacher_username = $3 AND status = 'submitted'
        RETURNING student_username, body`
	row := r.db.QueryRowxContext(ctx, query, grade, id, teacherUsername)
	if err := row.Scan(&studentUsername, &body); err != nil {
		if err == sql.ErrNoRows {
			return "", "", sql.ErrNoRows
		}
		return "", "", fmt.Errorf("set grade: %w", err)
	}
	return studentUsername, body, nil
}

// CompletedByStudent lists the student's submitted assignments, most recent first.
func (r *AssignmentRepository) CompletedByStudent(ctx context.Context, studentUsername string, limit int) ([]models.Assignment, error) {
	if limit <= 0 {
		limit = 10
	}
	var assignments []models.Assignment
	query := fmt.Sprintf(`SELECT %s FROM assignments
        WHERE student_username = $1 AND status = 'submitted'
        ORDER BY submitted_at DESC
        LIMIT $2`, assignmentColumns)
	if err := r.db.SelectContext(ctx, &assignments, query, studentUsername, limit); err != nil {
		return nil, fmt.Errorf("completed assignments: %w", err)
	}
	return assignments, nil
}

// SetMessageID records the chat message id of the notification sent for this
// assignment, for later threading or edits.
func (r *AssignmentRepository) SetMessageID(ctx context.Context, id int64, messageID int64) error {
	const query = `UPDATE assignments SET message_id = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, messageID, id); err != nil {
		return fmt.Errorf("set message id: %w", err)
	}
	return nil
}

// prefixColumns qualifies a comma separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, col := range parts {
		parts[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(parts, ", ")
}
