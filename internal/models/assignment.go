package models

import "time"

// AssignmentStatus tracks lifecycle progress. Status only ever moves forward:
// active -> submitted. A grade is an overlay on submitted, not a third state.
type AssignmentStatus string

const (
	StatusActive    AssignmentStatus = "active"
	StatusSubmitted AssignmentStatus = "submitted"
)

// AssignmentKind distinguishes individual issuance from class fan-out rows.
type AssignmentKind string

const (
	KindIndividual AssignmentKind = "individual"
	KindClass      AssignmentKind = "class"
)

// FileType enumerates supported attachment types.
type FileType string

const (
	FileTypeDocument FileType = "document"
	FileTypePhoto    FileType = "photo"
)

// Attachment is a transport file reference attached to an assignment or a response.
type Attachment struct {
	FileID string   `json:"file_id"`
	Type   FileType `json:"type"`
	Name   *string  `json:"name,omitempty"`
}

// Assignment is one issued task for one student. Class assignments materialize
// as one row per member; each row is independently gradable.
type Assignment struct {
	ID               int64            `db:"id" json:"id"`
	TeacherUsername  string           `db:"teacher_username" json:"teacher_username"`
	StudentUsername  string           `db:"student_username" json:"student_username"`
	Body             string           `db:"body" json:"body"`
	Kind             AssignmentKind   `db:"kind" json:"kind"`
	ClassName        *string          `db:"class_name" json:"class_name,omitempty"`
	FileID           *string          `db:"file_id" json:"file_id,omitempty"`
	FileType         *string          `db:"file_type" json:"file_type,omitempty"`
	FileName         *string          `db:"file_name" json:"file_name,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	Deadline         *time.Time       `db:"deadline" json:"deadline,omitempty"`
	Status           AssignmentStatus `db:"status" json:"status"`
	ResponseText     *string          `db:"response_text" json:"response_text,omitempty"`
	ResponseFileID   *string          `db:"response_file_id" json:"response_file_id,omitempty"`
	ResponseFileType *string          `db:"response_file_type" json:"response_file_type,omitempty"`
	SubmittedAt      *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	Grade            *int             `db:"grade" json:"grade,omitempty"`
	GradedAt         *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	MessageID        *int64           `db:"message_id" json:"message_id,omitempty"`
}

// Attachment returns the issued attachment, if any.
func (a Assignment) Attachment() *Attachment {
	if a.FileID == nil || a.FileType == nil {
		return nil
	}
	return &Attachment{FileID: *a.FileID, Type: FileType(*a.FileType), Name: a.FileName}
}

// SubmittedWork is a submitted assignment joined with student naming for teacher review.
type SubmittedWork struct {
	Assignment
	StudentName string `db:"student_name" json:"student_name"`
}
