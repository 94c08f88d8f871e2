package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/noah-isme/schoolbot/internal/models"
	"github.com/noah-isme/schoolbot/internal/notify"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

// Page sizes for review and history listings.
const (
	ReviewPageSize    = 5
	CompletedPageSize = 10
)

// AssignmentRepo is the persistence surface of the lifecycle engine.
type AssignmentRepo interface {
	Insert(ctx context.Context, a *models.Assignment) error
	UpdateActiveAttachment(ctx context.Context, teacherUsername, studentUsername, body string, att *models.Attachment) (bool, error)
	ActiveByStudent(ctx context.Context, studentUsername string) ([]models.Assignment, error)
	ActiveByIDAndStudent(ctx context.Context, id int64, studentUsername string) (*models.Assignment, error)
	SubmitResponse(ctx context.Context, id int64, studentUsername, responseText string, att *models.Attachment) (bool, error)
	SubmittedByTeacher(ctx context.Context, teacherUsername string, limit int) ([]models.SubmittedWork, error)
	SubmittedByIDAndTeacher(ctx context.Context, id int64, teacherUsername string) (*models.SubmittedWork, error)
	SetGrade(ctx context.Context, id int64, teacherUsername string, grade int) (studentUsername, body string, err error)
	CompletedByStudent(ctx context.Context, studentUsername string, limit int) ([]models.Assignment, error)
}

// StudentDirectory resolves student records for notification.
type StudentDirectory interface {
	Find(ctx context.Context, username string) (*models.Student, error)
}

// TeacherDirectory resolves teacher chat channels for notification.
type TeacherDirectory interface {
	ChatID(ctx context.Context, username string) (*int64, error)
}

// ClassDirectory resolves classes and their members for fan-out.
type ClassDirectory interface {
	FindByName(ctx context.Context, teacherUsername, name string) (*models.Class, error)
	Members(ctx context.Context, class models.Class) ([]models.ClassMember, error)
}

// Notifier accepts notifications for background delivery.
type Notifier interface {
	Notify(n notify.Notification)
	NotifyAll(batch []notify.Notification)
}

// AssignmentEventRecorder counts lifecycle events.
type AssignmentEventRecorder interface {
	AssignmentEvent(event string)
}

// AssignmentService drives the assignment lifecycle: issue, submit, grade.
// Notifications are enqueued only after the corresponding write has been
// persisted, so a delivery failure never loses an assignment.
type AssignmentService struct {
	assignments AssignmentRepo
	students    StudentDirectory
	teachers    TeacherDirectory
	classes     ClassDirectory
	notifier    Notifier
	events      AssignmentEventRecorder
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(assignments AssignmentRepo, students StudentDirectory, teachers TeacherDirectory, classes ClassDirectory, notifier Notifier, events AssignmentEventRecorder) *AssignmentService {
	return &AssignmentService{
		assignments: assignments,
		students:    students,
		teachers:    teachers,
		classes:     classes,
		notifier:    notifier,
		events:      events,
	}
}

// IssueIndividual gives one assignment to one student. When the student
// already has an active ungraded assignment with the same body from the same
// teacher, the attachment is replaced in place instead of creating a
// duplicate row.
func (s *AssignmentService) IssueIndividual(ctx context.Context, teacherUsername, studentUsername, body string, att *models.Attachment) error {
	studentUsername = normalizeHandle(studentUsername)
	if err := validateUsername(studentUsername); err != nil {
		return err
	}
	if body == "" {
		return apperrors.Clone(apperrors.ErrValidation, "assignment text must not be empty")
	}

	student, err := s.students.Find(ctx, studentUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrNotFound, "no student with this username")
		}
		return fmt.Errorf("issue assignment: %w", err)
	}

	updated, err := s.assignments.UpdateActiveAttachment(ctx, teacherUsername, studentUsername, body, att)
	if err != nil {
		return err
	}
	if updated {
		s.recordEvent("updated")
		s.notifier.Notify(notify.Notification{
			Recipient:  studentUsername,
			ChatID:     student.ChatID,
			Text:       fmt.Sprintf("Assignment from @%s was updated:\n%s", teacherUsername, body),
			Attachment: att,
		})
		return nil
	}

	a := &models.Assignment{
		TeacherUsername: teacherUsername,
		StudentUsername: studentUsername,
		Body:            body,
		Kind:            models.KindIndividual,
	}
	applyAttachment(a, att)
	if err := s.assignments.Insert(ctx, a); err != nil {
		return err
	}

	s.recordEvent("issued")
	s.notifier.Notify(notify.Notification{
		Recipient:    studentUsername,
		ChatID:       student.ChatID,
		Text:         fmt.Sprintf("New assignment from @%s:\n%s", teacherUsername, body),
		Attachment:   att,
		AssignmentID: a.ID,
	})
	return nil
}

// IssueToClass fans one assignment out to every current member of the class,
// one independent row per student. Members without a chat id still get their
// row; their notification is skipped until they register.
func (s *AssignmentService) IssueToClass(ctx context.Context, teacherUsername, className, body string, att *models.Attachment) (int, error) {
	if body == "" {
		return 0, apperrors.Clone(apperrors.ErrValidation, "assignment text must not be empty")
	}

	class, err := s.classes.FindByName(ctx, teacherUsername, className)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.Clone(apperrors.ErrNotFound, "you have no class with this name")
		}
		return 0, fmt.Errorf("issue to class: %w", err)
	}

	members, err := s.classes.Members(ctx, *class)
	if err != nil {
		return 0, fmt.Errorf("issue to class: %w", err)
	}
	if len(members) == 0 {
		return 0, apperrors.Clone(apperrors.ErrValidation, "this class has no students yet")
	}

	text := fmt.Sprintf("New assignment for class %s from @%s:\n%s", class.Name, teacherUsername, body)
	batch := make([]notify.Notification, 0, len(members))
	for _, member := range members {
		a := &models.Assignment{
			TeacherUsername: teacherUsername,
			StudentUsername: member.StudentUsername,
			Body:            body,
			Kind:            models.KindClass,
			ClassName:       &class.Name,
		}
		applyAttachment(a, att)
		if err := s.assignments.Insert(ctx, a); err != nil {
			return 0, err
		}
		batch = append(batch, notify.Notification{
			Recipient:    member.StudentUsername,
			ChatID:       member.ChatID,
			Text:         text,
			Attachment:   att,
			AssignmentID: a.ID,
		})
	}

	s.recordEvent("issued_class")
	s.notifier.NotifyAll(batch)
	return len(members), nil
}

// ListActive returns the student's active assignments, oldest first. The
// slice order defines the 1-based display indexes shown in chat.
func (s *AssignmentService) ListActive(ctx context.Context, studentUsername string) ([]models.Assignment, error) {
	return s.assignments.ActiveByStudent(ctx, studentUsername)
}

// ActiveAssignment fetches one of the student's active assignments by id.
func (s *AssignmentService) ActiveAssignment(ctx context.Context, id int64, studentUsername string) (*models.Assignment, error) {
	a, err := s.assignments.ActiveByIDAndStudent(ctx, id, studentUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "this assignment is no longer active")
		}
		return nil, fmt.Errorf("active assignment: %w", err)
	}
	return a, nil
}

// Submit transitions the student's active assignment to submitted and
// notifies the owning teacher with the response content.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID int64, studentUsername, responseText string, att *models.Attachment) error {
	if responseText == "" && att == nil {
		return apperrors.Clone(apperrors.ErrValidation, "attach a file or write a text answer")
	}

	a, err := s.assignments.ActiveByIDAndStudent(ctx, assignmentID, studentUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrNotFound, "this assignment is no longer active")
		}
		return fmt.Errorf("submit: %w", err)
	}

	ok, err := s.assignments.SubmitResponse(ctx, assignmentID, studentUsername, responseText, att)
	if err != nil {
		return err
	}
	if !ok {
		// Raced with another submission of the same assignment.
		return apperrors.Clone(apperrors.ErrNotFound, "this assignment is no longer active")
	}

	s.recordEvent("submitted")

	teacherChat, err := s.teachers.ChatID(ctx, a.TeacherUsername)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("submit: %w", err)
	}
	text := fmt.Sprintf("@%s submitted work for: %s", studentUsername, a.Body)
	if responseText != "" {
		text += "\n\n" + responseText
	}
	s.notifier.Notify(notify.Notification{
		Recipient:  a.TeacherUsername,
		ChatID:     teacherChat,
		Text:       text,
		Attachment: att,
	})
	return nil
}

// ListSubmitted returns the teacher's submitted works for review, most recent
// first, capped at limit.
func (s *AssignmentService) ListSubmitted(ctx context.Context, teacherUsername string, limit int) ([]models.SubmittedWork, error) {
	return s.assignments.SubmittedByTeacher(ctx, teacherUsername, limit)
}

// SubmittedWork fetches one submitted work owned by the teacher.
func (s *AssignmentService) SubmittedWork(ctx context.Context, id int64, teacherUsername string) (*models.SubmittedWork, error) {
	work, err := s.assignments.SubmittedByIDAndTeacher(ctx, id, teacherUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "no such submitted work")
		}
		return nil, fmt.Errorf("submitted work: %w", err)
	}
	return work, nil
}

// Grade stores a 1..5 grade on a submitted work and notifies the student.
// Grading does not change the assignment status; re-grading overwrites.
func (s *AssignmentService) Grade(ctx context.Context, assignmentID int64, teacherUsername string, grade int) error {
	if err := validateGrade(grade); err != nil {
		return err
	}

	studentUsername, body, err := s.assignments.SetGrade(ctx, assignmentID, teacherUsername, grade)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.Clone(apperrors.ErrNotFound, "no such submitted work")
		}
		return err
	}

	s.recordEvent("graded")

	student, err := s.students.Find(ctx, studentUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Row was graded; the student record vanishing is not the
			// teacher's problem. Delivery is simply skipped.
			s.notifier.Notify(notify.Notification{Recipient: studentUsername})
			return nil
		}
		return fmt.Errorf("grade: %w", err)
	}
	s.notifier.Notify(notify.Notification{
		Recipient: studentUsername,
		ChatID:    student.ChatID,
		Text:      fmt.Sprintf("Your work \"%s\" was graded: %d/5", body, grade),
	})
	return nil
}

// ListCompleted returns the student's submitted assignments with any grades,
// most recent first, capped at limit.
func (s *AssignmentService) ListCompleted(ctx context.Context, studentUsername string, limit int) ([]models.Assignment, error) {
	return s.assignments.CompletedByStudent(ctx, studentUsername, limit)
}

func (s *AssignmentService) recordEvent(event string) {
	if s.events != nil {
		s.events.AssignmentEvent(event)
	}
}

func applyAttachment(a *models.Assignment, att *models.Attachment) {
	if att == nil {
		return
	}
	a.FileID = &att.FileID
	ft := string(att.Type)
	a.FileType = &ft
	a.FileName = att.Name
}
