// Package bot routes inbound chat updates to conversational flows. Commands
// are gated by role; multi-message flows run on top of the session store and
// /cancel aborts any of them at any point.
package bot

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/schoolbot/internal/chat"
	"github.com/noah-isme/schoolbot/internal/models"
	"github.com/noah-isme/schoolbot/internal/scraper"
	"github.com/noah-isme/schoolbot/internal/service"
	"github.com/noah-isme/schoolbot/internal/session"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

// Flow steps. The prefix names the flow; /cancel clears any of them.
const (
	stepCreateClassName   session.Step = "create_class:name"
	stepAddStudentClass   session.Step = "add_student:class"
	stepAddStudentHandle  session.Step = "add_student:handle"
	stepGiveTarget        session.Step = "give:target"
	stepGiveBody          session.Step = "give:body"
	stepGiveFile          session.Step = "give:file"
	stepSubmitIndex       session.Step = "submit:index"
	stepSubmitAnswer      session.Step = "submit:answer"
	stepReviewPick        session.Step = "review:pick"
	stepReviewGrade       session.Step = "review:grade"
	stepExportFormat      session.Step = "export:format"
	stepAddTeacherHandle  session.Step = "add_teacher:handle"
)

// Session field keys.
const (
	fieldClass        = "class"
	fieldTargetKind   = "target_kind"
	fieldTarget       = "target"
	fieldBody         = "body"
	fieldAssignmentID = "assignment_id"
	fieldWorkID       = "work_id"
	fieldOffset       = "offset"
	fieldPicks        = "picks"
)

// RoleResolver determines the sender's role. Resolve requires a bound chat
// id; Eligible ignores the handshake so /start can admit enrolled users.
type RoleResolver interface {
	Resolve(ctx context.Context, username string) (models.Role, error)
	Eligible(ctx context.Context, username string) (models.Role, error)
	Invalidate(ctx context.Context, username string)
}

// TeacherRegistrar binds a teacher's chat id on /start.
type TeacherRegistrar interface {
	Register(ctx context.Context, username string, chatID int64) error
}

// StudentRegistrar binds a student's chat id and display name on /start.
type StudentRegistrar interface {
	Register(ctx context.Context, username string, chatID int64, displayName string) error
}

// SchoolSite serves the informational commands.
type SchoolSite interface {
	SchoolInfo(ctx context.Context) (string, error)
	ScheduleLinks(ctx context.Context) ([]scraper.Link, error)
}

// UpdateRecorder counts routed updates and flow steps.
type UpdateRecorder interface {
	ObserveUpdate(command, role string)
	ObserveFlowStep(step string)
}

// Deps wires the router to everything it drives.
type Deps struct {
	Roles       RoleResolver
	Sessions    session.Store
	Assignments *service.AssignmentService
	Roster      *service.RosterService
	Invites     *service.InviteService
	Exports     *service.ExportService
	School      SchoolSite
	Transport   chat.Transport
	Teachers    TeacherRegistrar
	Students    StudentRegistrar
	Metrics     UpdateRecorder
	Logger      *zap.Logger
	MaxFileSize int64
}

// Router dispatches one update at a time.
type Router struct {
	deps Deps
	log  *zap.SugaredLogger
}

// NewRouter constructs a Router.
func NewRouter(deps Deps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{deps: deps, log: logger.Sugar()}
}

// HandleUpdate processes one inbound update. It never returns an error: the
// webhook must always acknowledge, and user-facing failures become chat
// replies instead.
func (r *Router) HandleUpdate(ctx context.Context, update *chat.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return
	}
	m := update.Message
	if m.From.Username == "" {
		r.reply(ctx, m, "Set a username in your chat settings so I can recognize you, then try again.")
		return
	}

	username := normalizeSender(m.From.Username)
	if err := r.route(ctx, m, username); err != nil {
		r.replyError(ctx, m, username, err)
	}
}

func (r *Router) route(ctx context.Context, m *chat.Message, username string) error {
	role, err := r.deps.Roles.Resolve(ctx, username)
	if err != nil {
		return err
	}

	command, args := parseCommand(m.Text)
	if command != "" && command != CmdSkip {
		r.observeUpdate(command, role)
		// A fresh command always interrupts whatever flow was in progress.
		if err := r.deps.Sessions.Clear(ctx, username); err != nil {
			return err
		}
		return r.dispatchCommand(ctx, m, username, role, command, args)
	}

	step, err := r.deps.Sessions.Step(ctx, username)
	if err != nil {
		return err
	}
	if step != session.StepNone {
		r.observeStep(step)
		return r.dispatchStep(ctx, m, username, role, step)
	}

	return r.replyHelp(ctx, m, role)
}

func (r *Router) dispatchCommand(ctx context.Context, m *chat.Message, username string, role models.Role, command, args string) error {
	switch command {
	case CmdStart:
		return r.handleStart(ctx, m, username, role, args)
	case CmdCancel:
		return r.handleCancel(ctx, m, username)
	case CmdSchoolInfo:
		return r.handleSchoolInfo(ctx, m)
	case CmdSchedule:
		return r.handleSchedule(ctx, m)
	}

	switch {
	case role.Teaches():
		switch command {
		case CmdCreateClass:
			return r.startCreateClass(ctx, m, username)
		case CmdAddStudent:
			return r.startAddStudent(ctx, m, username)
		case CmdGiveAssignment:
			return r.startGiveAssignment(ctx, m, username)
		case CmdViewClasses:
			return r.handleViewClasses(ctx, m, username)
		case CmdViewCompleted:
			return r.startReview(ctx, m, username)
		case CmdExportWorks:
			return r.startExport(ctx, m, username)
		}
	case role == models.RoleStudent:
		switch command {
		case CmdMyAssignments:
			return r.handleMyAssignments(ctx, m, username)
		case CmdMyClasses:
			return r.handleMyClasses(ctx, m, username)
		case CmdSubmitAssignment:
			return r.startSubmit(ctx, m, username)
		case CmdViewCompleted:
			return r.handleStudentCompleted(ctx, m, username)
		}
	}

	if command == CmdAddTeacher {
		if role != models.RoleDirector {
			return r.reply(ctx, m, "Only the director can add teachers.")
		}
		return r.startAddTeacher(ctx, m, username)
	}

	return r.replyHelp(ctx, m, role)
}

func (r *Router) dispatchStep(ctx context.Context, m *chat.Message, username string, role models.Role, step session.Step) error {
	switch step {
	case stepCreateClassName:
		return r.stepCreateClassName(ctx, m, username)
	case stepAddStudentClass:
		return r.stepAddStudentClass(ctx, m, username)
	case stepAddStudentHandle:
		return r.stepAddStudentHandle(ctx, m, username)
	case stepGiveTarget:
		return r.stepGiveTarget(ctx, m, username)
	case stepGiveBody:
		return r.stepGiveBody(ctx, m, username)
	case stepGiveFile:
		return r.stepGiveFile(ctx, m, username)
	case stepSubmitIndex:
		return r.stepSubmitIndex(ctx, m, username)
	case stepSubmitAnswer:
		return r.stepSubmitAnswer(ctx, m, username)
	case stepReviewPick:
		return r.stepReviewPick(ctx, m, username)
	case stepReviewGrade:
		return r.stepReviewGrade(ctx, m, username)
	case stepExportFormat:
		return r.stepExportFormat(ctx, m, username)
	case stepAddTeacherHandle:
		return r.stepAddTeacherHandle(ctx, m, username)
	default:
		// Stale step from an older build; drop it rather than trapping the user.
		if err := r.deps.Sessions.Clear(ctx, username); err != nil {
			return err
		}
		return r.replyHelp(ctx, m, role)
	}
}

// reply sends a plain text reply to the message's chat, logging failures.
func (r *Router) reply(ctx context.Context, m *chat.Message, text string) error {
	if _, err := r.deps.Transport.SendMessage(ctx, m.Chat.ID, text); err != nil {
		r.log.Warnw("reply failed", "chat_id", m.Chat.ID, "error", err)
	}
	return nil
}

// replyError turns a domain error into a chat reply. Validation keeps the
// current step so the user can retry; a missing resource or an internal
// failure ends the flow and clears the session. Unexpected errors get a
// generic message and a log entry.
func (r *Router) replyError(ctx context.Context, m *chat.Message, username string, err error) {
	appErr := apperrors.FromError(err)
	if appErr.Code == apperrors.ErrNotFound.Code || appErr.Code == apperrors.ErrInternal.Code {
		if cerr := r.deps.Sessions.Clear(ctx, username); cerr != nil {
			r.log.Warnw("session clear failed", "user", username, "error", cerr)
		}
	}
	if appErr.Code == apperrors.ErrInternal.Code {
		r.log.Errorw("update handling failed", "chat_id", m.Chat.ID, "error", err)
		_ = r.reply(ctx, m, "Something went wrong, please try again.")
		return
	}
	_ = r.reply(ctx, m, appErr.Message+".")
}

func (r *Router) replyHelp(ctx context.Context, m *chat.Message, role models.Role) error {
	switch {
	case role == models.RoleDirector:
		return r.reply(ctx, m, "Director commands:\n/add_teacher - add a teacher\n/school_info - about the school\n/schedule - schedule documents")
	case role.Teaches():
		return r.reply(ctx, m, "Teacher commands:\n/create_class - create a class\n/add_student - enroll a student\n/give_assignment - issue an assignment\n/view_classes - your classes\n/view_completed - review submitted works\n/export_works - download submitted works\n/cancel - abort the current action")
	case role == models.RoleStudent:
		return r.reply(ctx, m, "Student commands:\n/my_assignments - your active assignments\n/my_classes - your classes\n/submit_assignment - hand in work\n/view_completed - your submitted works\n/cancel - abort the current action")
	default:
		return r.reply(ctx, m, "I don't know you yet. Ask your teacher to add you to a class, then send /start.")
	}
}

func (r *Router) observeUpdate(command string, role models.Role) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveUpdate(command, string(role))
	}
}

func (r *Router) observeStep(step session.Step) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveFlowStep(string(step))
	}
}

// attachmentFrom extracts an attachment from an inbound message, enforcing
// the configured size cap on documents.
func (r *Router) attachmentFrom(m *chat.Message) (*models.Attachment, error) {
	if m.Document != nil {
		if r.deps.MaxFileSize > 0 && m.Document.FileSize > r.deps.MaxFileSize {
			return nil, apperrors.Clone(apperrors.ErrValidation,
				fmt.Sprintf("file is too large, the limit is %d MB", r.deps.MaxFileSize/(1024*1024)))
		}
		name := m.Document.FileName
		att := &models.Attachment{FileID: m.Document.FileID, Type: models.FileTypeDocument}
		if name != "" {
			att.Name = &name
		}
		return att, nil
	}
	if fileID := chat.Largest(m.Photo); fileID != "" {
		return &models.Attachment{FileID: fileID, Type: models.FileTypePhoto}, nil
	}
	return nil, nil
}

func normalizeSender(username string) string {
	return normalizeHandleText(username)
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}
