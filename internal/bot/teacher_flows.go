package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/schoolbot/internal/chat"
	"github.com/noah-isme/schoolbot/internal/models"
	"github.com/noah-isme/schoolbot/internal/service"
	"github.com/noah-isme/schoolbot/internal/session"
)

// --- create class ---

func (r *Router) startCreateClass(ctx context.Context, m *chat.Message, username string) error {
	if err := r.deps.Sessions.SetStep(ctx, username, stepCreateClassName); err != nil {
		return err
	}
	return r.reply(ctx, m, "Send the name of the new class, for example: 10-A")
}

func (r *Router) stepCreateClassName(ctx context.Context, m *chat.Message, username string) error {
	name := inputText(m)
	if err := r.deps.Roster.CreateClass(ctx, username, name); err != nil {
		return err
	}
	if err := r.deps.Sessions.Clear(ctx, username); err != nil {
		return err
	}
	return r.reply(ctx, m, fmt.Sprintf("Class %s created. Add students with /add_student.", name))
}

// --- add student ---

func (r *Router) startAddStudent(ctx context.Context, m *chat.Message, username string) error {
	names, err := r.deps.Roster.ClassNames(ctx, username)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return r.reply(ctx, m, "You have no classes yet. Create one with /create_class first.")
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepAddStudentClass); err != nil {
		return err
	}
	return r.reply(ctx, m, "Which class? Your classes:\n"+strings.Join(names, "\n"))
}

func (r *Router) stepAddStudentClass(ctx context.Context, m *chat.Message, username string) error {
	if err := r.deps.Sessions.Merge(ctx, username, session.Fields{fieldClass: inputText(m)}); err != nil {
		return err
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepAddStudentHandle); err != nil {
		return err
	}
	return r.reply(ctx, m, "Send the student's @username.")
}

func (r *Router) stepAddStudentHandle(ctx context.Context, m *chat.Message, username string) error {
	fields, err := r.deps.Sessions.GetFields(ctx, username)
	if err != nil {
		return err
	}
	student := inputText(m)
	if err := r.deps.Roster.AddStudent(ctx, username, fields[fieldClass], student); err != nil {
		return err
	}
	if err := r.deps.Sessions.Clear(ctx, username); err != nil {
		return err
	}
	return r.reply(ctx, m, fmt.Sprintf("Added %s to %s. They will start getting assignments once they open the bot.",
		student, fields[fieldClass]))
}

// --- give assignment ---

func (r *Router) startGiveAssignment(ctx context.Context, m *chat.Message, username string) error {
	if err := r.deps.Sessions.SetStep(ctx, username, stepGiveTarget); err != nil {
		return err
	}
	return r.reply(ctx, m, "Who is this assignment for? Send a student's @username or a class name.")
}

func (r *Router) stepGiveTarget(ctx context.Context, m *chat.Message, username string) error {
	target := inputText(m)
	if target == "" {
		return r.reply(ctx, m, "Send a student's @username or a class name.")
	}
	kind := "class"
	if strings.HasPrefix(target, "@") {
		kind = "individual"
	}
	err := r.deps.Sessions.Merge(ctx, username, session.Fields{
		fieldTargetKind: kind,
		fieldTarget:     target,
	})
	if err != nil {
		return err
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepGiveBody); err != nil {
		return err
	}
	return r.reply(ctx, m, "Send the assignment text.")
}

func (r *Router) stepGiveBody(ctx context.Context, m *chat.Message, username string) error {
	body := inputText(m)
	if body == "" {
		return r.reply(ctx, m, "The assignment text must not be empty. Send the text.")
	}
	if err := r.deps.Sessions.Merge(ctx, username, session.Fields{fieldBody: body}); err != nil {
		return err
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepGiveFile); err != nil {
		return err
	}
	return r.reply(ctx, m, "Attach a file for the assignment, or send /skip.")
}

func (r *Router) stepGiveFile(ctx context.Context, m *chat.Message, username string) error {
	var att *models.Attachment
	if !isSkip(m) {
		var err error
		att, err = r.attachmentFrom(m)
		if err != nil {
			return err
		}
		if att == nil {
			return r.reply(ctx, m, "Attach a document or photo, or send /skip.")
		}
	}

	fields, err := r.deps.Sessions.GetFields(ctx, username)
	if err != nil {
		return err
	}

	if fields[fieldTargetKind] == "individual" {
		if err := r.deps.Assignments.IssueIndividual(ctx, username, fields[fieldTarget], fields[fieldBody], att); err != nil {
			return err
		}
		if err := r.deps.Sessions.Clear(ctx, username); err != nil {
			return err
		}
		return r.reply(ctx, m, fmt.Sprintf("Assignment sent to %s.", fields[fieldTarget]))
	}

	count, err := r.deps.Assignments.IssueToClass(ctx, username, fields[fieldTarget], fields[fieldBody], att)
	if err != nil {
		return err
	}
	if err := r.deps.Sessions.Clear(ctx, username); err != nil {
		return err
	}
	return r.reply(ctx, m, fmt.Sprintf("Assignment sent to %d students in %s.", count, fields[fieldTarget]))
}

// --- view classes ---

func (r *Router) handleViewClasses(ctx context.Context, m *chat.Message, username string) error {
	rosters, err := r.deps.Roster.TeacherClasses(ctx, username)
	if err != nil {
		return err
	}
	if len(rosters) == 0 {
		return r.reply(ctx, m, "You have no classes yet. Create one with /create_class.")
	}
	var b strings.Builder
	for _, roster := range rosters {
		fmt.Fprintf(&b, "%s (%d students)\n", roster.Name, len(roster.Students))
		for _, s := range roster.Students {
			fmt.Fprintf(&b, "  @%s\n", s)
		}
	}
	return r.reply(ctx, m, b.String())
}

// --- review submitted works ---

func (r *Router) startReview(ctx context.Context, m *chat.Message, username string) error {
	works, err := r.deps.Assignments.ListSubmitted(ctx, username, 0)
	if err != nil {
		return err
	}
	if len(works) == 0 {
		return r.reply(ctx, m, "No submitted works yet.")
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepReviewPick); err != nil {
		return err
	}
	if err := r.deps.Sessions.Merge(ctx, username, session.Fields{fieldOffset: "0"}); err != nil {
		return err
	}
	return r.sendReviewPage(ctx, m, works, 0)
}

func (r *Router) stepReviewPick(ctx context.Context, m *chat.Message, username string) error {
	input := strings.ToLower(inputText(m))

	works, err := r.deps.Assignments.ListSubmitted(ctx, username, 0)
	if err != nil {
		return err
	}

	if input == "more" || input == "back" {
		fields, err := r.deps.Sessions.GetFields(ctx, username)
		if err != nil {
			return err
		}
		offset, _ := strconv.Atoi(fields[fieldOffset])
		// Paging moves one page at a time and never wraps.
		if input == "more" {
			if offset+service.ReviewPageSize >= len(works) {
				return r.reply(ctx, m, "No more submitted works. Send a work ID to review it.")
			}
			offset += service.ReviewPageSize
		} else {
			if offset == 0 {
				return r.reply(ctx, m, "You are on the first page. Send a work ID to review it.")
			}
			offset -= service.ReviewPageSize
			if offset < 0 {
				offset = 0
			}
		}
		if err := r.deps.Sessions.Merge(ctx, username, session.Fields{fieldOffset: strconv.Itoa(offset)}); err != nil {
			return err
		}
		return r.sendReviewPage(ctx, m, works, offset)
	}

	id, ok := parseID(input)
	if !ok {
		return r.reply(ctx, m, "Send a work ID from the list, or 'more' for the next page.")
	}

	work, err := r.deps.Assignments.SubmittedWork(ctx, id, username)
	if err != nil {
		return err
	}
	if err := r.deps.Sessions.Merge(ctx, username, session.Fields{fieldWorkID: input}); err != nil {
		return err
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepReviewGrade); err != nil {
		return err
	}
	return r.sendWorkDetails(ctx, m, work)
}

func (r *Router) stepReviewGrade(ctx context.Context, m *chat.Message, username string) error {
	grade, err := strconv.Atoi(inputText(m))
	if err != nil {
		return r.reply(ctx, m, "Send a grade from 1 to 5.")
	}
	fields, err := r.deps.Sessions.GetFields(ctx, username)
	if err != nil {
		return err
	}
	workID, _ := parseID(fields[fieldWorkID])

	if err := r.deps.Assignments.Grade(ctx, workID, username, grade); err != nil {
		return err
	}
	if err := r.deps.Sessions.Clear(ctx, username); err != nil {
		return err
	}
	return r.reply(ctx, m, fmt.Sprintf("Graded %d/5. The student has been notified.", grade))
}

func (r *Router) sendReviewPage(ctx context.Context, m *chat.Message, works []models.SubmittedWork, offset int) error {
	end := offset + service.ReviewPageSize
	if end > len(works) {
		end = len(works)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Submitted works %d-%d of %d:\n", offset+1, end, len(works))
	for _, w := range works[offset:end] {
		grade := ""
		if w.Grade != nil {
			grade = fmt.Sprintf(" [graded %d/5]", *w.Grade)
		}
		fmt.Fprintf(&b, "#%d %s: %s%s\n", w.ID, w.StudentName, w.Body, grade)
	}
	b.WriteString("\nSend a work ID to review it")
	if end < len(works) {
		b.WriteString(", or 'more' for the next page")
	}
	if offset > 0 {
		b.WriteString(", or 'back' for the previous page")
	}
	b.WriteString(".")
	return r.reply(ctx, m, b.String())
}

func (r *Router) sendWorkDetails(ctx context.Context, m *chat.Message, work *models.SubmittedWork) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Work #%d by %s\nAssignment: %s\n", work.ID, work.StudentName, work.Body)
	if work.ResponseText != nil && *work.ResponseText != "" {
		fmt.Fprintf(&b, "Answer: %s\n", *work.ResponseText)
	}
	b.WriteString("\nSend a grade from 1 to 5.")

	if work.ResponseFileID != nil && work.ResponseFileType != nil {
		var err error
		if models.FileType(*work.ResponseFileType) == models.FileTypePhoto {
			_, err = r.deps.Transport.SendPhoto(ctx, m.Chat.ID, *work.ResponseFileID, b.String())
		} else {
			_, err = r.deps.Transport.SendDocument(ctx, m.Chat.ID, *work.ResponseFileID, b.String())
		}
		if err == nil {
			return nil
		}
		r.log.Warnw("work attachment delivery failed, falling back to text", "work_id", work.ID, "error", err)
	}
	return r.reply(ctx, m, b.String())
}

// --- export works ---

func (r *Router) startExport(ctx context.Context, m *chat.Message, username string) error {
	if r.deps.Exports == nil || !r.deps.Exports.Enabled() {
		return r.reply(ctx, m, "Exports are disabled.")
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepExportFormat); err != nil {
		return err
	}
	return r.reply(ctx, m, "Which format: pdf or csv?")
}

func (r *Router) stepExportFormat(ctx context.Context, m *chat.Message, username string) error {
	format := strings.ToLower(inputText(m))
	file, err := r.deps.Exports.SubmittedWorks(ctx, username, format)
	if err != nil {
		return err
	}
	if err := r.deps.Sessions.Clear(ctx, username); err != nil {
		return err
	}
	if _, err := r.deps.Transport.SendFile(ctx, m.Chat.ID, file.Filename, file.Data, "Your submitted works export."); err != nil {
		r.log.Warnw("export delivery failed", "chat_id", m.Chat.ID, "error", err)
		return r.reply(ctx, m, "Could not deliver the export file, please try again.")
	}
	return nil
}

// --- add teacher (director only) ---

func (r *Router) startAddTeacher(ctx context.Context, m *chat.Message, username string) error {
	if err := r.deps.Sessions.SetStep(ctx, username, stepAddTeacherHandle); err != nil {
		return err
	}
	return r.reply(ctx, m, "Send the new teacher's @username.")
}

func (r *Router) stepAddTeacherHandle(ctx context.Context, m *chat.Message, username string) error {
	teacher := inputText(m)
	if err := r.deps.Roster.AddTeacher(ctx, teacher); err != nil {
		return err
	}
	if err := r.deps.Sessions.Clear(ctx, username); err != nil {
		return err
	}

	reply := fmt.Sprintf("Teacher %s added.", teacher)
	if r.deps.Invites != nil {
		link, err := r.deps.Invites.CreateLink(normalizeHandleText(teacher))
		if err != nil {
			r.log.Warnw("invite link creation failed", "teacher", teacher, "error", err)
		} else {
			reply += "\nSend them this invite link:\n" + link
		}
	}
	return r.reply(ctx, m, reply)
}
