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

// handleMyAssignments lists the student's active assignments with the same
// 1-based numbering used by /submit_assignment.
func (r *Router) handleMyAssignments(ctx context.Context, m *chat.Message, username string) error {
	active, err := r.deps.Assignments.ListActive(ctx, username)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return r.reply(ctx, m, "You have no active assignments.")
	}
	return r.reply(ctx, m, "Your active assignments:\n"+formatActiveList(active))
}

// handleMyClasses lists the student's classes with active assignment counts.
func (r *Router) handleMyClasses(ctx context.Context, m *chat.Message, username string) error {
	classes, err := r.deps.Roster.StudentClasses(ctx, username)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		return r.reply(ctx, m, "You are not in any class yet. Ask your teacher to add you.")
	}
	var b strings.Builder
	b.WriteString("Your classes:\n")
	for _, c := range classes {
		fmt.Fprintf(&b, "%s - %d active assignment(s)\n", c.Name, c.ActiveCount)
	}
	return r.reply(ctx, m, b.String())
}

// --- submit assignment ---

func (r *Router) startSubmit(ctx context.Context, m *chat.Message, username string) error {
	active, err := r.deps.Assignments.ListActive(ctx, username)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return r.reply(ctx, m, "You have no active assignments to submit.")
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepSubmitIndex); err != nil {
		return err
	}
	// The number->id mapping is frozen here; later changes to the active list
	// do not shift what each displayed number refers to.
	ids := make([]string, len(active))
	for i, a := range active {
		ids[i] = strconv.FormatInt(a.ID, 10)
	}
	if err := r.deps.Sessions.Merge(ctx, username, session.Fields{fieldPicks: strings.Join(ids, ",")}); err != nil {
		return err
	}
	return r.reply(ctx, m, "Which assignment are you submitting? Send its number:\n"+formatActiveList(active))
}

func (r *Router) stepSubmitIndex(ctx context.Context, m *chat.Message, username string) error {
	index, err := strconv.Atoi(inputText(m))
	if err != nil {
		return r.reply(ctx, m, "Send the number of the assignment from the list.")
	}

	fields, err := r.deps.Sessions.GetFields(ctx, username)
	if err != nil {
		return err
	}
	if fields[fieldPicks] == "" {
		if err := r.deps.Sessions.Clear(ctx, username); err != nil {
			return err
		}
		return r.reply(ctx, m, "Something went wrong, start again with /submit_assignment.")
	}
	picks := strings.Split(fields[fieldPicks], ",")
	if index < 1 || index > len(picks) {
		return r.reply(ctx, m, fmt.Sprintf("Pick a number between 1 and %d.", len(picks)))
	}
	id, ok := parseID(picks[index-1])
	if !ok {
		if err := r.deps.Sessions.Clear(ctx, username); err != nil {
			return err
		}
		return r.reply(ctx, m, "Something went wrong, start again with /submit_assignment.")
	}

	a, err := r.deps.Assignments.ActiveAssignment(ctx, id, username)
	if err != nil {
		return err
	}
	if err := r.deps.Sessions.Merge(ctx, username, session.Fields{
		fieldAssignmentID: strconv.FormatInt(a.ID, 10),
	}); err != nil {
		return err
	}
	if err := r.deps.Sessions.SetStep(ctx, username, stepSubmitAnswer); err != nil {
		return err
	}

	prompt := fmt.Sprintf("Submitting: %s\nSend your answer as text, a file, or a file with a caption.", a.Body)
	if att := a.Attachment(); att != nil {
		var sendErr error
		if att.Type == models.FileTypePhoto {
			_, sendErr = r.deps.Transport.SendPhoto(ctx, m.Chat.ID, att.FileID, prompt)
		} else {
			_, sendErr = r.deps.Transport.SendDocument(ctx, m.Chat.ID, att.FileID, prompt)
		}
		if sendErr == nil {
			return nil
		}
		r.log.Warnw("assignment attachment delivery failed, falling back to text", "assignment_id", a.ID, "error", sendErr)
	}
	return r.reply(ctx, m, prompt)
}

func (r *Router) stepSubmitAnswer(ctx context.Context, m *chat.Message, username string) error {
	att, err := r.attachmentFrom(m)
	if err != nil {
		return err
	}
	text := inputText(m)

	fields, err := r.deps.Sessions.GetFields(ctx, username)
	if err != nil {
		return err
	}
	assignmentID, ok := parseID(fields[fieldAssignmentID])
	if !ok {
		// Session lost its id mid-flow; restart cleanly.
		if err := r.deps.Sessions.Clear(ctx, username); err != nil {
			return err
		}
		return r.reply(ctx, m, "Something went wrong, start again with /submit_assignment.")
	}

	if err := r.deps.Assignments.Submit(ctx, assignmentID, username, text, att); err != nil {
		return err
	}
	if err := r.deps.Sessions.Clear(ctx, username); err != nil {
		return err
	}
	return r.reply(ctx, m, "Your work has been submitted. The teacher has been notified.")
}

// handleStudentCompleted shows the student's recently submitted works and
// their grades.
func (r *Router) handleStudentCompleted(ctx context.Context, m *chat.Message, username string) error {
	completed, err := r.deps.Assignments.ListCompleted(ctx, username, service.CompletedPageSize)
	if err != nil {
		return err
	}
	if len(completed) == 0 {
		return r.reply(ctx, m, "You have not submitted any work yet.")
	}
	var b strings.Builder
	b.WriteString("Your submitted works:\n")
	for _, a := range completed {
		grade := "awaiting grade"
		if a.Grade != nil {
			grade = fmt.Sprintf("graded %d/5", *a.Grade)
		}
		fmt.Fprintf(&b, "%s - %s\n", a.Body, grade)
	}
	return r.reply(ctx, m, b.String())
}

// formatActiveList renders active assignments with 1-based display indexes.
// The order matches the number->id mapping captured when a submit flow starts.
func formatActiveList(active []models.Assignment) string {
	var b strings.Builder
	for i, a := range active {
		fmt.Fprintf(&b, "%d. %s (from @%s)", i+1, a.Body, a.TeacherUsername)
		if a.FileID != nil {
			b.WriteString(" [attachment]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
