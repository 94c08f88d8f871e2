package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/schoolbot/internal/chat"
	"github.com/noah-isme/schoolbot/internal/models"
	apperrors "github.com/noah-isme/schoolbot/pkg/errors"
)

// handleStart registers the sender's chat channel and greets them by role.
// A /start payload carries a signed teacher invite.
func (r *Router) handleStart(ctx context.Context, m *chat.Message, username string, role models.Role, args string) error {
	if args != "" && r.deps.Invites != nil {
		invited, err := r.deps.Invites.Verify(args)
		if err != nil {
			return err
		}
		if invited != username {
			return r.reply(ctx, m, "This invite link was issued for someone else.")
		}
		if err := r.deps.Roster.AddTeacher(ctx, username); err != nil && !apperrors.Is(err, apperrors.ErrConflict) {
			return err
		}
		role = models.RoleTeacher
	}

	// The sender may be enrolled without a bound chat id yet; /start is the
	// one place the handshake requirement is relaxed.
	if role == models.RoleUnknown {
		eligible, err := r.deps.Roles.Eligible(ctx, username)
		if err != nil {
			return err
		}
		role = eligible
	}

	switch {
	case role.Teaches():
		if err := r.deps.Teachers.Register(ctx, username, m.Chat.ID); err != nil {
			return err
		}
		r.deps.Roles.Invalidate(ctx, username)
		if role == models.RoleDirector {
			return r.reply(ctx, m, "Welcome back. Use /add_teacher to add a teacher.")
		}
		return r.reply(ctx, m, "Welcome! You are registered as a teacher.\nUse /create_class, /add_student, and /give_assignment to get started.")
	case role == models.RoleStudent:
		if err := r.deps.Students.Register(ctx, username, m.Chat.ID, displayName(m.From)); err != nil {
			return err
		}
		r.deps.Roles.Invalidate(ctx, username)
		return r.greetStudent(ctx, m, username)
	default:
		return r.reply(ctx, m, "Hi! I don't know you yet. Ask your teacher to add you to a class, then send /start again.")
	}
}

// greetStudent welcomes a student and shows their active assignments so the
// first thing they see after registering is what is due.
func (r *Router) greetStudent(ctx context.Context, m *chat.Message, username string) error {
	active, err := r.deps.Assignments.ListActive(ctx, username)
	if err != nil {
		return err
	}
	greeting := fmt.Sprintf("Hi, %s! You are registered.", m.From.FirstName)
	if len(active) == 0 {
		return r.reply(ctx, m, greeting+"\nYou have no active assignments.")
	}
	return r.reply(ctx, m, greeting+"\n\nYour active assignments:\n"+formatActiveList(active))
}

// handleCancel aborts any flow in progress.
func (r *Router) handleCancel(ctx context.Context, m *chat.Message, username string) error {
	// dispatchCommand already cleared the session; just acknowledge.
	_ = username
	return r.reply(ctx, m, "Cancelled.")
}

// handleSchoolInfo shows the scraped school description, with a fixed
// fallback when the site is unreachable.
func (r *Router) handleSchoolInfo(ctx context.Context, m *chat.Message) error {
	if r.deps.School == nil {
		return r.reply(ctx, m, "School information is not available right now.")
	}
	info, err := r.deps.School.SchoolInfo(ctx)
	if err != nil {
		r.log.Warnw("school info scrape failed", "error", err)
		return r.reply(ctx, m, "School information is not available right now, try again later.")
	}
	return r.reply(ctx, m, info)
}

// handleSchedule lists the schedule documents posted on the school site.
func (r *Router) handleSchedule(ctx context.Context, m *chat.Message) error {
	if r.deps.School == nil {
		return r.reply(ctx, m, "The schedule is not available right now.")
	}
	links, err := r.deps.School.ScheduleLinks(ctx)
	if err != nil {
		r.log.Warnw("schedule scrape failed", "error", err)
		return r.reply(ctx, m, "The schedule is not available right now, try again later.")
	}
	var b strings.Builder
	b.WriteString("Schedule documents:\n")
	for _, link := range links {
		fmt.Fprintf(&b, "%s\n%s\n", link.Title, link.URL)
	}
	return r.reply(ctx, m, b.String())
}

func displayName(u *chat.User) string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

func normalizeHandleText(raw string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
}

// inputText returns the textual content of a flow message, falling back to
// the caption when the user sent a file.
func inputText(m *chat.Message) string {
	if m.Text != "" {
		return strings.TrimSpace(m.Text)
	}
	return strings.TrimSpace(m.Caption)
}

// isSkip reports whether the message is the /skip command.
func isSkip(m *chat.Message) bool {
	cmd, _ := parseCommand(m.Text)
	return cmd == CmdSkip
}
