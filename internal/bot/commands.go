package bot

import "strings"

// Command identifiers. These are the stable chat-facing names; renaming one
// breaks saved user habits, so treat them as frozen.
const (
	CmdStart            = "start"
	CmdCancel           = "cancel"
	CmdSkip             = "skip"
	CmdMyAssignments    = "my_assignments"
	CmdMyClasses        = "my_classes"
	CmdSubmitAssignment = "submit_assignment"
	CmdSchoolInfo       = "school_info"
	CmdSchedule         = "schedule"
	CmdCreateClass      = "create_class"
	CmdAddStudent       = "add_student"
	CmdGiveAssignment   = "give_assignment"
	CmdViewClasses      = "view_classes"
	CmdViewCompleted    = "view_completed"
	CmdExportWorks      = "export_works"
	CmdAddTeacher       = "add_teacher"
)

// parseCommand splits "/cmd@botname arg rest" into the command name and its
// argument string. Returns "" when the text is not a command.
func parseCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	body := text[1:]
	if i := strings.IndexAny(body, " \n"); i >= 0 {
		command, args = body[:i], strings.TrimSpace(body[i+1:])
	} else {
		command = body
	}
	// Group chats append the bot's username to disambiguate.
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return strings.ToLower(command), args
}
