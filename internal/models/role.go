package models

// Role classifies a chat user. Precedence during resolution is
// director > teacher > student > unknown.
type Role string

const (
	RoleDirector Role = "director"
	RoleTeacher  Role = "teacher"
	RoleStudent  Role = "student"
	RoleUnknown  Role = "unknown"
)

// Teaches reports whether the role carries teacher privileges.
func (r Role) Teaches() bool {
	return r == RoleTeacher || r == RoleDirector
}
