package models

// Class groups students under an owning teacher. Names are stored verbatim
// but matched case-insensitively with surrounding quotes stripped.
type Class struct {
	Name            string `db:"name" json:"name"`
	TeacherUsername string `db:"teacher_username" json:"teacher_username"`
}

// ClassRoster carries a class together with its member usernames.
type ClassRoster struct {
	Name     string   `json:"name"`
	Students []string `json:"students"`
}

// ClassMember is one (student, chat id) pair from a class roster, shaped for
// fan-out issuance and notification.
type ClassMember struct {
	StudentUsername string `db:"student_username"`
	ChatID          *int64 `db:"chat_id"`
}
