package models

import "time"

// Student is a learner identified by chat username. Students may be referenced
// (added to a class) before they ever open the bot, so the chat id is nullable.
type Student struct {
	Username    string    `db:"username" json:"username"`
	ChatID      *int64    `db:"chat_id" json:"chat_id,omitempty"`
	FirstSeen   time.Time `db:"first_seen" json:"first_seen"`
	DisplayName *string   `db:"display_name" json:"display_name,omitempty"`
}

// Name returns the display name, falling back to the username.
func (s Student) Name() string {
	if s.DisplayName != nil && *s.DisplayName != "" {
		return *s.DisplayName
	}
	return s.Username
}

// Registered reports whether the student has a reachable chat channel.
func (s Student) Registered() bool {
	return s.ChatID != nil
}

// StudentClass pairs a class name with the student's active assignment count.
type StudentClass struct {
	Name        string `db:"name" json:"name"`
	ActiveCount int    `db:"active_count" json:"active_count"`
}
