package models

import "time"

// Teacher is an instructor identified by chat username. The chat id stays
// empty until the account completes the /start handshake.
type Teacher struct {
	Username  string    `db:"username" json:"username"`
	ChatID    *int64    `db:"chat_id" json:"chat_id,omitempty"`
	FirstSeen time.Time `db:"first_seen" json:"first_seen"`
}

// Registered reports whether the teacher has a reachable chat channel.
func (t Teacher) Registered() bool {
	return t.ChatID != nil
}
