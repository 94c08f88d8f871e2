// Package chat defines the wire types of the chat platform and the Transport
// used to deliver outbound messages. The rest of the bot depends only on the
// Transport interface, so tests swap in a fake and never touch the network.
package chat

import "context"

// Update is one inbound event from the chat platform webhook.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Document  *Document   `json:"document"`
	Photo     []PhotoSize `json:"photo"`
}

// User identifies the message sender.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Chat identifies the conversation the message arrived in.
type Chat struct {
	ID int64 `json:"id"`
}

// Document is a file attachment on an inbound message.
type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
}

// PhotoSize is one rendition of a photo attachment. The platform sends several
// sizes; the largest is last.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

// Largest returns the file id of the biggest photo rendition, or "" when the
// message carries no photo.
func Largest(photos []PhotoSize) string {
	if len(photos) == 0 {
		return ""
	}
	return photos[len(photos)-1].FileID
}

// Transport delivers outbound messages. Every method returns the platform
// message id of the sent message.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int64, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int64, error)
	// SendFile uploads raw bytes as a document, used for generated exports.
	SendFile(ctx context.Context, chatID int64, filename string, data []byte, caption string) (int64, error)
}
