package model

import "github.com/google/uuid"

const WelcomeMessage = "Welcome to the project! I've accepted your application. Let's discuss how you can contribute."

// ChatMessage is one message in a project's chat log.
type ChatMessage struct {
	Base
	ProjectID   uuid.UUID  `gorm:"type:uuid;not null;index;comment:project chat" json:"projectId"`
	SenderID    uuid.UUID  `gorm:"type:uuid;not null;index;comment:author" json:"senderId"`
	RecipientID *uuid.UUID `gorm:"type:uuid;index;comment:addressed user, null for the whole project" json:"recipientId"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	// OutboxID is set on messages written by an outbox item, so a retried
	// item finds its earlier message instead of writing a second one.
	OutboxID *uuid.UUID `gorm:"type:uuid;uniqueIndex;comment:producing outbox item" json:"-"`
}
