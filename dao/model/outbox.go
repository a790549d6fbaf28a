package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OutboxPayload carries what a side effect needs. Fields unused by a kind stay zero.
type OutboxPayload struct {
	ApplicationID uuid.UUID         `json:"applicationId"`
	ProjectID     uuid.UUID         `json:"projectId"`
	SenderID      uuid.UUID         `json:"senderId,omitempty"`
	RecipientID   uuid.UUID         `json:"recipientId,omitempty"`
	Status        ApplicationStatus `json:"status,omitempty"`
	Content       string            `json:"content,omitempty"`
}

// OutboxItem is a side effect recorded in the same transaction as the state
// change that caused it, and executed later by the outbox worker.
type OutboxItem struct {
	Base
	Kind          OutboxKind                        `gorm:"type:varchar(64);not null;index;comment:side effect kind" json:"kind"`
	Payload       datatypes.JSONType[OutboxPayload] `gorm:"comment:side effect arguments" json:"payload"`
	Status        OutboxStatus                      `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	Attempts      int                               `gorm:"not null;default:0;comment:finished attempts" json:"attempts"`
	NextAttemptAt time.Time                         `gorm:"not null;index;comment:due time of the next attempt" json:"nextAttemptAt"`
	LockedUntil   *time.Time                        `gorm:"comment:lease held by a dispatcher" json:"lockedUntil"`
	LastError     string                            `gorm:"type:text" json:"lastError"`
	DoneAt        *time.Time                        `json:"doneAt"`
}

// NewOutboxItem builds a pending item that is due immediately.
func NewOutboxItem(kind OutboxKind, payload OutboxPayload, now time.Time) *OutboxItem {
	return &OutboxItem{
		Base:          Base{ID: uuid.New()},
		Kind:          kind,
		Payload:       datatypes.NewJSONType(payload),
		Status:        OutboxStatusPending,
		NextAttemptAt: now,
	}
}
