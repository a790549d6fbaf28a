// Package changefeed broadcasts row changes of applications to interested
// subscribers, such as the websocket watch of the notification list.
package changefeed

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/raids-lab/cobrew/dao/model"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

const TableApplications = "applications"

// Event describes one changed application row. OwnerID is the creator of
// the application's project, so subscribers can filter without a lookup.
type Event struct {
	Table         string                  `json:"table"`
	Type          EventType               `json:"type"`
	ApplicationID uuid.UUID               `json:"applicationId"`
	ProjectID     uuid.UUID               `json:"projectId"`
	OwnerID       uuid.UUID               `json:"ownerId"`
	ApplicantID   uuid.UUID               `json:"applicantId"`
	Status        model.ApplicationStatus `json:"status"`
	At            time.Time               `json:"at"`
}

// ApplicationEvent builds the event for a changed application.
func ApplicationEvent(typ EventType, app *model.Application, ownerID uuid.UUID) Event {
	return Event{
		Table:         TableApplications,
		Type:          typ,
		ApplicationID: app.ID,
		ProjectID:     app.ProjectID,
		OwnerID:       ownerID,
		ApplicantID:   app.ApplicantID,
		Status:        app.Status,
		At:            app.UpdatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Subscriber interface {
	// Subscribe returns a channel of events and a cancel func. The channel is
	// closed after cancel or when the feed shuts down. Events are dropped for
	// subscribers that fall behind.
	Subscribe() (<-chan Event, func())
}

type Feed interface {
	Publisher
	Subscriber
	Close() error
}
