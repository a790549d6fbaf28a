// Package store is the persistence boundary of the service. Handlers and the
// workflow service talk to Store; the gorm implementation lives in gorm.go and
// an in-memory one for tests in storetest.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/raids-lab/cobrew/dao/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrNotPending is returned with the current row when a conditional
	// transition found the application already decided.
	ErrNotPending = errors.New("application is not pending")
	ErrDuplicate  = errors.New("duplicate record")
)

type ProjectFilter struct {
	CreatorID *uuid.UUID
	Category  string
	Stage     model.ProjectStage
	TitleLike string
	Page      int
	PageSize  int
}

// DiscoverFilter selects users for the Discover page.
type DiscoverFilter struct {
	// Query matches full name, skills or location, case-insensitively.
	Query         string
	MinCompletion int
	Limit         int
}

type ChatFilter struct {
	ProjectID uuid.UUID
	// ViewerID limits the list to project-wide messages and those the viewer
	// sent or received. Nil lists every message of the project.
	ViewerID *uuid.UUID
	// Limit keeps the newest messages.
	Limit int
}

type ClaimFilter struct {
	// IDs restricts the claim to the given items. Empty means any due item.
	IDs   []uuid.UUID
	Limit int
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, firstName, lastName *string, profile model.Profile) (*model.User, error)
	ListUsers(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
	// DiscoverUsers returns users whose profile is at least MinCompletion
	// percent complete, newest first.
	DiscoverUsers(ctx context.Context, filter DiscoverFilter) ([]*model.User, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]*model.Project, int64, error)
	ListProjectsByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Project, error)
	ListProjectsByCreator(ctx context.Context, creatorID uuid.UUID) ([]*model.Project, error)
}

type ApplicationStore interface {
	// CreateApplication inserts the application and its side effects in one
	// transaction. A second pending application for the same project and
	// applicant fails with ErrDuplicate.
	CreateApplication(ctx context.Context, app *model.Application, effects []*model.OutboxItem) error
	GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error)
	HasPendingApplication(ctx context.Context, projectID, applicantID uuid.UUID) (bool, error)
	// ListPendingApplications returns pending applications of the projects,
	// newest first with ties broken by id.
	ListPendingApplications(ctx context.Context, projectIDs []uuid.UUID) ([]*model.Application, error)
	ListApplicationsByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*model.Application, error)
	// TransitionApplication moves a pending application to status and
	// inserts effects in the same transaction. When the row is no longer
	// pending it returns the current row and ErrNotPending.
	TransitionApplication(ctx context.Context, id uuid.UUID, status model.ApplicationStatus,
		at time.Time, effects []*model.OutboxItem) (*model.Application, error)
	IsAcceptedMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

type ChatStore interface {
	// CreateChatMessage inserts msg. A message with the same OutboxID already
	// present makes it a no-op and created is false.
	CreateChatMessage(ctx context.Context, msg *model.ChatMessage) (created bool, err error)
	GetChatMessageByOutbox(ctx context.Context, outboxID uuid.UUID) (*model.ChatMessage, error)
	// ListChatMessages returns the newest filter.Limit messages, oldest first.
	ListChatMessages(ctx context.Context, filter ChatFilter) ([]*model.ChatMessage, error)
}

type OutboxStore interface {
	EnqueueOutbox(ctx context.Context, items ...*model.OutboxItem) error
	// ClaimOutbox leases due pending items until now+lease. Items leased by
	// another dispatcher are skipped.
	ClaimOutbox(ctx context.Context, filter ClaimFilter, now time.Time, lease time.Duration) ([]*model.OutboxItem, error)
	CompleteOutbox(ctx context.Context, id uuid.UUID, at time.Time) error
	RetryOutbox(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, lastErr string, dead bool) error
	ListOutbox(ctx context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxItem, error)
	// RequeueOutbox turns a dead item back into a pending one due at now.
	RequeueOutbox(ctx context.Context, id uuid.UUID, now time.Time) error
}

type primaryKey struct{}

// WithPrimary marks ctx so reads made with it go to the primary database
// instead of a replica. Use it when a read must see a write that just
// happened elsewhere.
func WithPrimary(ctx context.Context) context.Context {
	return context.WithValue(ctx, primaryKey{}, true)
}

// ReadsPrimary reports whether ctx was marked by WithPrimary.
func ReadsPrimary(ctx context.Context) bool {
	v, _ := ctx.Value(primaryKey{}).(bool)
	return v
}

type Store interface {
	UserStore
	ProjectStore
	ApplicationStore
	ChatStore
	OutboxStore
}
