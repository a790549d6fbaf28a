package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/sideeffect"
	"github.com/raids-lab/cobrew/pkg/changefeed"
	"github.com/raids-lab/cobrew/pkg/metrics"
)

// Channel names the entry point a decision came through.
type Channel string

const (
	ChannelDashboard Channel = "dashboard"
	ChannelProject   Channel = "project"
	ChannelFunction  Channel = "function"
	ChannelEmail     Channel = "email"
)

// Actor is who asks for a change. On the email channel UserID is the owner
// bound to the link token, or uuid.Nil when links are unsigned.
type Actor struct {
	UserID  uuid.UUID
	Channel Channel
}

// Dispatcher runs freshly committed outbox items without waiting for the
// scheduled sweep.
type Dispatcher interface {
	DispatchNow(ctx context.Context, ids ...uuid.UUID)
}

type ApplyInput struct {
	Why        string
	Experience string
}

// Decision is the outcome of a successful Transition.
type Decision struct {
	Application *model.Application
	Project     *model.Project
	// ChatMessage is the welcome message when acceptance opened the chat
	// during eager dispatch. It is nil if the outbox sweep has to do it.
	ChatMessage *model.ChatMessage
}

type ApplicationService struct {
	store    store.Store
	feed     changefeed.Publisher
	dispatch Dispatcher
	now      func() time.Time
}

func NewApplicationService(s store.Store, feed changefeed.Publisher, dispatch Dispatcher) *ApplicationService {
	return &ApplicationService{store: s, feed: feed, dispatch: dispatch, now: time.Now}
}

func wrapStoreErr(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// Application returns one application by id.
func (s *ApplicationService) Application(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("application "+id.String(), err)
	}
	return app, nil
}

// Submit creates a pending application of applicant to project and records
// the owner notification with it.
func (s *ApplicationService) Submit(ctx context.Context, applicantID, projectID uuid.UUID,
	in ApplyInput) (*model.Application, error) {
	why, experience := strings.TrimSpace(in.Why), strings.TrimSpace(in.Experience)
	if why == "" || experience == "" {
		return nil, fmt.Errorf("why and experience are required: %w", ErrValidation)
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, wrapStoreErr("project "+projectID.String(), err)
	}
	if project.CreatorID == applicantID {
		return nil, ErrSelfApplication
	}
	pending, err := s.store.HasPendingApplication(ctx, projectID, applicantID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicateApplication
	}

	now := s.now()
	app := &model.Application{
		Base:        model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		ProjectID:   projectID,
		ApplicantID: applicantID,
		Message:     model.ApplicationMessage(why, experience),
		Status:      model.ApplicationStatusPending,
	}
	effects := sideeffect.ForNewApplication(app, project, now)
	if err := s.store.CreateApplication(ctx, app, effects); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}
	klog.Infof("application %s submitted to project %s by %s", app.ID, projectID, applicantID)
	metrics.ApplicationsSubmitted.Inc()

	s.publish(ctx, changefeed.ApplicationEvent(changefeed.EventInsert, app, project.CreatorID))
	s.dispatchNow(ctx, effects)
	return app, nil
}

// Transition decides a pending application. Every entry point goes through
// here: the conditional update lets exactly one concurrent decision win and
// the side effects are recorded in the same transaction.
func (s *ApplicationService) Transition(ctx context.Context, actor Actor, applicationID uuid.UUID,
	status model.ApplicationStatus) (decision *Decision, err error) {
	defer func() {
		label := string(status)
		if !status.IsDecision() {
			label = "other"
		}
		metrics.ApplicationTransitions.WithLabelValues(string(actor.Channel), label, transitionResult(err)).Inc()
	}()

	if !status.IsDecision() {
		return nil, ErrInvalidStatus
	}
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, wrapStoreErr("application "+applicationID.String(), err)
	}
	project, err := s.store.GetProject(ctx, app.ProjectID)
	if err != nil {
		return nil, wrapStoreErr("project "+app.ProjectID.String(), err)
	}
	if !s.authorized(actor, project) {
		klog.Warningf("user %s (%s) may not decide application %s", actor.UserID, actor.Channel, applicationID)
		return nil, ErrForbidden
	}

	now := s.now()
	effects := sideeffect.ForDecision(app, project, status, now)
	updated, err := s.store.TransitionApplication(ctx, applicationID, status, now, effects)
	switch {
	case errors.Is(err, store.ErrNotPending):
		return nil, &AlreadyRespondedError{Status: updated.Status}
	case err != nil:
		return nil, wrapStoreErr("transition application "+applicationID.String(), err)
	}
	klog.Infof("application %s %s via %s", applicationID, status, actor.Channel)

	s.publish(ctx, changefeed.ApplicationEvent(changefeed.EventUpdate, updated, project.CreatorID))
	s.dispatchNow(ctx, effects)

	decision = &Decision{Application: updated, Project: project}
	if status == model.ApplicationStatusAccepted {
		if msg, err := s.store.GetChatMessageByOutbox(ctx, effects[0].ID); err == nil {
			decision.ChatMessage = msg
		}
	}
	return decision, nil
}

// NotifyApplicant mails the applicant about the decision already taken on
// the application. status must match the stored one.
func (s *ApplicationService) NotifyApplicant(ctx context.Context, actor Actor, applicationID uuid.UUID,
	status model.ApplicationStatus) error {
	if !status.IsDecision() {
		return ErrInvalidStatus
	}
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return wrapStoreErr("application "+applicationID.String(), err)
	}
	project, err := s.store.GetProject(ctx, app.ProjectID)
	if err != nil {
		return wrapStoreErr("project "+app.ProjectID.String(), err)
	}
	if !s.authorized(actor, project) {
		return ErrForbidden
	}
	if app.Status != status {
		return fmt.Errorf("application is %s, not %s: %w", app.Status, status, ErrStatusMismatch)
	}

	item := sideeffect.DecisionEmail(app, project, status, s.now())
	if err := s.store.EnqueueOutbox(ctx, item); err != nil {
		return err
	}
	s.dispatchNow(ctx, []*model.OutboxItem{item})
	return nil
}

func (s *ApplicationService) authorized(actor Actor, project *model.Project) bool {
	if actor.Channel == ChannelEmail && actor.UserID == uuid.Nil {
		return true
	}
	return actor.UserID == project.CreatorID
}

func (s *ApplicationService) publish(ctx context.Context, event changefeed.Event) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, event); err != nil {
		klog.Errorf("publish %s of application %s: %v", event.Type, event.ApplicationID, err)
	}
}

func (s *ApplicationService) dispatchNow(ctx context.Context, items []*model.OutboxItem) {
	if s.dispatch == nil || len(items) == 0 {
		return
	}
	s.dispatch.DispatchNow(ctx, lo.Map(items, func(item *model.OutboxItem, _ int) uuid.UUID { return item.ID })...)
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyResponded):
		return "already_responded"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid"
	default:
		return "error"
	}
}
