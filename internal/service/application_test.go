package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store/storetest"
	"github.com/raids-lab/cobrew/internal/sideeffect"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/changefeed"
	"github.com/raids-lab/cobrew/pkg/mailer"
	"github.com/raids-lab/cobrew/pkg/outbox"
)

type fixture struct {
	mem     *storetest.Memory
	sender  *mailer.LogSender
	feed    *changefeed.Broker
	svc     *ApplicationService
	alice   *model.User
	bob     *model.User
	project *model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mem := storetest.NewMemory()
	sender := mailer.NewLogSender()
	worker, err := outbox.NewWorker(mem, outbox.Options{
		Schedule:    "@every 1h",
		BatchSize:   10,
		PoolSize:    2,
		MaxAttempts: 3,
		Lease:       time.Minute,
		BaseBackoff: time.Second,
		MaxBackoff:  time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(worker.Stop)

	links := &util.RespondLinks{BaseURL: "https://api.cobrew.app", Signer: util.NewRespondSigner("secret", time.Hour)}
	sideeffect.NewHandlers(mem, sender, links, "https://cobrew.app").Register(worker)

	feed := changefeed.NewBroker()
	t.Cleanup(func() { _ = feed.Close() })

	f := &fixture{
		mem:    mem,
		sender: sender,
		feed:   feed,
		svc:    NewApplicationService(mem, feed, worker),
		alice:  &model.User{Email: "alice@example.com", FirstName: ptr.To("Alice"), LastName: ptr.To("Smith"), Role: model.RoleUser},
		bob:    &model.User{Email: "bob@example.com", FirstName: ptr.To("Bob"), LastName: ptr.To("Jones"), Role: model.RoleUser},
	}
	require.NoError(t, mem.CreateUser(ctx, f.alice))
	require.NoError(t, mem.CreateUser(ctx, f.bob))
	f.project = &model.Project{Title: "EcoTrack", Stage: model.ProjectStageIdea, CreatorID: f.alice.ID}
	require.NoError(t, mem.CreateProject(ctx, f.project))
	return f
}

func (f *fixture) submit(t *testing.T) *model.Application {
	t.Helper()
	app, err := f.svc.Submit(context.Background(), f.bob.ID, f.project.ID, ApplyInput{
		Why:        "I love this",
		Experience: "5 years React",
	})
	require.NoError(t, err)
	return app
}

func (f *fixture) mailsTo(addr string) []mailer.Message {
	var out []mailer.Message
	for _, m := range f.sender.Sent() {
		if len(m.To) == 1 && m.To[0] == addr {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) owner(channel Channel) Actor {
	return Actor{UserID: f.alice.ID, Channel: channel}
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.feed.Subscribe()
	defer cancel()

	app := f.submit(t)

	assert.Equal(t, model.ApplicationStatusPending, app.Status)
	assert.Equal(t, app.CreatedAt, app.UpdatedAt)
	assert.Equal(t, "Why: I love this\nExperience: 5 years React", app.Message)

	stored, err := f.mem.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)

	ev := <-events
	assert.Equal(t, changefeed.EventInsert, ev.Type)
	assert.Equal(t, f.alice.ID, ev.OwnerID)

	mails := f.mailsTo("alice@example.com")
	require.Len(t, mails, 1)
	assert.Equal(t, `New application for your project "EcoTrack"`, mails[0].Subject)
	assert.Contains(t, mails[0].HTML, "Bob Jones has applied")
	assert.Contains(t, mails[0].HTML, "action=accept")
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.bob.ID, f.project.ID, ApplyInput{Why: "  ", Experience: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Submit(ctx, f.bob.ID, uuid.New(), ApplyInput{Why: "x", Experience: "y"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Submit(ctx, f.alice.ID, f.project.ID, ApplyInput{Why: "x", Experience: "y"})
	assert.ErrorIs(t, err, ErrSelfApplication)

	f.submit(t)
	_, err = f.svc.Submit(ctx, f.bob.ID, f.project.ID, ApplyInput{Why: "again", Experience: "y"})
	assert.ErrorIs(t, err, ErrDuplicateApplication)
}

func TestAcceptScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.submit(t)

	pending, err := f.svc.ListPendingForOwner(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "EcoTrack", pending[0].ProjectTitle)
	assert.Equal(t, "Bob Jones", pending[0].Applicant.DisplayName)

	decision, err := f.svc.Transition(ctx, f.owner(ChannelDashboard), app.ID, model.ApplicationStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusAccepted, decision.Application.Status)
	assert.True(t, decision.Application.UpdatedAt.After(app.CreatedAt) || decision.Application.UpdatedAt.Equal(app.CreatedAt))

	chats := f.mem.ChatMessages()
	require.Len(t, chats, 1)
	assert.Equal(t, f.alice.ID, chats[0].SenderID)
	assert.Equal(t, f.project.ID, chats[0].ProjectID)
	assert.Equal(t, f.bob.ID, *chats[0].RecipientID)
	assert.Equal(t, model.WelcomeMessage, chats[0].Content)
	require.NotNil(t, decision.ChatMessage)
	assert.Equal(t, chats[0].ID, decision.ChatMessage.ID)

	mails := f.mailsTo("bob@example.com")
	require.Len(t, mails, 1)
	assert.Equal(t, `Your application for "EcoTrack" has been accepted`, mails[0].Subject)
	assert.Contains(t, mails[0].HTML, "Alice Smith has accepted")
	assert.Contains(t, mails[0].HTML, "https://cobrew.app/projects/"+f.project.ID.String())

	pending, err = f.svc.ListPendingForOwner(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRejectSendsOnlyEmail(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t)

	_, err := f.svc.Transition(context.Background(), f.owner(ChannelProject), app.ID, model.ApplicationStatusRejected)
	require.NoError(t, err)

	assert.Empty(t, f.mem.ChatMessages())
	mails := f.mailsTo("bob@example.com")
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0].Subject, "rejected")
	assert.Contains(t, mails[0].HTML, `href="https://cobrew.app/projects"`)
}

func TestSecondDecisionIsAlreadyResponded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.submit(t)

	_, err := f.svc.Transition(ctx, f.owner(ChannelEmail), app.ID, model.ApplicationStatusAccepted)
	require.NoError(t, err)
	mailsBefore := len(f.sender.Sent())

	for _, status := range []model.ApplicationStatus{model.ApplicationStatusAccepted, model.ApplicationStatusRejected} {
		_, err = f.svc.Transition(ctx, f.owner(ChannelEmail), app.ID, status)
		require.ErrorIs(t, err, ErrAlreadyResponded)
		var already *AlreadyRespondedError
		require.ErrorAs(t, err, &already)
		assert.Equal(t, model.ApplicationStatusAccepted, already.Status)
		assert.Equal(t, "This application has already been accepted.", err.Error())
	}

	assert.Len(t, f.mem.ChatMessages(), 1)
	assert.Len(t, f.sender.Sent(), mailsBefore)
}

func TestConcurrentDecisionsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status := model.ApplicationStatusAccepted
			if i%2 == 1 {
				status = model.ApplicationStatusRejected
			}
			_, errs[i] = f.svc.Transition(context.Background(), f.owner(ChannelDashboard), app.ID, status)
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyResponded)
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, f.mailsTo("bob@example.com"), 1)
}

func TestNonOwnerCannotDecideOrList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.submit(t)

	_, err := f.svc.Transition(ctx, Actor{UserID: f.bob.ID, Channel: ChannelDashboard}, app.ID, model.ApplicationStatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ListPendingForProject(ctx, f.bob.ID, f.project.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	views, err := f.svc.ListPendingForOwner(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, views)

	stored, err := f.mem.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusPending, stored.Status)
}

func TestTransitionInputErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.submit(t)

	_, err := f.svc.Transition(ctx, f.owner(ChannelDashboard), app.ID, model.ApplicationStatusPending)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.Transition(ctx, f.owner(ChannelDashboard), uuid.New(), model.ApplicationStatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnsignedEmailChannelSkipsOwnerCheck(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t)

	_, err := f.svc.Transition(context.Background(), Actor{Channel: ChannelEmail}, app.ID, model.ApplicationStatusRejected)
	assert.NoError(t, err)
}

func TestPendingListIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	carol := &model.User{Email: "carol@example.com"}
	require.NoError(t, f.mem.CreateUser(ctx, carol))
	second := &model.Project{Title: "Second", CreatorID: f.alice.ID}
	require.NoError(t, f.mem.CreateProject(ctx, second))

	f.submit(t)
	_, err := f.svc.Submit(ctx, carol.ID, second.ID, ApplyInput{Why: "a", Experience: "b"})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, carol.ID, f.project.ID, ApplyInput{Why: "a", Experience: "b"})
	require.NoError(t, err)

	first, err := f.svc.ListPendingForOwner(ctx, f.alice.ID)
	require.NoError(t, err)
	again, err := f.svc.ListPendingForOwner(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, first, 3)
	assert.Equal(t, first, again)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].CreatedAt.After(first[i-1].CreatedAt), "newest first")
	}

	byProject, err := f.svc.ListPendingForProject(ctx, f.alice.ID, second.ID)
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, model.AnonymousUserName, byProject[0].Applicant.DisplayName)
}

func TestDecorationFallsBackToPlaceholders(t *testing.T) {
	f := newFixture(t)
	f.submit(t)

	f.mem.FailLookups = true
	views, err := f.svc.ListPendingForProject(context.Background(), f.alice.ID, f.project.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, UnknownProjectTitle, views[0].ProjectTitle)
	assert.Equal(t, model.AnonymousUserName, views[0].Applicant.DisplayName)
	assert.Nil(t, views[0].Applicant.FirstName)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	app := f.submit(t)
	_, err := f.svc.Transition(context.Background(), f.owner(ChannelDashboard), app.ID, model.ApplicationStatusRejected)
	require.NoError(t, err)

	mine, err := f.svc.ListMine(context.Background(), f.bob.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.ApplicationStatusRejected, mine[0].Status)
	assert.Equal(t, "EcoTrack", mine[0].ProjectTitle)
}

func TestNotifyApplicant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.submit(t)

	err := f.svc.NotifyApplicant(ctx, f.owner(ChannelFunction), app.ID, model.ApplicationStatusAccepted)
	assert.ErrorIs(t, err, ErrStatusMismatch)

	_, err = f.svc.Transition(ctx, f.owner(ChannelDashboard), app.ID, model.ApplicationStatusAccepted)
	require.NoError(t, err)

	require.NoError(t, f.svc.NotifyApplicant(ctx, f.owner(ChannelFunction), app.ID, model.ApplicationStatusAccepted))
	assert.Len(t, f.mailsTo("bob@example.com"), 2)

	err = f.svc.NotifyApplicant(ctx, f.owner(ChannelFunction), app.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = f.svc.NotifyApplicant(ctx, Actor{UserID: f.bob.ID, Channel: ChannelFunction}, app.ID, model.ApplicationStatusAccepted)
	assert.ErrorIs(t, err, ErrForbidden)
}

type failingSender struct{}

func (failingSender) Send(context.Context, *mailer.Message) error { return errors.New("mail api down") }

func TestFailedEmailStaysInOutbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	worker, err := outbox.NewWorker(f.mem, outbox.Options{Schedule: "@every 1h", PoolSize: 1, MaxAttempts: 3, Lease: time.Minute, BaseBackoff: time.Second, MaxBackoff: time.Minute})
	require.NoError(t, err)
	defer worker.Stop()
	links := &util.RespondLinks{BaseURL: "https://api.cobrew.app", Signer: util.NewRespondSigner("secret", time.Hour)}
	sideeffect.NewHandlers(f.mem, failingSender{}, links, "https://cobrew.app").Register(worker)
	f.svc = NewApplicationService(f.mem, f.feed, worker)

	app := f.submit(t)
	decision, err := f.svc.Transition(ctx, f.owner(ChannelDashboard), app.ID, model.ApplicationStatusAccepted)
	require.NoError(t, err, "a failing side effect does not undo the decision")
	assert.NotNil(t, decision.ChatMessage)

	failed, err := f.mem.ListOutbox(ctx, model.OutboxStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, failed, 2, "owner mail and decision mail wait for a retry")
	for _, item := range failed {
		assert.Equal(t, 1, item.Attempts)
		assert.Equal(t, "mail api down", item.LastError)
	}
}
