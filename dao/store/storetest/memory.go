// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/ptr"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
)

// Memory implements store.Store on maps guarded by one mutex. Values are
// copied in and out so callers never share rows with the store.
type Memory struct {
	mu           sync.Mutex
	users        map[uuid.UUID]model.User
	projects     map[uuid.UUID]model.Project
	applications map[uuid.UUID]model.Application
	chats        []model.ChatMessage
	outbox       map[uuid.UUID]model.OutboxItem

	// FailLookups makes ListUsers and ListProjectsByIDs fail, for
	// exercising decoration fallbacks.
	FailLookups bool

	primaryReads int
}

var _ store.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:        map[uuid.UUID]model.User{},
		projects:     map[uuid.UUID]model.Project{},
		applications: map[uuid.UUID]model.Application{},
		outbox:       map[uuid.UUID]model.OutboxItem{},
	}
}

func ensureID(b *model.Base, now time.Time) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
}

func (m *Memory) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	ensureID(&user.Base, time.Now())
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) UpdateUserProfile(_ context.Context, id uuid.UUID, firstName, lastName *string,
	profile model.Profile) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.FirstName, u.LastName = firstName, lastName
	u.Profile = profile
	u.Skills = slices.Clone(profile.Skills)
	u.UpdatedAt = time.Now()
	m.users[id] = u
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context, ids []uuid.UUID) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLookups {
		return nil, context.DeadlineExceeded
	}
	var users []*model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			users = append(users, &u)
		}
	}
	return users, nil
}

func (m *Memory) DiscoverUsers(_ context.Context, filter store.DiscoverFilter) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var users []*model.User
	for _, u := range m.users {
		if u.ProfileCompletion() < filter.MinCompletion {
			continue
		}
		if query != "" {
			name := strings.ToLower(strings.TrimSpace(ptr.Deref(u.FirstName, "") + " " + ptr.Deref(u.LastName, "")))
			skills := strings.ToLower(strings.Join(u.Skills, " "))
			if !strings.Contains(name, query) && !strings.Contains(skills, query) &&
				!strings.Contains(strings.ToLower(u.Location), query) {
				continue
			}
		}
		users = append(users, &u)
	}
	slices.SortFunc(users, func(a, b *model.User) int { return newestFirst(a.Base, b.Base) })
	if filter.Limit > 0 && len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

func (m *Memory) CreateProject(_ context.Context, project *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&project.Base, time.Now())
	m.projects[project.ID] = *project
	return nil
}

func (m *Memory) GetProject(_ context.Context, id uuid.UUID) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func newestFirst(a, b model.Base) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID.String(), a.ID.String())
}

func (m *Memory) ListProjects(_ context.Context, filter store.ProjectFilter) ([]*model.Project, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.Project
	for _, p := range m.projects {
		if filter.CreatorID != nil && p.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Stage != "" && p.Stage != filter.Stage {
			continue
		}
		if filter.TitleLike != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.TitleLike)) {
			continue
		}
		matched = append(matched, p)
	}
	slices.SortFunc(matched, func(a, b model.Project) int { return newestFirst(a.Base, b.Base) })

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	start := min(max(filter.Page, 0)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	out := make([]*model.Project, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, &matched[i])
	}
	return out, int64(len(matched)), nil
}

func (m *Memory) ListProjectsByIDs(_ context.Context, ids []uuid.UUID) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLookups {
		return nil, context.DeadlineExceeded
	}
	var projects []*model.Project
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			projects = append(projects, &p)
		}
	}
	return projects, nil
}

func (m *Memory) ListProjectsByCreator(_ context.Context, creatorID uuid.UUID) ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.Project
	for _, p := range m.projects {
		if p.CreatorID == creatorID {
			matched = append(matched, p)
		}
	}
	slices.SortFunc(matched, func(a, b model.Project) int { return newestFirst(a.Base, b.Base) })
	out := make([]*model.Project, 0, len(matched))
	for i := range matched {
		out = append(out, &matched[i])
	}
	return out, nil
}

func (m *Memory) hasPending(projectID, applicantID uuid.UUID) bool {
	for _, a := range m.applications {
		if a.ProjectID == projectID && a.ApplicantID == applicantID && a.Status == model.ApplicationStatusPending {
			return true
		}
	}
	return false
}

func (m *Memory) CreateApplication(_ context.Context, app *model.Application, effects []*model.OutboxItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if app.Status == model.ApplicationStatusPending && m.hasPending(app.ProjectID, app.ApplicantID) {
		return store.ErrDuplicate
	}
	ensureID(&app.Base, time.Now())
	m.applications[app.ID] = *app
	m.enqueueLocked(effects)
	return nil
}

func (m *Memory) GetApplication(_ context.Context, id uuid.UUID) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (m *Memory) HasPendingApplication(_ context.Context, projectID, applicantID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasPending(projectID, applicantID), nil
}

func (m *Memory) sortedApplications(keep func(model.Application) bool) []*model.Application {
	var matched []model.Application
	for _, a := range m.applications {
		if keep(a) {
			matched = append(matched, a)
		}
	}
	slices.SortFunc(matched, func(a, b model.Application) int { return newestFirst(a.Base, b.Base) })
	out := make([]*model.Application, 0, len(matched))
	for i := range matched {
		out = append(out, &matched[i])
	}
	return out
}

func (m *Memory) ListPendingApplications(ctx context.Context, projectIDs []uuid.UUID) ([]*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if store.ReadsPrimary(ctx) {
		m.primaryReads++
	}
	return m.sortedApplications(func(a model.Application) bool {
		return a.Status == model.ApplicationStatusPending && slices.Contains(projectIDs, a.ProjectID)
	}), nil
}

func (m *Memory) ListApplicationsByApplicant(_ context.Context, applicantID uuid.UUID) ([]*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedApplications(func(a model.Application) bool { return a.ApplicantID == applicantID }), nil
}

func (m *Memory) TransitionApplication(_ context.Context, id uuid.UUID, status model.ApplicationStatus,
	at time.Time, effects []*model.OutboxItem) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if a.Status != model.ApplicationStatusPending {
		return &a, store.ErrNotPending
	}
	a.Status = status
	a.UpdatedAt = at
	m.applications[id] = a
	m.enqueueLocked(effects)
	return &a, nil
}

func (m *Memory) IsAcceptedMember(_ context.Context, projectID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applications {
		if a.ProjectID == projectID && a.ApplicantID == userID && a.Status == model.ApplicationStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CreateChatMessage(_ context.Context, msg *model.ChatMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.OutboxID != nil {
		for _, c := range m.chats {
			if c.OutboxID != nil && *c.OutboxID == *msg.OutboxID {
				return false, nil
			}
		}
	}
	ensureID(&msg.Base, time.Now())
	m.chats = append(m.chats, *msg)
	return true, nil
}

func (m *Memory) GetChatMessageByOutbox(_ context.Context, outboxID uuid.UUID) (*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.OutboxID != nil && *c.OutboxID == outboxID {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) ListChatMessages(_ context.Context, filter store.ChatFilter) ([]*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ChatMessage
	for i := range m.chats {
		c := m.chats[i]
		if c.ProjectID != filter.ProjectID {
			continue
		}
		if v := filter.ViewerID; v != nil &&
			c.RecipientID != nil && *c.RecipientID != *v && c.SenderID != *v {
			continue
		}
		out = append(out, &c)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

// PrimaryReads counts pending-list reads made with a context marked by
// store.WithPrimary.
func (m *Memory) PrimaryReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primaryReads
}

// ChatMessages returns every stored chat message in insertion order.
func (m *Memory) ChatMessages() []model.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.chats)
}

func (m *Memory) enqueueLocked(items []*model.OutboxItem) {
	now := time.Now()
	for _, item := range items {
		ensureID(&item.Base, now)
		m.outbox[item.ID] = *item
	}
}

func (m *Memory) EnqueueOutbox(_ context.Context, items ...*model.OutboxItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueLocked(items)
	return nil
}

func (m *Memory) ClaimOutbox(_ context.Context, filter store.ClaimFilter, now time.Time,
	lease time.Duration) ([]*model.OutboxItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []model.OutboxItem
	for _, item := range m.outbox {
		if item.Status != model.OutboxStatusPending || item.NextAttemptAt.After(now) {
			continue
		}
		if item.LockedUntil != nil && !item.LockedUntil.Before(now) {
			continue
		}
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, item.ID) {
			continue
		}
		due = append(due, item)
	}
	slices.SortFunc(due, func(a, b model.OutboxItem) int {
		if c := a.NextAttemptAt.Compare(b.NextAttemptAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if filter.Limit > 0 && len(due) > filter.Limit {
		due = due[:filter.Limit]
	}

	until := now.Add(lease)
	out := make([]*model.OutboxItem, 0, len(due))
	for i := range due {
		due[i].LockedUntil = &until
		m.outbox[due[i].ID] = due[i]
		item := due[i]
		out = append(out, &item)
	}
	return out, nil
}

func (m *Memory) CompleteOutbox(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Status = model.OutboxStatusDone
	item.DoneAt = &at
	item.LockedUntil = nil
	item.Attempts++
	m.outbox[id] = item
	return nil
}

func (m *Memory) RetryOutbox(_ context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time,
	lastErr string, dead bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Status = model.OutboxStatusPending
	if dead {
		item.Status = model.OutboxStatusDead
	}
	item.Attempts = attempts
	item.NextAttemptAt = nextAttemptAt
	item.LastError = lastErr
	item.LockedUntil = nil
	m.outbox[id] = item
	return nil
}

func (m *Memory) ListOutbox(_ context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OutboxItem
	for _, item := range m.outbox {
		if status != "" && item.Status != status {
			continue
		}
		out = append(out, &item)
	}
	slices.SortFunc(out, func(a, b *model.OutboxItem) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) RequeueOutbox(_ context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.outbox[id]
	if !ok || item.Status != model.OutboxStatusDead {
		return store.ErrNotFound
	}
	item.Status = model.OutboxStatusPending
	item.Attempts = 0
	item.NextAttemptAt = now
	item.LockedUntil = nil
	m.outbox[id] = item
	return nil
}

// Outbox returns a copy of one outbox item.
func (m *Memory) Outbox(id uuid.UUID) (model.OutboxItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.outbox[id]
	return item, ok
}
