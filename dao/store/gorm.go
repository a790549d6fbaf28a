package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/raids-lab/cobrew/dao/model"
)

const defaultPageSize = 20

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by db. The db should be opened with
// TranslateError so unique violations map to ErrDuplicate.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// reader is the session for read paths. Contexts marked by WithPrimary read
// from the primary.
func (s *gormStore) reader(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	if ReadsPrimary(ctx) {
		db = db.Clauses(dbresolver.Write)
	}
	return db
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern is an ILIKE pattern matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (s *gormStore) CreateUser(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *gormStore) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *gormStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *gormStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, firstName, lastName *string,
	profile model.Profile) (*model.User, error) {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{
			"first_name":   firstName,
			"last_name":    lastName,
			"title":        profile.Title,
			"location":     profile.Location,
			"experience":   profile.Experience,
			"industry":     profile.Industry,
			"education":    profile.Education,
			"github_url":   profile.GithubURL,
			"linkedin_url": profile.LinkedinURL,
			"bio":          profile.Bio,
			"skills":       profile.Skills,
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *gormStore) ListUsers(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	var users []*model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := s.reader(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, translate(err)
}

// filledFieldsSQL counts the filled profile fields of a users row, the same
// fields User.ProfileCompletion counts.
const filledFieldsSQL = `(CASE WHEN COALESCE(first_name, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN COALESCE(last_name, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN COALESCE(title, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN COALESCE(location, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN COALESCE(industry, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN COALESCE(education, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN COALESCE(experience, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN COALESCE(bio, '') <> '' THEN 1 ELSE 0 END)
	+ (CASE WHEN jsonb_typeof(skills) = 'array' AND skills <> '[]'::jsonb THEN 1 ELSE 0 END)`

func (s *gormStore) DiscoverUsers(ctx context.Context, filter DiscoverFilter) ([]*model.User, error) {
	q := s.reader(ctx).
		Where(fmt.Sprintf("(%s) >= ?", filledFieldsSQL), model.MinFilledFields(filter.MinCompletion))
	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := containsPattern(query)
		q = q.Where(`(TRIM(COALESCE(first_name, '') || ' ' || COALESCE(last_name, '')) ILIKE ?
			OR location ILIKE ? OR skills::text ILIKE ?)`, pattern, pattern, pattern)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var users []*model.User
	err := q.Order("created_at DESC").Order("id DESC").Find(&users).Error
	return users, translate(err)
}

func (s *gormStore) CreateProject(ctx context.Context, project *model.Project) error {
	return translate(s.db.WithContext(ctx).Create(project).Error)
}

func (s *gormStore) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (s *gormStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]*model.Project, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Project{})
	if filter.CreatorID != nil {
		q = q.Where("creator_id = ?", *filter.CreatorID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Stage != "" {
		q = q.Where("stage = ?", filter.Stage)
	}
	if filter.TitleLike != "" {
		q = q.Where("title ILIKE ?", containsPattern(filter.TitleLike))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	page := max(filter.Page, 0)

	var projects []*model.Project
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(page * pageSize).Limit(pageSize).
		Find(&projects).Error
	return projects, total, translate(err)
}

func (s *gormStore) ListProjectsByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Project, error) {
	var projects []*model.Project
	if len(ids) == 0 {
		return projects, nil
	}
	err := s.reader(ctx).Where("id IN ?", ids).Find(&projects).Error
	return projects, translate(err)
}

func (s *gormStore) ListProjectsByCreator(ctx context.Context, creatorID uuid.UUID) ([]*model.Project, error) {
	var projects []*model.Project
	err := s.reader(ctx).Where("creator_id = ?", creatorID).
		Order("created_at DESC").Find(&projects).Error
	return projects, translate(err)
}

func (s *gormStore) CreateApplication(ctx context.Context, app *model.Application, effects []*model.OutboxItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return translate(err)
		}
		if len(effects) > 0 {
			if err := tx.Create(effects).Error; err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

func (s *gormStore) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	// read from the primary: callers decide on this row right after
	err := s.db.WithContext(ctx).Clauses(dbresolver.Write).Where("id = ?", id).First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (s *gormStore) HasPendingApplication(ctx context.Context, projectID, applicantID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Clauses(dbresolver.Write).Model(&model.Application{}).
		Where("project_id = ? AND applicant_id = ? AND status = ?", projectID, applicantID, model.ApplicationStatusPending).
		Count(&count).Error
	return count > 0, translate(err)
}

func (s *gormStore) ListPendingApplications(ctx context.Context, projectIDs []uuid.UUID) ([]*model.Application, error) {
	var apps []*model.Application
	if len(projectIDs) == 0 {
		return apps, nil
	}
	err := s.reader(ctx).
		Where("project_id IN ? AND status = ?", projectIDs, model.ApplicationStatusPending).
		Order("created_at DESC").Order("id DESC").
		Find(&apps).Error
	return apps, translate(err)
}

func (s *gormStore) ListApplicationsByApplicant(ctx context.Context, applicantID uuid.UUID) ([]*model.Application, error) {
	var apps []*model.Application
	err := s.db.WithContext(ctx).Where("applicant_id = ?", applicantID).
		Order("created_at DESC").Order("id DESC").
		Find(&apps).Error
	return apps, translate(err)
}

func (s *gormStore) TransitionApplication(ctx context.Context, id uuid.UUID, status model.ApplicationStatus,
	at time.Time, effects []*model.OutboxItem) (*model.Application, error) {
	var app model.Application
	var notPending bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Application{}).
			Where("id = ? AND status = ?", id, model.ApplicationStatusPending).
			Updates(map[string]any{"status": status, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.Where("id = ?", id).First(&app).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			notPending = true
			return nil
		}
		if len(effects) > 0 {
			return tx.Create(effects).Error
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if notPending {
		return &app, ErrNotPending
	}
	return &app, nil
}

func (s *gormStore) IsAcceptedMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Application{}).
		Where("project_id = ? AND applicant_id = ? AND status = ?", projectID, userID, model.ApplicationStatusAccepted).
		Count(&count).Error
	return count > 0, translate(err)
}

func (s *gormStore) CreateChatMessage(ctx context.Context, msg *model.ChatMessage) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "outbox_id"}}, DoNothing: true}).
		Create(msg)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) GetChatMessageByOutbox(ctx context.Context, outboxID uuid.UUID) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := s.db.WithContext(ctx).Clauses(dbresolver.Write).Where("outbox_id = ?", outboxID).First(&msg).Error
	if err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

func (s *gormStore) ListChatMessages(ctx context.Context, filter ChatFilter) ([]*model.ChatMessage, error) {
	var msgs []*model.ChatMessage
	q := s.reader(ctx).Where("project_id = ?", filter.ProjectID)
	if filter.ViewerID != nil {
		q = q.Where("(recipient_id IS NULL OR recipient_id = ? OR sender_id = ?)", *filter.ViewerID, *filter.ViewerID)
	}
	q = q.Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, translate(err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (s *gormStore) EnqueueOutbox(ctx context.Context, items ...*model.OutboxItem) error {
	if len(items) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Create(items).Error)
}

func (s *gormStore) ClaimOutbox(ctx context.Context, filter ClaimFilter, now time.Time,
	lease time.Duration) ([]*model.OutboxItem, error) {
	var items []*model.OutboxItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked}).
			Where("status = ? AND next_attempt_at <= ?", model.OutboxStatusPending, now).
			Where("locked_until IS NULL OR locked_until < ?", now)
		if len(filter.IDs) > 0 {
			q = q.Where("id IN ?", filter.IDs)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if err := q.Order("next_attempt_at ASC").Order("created_at ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		until := now.Add(lease)
		ids := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
			item.LockedUntil = &until
		}
		return tx.Model(&model.OutboxItem{}).Where("id IN ?", ids).Update("locked_until", until).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return items, nil
}

func (s *gormStore) CompleteOutbox(ctx context.Context, id uuid.UUID, at time.Time) error {
	return translate(s.db.WithContext(ctx).Model(&model.OutboxItem{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":       model.OutboxStatusDone,
			"done_at":      at,
			"locked_until": nil,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error)
}

func (s *gormStore) RetryOutbox(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time,
	lastErr string, dead bool) error {
	status := model.OutboxStatusPending
	if dead {
		status = model.OutboxStatusDead
	}
	return translate(s.db.WithContext(ctx).Model(&model.OutboxItem{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastErr,
			"locked_until":    nil,
		}).Error)
}

func (s *gormStore) ListOutbox(ctx context.Context, status model.OutboxStatus, limit int) ([]*model.OutboxItem, error) {
	var items []*model.OutboxItem
	q := s.db.WithContext(ctx).Order("updated_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&items).Error
	return items, translate(err)
}

func (s *gormStore) RequeueOutbox(ctx context.Context, id uuid.UUID, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.OutboxItem{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusDead).
		Updates(map[string]any{
			"status":          model.OutboxStatusPending,
			"attempts":        0,
			"next_attempt_at": now,
			"locked_until":    nil,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
