package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
)

const UnknownProjectTitle = "Unknown Project"

// ApplicationView is an application decorated for display.
type ApplicationView struct {
	ID           uuid.UUID               `json:"id"`
	ProjectID    uuid.UUID               `json:"projectId"`
	ProjectTitle string                  `json:"projectTitle"`
	ApplicantID  uuid.UUID               `json:"applicantId"`
	Applicant    model.UserInfo          `json:"applicant"`
	Message      string                  `json:"message"`
	Status       model.ApplicationStatus `json:"status"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// ListPendingForOwner returns the pending applications to every project
// created by ownerID, newest first.
func (s *ApplicationService) ListPendingForOwner(ctx context.Context, ownerID uuid.UUID) ([]ApplicationView, error) {
	projects, err := s.store.ListProjectsByCreator(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []ApplicationView{}, nil
	}
	ids := lo.Map(projects, func(p *model.Project, _ int) uuid.UUID { return p.ID })
	apps, err := s.store.ListPendingApplications(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, apps), nil
}

// ListPendingForProject returns the pending applications of one project.
// Only the creator may list them.
func (s *ApplicationService) ListPendingForProject(ctx context.Context, ownerID, projectID uuid.UUID) ([]ApplicationView, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, wrapStoreErr("project "+projectID.String(), err)
	}
	if project.CreatorID != ownerID {
		return nil, ErrForbidden
	}
	apps, err := s.store.ListPendingApplications(ctx, []uuid.UUID{projectID})
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, apps), nil
}

// ListMine returns every application the user has submitted, with status.
func (s *ApplicationService) ListMine(ctx context.Context, applicantID uuid.UUID) ([]ApplicationView, error) {
	apps, err := s.store.ListApplicationsByApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, apps), nil
}

// decorate attaches project titles and applicant names with one lookup per
// table. Failed or missing lookups fall back to placeholders; an
// application is never dropped.
func (s *ApplicationService) decorate(ctx context.Context, apps []*model.Application) []ApplicationView {
	titles := map[uuid.UUID]string{}
	projectIDs := lo.Uniq(lo.Map(apps, func(a *model.Application, _ int) uuid.UUID { return a.ProjectID }))
	if projects, err := s.store.ListProjectsByIDs(ctx, projectIDs); err != nil {
		klog.Warningf("decorate applications: load projects: %v", err)
	} else {
		for _, p := range projects {
			titles[p.ID] = p.Title
		}
	}

	users := map[uuid.UUID]*model.User{}
	applicantIDs := lo.Uniq(lo.Map(apps, func(a *model.Application, _ int) uuid.UUID { return a.ApplicantID }))
	if list, err := s.store.ListUsers(ctx, applicantIDs); err != nil {
		klog.Warningf("decorate applications: load applicants: %v", err)
	} else {
		users = lo.KeyBy(list, func(u *model.User) uuid.UUID { return u.ID })
	}

	views := make([]ApplicationView, 0, len(apps))
	for _, a := range apps {
		title, ok := titles[a.ProjectID]
		if !ok {
			title = UnknownProjectTitle
		}
		applicant := model.UserInfo{ID: a.ApplicantID, DisplayName: model.AnonymousUserName}
		if u, ok := users[a.ApplicantID]; ok {
			applicant = u.Info()
		}
		views = append(views, ApplicationView{
			ID:           a.ID,
			ProjectID:    a.ProjectID,
			ProjectTitle: title,
			ApplicantID:  a.ApplicantID,
			Applicant:    applicant,
			Message:      a.Message,
			Status:       a.Status,
			CreatedAt:    a.CreatedAt,
			UpdatedAt:    a.UpdatedAt,
		})
	}
	return views
}
