// Package sideeffect decides which outbox items a workflow step records and
// implements the handlers that execute them.
package sideeffect

import (
	"time"

	"github.com/raids-lab/cobrew/dao/model"
)

// ForDecision returns the items recorded with a decision. Acceptance opens
// the chat before mailing the applicant; rejection only mails.
func ForDecision(app *model.Application, project *model.Project, status model.ApplicationStatus,
	now time.Time) []*model.OutboxItem {
	var items []*model.OutboxItem
	if status == model.ApplicationStatusAccepted {
		items = append(items, model.NewOutboxItem(model.OutboxKindChatBootstrap, model.OutboxPayload{
			ApplicationID: app.ID,
			ProjectID:     app.ProjectID,
			SenderID:      project.CreatorID,
			RecipientID:   app.ApplicantID,
			Content:       model.WelcomeMessage,
		}, now))
	}
	items = append(items, DecisionEmail(app, project, status, now))
	return items
}

// DecisionEmail is the item mailing the applicant about status.
func DecisionEmail(app *model.Application, project *model.Project, status model.ApplicationStatus,
	now time.Time) *model.OutboxItem {
	return model.NewOutboxItem(model.OutboxKindApplicantDecision, model.OutboxPayload{
		ApplicationID: app.ID,
		ProjectID:     app.ProjectID,
		SenderID:      project.CreatorID,
		RecipientID:   app.ApplicantID,
		Status:        status,
	}, now)
}

// ForNewApplication returns the items recorded with a submitted application.
func ForNewApplication(app *model.Application, project *model.Project, now time.Time) []*model.OutboxItem {
	return []*model.OutboxItem{
		model.NewOutboxItem(model.OutboxKindOwnerNewApplication, model.OutboxPayload{
			ApplicationID: app.ID,
			ProjectID:     app.ProjectID,
			SenderID:      app.ApplicantID,
			RecipientID:   project.CreatorID,
		}, now),
	}
}
