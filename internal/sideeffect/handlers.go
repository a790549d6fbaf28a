package sideeffect

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/mailer"
	"github.com/raids-lab/cobrew/pkg/outbox"
)

type Handlers struct {
	store       store.Store
	sender      mailer.Sender
	links       *util.RespondLinks
	frontendURL string
}

func NewHandlers(s store.Store, sender mailer.Sender, links *util.RespondLinks, frontendURL string) *Handlers {
	return &Handlers{store: s, sender: sender, links: links, frontendURL: frontendURL}
}

// Register binds every outbox kind to its handler.
func (h *Handlers) Register(w *outbox.Worker) {
	w.Handle(model.OutboxKindChatBootstrap, h.ChatBootstrap)
	w.Handle(model.OutboxKindApplicantDecision, h.ApplicantDecision)
	w.Handle(model.OutboxKindOwnerNewApplication, h.OwnerNewApplication)
}

// ChatBootstrap writes the welcome message from the owner to the accepted
// applicant. The message is keyed by the item id, so a retry after a lost
// completion does not write it twice.
func (h *Handlers) ChatBootstrap(ctx context.Context, item *model.OutboxItem) error {
	p := item.Payload.Data()
	recipient := p.RecipientID
	outboxID := item.ID
	created, err := h.store.CreateChatMessage(ctx, &model.ChatMessage{
		ProjectID:   p.ProjectID,
		SenderID:    p.SenderID,
		RecipientID: &recipient,
		Content:     p.Content,
		OutboxID:    &outboxID,
	})
	if err != nil {
		return fmt.Errorf("chat bootstrap for application %s: %w", p.ApplicationID, err)
	}
	if !created {
		klog.Infof("chat bootstrap for application %s already written", p.ApplicationID)
	}
	return nil
}

func (h *Handlers) ApplicantDecision(ctx context.Context, item *model.OutboxItem) error {
	p := item.Payload.Data()
	project, err := h.store.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", p.ProjectID, err)
	}
	applicant, err := h.store.GetUser(ctx, p.RecipientID)
	if err != nil {
		return fmt.Errorf("load applicant %s: %w", p.RecipientID, err)
	}

	ownerName := mailer.DefaultOwnerName
	if owner, err := h.store.GetUser(ctx, project.CreatorID); err == nil {
		if name := model.DisplayName(owner.FirstName, owner.LastName); name != model.AnonymousUserName {
			ownerName = name
		}
	} else {
		klog.Warningf("owner %s of project %s not found: %v", project.CreatorID, project.ID, err)
	}

	msg, err := mailer.DecisionEmail(&mailer.DecisionData{
		To:           applicant.Email,
		OwnerName:    ownerName,
		ProjectTitle: project.Title,
		ProjectID:    project.ID.String(),
		Accepted:     p.Status == model.ApplicationStatusAccepted,
		FrontendURL:  h.frontendURL,
	})
	if err != nil {
		return err
	}
	return h.sender.Send(ctx, msg)
}

func (h *Handlers) OwnerNewApplication(ctx context.Context, item *model.OutboxItem) error {
	p := item.Payload.Data()
	project, err := h.store.GetProject(ctx, p.ProjectID)
	if err != nil {
		return fmt.Errorf("load project %s: %w", p.ProjectID, err)
	}
	owner, err := h.store.GetUser(ctx, project.CreatorID)
	if err != nil {
		return fmt.Errorf("load owner %s: %w", project.CreatorID, err)
	}
	applicantName := model.AnonymousUserName
	if applicant, err := h.store.GetUser(ctx, p.SenderID); err == nil {
		applicantName = model.DisplayName(applicant.FirstName, applicant.LastName)
	}

	accept, reject, err := h.links.Pair(p.ApplicationID, owner.ID)
	if err != nil {
		return err
	}
	ownerName := ""
	if owner.FirstName != nil {
		ownerName = *owner.FirstName
	}
	msg, err := mailer.NewApplicationEmail(&mailer.NewApplicationData{
		To:            owner.Email,
		OwnerName:     ownerName,
		ApplicantName: applicantName,
		ProjectTitle:  project.Title,
		AcceptLink:    accept,
		RejectLink:    reject,
	})
	if err != nil {
		return err
	}
	return h.sender.Send(ctx, msg)
}
