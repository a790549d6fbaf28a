package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const DefaultOwnerName = "The project owner"

type DecisionData struct {
	To           string
	OwnerName    string
	ProjectTitle string
	ProjectID    string
	Accepted     bool
	FrontendURL  string
}

type NewApplicationData struct {
	To            string
	OwnerName     string
	ApplicantName string
	ProjectTitle  string
	AcceptLink    string
	RejectLink    string
}

var decisionTmpl = template.Must(template.New("decision").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h1 style="color: {{if .Accepted}}#16a34a{{else}}#dc2626{{end}}; font-size: 24px;">Your application has been {{.Verb}}</h1>
  <p>Hi there,</p>
  <p>{{.OwnerName}} has {{.Verb}} your application to join the project "{{.ProjectTitle}}".</p>
  {{- if .Accepted}}
  <p>You can now start collaborating on the project. Visit the project page to get started:</p>
  <p><a href="{{.Link}}" style="background-color: #4f46e5; color: white; padding: 10px 15px; text-decoration: none; border-radius: 4px; display: inline-block;">View Project</a></p>
  {{- else}}
  <p>Don't worry! There are plenty of other projects that might be a better fit for your skills.</p>
  <p><a href="{{.Link}}" style="background-color: #4f46e5; color: white; padding: 10px 15px; text-decoration: none; border-radius: 4px; display: inline-block;">Browse Projects</a></p>
  {{- end}}
  <p>Thank you for your interest in collaborating!</p>
  <p>Best regards,<br>The CO-brew Team</p>
</div>`))

var newApplicationTmpl = template.Must(template.New("new-application").Parse(`<div>
  <h1>New Application for Your Project "{{.ProjectTitle}}"</h1>
  <p>Hi {{.OwnerName}},</p>
  <p>{{.ApplicantName}} has applied to join your project.</p>
  <p>You can respond to this application by clicking one of the buttons below:</p>
  <p>
    <a href="{{.AcceptLink}}" style="text-decoration:none; padding:10px 20px; background-color:#22c55e; color:white; border-radius:6px; margin-right:10px;">Accept</a>
    <a href="{{.RejectLink}}" style="text-decoration:none; padding:10px 20px; background-color:#ef4444; color:white; border-radius:6px;">Reject</a>
  </p>
  <p>If these links do not work, you can log in to the site and respond from your dashboard.</p>
  <p>Thank you,<br/>The CO-brew Team</p>
</div>`))

func decisionVerb(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "rejected"
}

// DecisionSubject is the subject of the mail telling an applicant the outcome.
func DecisionSubject(projectTitle string, accepted bool) string {
	return fmt.Sprintf("Your application for \"%s\" has been %s", projectTitle, decisionVerb(accepted))
}

// NewApplicationSubject is the subject of the mail telling an owner about a new application.
func NewApplicationSubject(projectTitle string) string {
	return fmt.Sprintf("New application for your project \"%s\"", projectTitle)
}

// DecisionEmail renders the mail sent to an applicant after a decision.
// Accepted mail links to the project page, rejected mail to the project list.
func DecisionEmail(d *DecisionData) (*Message, error) {
	ownerName := strings.TrimSpace(d.OwnerName)
	if ownerName == "" {
		ownerName = DefaultOwnerName
	}
	base := strings.TrimRight(d.FrontendURL, "/")
	link := base + "/projects"
	if d.Accepted {
		link = base + "/projects/" + d.ProjectID
	}

	var buf bytes.Buffer
	err := decisionTmpl.Execute(&buf, map[string]any{
		"Accepted":     d.Accepted,
		"Verb":         decisionVerb(d.Accepted),
		"OwnerName":    ownerName,
		"ProjectTitle": d.ProjectTitle,
		"Link":         link,
	})
	if err != nil {
		return nil, err
	}
	return &Message{
		To:      []string{d.To},
		Subject: DecisionSubject(d.ProjectTitle, d.Accepted),
		HTML:    buf.String(),
	}, nil
}

// NewApplicationEmail renders the mail sent to a project owner with one
// click accept and reject links.
func NewApplicationEmail(d *NewApplicationData) (*Message, error) {
	ownerName := strings.TrimSpace(d.OwnerName)
	if ownerName == "" {
		ownerName = "there"
	}

	var buf bytes.Buffer
	err := newApplicationTmpl.Execute(&buf, map[string]any{
		"OwnerName":     ownerName,
		"ApplicantName": d.ApplicantName,
		"ProjectTitle":  d.ProjectTitle,
		"AcceptLink":    template.URL(d.AcceptLink), //nolint:gosec // links are built by this server
		"RejectLink":    template.URL(d.RejectLink), //nolint:gosec // links are built by this server
	})
	if err != nil {
		return nil, err
	}
	return &Message{
		To:      []string{d.To},
		Subject: NewApplicationSubject(d.ProjectTitle),
		HTML:    buf.String(),
	}, nil
}
