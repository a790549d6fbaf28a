package handler

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/config"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewRespondMgr)
}

const (
	msgInvalidParameters = "Invalid parameters provided. Please check your link and try again."
	msgInvalidLink       = "This link is invalid or has expired. Please open the application from your dashboard."
	msgNotFound          = "We could not find this application. It may have been withdrawn."
	msgForbidden         = "This link was not issued for the owner of this project."
	msgInternal          = "Something went wrong while processing your response. Please try again later."
)

// RespondMgr serves the accept and reject links mailed to project owners.
// The page lives outside /v1 because the links are opened in a browser.
type RespondMgr struct {
	name         string
	applications *service.ApplicationService
	signer       *util.RespondSigner
	conf         *config.Config
}

func NewRespondMgr(conf *RegisterConfig) Manager {
	mgr := &RespondMgr{
		name:         "respond",
		applications: conf.Applications,
		conf:         conf.Config,
	}
	if conf.Links != nil {
		mgr.signer = conf.Links.Signer
	}
	return mgr
}

func (mgr *RespondMgr) GetName() string { return mgr.name }

func (mgr *RespondMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *RespondMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *RespondMgr) RegisterAdmin(_ *gin.RouterGroup) {}

func (mgr *RespondMgr) RegisterRoot(r *gin.Engine) {
	r.GET("/applications/respond", mgr.Respond)
}

type RespondReq struct {
	ApplicationID string `form:"applicationId"`
	Action        string `form:"action"`
	Token         string `form:"token"`
}

type respondPage struct {
	Title        string
	Heading      string
	Body         []string
	Accepted     bool
	Success      bool
	DashboardURL string
}

var respondTemplate = template.Must(template.New("respond").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8" />
<meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; background-color: #f9fafb; padding: 2rem; display: flex; flex-direction: column; align-items: center; justify-content: center; min-height: 80vh; text-align: center; }
.card { background: white; border-radius: 8px; box-shadow: 0 4px 6px rgba(0, 0, 0, 0.1); padding: 2rem; max-width: 500px; width: 100%; }
h1 { margin-top: 0; font-size: 1.5rem; color: {{if not .Success}}#b45309{{else if .Accepted}}#16a34a{{else}}#dc2626{{end}}; }
.button { display: inline-block; background-color: #4f46e5; color: white; padding: 0.5rem 1rem; border-radius: 4px; text-decoration: none; margin-top: 1.5rem; font-weight: 500; }
</style>
</head>
<body>
<div class="card">
<h1>{{.Heading}}</h1>
{{range .Body}}<p>{{.}}</p>
{{end}}<a href="{{.DashboardURL}}" class="button">Go to Dashboard</a>
</div>
</body>
</html>
`))

func (mgr *RespondMgr) render(c *gin.Context, status int, page *respondPage) {
	page.DashboardURL = strings.TrimRight(mgr.conf.FrontendURL, "/") + "/dashboard"
	if page.Title == "" {
		page.Title = "Application Response"
	}
	var buf bytes.Buffer
	if err := respondTemplate.Execute(&buf, page); err != nil {
		klog.Errorf("render respond page: %v", err)
		c.String(http.StatusInternalServerError, msgInternal)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (mgr *RespondMgr) renderError(c *gin.Context, status int, msg string) {
	mgr.render(c, status, &respondPage{Heading: "Unable to process your response", Body: []string{msg}})
}

// Respond godoc
// @Summary Accept or reject an application from an email link
// @Description Renders an HTML page. The token binds the link to one application, one action and the project owner.
// @Tags Applications
// @Produce html
// @Param applicationId query string true "application id"
// @Param action query string true "accept or reject"
// @Param token query string false "signed link token"
// @Success 200 {string} string "Confirmation page"
// @Failure 400 {string} string "Invalid parameters"
// @Failure 404 {string} string "Application not found"
// @Failure 409 {string} string "Already responded"
// @Router /applications/respond [get]
func (mgr *RespondMgr) Respond(c *gin.Context) {
	var req RespondReq
	if err := c.ShouldBindQuery(&req); err != nil {
		mgr.renderError(c, http.StatusBadRequest, msgInvalidParameters)
		return
	}
	applicationID, err := uuid.Parse(req.ApplicationID)
	action, ok := util.ParseRespondAction(req.Action)
	if err != nil || !ok {
		mgr.renderError(c, http.StatusBadRequest, msgInvalidParameters)
		return
	}

	actor := service.Actor{Channel: service.ChannelEmail}
	switch {
	case req.Token != "" && mgr.signer != nil:
		ownerID, err := mgr.signer.Verify(req.Token, applicationID, action)
		if err != nil {
			klog.Warningf("respond link for application %s rejected: %v", applicationID, err)
			mgr.renderError(c, http.StatusForbidden, msgInvalidLink)
			return
		}
		actor.UserID = ownerID
	case mgr.conf.Respond.RequireToken:
		mgr.renderError(c, http.StatusBadRequest, msgInvalidParameters)
		return
	}

	status := model.ApplicationStatusAccepted
	if action == util.RespondReject {
		status = model.ApplicationStatusRejected
	}
	decision, err := mgr.applications.Transition(c, actor, applicationID, status)
	if err != nil {
		var responded *service.AlreadyRespondedError
		switch {
		case errors.As(err, &responded):
			mgr.render(c, http.StatusConflict, &respondPage{
				Heading: "Already responded",
				Body:    []string{responded.Error()},
			})
		case errors.Is(err, service.ErrNotFound):
			mgr.renderError(c, http.StatusNotFound, msgNotFound)
		case errors.Is(err, service.ErrForbidden):
			mgr.renderError(c, http.StatusForbidden, msgForbidden)
		default:
			klog.Errorf("respond to application %s: %v", applicationID, err)
			mgr.renderError(c, http.StatusInternalServerError, msgInternal)
		}
		return
	}

	verb := string(decision.Application.Status)
	mgr.render(c, http.StatusOK, &respondPage{
		Heading:  "You have " + verb + " the application.",
		Accepted: decision.Application.Status == model.ApplicationStatusAccepted,
		Success:  true,
		Body: []string{
			"You have " + verb + " the application for project \"" + decision.Project.Title + "\".",
			"The applicant will be notified of your decision.",
			"Thank you for your response.",
		},
	})
}
