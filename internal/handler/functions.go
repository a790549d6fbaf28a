package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/mailer"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewFunctionMgr)
}

// FunctionMgr serves the RPC style endpoints the web client calls after a
// write. They answer plain JSON instead of the {code,data,msg} envelope.
type FunctionMgr struct {
	name         string
	store        store.Store
	applications *service.ApplicationService
	mailer       mailer.Sender
	links        *util.RespondLinks
}

func NewFunctionMgr(conf *RegisterConfig) Manager {
	return &FunctionMgr{
		name:         "functions",
		store:        conf.Store,
		applications: conf.Applications,
		mailer:       conf.Mailer,
		links:        conf.Links,
	}
}

func (mgr *FunctionMgr) GetName() string { return mgr.name }

func (mgr *FunctionMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *FunctionMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("project-chat-init", mgr.ProjectChatInit)
	g.POST("notify-applicant", mgr.NotifyApplicant)
	g.POST("send-project-application-email", mgr.SendProjectApplicationEmail)
}

func (mgr *FunctionMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	FunctionError struct {
		Error string `json:"error"`
	}

	FunctionSuccess struct {
		Success bool `json:"success"`
	}

	ProjectChatInitReq struct {
		ApplicationID  string `json:"applicationId"`
		ApplicantID    string `json:"applicantId"`
		ProjectOwnerID string `json:"projectOwnerId"`
	}

	ProjectChatInitResp struct {
		Success         bool               `json:"success"`
		ChatInitialized bool               `json:"chatInitialized"`
		Message         *model.ChatMessage `json:"message"`
	}

	NotifyApplicantReq struct {
		ApplicationID string                  `json:"applicationId"`
		Status        model.ApplicationStatus `json:"status"`
	}

	SendProjectApplicationEmailReq struct {
		ApplicantName  string `json:"applicantName"`
		ApplicantEmail string `json:"applicantEmail"`
		ProjectID      string `json:"projectId"`
		ProjectTitle   string `json:"projectTitle"`
		ApplicationID  string `json:"applicationId"`
		OwnerEmail     string `json:"ownerEmail"`
		OwnerName      string `json:"ownerName"`
		BaseURL        string `json:"baseUrl"`
	}
)

func functionError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, FunctionError{Error: msg})
}

func functionServiceError(c *gin.Context, err error) {
	status, _ := serviceErrorStatus(err, resputil.ApplicationNotFound)
	switch status {
	case http.StatusInternalServerError:
		klog.Errorf("%s: %v", c.FullPath(), err)
		functionError(c, status, "Internal server error")
	case http.StatusNotFound:
		functionError(c, status, "Application not found")
	default:
		functionError(c, status, err.Error())
	}
}

func parseUUIDs(values ...string) ([]uuid.UUID, bool) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// ProjectChatInit godoc
// @Summary Accept an application and open the project chat
// @Tags Functions
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body ProjectChatInitReq true "application and applicant"
// @Success 200 {object} ProjectChatInitResp "Accepted"
// @Failure 400 {object} FunctionError "Missing fields or applicant mismatch"
// @Failure 404 {object} FunctionError "Application not found"
// @Failure 409 {object} FunctionError "Already responded"
// @Router /v1/functions/project-chat-init [post]
func (mgr *FunctionMgr) ProjectChatInit(c *gin.Context) {
	token := util.GetToken(c)
	var req ProjectChatInitReq
	if err := c.ShouldBindJSON(&req); err != nil {
		functionError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	ids, ok := parseUUIDs(req.ApplicationID, req.ApplicantID)
	if !ok {
		functionError(c, http.StatusBadRequest, "applicationId and applicantId are required")
		return
	}
	applicationID, applicantID := ids[0], ids[1]

	app, err := mgr.applications.Application(c, applicationID)
	if err != nil {
		functionServiceError(c, err)
		return
	}
	if app.ApplicantID != applicantID {
		functionError(c, http.StatusBadRequest, "Applicant does not match the application")
		return
	}
	if req.ProjectOwnerID != "" && req.ProjectOwnerID != token.UserID.String() {
		klog.Warningf("project-chat-init: owner %s in body differs from caller %s", req.ProjectOwnerID, token.UserID)
	}

	decision, err := mgr.applications.Transition(c, service.Actor{
		UserID:  token.UserID,
		Channel: service.ChannelFunction,
	}, applicationID, model.ApplicationStatusAccepted)
	if err != nil {
		functionServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ProjectChatInitResp{
		Success:         true,
		ChatInitialized: decision.ChatMessage != nil,
		Message:         decision.ChatMessage,
	})
}

// NotifyApplicant godoc
// @Summary Email the applicant about a decision
// @Description The status must equal the decision already stored on the application
// @Tags Functions
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body NotifyApplicantReq true "application and status"
// @Success 200 {object} FunctionSuccess "Email queued"
// @Failure 400 {object} FunctionError "Missing fields"
// @Failure 409 {object} FunctionError "Status differs from the stored one"
// @Router /v1/functions/notify-applicant [post]
func (mgr *FunctionMgr) NotifyApplicant(c *gin.Context) {
	token := util.GetToken(c)
	var req NotifyApplicantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		functionError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	ids, ok := parseUUIDs(req.ApplicationID)
	if !ok || req.Status == "" {
		functionError(c, http.StatusBadRequest, "applicationId and status are required")
		return
	}
	err := mgr.applications.NotifyApplicant(c, service.Actor{
		UserID:  token.UserID,
		Channel: service.ChannelFunction,
	}, ids[0], req.Status)
	if err != nil {
		functionServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, FunctionSuccess{Success: true})
}

// SendProjectApplicationEmail godoc
// @Summary Email the project owner about an application
// @Description Sends the owner the one-click accept and reject links right away.
// @Description The mail always goes to the stored owner address and links use the configured base URL.
// @Tags Functions
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body SendProjectApplicationEmailReq true "application summary"
// @Success 200 {object} FunctionSuccess "Sent"
// @Failure 400 {object} FunctionError "Missing fields"
// @Failure 403 {object} FunctionError "Caller is not the applicant"
// @Failure 404 {object} FunctionError "Application not found"
// @Router /v1/functions/send-project-application-email [post]
func (mgr *FunctionMgr) SendProjectApplicationEmail(c *gin.Context) {
	token := util.GetToken(c)
	var req SendProjectApplicationEmailReq
	if err := c.ShouldBindJSON(&req); err != nil {
		functionError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	ids, ok := parseUUIDs(req.ApplicationID, req.ProjectID)
	if !ok {
		functionError(c, http.StatusBadRequest, "applicationId and projectId are required")
		return
	}
	app, err := mgr.applications.Application(c, ids[0])
	if err != nil {
		functionServiceError(c, err)
		return
	}
	if app.ProjectID != ids[1] {
		functionError(c, http.StatusBadRequest, "Application does not belong to the project")
		return
	}
	if app.ApplicantID != token.UserID {
		functionError(c, http.StatusForbidden, "Only the applicant can send this email")
		return
	}

	project, err := mgr.store.GetProject(c, app.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			functionError(c, http.StatusNotFound, "Project not found")
			return
		}
		functionServiceError(c, err)
		return
	}
	owner, err := mgr.store.GetUser(c, project.CreatorID)
	if err != nil {
		functionServiceError(c, err)
		return
	}
	if req.OwnerEmail != "" && !strings.EqualFold(req.OwnerEmail, owner.Email) {
		klog.Warningf("send-project-application-email: ignoring owner address %q for project %s", req.OwnerEmail, project.ID)
	}

	accept, reject, err := mgr.links.Pair(app.ID, owner.ID)
	if err != nil {
		functionServiceError(c, err)
		return
	}
	msg, err := mailer.NewApplicationEmail(&mailer.NewApplicationData{
		To:            owner.Email,
		OwnerName:     strings.TrimSpace(req.OwnerName),
		ApplicantName: firstNonBlank(req.ApplicantName, model.AnonymousUserName),
		ProjectTitle:  firstNonBlank(req.ProjectTitle, project.Title),
		AcceptLink:    accept,
		RejectLink:    reject,
	})
	if err != nil {
		functionServiceError(c, err)
		return
	}
	if err := mgr.mailer.Send(c, msg); err != nil {
		klog.Errorf("send application email for %s: %v", app.ID, err)
		functionError(c, http.StatusBadGateway, "Failed to send email")
		return
	}
	c.JSON(http.StatusOK, FunctionSuccess{Success: true})
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
