package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/payload"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name         string
	store        store.Store
	applications *service.ApplicationService
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name:         "projects",
		store:        conf.Store,
		applications: conf.Applications,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.CreateProject)
	g.GET("", mgr.ListProjects)
	g.GET("mine", mgr.ListMyProjects)
	g.GET(":id", mgr.GetProject)

	g.POST(":id/applications", mgr.Apply)
	g.GET(":id/applications", mgr.ListProjectApplications)
	g.PUT(":id/applications/:appId", mgr.DecideApplication)

	g.GET(":id/chat", mgr.ListChat)
	g.POST(":id/chat", mgr.ContactOwner)
}

func (mgr *ProjectMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	ProjectIDReq struct {
		ID string `uri:"id" binding:"required,uuid"`
	}

	CreateProjectReq struct {
		Title       string             `json:"title" binding:"required"`
		Description string             `json:"description" binding:"required"`
		Category    string             `json:"category"`
		Stage       model.ProjectStage `json:"stage"`
		Tags        []string           `json:"tags"`
		RolesNeeded []string           `json:"rolesNeeded"`
	}

	ListProjectsReq struct {
		PageIndex *int               `form:"page_index"`
		PageSize  *int               `form:"page_size"`
		Category  string             `form:"category"`
		Stage     model.ProjectStage `form:"stage"`
		TitleLike string             `form:"title_like"`
	}

	ProjectResp struct {
		ID          uuid.UUID          `json:"id"`
		Title       string             `json:"title"`
		Description string             `json:"description"`
		Category    string             `json:"category"`
		Stage       model.ProjectStage `json:"stage"`
		Tags        []string           `json:"tags"`
		RolesNeeded []string           `json:"rolesNeeded"`
		CreatorID   uuid.UUID          `json:"creatorId"`
		CreatedAt   time.Time          `json:"createdAt"`
	}

	ProjectDetailResp struct {
		ProjectResp
		Owner   model.UserInfo `json:"owner"`
		IsOwner bool           `json:"isOwner"`
	}
)

func toProjectResp(p *model.Project) ProjectResp {
	return ProjectResp{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Stage:       p.Stage,
		Tags:        lo.Ternary(p.Tags == nil, []string{}, []string(p.Tags)),
		RolesNeeded: lo.Ternary(p.RolesNeeded == nil, []string{}, []string(p.RolesNeeded)),
		CreatorID:   p.CreatorID,
		CreatedAt:   p.CreatedAt,
	}
}

// cleanSet trims, drops blanks and removes duplicates keeping first order.
func cleanSet(values []string) []string {
	trimmed := lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	})
	return lo.Uniq(trimmed)
}

func bindProjectID(c *gin.Context) (uuid.UUID, bool) {
	var req ProjectIDReq
	if err := c.ShouldBindUri(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// CreateProject godoc
// @Summary Post a new project
// @Tags Projects
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body CreateProjectReq true "project"
// @Success 200 {object} resputil.Response[ProjectResp] "Created project"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Router /v1/projects [post]
func (mgr *ProjectMgr) CreateProject(c *gin.Context) {
	token := util.GetToken(c)
	var req CreateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		resputil.BadRequestError(c, "Title and description are required")
		return
	}
	if req.Stage == "" {
		req.Stage = model.ProjectStageIdea
	}
	if !req.Stage.Valid() {
		resputil.BadRequestError(c, "Stage must be one of idea, prototype, mvp, launched")
		return
	}

	project := &model.Project{
		Title:       req.Title,
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		Stage:       req.Stage,
		Tags:        datatypes.JSONSlice[string](cleanSet(req.Tags)),
		RolesNeeded: datatypes.JSONSlice[string](cleanSet(req.RolesNeeded)),
		CreatorID:   token.UserID,
	}
	if err := mgr.store.CreateProject(c, project); err != nil {
		klog.Errorf("create project for %s: %v", token.UserID, err)
		resputil.Error(c, "Failed to create project", resputil.NotSpecified)
		return
	}
	klog.Infof("project %s created by %s", project.ID, token.UserID)
	resputil.Success(c, toProjectResp(project))
}

// ListProjects godoc
// @Summary Browse projects, newest first
// @Tags Projects
// @Produce json
// @Security Bearer
// @Param page_index query int false "page index, from 0"
// @Param page_size query int false "page size"
// @Param category query string false "category"
// @Param stage query string false "stage"
// @Param title_like query string false "title contains"
// @Success 200 {object} resputil.Response[payload.ListResp[ProjectResp]] "Projects"
// @Router /v1/projects [get]
func (mgr *ProjectMgr) ListProjects(c *gin.Context) {
	var req ListProjectsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if req.Stage != "" && !req.Stage.Valid() {
		resputil.BadRequestError(c, "Unknown stage")
		return
	}
	projects, total, err := mgr.store.ListProjects(c, store.ProjectFilter{
		Category:  req.Category,
		Stage:     req.Stage,
		TitleLike: strings.TrimSpace(req.TitleLike),
		Page:      lo.FromPtr(req.PageIndex),
		PageSize:  payload.ClampPageSize(lo.FromPtr(req.PageSize)),
	})
	if err != nil {
		klog.Error(err)
		resputil.Error(c, "Failed to list projects", resputil.NotSpecified)
		return
	}
	resputil.Success(c, payload.ListResp[ProjectResp]{
		Rows:  lo.Map(projects, func(p *model.Project, _ int) ProjectResp { return toProjectResp(p) }),
		Count: total,
	})
}

// ListMyProjects godoc
// @Summary Projects created by the current user
// @Tags Projects
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]ProjectResp] "Projects"
// @Router /v1/projects/mine [get]
func (mgr *ProjectMgr) ListMyProjects(c *gin.Context) {
	token := util.GetToken(c)
	projects, err := mgr.store.ListProjectsByCreator(c, token.UserID)
	if err != nil {
		klog.Error(err)
		resputil.Error(c, "Failed to list projects", resputil.NotSpecified)
		return
	}
	resputil.Success(c, lo.Map(projects, func(p *model.Project, _ int) ProjectResp { return toProjectResp(p) }))
}

// GetProject godoc
// @Summary Project detail with owner
// @Tags Projects
// @Produce json
// @Security Bearer
// @Param id path string true "project id"
// @Success 200 {object} resputil.Response[ProjectDetailResp] "Project"
// @Failure 404 {object} resputil.Response[any] "Project not found"
// @Router /v1/projects/{id} [get]
func (mgr *ProjectMgr) GetProject(c *gin.Context) {
	token := util.GetToken(c)
	id, ok := bindProjectID(c)
	if !ok {
		return
	}
	project, err := mgr.store.GetProject(c, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resputil.HTTPError(c, http.StatusNotFound, "Project not found", resputil.ProjectNotFound)
			return
		}
		klog.Error(err)
		resputil.Error(c, "Failed to load project", resputil.NotSpecified)
		return
	}

	owner := model.UserInfo{ID: project.CreatorID, DisplayName: model.AnonymousUserName}
	if u, err := mgr.store.GetUser(c, project.CreatorID); err == nil {
		owner = u.Info()
	}
	resputil.Success(c, ProjectDetailResp{
		ProjectResp: toProjectResp(project),
		Owner:       owner,
		IsOwner:     project.CreatorID == token.UserID,
	})
}

type (
	ApplyReq struct {
		Why        string `json:"why" binding:"required"`
		Experience string `json:"experience" binding:"required"`
	}

	ProjectApplicationReq struct {
		ID    string `uri:"id" binding:"required,uuid"`
		AppID string `uri:"appId" binding:"required,uuid"`
	}

	DecideReq struct {
		Status model.ApplicationStatus `json:"status" binding:"required"`
	}

	DecisionResp struct {
		Application     *model.Application `json:"application"`
		ChatInitialized bool               `json:"chatInitialized"`
	}
)

// Apply godoc
// @Summary Apply to a project
// @Description Creates a pending application and notifies the project owner by email
// @Tags Applications
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "project id"
// @Param data body ApplyReq true "answers"
// @Success 200 {object} resputil.Response[model.Application] "Pending application"
// @Failure 400 {object} resputil.Response[any] "Missing answers"
// @Failure 403 {object} resputil.Response[any] "Own project"
// @Failure 404 {object} resputil.Response[any] "Project not found"
// @Failure 409 {object} resputil.Response[any] "Already pending"
// @Router /v1/projects/{id}/applications [post]
func (mgr *ProjectMgr) Apply(c *gin.Context) {
	token := util.GetToken(c)
	id, ok := bindProjectID(c)
	if !ok {
		return
	}
	var req ApplyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, "Please answer both questions")
		return
	}
	app, err := mgr.applications.Submit(c, token.UserID, id, service.ApplyInput{
		Why:        req.Why,
		Experience: req.Experience,
	})
	if err != nil {
		serviceError(c, err, resputil.ProjectNotFound)
		return
	}
	resputil.Success(c, app)
}

// ListProjectApplications godoc
// @Summary Pending applications of one project
// @Tags Applications
// @Produce json
// @Security Bearer
// @Param id path string true "project id"
// @Success 200 {object} resputil.Response[[]service.ApplicationView] "Pending applications"
// @Failure 403 {object} resputil.Response[any] "Not the project owner"
// @Failure 404 {object} resputil.Response[any] "Project not found"
// @Router /v1/projects/{id}/applications [get]
func (mgr *ProjectMgr) ListProjectApplications(c *gin.Context) {
	token := util.GetToken(c)
	id, ok := bindProjectID(c)
	if !ok {
		return
	}
	views, err := mgr.applications.ListPendingForProject(c, token.UserID, id)
	if err != nil {
		serviceError(c, err, resputil.ProjectNotFound)
		return
	}
	resputil.Success(c, views)
}

// DecideApplication godoc
// @Summary Accept or reject from the project panel
// @Tags Applications
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "project id"
// @Param appId path string true "application id"
// @Param data body DecideReq true "accepted or rejected"
// @Success 200 {object} resputil.Response[DecisionResp] "Decided application"
// @Failure 409 {object} resputil.Response[any] "Already responded"
// @Router /v1/projects/{id}/applications/{appId} [put]
func (mgr *ProjectMgr) DecideApplication(c *gin.Context) {
	token := util.GetToken(c)
	var uri ProjectApplicationReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req DecideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	appID := uuid.MustParse(uri.AppID)
	app, err := mgr.applications.Application(c, appID)
	if err != nil {
		serviceError(c, err, resputil.ApplicationNotFound)
		return
	}
	if app.ProjectID != uuid.MustParse(uri.ID) {
		resputil.HTTPError(c, http.StatusNotFound, "Application not found", resputil.ApplicationNotFound)
		return
	}
	decision, err := mgr.applications.Transition(c, service.Actor{
		UserID:  token.UserID,
		Channel: service.ChannelProject,
	}, appID, req.Status)
	if err != nil {
		serviceError(c, err, resputil.ApplicationNotFound)
		return
	}
	resputil.Success(c, DecisionResp{
		Application:     decision.Application,
		ChatInitialized: decision.ChatMessage != nil,
	})
}

const chatHistoryLimit = 200

type ContactOwnerReq struct {
	Content string `json:"content" binding:"required"`
}

// ListChat godoc
// @Summary Project chat history
// @Description Visible to the project owner and accepted members. Members see project-wide messages
// @Description and their own direct messages. Returns the newest 200, oldest first.
// @Tags Chat
// @Produce json
// @Security Bearer
// @Param id path string true "project id"
// @Success 200 {object} resputil.Response[[]model.ChatMessage] "Messages, oldest first"
// @Failure 403 {object} resputil.Response[any] "Not a member"
// @Router /v1/projects/{id}/chat [get]
func (mgr *ProjectMgr) ListChat(c *gin.Context) {
	token := util.GetToken(c)
	id, ok := bindProjectID(c)
	if !ok {
		return
	}
	project, err := mgr.store.GetProject(c, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resputil.HTTPError(c, http.StatusNotFound, "Project not found", resputil.ProjectNotFound)
			return
		}
		klog.Error(err)
		resputil.Error(c, "Failed to load project", resputil.NotSpecified)
		return
	}
	filter := store.ChatFilter{ProjectID: id, Limit: chatHistoryLimit}
	if project.CreatorID != token.UserID {
		filter.ViewerID = &token.UserID
		member, err := mgr.store.IsAcceptedMember(c, id, token.UserID)
		if err != nil {
			klog.Error(err)
			resputil.Error(c, "Failed to check membership", resputil.NotSpecified)
			return
		}
		if !member {
			resputil.HTTPError(c, http.StatusForbidden, "Only project members can read the chat", resputil.UserNotAllowed)
			return
		}
	}
	messages, err := mgr.store.ListChatMessages(c, filter)
	if err != nil {
		klog.Error(err)
		resputil.Error(c, "Failed to load chat", resputil.NotSpecified)
		return
	}
	resputil.Success(c, messages)
}

// ContactOwner godoc
// @Summary Send a direct message to the project owner
// @Tags Chat
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "project id"
// @Param data body ContactOwnerReq true "message"
// @Success 200 {object} resputil.Response[model.ChatMessage] "Stored message"
// @Router /v1/projects/{id}/chat [post]
func (mgr *ProjectMgr) ContactOwner(c *gin.Context) {
	token := util.GetToken(c)
	id, ok := bindProjectID(c)
	if !ok {
		return
	}
	var req ContactOwnerReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		resputil.BadRequestError(c, "Message must not be empty")
		return
	}
	project, err := mgr.store.GetProject(c, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resputil.HTTPError(c, http.StatusNotFound, "Project not found", resputil.ProjectNotFound)
			return
		}
		klog.Error(err)
		resputil.Error(c, "Failed to load project", resputil.NotSpecified)
		return
	}
	msg := &model.ChatMessage{
		ProjectID:   project.ID,
		SenderID:    token.UserID,
		RecipientID: &project.CreatorID,
		Content:     strings.TrimSpace(req.Content),
	}
	if _, err := mgr.store.CreateChatMessage(c, msg); err != nil {
		klog.Error(err)
		resputil.Error(c, "Failed to send message", resputil.NotSpecified)
		return
	}
	resputil.Success(c, msg)
}
