package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewApplicationMgr)
}

type ApplicationMgr struct {
	name         string
	applications *service.ApplicationService
}

func NewApplicationMgr(conf *RegisterConfig) Manager {
	return &ApplicationMgr{
		name:         "applications",
		applications: conf.Applications,
	}
}

func (mgr *ApplicationMgr) GetName() string { return mgr.name }

func (mgr *ApplicationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ApplicationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("mine", mgr.ListMine)
	g.POST(":id/accept", mgr.Accept)
	g.POST(":id/reject", mgr.Reject)
}

func (mgr *ApplicationMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type ApplicationIDReq struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ListMine godoc
// @Summary Applications sent by the current user
// @Tags Applications
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]service.ApplicationView] "Applications with their status"
// @Router /v1/applications/mine [get]
func (mgr *ApplicationMgr) ListMine(c *gin.Context) {
	token := util.GetToken(c)
	views, err := mgr.applications.ListMine(c, token.UserID)
	if err != nil {
		serviceError(c, err, resputil.ApplicationNotFound)
		return
	}
	resputil.Success(c, views)
}

// Accept godoc
// @Summary Accept a pending application from the dashboard
// @Description Opens the project chat with the applicant and emails the decision
// @Tags Applications
// @Produce json
// @Security Bearer
// @Param id path string true "application id"
// @Success 200 {object} resputil.Response[DecisionResp] "Accepted application"
// @Failure 403 {object} resputil.Response[any] "Not the project owner"
// @Failure 404 {object} resputil.Response[any] "Application not found"
// @Failure 409 {object} resputil.Response[any] "Already responded"
// @Router /v1/applications/{id}/accept [post]
func (mgr *ApplicationMgr) Accept(c *gin.Context) {
	mgr.decide(c, model.ApplicationStatusAccepted)
}

// Reject godoc
// @Summary Reject a pending application from the dashboard
// @Tags Applications
// @Produce json
// @Security Bearer
// @Param id path string true "application id"
// @Success 200 {object} resputil.Response[DecisionResp] "Rejected application"
// @Failure 403 {object} resputil.Response[any] "Not the project owner"
// @Failure 404 {object} resputil.Response[any] "Application not found"
// @Failure 409 {object} resputil.Response[any] "Already responded"
// @Router /v1/applications/{id}/reject [post]
func (mgr *ApplicationMgr) Reject(c *gin.Context) {
	mgr.decide(c, model.ApplicationStatusRejected)
}

func (mgr *ApplicationMgr) decide(c *gin.Context, status model.ApplicationStatus) {
	token := util.GetToken(c)
	var req ApplicationIDReq
	if err := c.ShouldBindUri(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	decision, err := mgr.applications.Transition(c, service.Actor{
		UserID:  token.UserID,
		Channel: service.ChannelDashboard,
	}, uuid.MustParse(req.ID), status)
	if err != nil {
		serviceError(c, err, resputil.ApplicationNotFound)
		return
	}
	resputil.Success(c, DecisionResp{
		Application:     decision.Application,
		ChatInitialized: decision.ChatMessage != nil,
	})
}
