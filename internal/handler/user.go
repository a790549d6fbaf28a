package handler

import (
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/payload"
	"github.com/raids-lab/cobrew/internal/resputil"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUserMgr)
}

type UserMgr struct {
	name  string
	store store.UserStore
}

func NewUserMgr(conf *RegisterConfig) Manager {
	return &UserMgr{
		name:  "users",
		store: conf.Store,
	}
}

func (mgr *UserMgr) GetName() string { return mgr.name }

func (mgr *UserMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("discover", mgr.Discover)
}

func (mgr *UserMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	DiscoverReq struct {
		Query string `form:"q"`
		Limit int    `form:"limit"`
	}

	DiscoverUserResp struct {
		model.UserInfo
		model.Profile
		Completion int `json:"completion"`
	}
)

// Discover godoc
// @Summary Find collaborators
// @Description Users whose profile is at least 70% complete, newest first.
// @Description q matches full name, skills or location, case-insensitively.
// @Tags Users
// @Produce json
// @Security Bearer
// @Param q query string false "search text"
// @Param limit query int false "max results"
// @Success 200 {object} resputil.Response[[]DiscoverUserResp] "Users"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Router /v1/users/discover [get]
func (mgr *UserMgr) Discover(c *gin.Context) {
	var req DiscoverReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	limit := payload.ClampPageSize(req.Limit)
	if limit == 0 {
		limit = payload.MaxPageSize
	}
	users, err := mgr.store.DiscoverUsers(c, store.DiscoverFilter{
		Query:         req.Query,
		MinCompletion: model.DiscoverMinCompletion,
		Limit:         limit,
	})
	if err != nil {
		klog.Errorf("discover users: %v", err)
		resputil.Error(c, "Failed to list users", resputil.NotSpecified)
		return
	}
	resp := make([]DiscoverUserResp, 0, len(users))
	for _, u := range users {
		resp = append(resp, DiscoverUserResp{
			UserInfo:   u.Info(),
			Profile:    u.Profile,
			Completion: u.ProfileCompletion(),
		})
	}
	resputil.Success(c, resp)
}
