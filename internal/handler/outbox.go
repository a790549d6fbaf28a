package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/model"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/service"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewOutboxMgr)
}

const defaultOutboxListLimit = 100

type OutboxMgr struct {
	name     string
	store    store.OutboxStore
	dispatch service.Dispatcher
}

func NewOutboxMgr(conf *RegisterConfig) Manager {
	return &OutboxMgr{
		name:     "outbox",
		store:    conf.Store,
		dispatch: conf.Dispatcher,
	}
}

func (mgr *OutboxMgr) GetName() string { return mgr.name }

func (mgr *OutboxMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *OutboxMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *OutboxMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.ListOutbox)
	g.POST(":id/requeue", mgr.Requeue)
}

type (
	ListOutboxReq struct {
		Status model.OutboxStatus `form:"status"`
		Limit  int                `form:"limit" binding:"omitempty,min=1,max=1000"`
	}

	OutboxIDReq struct {
		ID string `uri:"id" binding:"required,uuid"`
	}
)

// ListOutbox godoc
// @Summary List outbox items
// @Description Side effects waiting, done or given up, oldest first
// @Tags Outbox
// @Produce json
// @Security Bearer
// @Param status query string false "pending, done or dead" default(dead)
// @Param limit query int false "max rows"
// @Success 200 {object} resputil.Response[[]model.OutboxItem] "Outbox items"
// @Router /v1/admin/outbox [get]
func (mgr *OutboxMgr) ListOutbox(c *gin.Context) {
	var req ListOutboxReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	switch req.Status {
	case "":
		req.Status = model.OutboxStatusDead
	case model.OutboxStatusPending, model.OutboxStatusDone, model.OutboxStatusDead:
	default:
		resputil.BadRequestError(c, "Unknown outbox status")
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultOutboxListLimit
	}
	items, err := mgr.store.ListOutbox(c, req.Status, req.Limit)
	if err != nil {
		klog.Error(err)
		resputil.Error(c, "Failed to list outbox", resputil.NotSpecified)
		return
	}
	resputil.Success(c, items)
}

// Requeue godoc
// @Summary Retry a dead outbox item
// @Tags Outbox
// @Produce json
// @Security Bearer
// @Param id path string true "outbox item id"
// @Success 200 {object} resputil.Response[any] "Requeued"
// @Failure 404 {object} resputil.Response[any] "No dead item with this id"
// @Router /v1/admin/outbox/{id}/requeue [post]
func (mgr *OutboxMgr) Requeue(c *gin.Context) {
	var req OutboxIDReq
	if err := c.ShouldBindUri(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	id := uuid.MustParse(req.ID)
	if err := mgr.store.RequeueOutbox(c, id, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resputil.HTTPError(c, http.StatusNotFound, "No dead outbox item with this id", resputil.InvalidRequest)
			return
		}
		klog.Error(err)
		resputil.Error(c, "Failed to requeue", resputil.NotSpecified)
		return
	}
	klog.Infof("outbox item %s requeued", id)
	if mgr.dispatch != nil {
		mgr.dispatch.DispatchNow(c, id)
	}
	resputil.Success(c, nil)
}
