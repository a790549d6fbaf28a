package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/resputil"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/changefeed"
	"github.com/raids-lab/cobrew/pkg/config"
	"github.com/raids-lab/cobrew/pkg/metrics"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewNotificationMgr)
}

const (
	// WriteTimeout specifies the maximum duration for completing a write operation.
	WriteTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
)

type NotificationMgr struct {
	name         string
	applications *service.ApplicationService
	feed         changefeed.Subscriber
	conf         *config.Config
}

func NewNotificationMgr(conf *RegisterConfig) Manager {
	return &NotificationMgr{
		name:         "notifications",
		applications: conf.Applications,
		feed:         conf.Feed,
		conf:         conf.Config,
	}
}

func (mgr *NotificationMgr) GetName() string { return mgr.name }

func (mgr *NotificationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *NotificationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("applications", mgr.ListPendingApplications)
	g.GET("applications/watch", mgr.WatchPendingApplications)
}

func (mgr *NotificationMgr) RegisterAdmin(_ *gin.RouterGroup) {}

// WatchMessage is one frame of the watch stream. Every frame carries the
// full pending list, Event is the change that triggered it.
type WatchMessage struct {
	Type         string                    `json:"type"`
	Event        *changefeed.Event         `json:"event,omitempty"`
	Applications []service.ApplicationView `json:"applications"`
}

const (
	watchSnapshot = "snapshot"
	watchChange   = "change"
)

// ListPendingApplications godoc
// @Summary Pending applications to the current user's projects
// @Description Newest first. Applications with missing project or applicant keep a placeholder title and name
// @Tags Notifications
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]service.ApplicationView] "Pending applications"
// @Router /v1/notifications/applications [get]
func (mgr *NotificationMgr) ListPendingApplications(c *gin.Context) {
	token := util.GetToken(c)
	views, err := mgr.applications.ListPendingForOwner(c, token.UserID)
	if err != nil {
		serviceError(c, err, resputil.ProjectNotFound)
		return
	}
	resputil.Success(c, views)
}

func (mgr *NotificationMgr) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || config.IsDebugMode() {
		return true
	}
	allowed, err := url.Parse(mgr.conf.FrontendURL)
	if err != nil {
		return false
	}
	got, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return got.Scheme == allowed.Scheme && got.Host == allowed.Host
}

// WatchPendingApplications godoc
// @Summary Live pending applications
// @Description Websocket. Sends the full list on connect and again after each change to one of the caller's projects.
// @Description Browsers pass the bearer token as the access_token query parameter.
// @Tags Notifications
// @Security Bearer
// @Param access_token query string false "bearer token for browsers"
// @Success 101 {object} WatchMessage "Switching protocols"
// @Router /v1/notifications/applications/watch [get]
func (mgr *NotificationMgr) WatchPendingApplications(c *gin.Context) {
	token := util.GetToken(c)
	upgrade := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     mgr.checkOrigin,
	}
	ws, err := upgrade.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.Warningf("upgrade watch for %s: %v", token.UserID, err)
		return
	}
	defer ws.Close()

	metrics.WatchSubscribers.Inc()
	defer metrics.WatchSubscribers.Dec()

	// Subscribe before the first query so no change falls between them.
	events, cancelSub := mgr.feed.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go readUntilClosed(ws, cancel)

	if err := mgr.sendPending(ctx, ws, token.UserID, watchSnapshot, nil); err != nil {
		klog.V(2).Infof("watch of %s ended: %v", token.UserID, err)
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(WriteTimeout))
				return
			}
			if event.Table != changefeed.TableApplications || event.OwnerID != token.UserID {
				continue
			}
			if err := mgr.sendPending(ctx, ws, token.UserID, watchChange, &event); err != nil {
				klog.V(2).Infof("watch of %s ended: %v", token.UserID, err)
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (mgr *NotificationMgr) sendPending(ctx context.Context, ws *websocket.Conn, ownerID uuid.UUID,
	typ string, event *changefeed.Event) error {
	// the triggering change may not have reached a replica yet
	views, err := mgr.applications.ListPendingForOwner(store.WithPrimary(ctx), ownerID)
	if err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	return ws.WriteJSON(WatchMessage{Type: typ, Event: event, Applications: views})
}

// readUntilClosed drains client frames so control messages are handled, and
// cancels the watch once the peer goes away.
func readUntilClosed(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
