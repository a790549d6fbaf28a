package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/changefeed"
	"github.com/raids-lab/cobrew/pkg/config"
	"github.com/raids-lab/cobrew/pkg/mailer"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RootRegistrar is implemented by managers that also serve paths outside
// the /v1 prefix, such as links embedded in emails.
type RootRegistrar interface {
	RegisterRoot(r *gin.Engine)
}

// RegisterConfig carries the dependencies shared by all managers.
type RegisterConfig struct {
	Config       *config.Config
	Store        store.Store
	Applications *service.ApplicationService
	Feed         changefeed.Subscriber
	Mailer       mailer.Sender
	Links        *util.RespondLinks
	TokenMgr     *util.TokenManager
	// Dispatcher runs requeued outbox items right away. Optional.
	Dispatcher service.Dispatcher
}

// Registers holds the constructors of every manager, appended in init.
var Registers []func(*RegisterConfig) Manager
