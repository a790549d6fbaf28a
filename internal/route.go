package internal

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/common/version"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	docs "github.com/raids-lab/cobrew/docs"
	"github.com/raids-lab/cobrew/internal/handler"
	"github.com/raids-lab/cobrew/internal/middleware"
)

const (
	APIPrefix = "/v1"
	// AdminPrefix hangs below APIPrefix.
	AdminPrefix = "/admin"
)

// corsConfig answers browser preflights from any origin with the headers
// the web client sends.
func corsConfig() cors.Config {
	conf := cors.DefaultConfig()
	conf.AllowAllOrigins = true
	conf.AllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}
	conf.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	return conf
}

// Register builds the gin engine with every manager mounted.
func Register(registerConfig *handler.RegisterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.New(corsConfig()))

	// Kubernetes health check
	r.GET(APIPrefix+"/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})
	r.GET(APIPrefix+"/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":   version.Version,
			"revision":  version.Revision,
			"branch":    version.Branch,
			"buildDate": version.BuildDate,
			"goVersion": version.GoVersion,
		})
	})

	docs.SwaggerInfo.BasePath = "/"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	publicRouter := r.Group(APIPrefix)

	protectedRouter := r.Group(APIPrefix)
	protectedRouter.Use(middleware.AuthProtected(registerConfig.TokenMgr))

	adminRouter := r.Group(APIPrefix + AdminPrefix)
	adminRouter.Use(middleware.AuthProtected(registerConfig.TokenMgr), middleware.AuthAdmin())

	for _, mgr := range registerManagers(registerConfig) {
		mgr.RegisterPublic(publicRouter.Group(mgr.GetName()))
		mgr.RegisterProtected(protectedRouter.Group(mgr.GetName()))
		mgr.RegisterAdmin(adminRouter.Group(mgr.GetName()))
		if root, ok := mgr.(handler.RootRegistrar); ok {
			root.RegisterRoot(r)
		}
	}
	return r
}
