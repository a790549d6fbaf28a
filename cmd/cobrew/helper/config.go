package helper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/dao/query"
	"github.com/raids-lab/cobrew/dao/store"
	"github.com/raids-lab/cobrew/internal/handler"
	"github.com/raids-lab/cobrew/internal/service"
	"github.com/raids-lab/cobrew/internal/sideeffect"
	"github.com/raids-lab/cobrew/internal/util"
	"github.com/raids-lab/cobrew/pkg/changefeed"
	"github.com/raids-lab/cobrew/pkg/config"
	"github.com/raids-lab/cobrew/pkg/mailer"
	"github.com/raids-lab/cobrew/pkg/outbox"
)

// ConfigInitializer wires the components described by the config.
type ConfigInitializer struct {
	backendConfig *config.Config
}

func NewConfigInitializer() *ConfigInitializer {
	return &ConfigInitializer{
		backendConfig: config.GetConfig(),
	}
}

func (ci *ConfigInitializer) GetBackendConfig() *config.Config {
	return ci.backendConfig
}

// LoadDebugEnvironment reads .debug.env in debug mode and takes the listen
// port from COBREW_BE_PORT.
func (ci *ConfigInitializer) LoadDebugEnvironment() error {
	if gin.Mode() != gin.DebugMode {
		return nil
	}

	err := godotenv.Load(".debug.env")
	if err != nil {
		return err
	}

	be := os.Getenv("COBREW_BE_PORT")
	if be == "" {
		return errors.New("COBREW_BE_PORT is not set")
	}
	ci.backendConfig.ServerAddr = ":" + be
	return nil
}

// InitializeRegisterConfig opens the database, builds the change feed, the
// mailer and the outbox worker, and starts the worker. cleanup stops them in
// reverse order.
func (ci *ConfigInitializer) InitializeRegisterConfig(ctx context.Context) (
	registerConfig *handler.RegisterConfig, cleanup func(), err error) {
	conf := ci.backendConfig
	var closers []func()
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	// init db
	db := query.GetDB()
	if err = query.Migrate(db); err != nil {
		return nil, cleanup, fmt.Errorf("migrate: %w", err)
	}
	s := store.NewGormStore(db)

	feed, err := ci.newFeed(ctx)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, func() {
		if err := feed.Close(); err != nil {
			klog.Warningf("close change feed: %v", err)
		}
	})

	sender, err := mailer.New(conf)
	if err != nil {
		return nil, cleanup, err
	}

	links := &util.RespondLinks{
		BaseURL: conf.BaseURL,
		Signer:  util.NewRespondSigner(conf.Respond.TokenSecret, time.Duration(conf.Respond.TokenTTLHour)*time.Hour),
	}

	worker, err := outbox.NewWorker(s, outbox.OptionsFromConfig(conf))
	if err != nil {
		return nil, cleanup, err
	}
	sideeffect.NewHandlers(s, sender, links, conf.FrontendURL).Register(worker)
	if err = worker.Start(ctx); err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, worker.Stop)

	registerConfig = &handler.RegisterConfig{
		Config:       conf,
		Store:        s,
		Applications: service.NewApplicationService(s, feed, worker),
		Feed:         feed,
		Mailer:       sender,
		Links:        links,
		TokenMgr:     util.GetTokenMgr(),
		Dispatcher:   worker,
	}
	return registerConfig, cleanup, nil
}

// newFeed uses Redis pub/sub when an address is configured, so replicas
// see each other's changes, and an in-process broker otherwise.
func (ci *ConfigInitializer) newFeed(ctx context.Context) (changefeed.Feed, error) {
	rc := ci.backendConfig.Redis
	if rc.Addr == "" {
		klog.Info("change feed: in-process broker")
		return changefeed.NewBroker(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
	}
	klog.Infof("change feed: redis channel %s on %s", rc.Channel, rc.Addr)
	return changefeed.NewRedisFeed(ctx, client, rc.Channel), nil
}
