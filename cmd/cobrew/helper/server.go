package helper

import (
	"context"
	"errors"
	"net/http"
	"time"

	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/raids-lab/cobrew/internal"
	"github.com/raids-lab/cobrew/internal/handler"
	"github.com/raids-lab/cobrew/pkg/config"
	"github.com/raids-lab/cobrew/pkg/logutils"
)

// ServerRunner runs the HTTP server until the signal context ends.
type ServerRunner struct {
	backendConfig *config.Config
}

func NewServerRunner(backendConfig *config.Config) *ServerRunner {
	return &ServerRunner{
		backendConfig: backendConfig,
	}
}

// SetupLogger applies the log section and routes logr users to klog.
func (sr *ServerRunner) SetupLogger() {
	logutils.Setup(sr.backendConfig)
	ctrl.SetLogger(klog.NewKlogr())
}

var (
	readHeaderTimeout = 10 * time.Second
	cancelTimeout     = 10 * time.Second
)

// StartServer serves until ctx is done, then shuts down gracefully.
func (sr *ServerRunner) StartServer(ctx context.Context, registerConfig *handler.RegisterConfig) {
	klog.Info("starting server")
	backend := internal.Register(registerConfig)

	// reference: https://gin-gonic.com/en/docs/examples/graceful-restart-or-stop
	srv := &http.Server{
		Addr:              sr.backendConfig.ServerAddr,
		Handler:           backend,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		klog.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	klog.Info("Shutdown Gin Server ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		klog.Info("Gin Server Shutdown:", err)
	}
	klog.Info("Gin Server exiting")
}
