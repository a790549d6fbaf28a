package main

import (
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/raids-lab/cobrew/cmd/cobrew/helper"
)

// @title						CO-brew API
// @version						1.0.0
// @description					API server for CO-brew, where makers post projects and review the applications of collaborators.
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description					POST /v1/auth/login and send 'Bearer ${TOKEN}' to reach protected endpoints
func main() {
	// Initialize configuration
	configInit := helper.NewConfigInitializer()
	backendConfig := configInit.GetBackendConfig()

	// Load debug environment if needed
	if err := configInit.LoadDebugEnvironment(); err != nil {
		klog.Fatalf("Failed to load env: %s", err)
	}

	// Setup server runner and logger
	serverRunner := helper.NewServerRunner(backendConfig)
	serverRunner.SetupLogger()

	// Initialize signal handler
	ctx := ctrl.SetupSignalHandler()

	// Initialize register config and dependencies
	registerConfig, cleanup, err := configInit.InitializeRegisterConfig(ctx)
	if err != nil {
		klog.Fatalf("Failed to register config: %s\n", err)
	}
	defer cleanup()

	// Start HTTP server, returns after a graceful shutdown
	serverRunner.StartServer(ctx, registerConfig)
}
