package internal

import (
	"k8s.io/klog/v2"

	"github.com/raids-lab/cobrew/internal/handler"
)

// registerManagers registers all the managers.
func registerManagers(config *handler.RegisterConfig) []handler.Manager {
	managers := make([]handler.Manager, 0, len(handler.Registers))
	for _, register := range handler.Registers {
		manager := register(config)
		managers = append(managers, manager)
		klog.Infof("Registered manager: %s", manager.GetName())
	}
	return managers
}
