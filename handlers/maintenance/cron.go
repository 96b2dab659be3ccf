package maintenance

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-storefront/services"
	"github.com/sahilchouksey/course-storefront/services/cron"
	"github.com/sahilchouksey/course-storefront/utils/response"
)

// MaintenanceHandler exposes scheduled jobs to an external scheduler
type MaintenanceHandler struct {
	runner  *cron.JobRunner
	cleanup *services.CleanupService
}

func NewMaintenanceHandler(runner *cron.JobRunner, cleanup *services.CleanupService) *MaintenanceHandler {
	return &MaintenanceHandler{runner: runner, cleanup: cleanup}
}

// Cleanup handles POST /api/v1/cron/cleanup. The route is guarded by the
// cron secret middleware.
func (h *MaintenanceHandler) Cleanup(c *fiber.Ctx) error {
	result, err := h.runner.Run(c.UserContext(), cron.JobCleanup, cron.TriggerHTTP, cron.CleanupJob(h.cleanup))
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Cleanup completed", result)
}
