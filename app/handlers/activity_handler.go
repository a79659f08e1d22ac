package handlers

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/revlyhq/revly-backend/app/dto"
	"github.com/revlyhq/revly-backend/repository"
)

// ActivityHandlerInterface defines the contract for the activity feed
type ActivityHandlerInterface interface {
	List(c fiber.Ctx) error
}

// ActivityHandler serves the audit trail. It reads the repository directly;
// the feed is append-only so it needs no session coordination.
type ActivityHandler struct {
	activity repository.ActivityLogRepository
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activity repository.ActivityLogRepository) ActivityHandlerInterface {
	return &ActivityHandler{activity: activity}
}

// List returns the newest activity records for the tenant
func (h *ActivityHandler) List(c fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	ctx := createRequestContext(c, "/api/v1/activity")
	entries, err := h.activity.ByTenant(ctx, tenantID(c), limit, offset)
	if err != nil {
		log.Println("Activity list failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to load activity", "ACTIVITY_LOAD_FAILED", nil)
	}

	out := make([]dto.ActivityLogDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.ToActivityLogDTO(entry))
	}

	return successResponse(c, fiber.StatusOK, "Activity retrieved", fiber.Map{
		"entries": out,
		"total":   len(out),
	})
}
