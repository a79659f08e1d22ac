package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/revlyhq/revly-backend/app/dto"
	"github.com/revlyhq/revly-backend/app/middleware"
	businessflow "github.com/revlyhq/revly-backend/business_flow"
)

// CustomerHandlerInterface defines the contract for customer endpoints
type CustomerHandlerInterface interface {
	List(c fiber.Ctx) error
	Send(c fiber.Ctx) error
}

// CustomerHandler serves the customer collection and the send endpoint
type CustomerHandler struct {
	sessions  *businessflow.SessionManager
	validator *validator.Validate
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(sessions *businessflow.SessionManager) CustomerHandlerInterface {
	return &CustomerHandler{
		sessions:  sessions,
		validator: validator.New(),
	}
}

// List returns the tenant's customers with their feedback, the unattributed
// bucket first when it exists
func (h *CustomerHandler) List(c fiber.Ctx) error {
	ctx := createRequestContext(c, "/api/v1/customers")
	session, err := h.sessions.Session(ctx, tenantID(c))
	if err != nil {
		log.Println("Session load failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to load tenant state", "SESSION_LOAD_FAILED", nil)
	}

	customers := session.Customers()
	out := make([]dto.CustomerDTO, 0, len(customers))
	for _, customer := range customers {
		out = append(out, dto.ToCustomerDTO(customer))
	}

	return successResponse(c, fiber.StatusOK, "Customers retrieved", fiber.Map{
		"customers": out,
		"total":     len(out),
	})
}

// Send queues review requests for the given customers
func (h *CustomerHandler) Send(c fiber.Ctx) error {
	var req dto.SendReviewRequestsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	ctx := createRequestContext(c, "/api/v1/send")
	session, err := h.sessions.Session(ctx, tenantID(c))
	if err != nil {
		log.Println("Session load failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to load tenant state", "SESSION_LOAD_FAILED", nil)
	}

	if err := session.EnqueueSend(ctx, req.CustomerIDs); err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", err.Error())
		}
		if businessflow.IsUnattributedReadOnly(err) {
			return errorResponse(c, fiber.StatusBadRequest, "The unattributed bucket cannot receive review requests", "UNATTRIBUTED_READ_ONLY", nil)
		}
		if businessflow.IsQueueFull(err) {
			return errorResponse(c, fiber.StatusTooManyRequests, "Send queue is full", "QUEUE_FULL", err.Error())
		}
		log.Println("Enqueue failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to queue review requests", "ENQUEUE_FAILED", nil)
	}

	depth := session.QueueDepth()
	middleware.SendQueueDepth.WithLabelValues(session.TenantID()).Set(float64(depth))

	return successResponse(c, fiber.StatusAccepted, "Review requests queued", fiber.Map{
		"queued":      len(req.CustomerIDs),
		"queue_depth": depth,
	})
}
