package handlers

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/revlyhq/revly-backend/app/dto"
	businessflow "github.com/revlyhq/revly-backend/business_flow"
	"github.com/revlyhq/revly-backend/models"
)

// FeedbackHandlerInterface defines the contract for feedback endpoints
type FeedbackHandlerInterface interface {
	Submit(c fiber.Ctx) error
	Clear(c fiber.Ctx) error
}

// FeedbackHandler handles feedback submission and bulk clearing
type FeedbackHandler struct {
	sessions  *businessflow.SessionManager
	validator *validator.Validate
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(sessions *businessflow.SessionManager) FeedbackHandlerInterface {
	return &FeedbackHandler{
		sessions:  sessions,
		validator: validator.New(),
	}
}

// Submit records one feedback entry and attributes it to a customer
func (h *FeedbackHandler) Submit(c fiber.Ctx) error {
	var req dto.SubmitFeedbackRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors(err))
	}

	ctx := createRequestContext(c, "/api/v1/feedback")
	session, err := h.sessions.Session(ctx, tenantID(c))
	if err != nil {
		log.Println("Session load failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to load tenant state", "SESSION_LOAD_FAILED", nil)
	}

	entry, err := session.SubmitFeedback(ctx, businessflow.LocalFeedback{
		CustomerID: req.CustomerID,
		Phone:      req.Phone,
		Text:       req.Text,
		Sentiment:  models.FeedbackSentiment(req.Sentiment),
		Rating:     req.Rating,
		Date:       req.Date,
	})
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsEmptyFeedbackText(err) || businessflow.IsInvalidSentiment(err) {
			return errorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FEEDBACK", nil)
		}
		log.Println("Feedback submission failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to record feedback", "FEEDBACK_SAVE_FAILED", nil)
	}

	return successResponse(c, fiber.StatusCreated, "Feedback recorded", dto.ToFeedbackEntryDTO(*entry))
}

// Clear wipes the tenant's feedback history, the unattributed bucket, and
// the sync cursor. Customers themselves survive.
func (h *FeedbackHandler) Clear(c fiber.Ctx) error {
	ctx := createRequestContext(c, "/api/v1/feedback")
	session, err := h.sessions.Session(ctx, tenantID(c))
	if err != nil {
		log.Println("Session load failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to load tenant state", "SESSION_LOAD_FAILED", nil)
	}

	if err := session.ResetAll(ctx); err != nil {
		log.Println("Feedback clear failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to clear feedback", "FEEDBACK_CLEAR_FAILED", nil)
	}

	return successResponse(c, fiber.StatusOK, "All feedback cleared", nil)
}
