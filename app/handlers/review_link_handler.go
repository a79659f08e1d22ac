package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/revlyhq/revly-backend/app/services"
	businessflow "github.com/revlyhq/revly-backend/business_flow"
)

// ReviewLinkHandlerInterface defines the contract for public review link visits
type ReviewLinkHandlerInterface interface {
	Visit(c fiber.Ctx) error
}

// ReviewLinkHandler resolves a review link token and records the click.
// Public endpoint, no tenant header: the token carries the tenant.
type ReviewLinkHandler struct {
	sessions  *businessflow.SessionManager
	links     services.LinkTokenService
	reviewURL string
}

// NewReviewLinkHandler creates a new review link handler. reviewURL is the
// external review platform page the recipient lands on.
func NewReviewLinkHandler(sessions *businessflow.SessionManager, links services.LinkTokenService, reviewURL string) ReviewLinkHandlerInterface {
	return &ReviewLinkHandler{
		sessions:  sessions,
		links:     links,
		reviewURL: reviewURL,
	}
}

// Visit verifies the token, marks the customer as Clicked, and redirects to
// the review platform
func (h *ReviewLinkHandler) Visit(c fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).SendString("invalid review link")
	}

	claims, err := h.links.Verify(token)
	if err != nil {
		if errors.Is(err, services.ErrLinkTokenExpired) {
			return c.Status(fiber.StatusGone).SendString("this review link has expired")
		}
		return c.Status(fiber.StatusNotFound).SendString("not found")
	}

	ctx := createRequestContext(c, "/r/:token")
	session, err := h.sessions.Session(ctx, claims.TenantID)
	if err != nil {
		log.Println("Session load failed", err)
		return c.Status(fiber.StatusInternalServerError).SendString("internal error")
	}

	if _, err := session.RecordClick(ctx, claims.CustomerID); err != nil {
		// A click on a stale link still redirects; the lifecycle just
		// doesn't move.
		if !businessflow.IsInvalidTransition(err) && !businessflow.IsCustomerNotFound(err) {
			log.Println("Click tracking failed", err)
		}
	}

	return c.Redirect().Status(fiber.StatusFound).To(h.reviewURL)
}
