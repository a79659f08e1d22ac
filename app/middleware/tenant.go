// Package middleware provides HTTP middleware for tenant resolution and metrics
package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/revlyhq/revly-backend/app/dto"
)

// Tenant resolves the tenant from the X-Tenant-ID header and stores it in
// request locals. Every /api/v1 route runs behind it; the public review
// link route does not, since its token carries the tenant.
func Tenant() fiber.Handler {
	return func(c fiber.Ctx) error {
		tenant := c.Get("X-Tenant-ID")
		if tenant == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Tenant header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_TENANT",
				},
			})
		}
		c.Locals("tenant_id", tenant)
		return c.Next()
	}
}
