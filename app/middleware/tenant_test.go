package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revlyhq/revly-backend/app/dto"
)

func newTenantTestApp() *fiber.App {
	app := fiber.New()
	app.Use(Tenant())
	app.Get("/whoami", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"tenant": c.Locals("tenant_id")})
	})
	return app
}

func TestTenantMiddlewareRejectsMissingHeader(t *testing.T) {
	app := newTenantTestApp()

	req := httptest.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body struct {
		Success bool            `json:"success"`
		Error   dto.ErrorDetail `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "MISSING_TENANT", body.Error.Code)
}

func TestTenantMiddlewareResolvesTenant(t *testing.T) {
	app := newTenantTestApp()

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tenant-1", body["tenant"])
}
