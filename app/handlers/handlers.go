// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/revlyhq/revly-backend/app/dto"
	"github.com/revlyhq/revly-backend/utils"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " items"
	case "max":
		return err.Field() + " is too long"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func validationErrors(err error) []string {
	var messages []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			messages = append(messages, getValidationErrorMessage(verr))
		}
	}
	return messages
}

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// tenantID pulls the tenant set by the tenant middleware
func tenantID(c fiber.Ctx) string {
	id, _ := c.Locals("tenant_id").(string)
	return id
}

func createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
