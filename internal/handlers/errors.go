package handlers

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"toko/internal/apperr"
)

var statusByKind = map[string]int{
	"validation":         fiber.StatusBadRequest,
	"empty_cart":         fiber.StatusBadRequest,
	"insufficient_stock": fiber.StatusConflict,
	"precondition":       fiber.StatusConflict,
	"authorization":      fiber.StatusForbidden,
	"unauthenticated":    fiber.StatusUnauthorized,
	"not_found":          fiber.StatusNotFound,
	"gateway":            fiber.StatusBadGateway,
	"consistency":        fiber.StatusInternalServerError,
	"internal":           fiber.StatusInternalServerError,
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if s, ok := statusByKind[apperr.Kind(err)]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, logger *slog.Logger, message string, err error) error {
	kind := apperr.Kind(err)
	status := StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		// store and driver errors stay in the log
		logger.Error(message, "path", c.Path(), "kind", kind, "error", err)
		return c.Status(status).JSON(fiber.Map{
			"message": message,
			"kind":    kind,
		})
	}
	logger.Info(message, "path", c.Path(), "kind", kind, "error", err)
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
		"kind":    kind,
	})
}

func badRequest(c *fiber.Ctx, message string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
		"kind":    "validation",
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	errorMessages := make(map[string]string)
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"error":   err.Error(),
		"kind":    "validation",
		"errors":  errorMessages,
	})
}
