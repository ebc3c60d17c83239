package handlers

import (
	"errors"
	"fmt"

	"storefront/internal/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

var validate = validator.New()

// respondError writes err with the status mapped from its kind.
// Internal errors are logged and their text is not sent to the client.
func respondError(c *fiber.Ctx, err error) error {
	status := apperrors.StatusCode(err)
	body := fiber.Map{"message": err.Error()}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body["error"] = string(appErr.Kind)
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	}
	if status == fiber.StatusInternalServerError {
		log.WithFields(log.Fields{"method": c.Method(), "path": c.Path()}).WithError(err).Error("request failed")
		body = fiber.Map{"message": "Internal server error"}
	}
	return c.Status(status).JSON(body)
}

// bindJSON parses the body into req and runs struct validation.
// It writes the 400 response itself and reports whether the handler should continue.
func bindJSON(c *fiber.Ctx, req any) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := validate.Struct(req); err != nil {
		errorMessages := make(map[string]string)
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
			}
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  errorMessages,
		})
	}
	return true, nil
}
