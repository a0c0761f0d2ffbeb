package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

const internalErrorMessage = "Internal Server Error"

// errorMessage is the user facing message of err. Internal faults never
// leak their cause.
func errorMessage(err error) string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return internalErrorMessage
	}
	if StatusCode(err) >= fiber.StatusInternalServerError {
		if richErr.Category == goerrors.CategoryInternal {
			return internalErrorMessage
		}
	}
	return richErr.Message
}

// ErrorHandler writes err as `{success:false,message}` with the status of
// its kind. It is also suitable as the fiber app error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"message": fe.Message,
		})
	}

	return c.Status(StatusCode(err)).JSON(fiber.Map{
		"success": false,
		"message": errorMessage(err),
	})
}

// ErrorLogger logs internal faults before writing the error response
func ErrorLogger(logger Logger) func(c *fiber.Ctx, err error) error {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		if httpStatus(err) >= fiber.StatusInternalServerError {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				logger.Error("%s %s failed: [%s] %s: %v", c.Method(), c.Path(), richErr.Category, richErr.TextCode, richErr)
			} else {
				logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
			}
		}
		return ErrorHandler(c, err)
	}
}

func httpStatus(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return StatusCode(err)
}
