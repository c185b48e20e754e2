package middleware

import (
	"strings"

	"agro-search/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// EditorAuth admits requests carrying a valid bearer token with the editor role.
func EditorAuth(jwtManager *auth.JWTManager, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(fiber.HeaderAuthorization)
		if token == "" {
			logger.Warn("Missing authorization token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization token required",
			})
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			logger.Warn("Invalid token", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		if claims.Role != auth.RoleEditor {
			logger.Warn("Token lacks editor role", zap.String("subject", claims.Subject), zap.String("role", claims.Role))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Editor role required",
			})
		}

		c.Locals("subject", claims.Subject)

		return c.Next()
	}
}
