package api

import (
	"github.com/example/comm-relay/modules/auth"
	"github.com/gofiber/fiber/v2"
)

// UserIDKey is the Fiber locals key holding the authenticated user ID.
const UserIDKey = "userID"

// AuthMiddleware accepts the access token from the accessToken cookie or an
// Authorization bearer header. Every failure answers 401 with the same body.
func AuthMiddleware(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ExtractToken(c.Cookies(auth.CookieName), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, auth.ErrUnauthorized.Error())
		}

		claims, err := verifier.Verify(token)
		if err != nil || claims.User() == "" {
			return fiber.NewError(fiber.StatusUnauthorized, auth.ErrUnauthorized.Error())
		}

		c.Locals(UserIDKey, claims.User())
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}
