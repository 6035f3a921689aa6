package middleware

import (
	"errors"
	"strings"

	"habersin/internal/config"
	"habersin/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errMissingHeader = errors.New("authorization header required")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errInvalidToken  = errors.New("invalid or expired token")
	errMissingSub    = errors.New("invalid token structure - missing subject")
)

// AuthRequired rejects requests without a valid bearer token and stores the
// token subject in c.Locals("userID").
func AuthRequired(c *fiber.Ctx) error {
	userID, err := authenticate(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
	}
	setUser(c, userID)
	return c.Next()
}

// OptionalAuth sets the user when a valid token is present and lets anonymous
// requests through. A malformed or expired token is still rejected.
func OptionalAuth(c *fiber.Ctx) error {
	userID, err := authenticate(c)
	switch {
	case errors.Is(err, errMissingHeader):
		return c.Next()
	case err != nil:
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
	}
	setUser(c, userID)
	return c.Next()
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals("userID").(string)
	return uid
}

func setUser(c *fiber.Ctx, userID string) {
	c.Locals("userID", userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))
}

func authenticate(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", errMissingHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errMissingSub
	}
	return sub, nil
}
