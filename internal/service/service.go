// Package service holds the application use cases on top of the document and
// blob stores.
package service

import (
	"context"

	"habersin/internal/models"
	"habersin/internal/repository"
)

// requireModerator returns the moderator's profile or a FORBIDDEN error.
// Unknown users are treated like non-moderators.
func requireModerator(ctx context.Context, users repository.UserRepository, userID string) (*models.User, error) {
	if userID == "" {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewForbiddenError("Moderator access required")
		}
		return nil, err
	}
	if !u.IsModerator {
		return nil, models.NewForbiddenError("Moderator access required")
	}
	return u, nil
}

// isModerator is requireModerator as a predicate. Store errors are returned.
func isModerator(ctx context.Context, users repository.UserRepository, userID string) (bool, error) {
	_, err := requireModerator(ctx, users, userID)
	switch {
	case err == nil:
		return true, nil
	case models.IsCode(err, models.CodeForbidden), models.IsCode(err, models.CodeUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

// displayName looks up the user's name. Missing profiles yield "".
func displayName(ctx context.Context, users repository.UserRepository, userID string) (string, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return "", nil
		}
		return "", err
	}
	return u.Name(), nil
}
