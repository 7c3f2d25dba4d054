// services/user_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderdesk-backend/apperrors"
	"orderdesk-backend/models"
	"orderdesk-backend/repositories"
	"orderdesk-backend/utils"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// UserService keeps local users in step with identity-provider claims.
type UserService struct {
	users       repositories.UserRepositoryInterface
	createUsers bool
	logger      zerolog.Logger
}

func NewUserService(users repositories.UserRepositoryInterface, createUsers bool, logger zerolog.Logger) *UserService {
	return &UserService{users: users, createUsers: createUsers, logger: logger}
}

// ResolveUser finds the user for claims by email. Unknown users are created
// when allowed; known users get their names and last login refreshed.
func (s *UserService) ResolveUser(ctx context.Context, claims *utils.Claims) (*models.User, error) {
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return nil, fmt.Errorf("claims carry no email: %w", apperrors.ErrUnauthenticated)
	}
	now := time.Now().UTC()

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
	case apperrors.IsNotFound(err):
		if !s.createUsers {
			return nil, fmt.Errorf("no user for %s: %w", email, apperrors.ErrUnauthenticated)
		}
		return s.create(ctx, email, claims, now)
	default:
		return nil, err
	}

	if !user.IsActive {
		return nil, fmt.Errorf("user %d is inactive: %w", user.ID, apperrors.ErrUnauthenticated)
	}

	if claims.GivenName != "" {
		user.FirstName = claims.GivenName
	}
	if claims.FamilyName != "" {
		user.LastName = claims.FamilyName
	}
	if claims.Subject != "" {
		user.Subject = claims.Subject
	}
	user.LastLogin = &now
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) create(ctx context.Context, email string, claims *utils.Claims, now time.Time) (*models.User, error) {
	user := &models.User{
		Email:     email,
		Subject:   claims.Subject,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
		LastLogin: &now,
		IsActive:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Two first requests for the same user raced; use the winner's row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.users.GetByEmail(ctx, email)
		}
		return nil, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("email", email).Msg("created user from token claims")
	return user, nil
}
