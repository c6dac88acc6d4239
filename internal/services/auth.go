package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/diegobr89/immich/internal/apierr"
	"github.com/diegobr89/immich/internal/logger"
	"github.com/diegobr89/immich/internal/repos"
	"github.com/diegobr89/immich/internal/requestdata"
)

// AuthService resolves a bearer token to the caller identity. Full session
// management (issuing, refresh, revocation) is owned by the main API server;
// this service only verifies tokens minted there.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	log       *logger.Logger
	secretKey []byte
	userRepo  repos.UserRepo
}

func NewAuthService(log *logger.Logger, secretKey string, userRepo repos.UserRepo) AuthService {
	return &authService{
		log:       log.With("service", "AuthService"),
		secretKey: []byte(secretKey),
		userRepo:  userRepo,
	}
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token_claims", nil)
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, "token_missing_subject", err)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, "invalid_token_subject", fmt.Errorf("subject is not a user id: %w", err))
	}

	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, "unknown_user", err)
	}

	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		UserID: user.ID,
		Email:  user.Email,
	}), nil
}
