// Package user implements account registration, login, and JWT issuance
package user

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/domain/profile"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/config"
	"github.com/nuggs-ai/nuggs/internal/infrastructure/monitoring"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

// Claims are the JWT claims carried by access and refresh tokens
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is an access token plus its refresh token
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Account is the profile view returned to its owner
type Account struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	SubscriptionTier      string     `json:"subscriptionTier"`
	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`
	RemainingToday        int        `json:"remainingToday"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// Service provides account operations
type Service struct {
	profiles  outbound.ProfileRepository
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	secret    []byte
	expiry    time.Duration
	refresh   time.Duration
	freeTries int
}

// NewService creates a new user service
func NewService(
	profiles outbound.ProfileRepository,
	cfg *config.Config,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles:  profiles,
		metrics:   metrics,
		logger:    logger,
		secret:    []byte(cfg.Auth.JWTSecret),
		expiry:    cfg.Auth.JWTExpiration,
		refresh:   cfg.Auth.RefreshExpiration,
		freeTries: cfg.Limits.FreeTries,
	}
}

// Register creates a new free-tier account and returns its token pair
func (s *Service) Register(ctx context.Context, email, password string) (*Account, *TokenPair, error) {
	if existing, err := s.profiles.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, nil, apperrors.NewEmailAlreadyExistsError(email)
	}

	p, err := profile.NewProfile(email, password)
	if err != nil {
		return nil, nil, apperrors.NewValidationError(err.Error())
	}

	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, nil, apperrors.NewDatabaseError("create profile", err)
	}

	s.metrics.ProfileCreated()
	s.logger.Info("profile registered", zap.String("user_id", p.ID().String()))

	tokens, err := s.issueTokens(p)
	if err != nil {
		return nil, nil, err
	}
	return s.account(p), tokens, nil
}

// Login verifies credentials and returns a fresh token pair
func (s *Service) Login(ctx context.Context, email, password string) (*Account, *TokenPair, error) {
	p, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperrors.NewInvalidCredentialsError()
	}

	if err := p.CheckPassword(password); err != nil {
		return nil, nil, apperrors.NewInvalidCredentialsError()
	}

	tokens, err := s.issueTokens(p)
	if err != nil {
		return nil, nil, err
	}
	return s.account(p), tokens, nil
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, apperrors.NewUnauthorizedError("Invalid token type")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("Invalid token")
	}

	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("Account no longer exists")
	}

	return s.issueTokens(p)
}

// Me returns the caller's account view
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Account, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.account(p), nil
}

// ValidateToken parses and verifies a JWT and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.NewUnauthorizedError("Unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, apperrors.NewUnauthorizedError("Invalid token claims")
	}
	return claims, nil
}

func (s *Service) issueTokens(p *profile.Profile) (*TokenPair, error) {
	access, err := s.signToken(p, "access", s.expiry)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to sign access token")
	}

	refresh, err := s.signToken(p, "refresh", s.refresh)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to sign refresh token")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.expiry.Seconds()),
	}, nil
}

func (s *Service) signToken(p *profile.Profile, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    p.ID().String(),
		Email:     p.Email(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "nuggs",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) account(p *profile.Profile) *Account {
	now := time.Now()
	remaining := p.RemainingUses(now, s.freeTries)
	if p.HasActivePremium(now) {
		remaining = -1
	}

	return &Account{
		ID:                    p.ID(),
		Email:                 p.Email(),
		SubscriptionTier:      string(p.SubscriptionTier()),
		SubscriptionExpiresAt: p.SubscriptionExpiresAt(),
		RemainingToday:        remaining,
		CreatedAt:             p.CreatedAt(),
	}
}
