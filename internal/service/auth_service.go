package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

// AuthService issues and validates partner access tokens. With an empty
// secret the service is disabled and the protected routes fall back to
// open access.
type AuthService struct {
	store     port.RegistryStore
	secret    []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

func NewAuthService(store port.RegistryStore, secret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{store: store, secret: []byte(secret), accessTTL: accessTTL, logger: logger}
}

// Enabled reports whether a signing secret is configured.
func (s *AuthService) Enabled() bool {
	return len(s.secret) > 0
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if !s.Enabled() {
		return nil, &domain.ErrConflict{Message: "authentication is disabled"}
	}
	if !req.Partner.Valid() {
		return nil, &domain.ErrValidation{Field: "partner", Message: "must be 'a' or 'b'"}
	}

	partner, err := s.store.GetPartner(ctx, req.Partner)
	if err != nil {
		return nil, err
	}
	if partner.PasswordHash == "" {
		return nil, &domain.ErrUnauthorized{Message: "no password set for this partner"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(partner.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("login failed", zap.String("partner", string(req.Partner)))
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": string(partner.ID),
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("partner logged in", zap.String("partner", string(partner.ID)))
	return &domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL.Seconds()),
	}, nil
}

// ValidateAccessToken verifies the signature and expiry and returns the
// partner the token was issued to.
func (s *AuthService) ValidateAccessToken(tokenString string) (domain.PartnerID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", &domain.ErrUnauthorized{Message: "malformed claims"}
	}
	sub, _ := claims["sub"].(string)
	partner := domain.PartnerID(sub)
	if !partner.Valid() {
		return "", &domain.ErrUnauthorized{Message: "unknown subject"}
	}
	return partner, nil
}

// HashPassword produces the bcrypt hash stored on the partner row.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", &domain.ErrValidation{Field: "password", Message: "must be at least 8 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
