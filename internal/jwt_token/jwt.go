package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "whozin/pkg/domain-errors"
)

// Claims represents the JWT claims of a whozin session token.
// Sessions are issued by the hosted identity provider; this service verifies them.
type Claims struct {
	UserID             string `json:"user_id"`
	DisplayName        string `json:"display_name,omitempty"`
	OnboardingComplete bool   `json:"onboarding_complete"`
	jwt.RegisteredClaims
}

// ProfileComplete reports whether the user finished setup.
func (c *Claims) ProfileComplete() bool {
	return c.DisplayName != "" && c.OnboardingComplete
}

// JWTService handles session token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	leeway     time.Duration
}

// Option configures a JWTService.
type Option func(*JWTService)

// WithLeeway tolerates clock skew between this service and the token issuer.
func WithLeeway(d time.Duration) Option {
	return func(s *JWTService) {
		s.leeway = d
	}
}

func NewJWTService(signingKey string, issuer string, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateSessionToken signs a session token. Used by tests and local tooling.
func (s *JWTService) GenerateSessionToken(
	userID string,
	displayName string,
	onboardingComplete bool,
	expiresIn time.Duration) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:             userID,
		DisplayName:        displayName,
		OnboardingComplete: onboardingComplete,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}
