// Package auth issues and checks the bearer tokens accepted by the dev server.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const issuer = "studio-devserver"

// JWTManager signs and validates HS256 tokens with a shared secret
type JWTManager struct {
	signingKey []byte
	tracer     trace.Tracer
}

// Claims carried by a studio token
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a manager for the given secret
func NewJWTManager(secret string) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTManager{
		signingKey: []byte(secret),
		tracer:     otel.Tracer("studio-auth"),
	}, nil
}

// GenerateToken issues a token for username valid for ttl
func (jm *JWTManager) GenerateToken(ctx context.Context, username string, ttl time.Duration) (string, error) {
	_, span := jm.tracer.Start(ctx, "jwt.generate_token")
	defer span.End()

	now := time.Now()
	claims := &Claims{
		UserID:   uuid.NewString(),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   username,
			ID:        uuid.NewString(),
		},
	}
	span.SetAttributes(
		attribute.String("user.username", username),
		attribute.String("jwt.id", claims.ID),
	)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jm.signingKey)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a token and checks signature, expiry and issuer
func (jm *JWTManager) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	_, span := jm.tracer.Start(ctx, "jwt.validate_token")
	defer span.End()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return jm.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid token")
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	span.SetAttributes(attribute.String("user.username", claims.Username))
	return claims, nil
}
