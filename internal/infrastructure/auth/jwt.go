// Package auth validates the bearer tokens that carry a caller's restaurant
// context. Tokens are issued elsewhere; this service only verifies them.
package auth

import (
	"errors"
	"strings"

	"github.com/deliverysync/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
)

// Common errors
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenNotYetValid    = errors.New("token is not yet valid")
	ErrMissingRestaurantID = errors.New("missing restaurant_id in claims")
)

// Claims represents the custom JWT claims of a platform access token
type Claims struct {
	jwt.RegisteredClaims
	RestaurantID string   `json:"restaurant_id"`
	UserID       string   `json:"user_id,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// TokenValidator verifies HS256 access tokens
type TokenValidator struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewTokenValidator creates a validator from configuration. An empty issuer
// skips the issuer check.
func NewTokenValidator(cfg config.JWTConfig) *TokenValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &TokenValidator{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		parser: jwt.NewParser(opts...),
	}
}

// Validate parses tokenString and returns its claims. Every token must carry
// a restaurant_id.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		default:
			return nil, ErrInvalidToken
		}
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims.RestaurantID = strings.TrimSpace(claims.RestaurantID)
	if claims.RestaurantID == "" {
		return nil, ErrMissingRestaurantID
	}
	return claims, nil
}
