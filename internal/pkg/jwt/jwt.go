package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	appErr "github.com/xxxsen/scholarai/internal/pkg/errors"
)

type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"name,omitempty"`
	jwtlib.RegisteredClaims
}

func GenerateToken(userID, displayName string, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token missing user_id")
	}
	return claims, nil
}

// Provider resolves bearer tokens into user identities.
type Provider struct {
	secret []byte
}

func NewProvider(secret []byte) *Provider {
	return &Provider{secret: secret}
}

func (p *Provider) Resolve(token string) (*Claims, error) {
	claims, err := ParseToken(token, p.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrUnauthorized, err)
	}
	return claims, nil
}
