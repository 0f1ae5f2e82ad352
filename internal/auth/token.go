// Package auth implements the principal-verification collaborator:
// opaque token in, user id or invalid out. Token issuance is a plain
// HS256 JWT; nothing downstream inspects more than the subject.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vkondrav/pigeon/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

const tokenTTL = 30 * 24 * time.Hour

// GenerateToken issues a session token for uid.
func GenerateToken(uid domain.UserID, secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub": string(uid),
		"iat": time.Now().UTC().Unix(),
		"exp": time.Now().UTC().Add(tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyToken validates the token and returns the principal it names.
func VerifyToken(tokenString, secret string) (domain.UserID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}
	return domain.UserID(sub), nil
}
