package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SecretKey is replaced from configuration at startup.
var SecretKey = []byte("super-secret-key-change-me-in-production")

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID int `json:"uid"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for the given user.
func IssueToken(userID int) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(SecretKey)
}

// VerifyToken validates a presented credential and returns the user id it was
// issued for.
func VerifyToken(tokenString string) (int, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return SecretKey, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
