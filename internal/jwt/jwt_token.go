package jwt

import (
	"errors"
	"fmt"
	"time"

	"channah-support-chat/internal/model"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

// CreateToken signs an access token for sub. validUntil is a unix
// timestamp; zero means now plus the configured lifetime.
func CreateToken(sub Subject, validUntil int64) (string, error) {
	key := secret()
	if key == "" {
		return "", fmt.Errorf("signing secret is not configured")
	}
	if !sub.Role.Valid() {
		return "", fmt.Errorf("invalid role specified")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(TokenTTL()).Unix()
	}

	claims := jwt.MapClaims{
		"id":    sub.UserID,
		"email": sub.Email,
		"role":  string(sub.Role),
		"exp":   validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(key))
}

func ParseToken(tokenString string) (Claims, error) {
	if len(tokenString) == 0 {
		return Claims{}, fmt.Errorf("%w: token string is empty", ErrInvalidToken)
	}
	key := secret()
	if key == "" {
		return Claims{}, fmt.Errorf("signing secret is not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, fmt.Errorf("%w: token is not valid", ErrInvalidToken)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: claims of unauthorized type", ErrInvalidToken)
	}

	claims := Claims{}
	claims.UserID, _ = mapClaims["id"].(string)
	claims.Email, _ = mapClaims["email"].(string)
	role, _ := mapClaims["role"].(string)
	claims.Role = model.SenderRole(role)
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = int64(exp)
	}

	if claims.UserID == "" || !claims.Role.Valid() {
		return Claims{}, fmt.Errorf("%w: token missing identifiers", ErrInvalidToken)
	}
	return claims, nil
}
