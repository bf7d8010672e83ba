package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"emaintenance/internal/models"
)

// Sign issues an HS256 token embedding the identity fields the front
// end and the middleware both read.
func Sign(secret []byte, ttl time.Duration, u *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"email":    u.Email,
		"username": u.Username,
		"role":     string(u.Role),
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func Verify(secret []byte, tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, _ := mapc["sub"].(string)
	email, _ := mapc["email"].(string)
	username, _ := mapc["username"].(string)
	role, _ := mapc["role"].(string)
	if sub == "" || !models.Role(role).Valid() {
		return Claims{}, errors.New("invalid claims")
	}
	return Claims{UserID: sub, Email: email, Username: username, Role: models.Role(role)}, nil
}
