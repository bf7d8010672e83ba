package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emaintenance/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:       "3a1f7c2e-0000-4000-8000-000000000001",
		Email:    "tech@example.com",
		Username: "tech",
		Role:     models.RoleTechnician,
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("unit-secret")
	tok, err := Sign(secret, time.Hour, testUser())
	require.NoError(t, err)

	claims, err := Verify(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "3a1f7c2e-0000-4000-8000-000000000001", claims.UserID)
	assert.Equal(t, "tech@example.com", claims.Email)
	assert.Equal(t, "tech", claims.Username)
	assert.Equal(t, models.RoleTechnician, claims.Role)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := Sign([]byte("secret-a"), time.Hour, testUser())
	require.NoError(t, err)
	_, err = Verify([]byte("secret-b"), tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	secret := []byte("unit-secret")
	tok, err := Sign(secret, -time.Minute, testUser())
	require.NoError(t, err)
	_, err = Verify(secret, tok)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := Verify([]byte("unit-secret"), "not.a.token")
	assert.Error(t, err)
}
