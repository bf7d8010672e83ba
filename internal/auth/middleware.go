package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"emaintenance/internal/models"
)

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   false,
		"error":     msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Authenticate verifies the bearer token and re-fetches the user so a
// token issued before deactivation stops working immediately.
func Authenticate(db *gorm.DB, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeErr(w, http.StatusUnauthorized, "Access token required")
				return
			}
			claims, err := Verify(secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeErr(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			var u models.User
			if err := db.First(&u, "id = ?", claims.UserID).Error; err != nil {
				writeErr(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if !u.IsActive {
				writeErr(w, http.StatusUnauthorized, "Account is disabled")
				return
			}
			// The DB row wins over token claims for role changes made
			// after issuance.
			claims.Role = u.Role
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Authorize admits only the listed roles. The check is exact membership
// on the list, not an ordinal comparison.
func Authorize(allowed ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := FromContext(r.Context())
			if claims.UserID == "" {
				writeErr(w, http.StatusUnauthorized, "Access token required")
				return
			}
			for _, role := range allowed {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeErr(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

func atLeast(min models.Role) []models.Role {
	all := []models.Role{models.RoleEmployee, models.RoleTechnician, models.RoleSupervisor, models.RoleAdmin}
	var out []models.Role
	for _, r := range all {
		if r.AtLeast(min) {
			out = append(out, r)
		}
	}
	return out
}

func RequireTechnician() func(http.Handler) http.Handler {
	return Authorize(atLeast(models.RoleTechnician)...)
}

func RequireSupervisor() func(http.Handler) http.Handler {
	return Authorize(atLeast(models.RoleSupervisor)...)
}

func RequireAdmin() func(http.Handler) http.Handler {
	return Authorize(models.RoleAdmin)
}
