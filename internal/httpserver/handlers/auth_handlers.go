package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"emaintenance/internal/apperr"
	"emaintenance/internal/auth"
	"emaintenance/internal/models"
	"emaintenance/internal/validate"
)

type registerReq struct {
	Email      string  `json:"email" validate:"required,email"`
	Username   string  `json:"username" validate:"required,min=3,max=50"`
	Password   string  `json:"password" validate:"required,min=8"`
	FirstName  string  `json:"firstName" validate:"required"`
	LastName   string  `json:"lastName" validate:"required"`
	EmployeeID *string `json:"employeeId,omitempty" validate:"omitempty,min=1"`
	Role       *string `json:"role,omitempty" validate:"omitempty,oneof=EMPLOYEE TECHNICIAN SUPERVISOR ADMIN"`
}

// checkUserUniqueness runs the three independent existence probes so
// each duplicate field gets its own message and code. The DB unique
// indexes remain the backstop for concurrent submissions.
func checkUserUniqueness(db *gorm.DB, email, username string, employeeID *string, excludeID string) error {
	var count int64
	q := db.Model(&models.User{}).Where("email = ?", email)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if q.Count(&count); count > 0 {
		return apperr.WithCode(apperr.Conflict, "Email already exists", "EMAIL_EXISTS")
	}
	q = db.Model(&models.User{}).Where("username = ?", username)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if q.Count(&count); count > 0 {
		return apperr.WithCode(apperr.Conflict, "Username already exists", "USERNAME_EXISTS")
	}
	if employeeID != nil && *employeeID != "" {
		q = db.Model(&models.User{}).Where("employee_id = ?", *employeeID)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}
		if q.Count(&count); count > 0 {
			return apperr.WithCode(apperr.Conflict, "Employee ID already exists", "EMPLOYEE_ID_EXISTS")
		}
	}
	return nil
}

type authResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expiresIn"`
}

func Register(db *gorm.DB, lg *zap.SugaredLogger, secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		req.Username = strings.TrimSpace(req.Username)
		if err := checkUserUniqueness(db, req.Email, req.Username, req.EmployeeID, ""); err != nil {
			respondError(w, lg, err)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		role := models.RoleEmployee
		if req.Role != nil {
			role = models.Role(*req.Role)
		}
		u := models.User{
			Email:        req.Email,
			Username:     req.Username,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			EmployeeID:   req.EmployeeID,
			Role:         role,
			IsActive:     true,
		}
		if err := db.Create(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				respondError(w, lg, apperr.Conflictf("Email, username or employee ID already exists"))
				return
			}
			respondError(w, lg, err)
			return
		}
		tok, err := auth.Sign(secret, ttl, &u)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		lg.Infow("user registered", "user_id", u.ID, "role", u.Role)
		respondJSON(w, http.StatusCreated, authResult{User: &u, Token: tok, ExpiresIn: int64(ttl.Seconds())})
	}
}

type loginReq struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

func Login(db *gorm.DB, lg *zap.SugaredLogger, secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		// One query matches either email or username. The error message
		// is uniform regardless of which check failed.
		ident := strings.TrimSpace(req.Identifier)
		var u models.User
		err := db.First(&u, "email = ? OR username = ?", strings.ToLower(ident), ident).Error
		if err != nil {
			respondError(w, lg, apperr.Unauthorizedf("Invalid credentials"))
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			respondError(w, lg, apperr.Unauthorizedf("Invalid credentials"))
			return
		}
		if !u.IsActive {
			respondError(w, lg, apperr.Unauthorizedf("Account is disabled"))
			return
		}
		tok, err := auth.Sign(secret, ttl, &u)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		lg.Infow("user logged in", "user_id", u.ID)
		respondJSON(w, http.StatusOK, authResult{User: &u, Token: tok, ExpiresIn: int64(ttl.Seconds())})
	}
}

func Profile(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, "id = ?", auth.UserID(r.Context())).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("User not found"))
			return
		}
		respondJSON(w, http.StatusOK, &u)
	}
}
