package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"emaintenance/internal/apperr"
	"emaintenance/internal/auth"
	"emaintenance/internal/models"
	"emaintenance/internal/validate"
	"emaintenance/internal/workorder"
)

func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parsePage(r)
		q := db.Model(&models.User{})
		if s := r.URL.Query().Get("search"); s != "" {
			like := "%" + s + "%"
			q = q.Where("email LIKE ? OR username LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
		}
		if role := r.URL.Query().Get("role"); role != "" {
			if !models.Role(role).Valid() {
				respondError(w, lg, apperr.Validationf("Validation failed: role must be one of EMPLOYEE, TECHNICIAN, SUPERVISOR, ADMIN"))
				return
			}
			q = q.Where("role = ?", role)
		}
		if s := r.URL.Query().Get("isActive"); s != "" {
			active, err := strconv.ParseBool(s)
			if err != nil {
				respondError(w, lg, apperr.Validationf("Validation failed: isActive must be a boolean"))
				return
			}
			q = q.Where("is_active = ?", active)
		}
		var total int64
		q.Count(&total)
		var users []models.User
		if err := q.Order("created_at desc").Limit(p.Limit).Offset(p.Offset()).Find(&users).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"users":      users,
			"pagination": paginate(p, total),
		})
	}
}

func CreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
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
		lg.Infow("user created", "user_id", u.ID, "role", u.Role)
		respondJSON(w, http.StatusCreated, &u)
	}
}

func GetUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("User not found"))
			return
		}
		respondJSON(w, http.StatusOK, &u)
	}
}

type userUpdateReq struct {
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Username   *string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Password   *string `json:"password,omitempty" validate:"omitempty,min=8"`
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
	EmployeeID *string `json:"employeeId,omitempty"`
}

// UpdateUser re-validates uniqueness only for the fields that actually
// changed.
func UpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userUpdateReq
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("User not found"))
			return
		}
		if req.Email != nil {
			email := strings.TrimSpace(strings.ToLower(*req.Email))
			if email != u.Email {
				var count int64
				db.Model(&models.User{}).Where("email = ? AND id <> ?", email, u.ID).Count(&count)
				if count > 0 {
					respondError(w, lg, apperr.WithCode(apperr.Conflict, "Email already exists", "EMAIL_EXISTS"))
					return
				}
				u.Email = email
			}
		}
		if req.Username != nil {
			username := strings.TrimSpace(*req.Username)
			if username != u.Username {
				var count int64
				db.Model(&models.User{}).Where("username = ? AND id <> ?", username, u.ID).Count(&count)
				if count > 0 {
					respondError(w, lg, apperr.WithCode(apperr.Conflict, "Username already exists", "USERNAME_EXISTS"))
					return
				}
				u.Username = username
			}
		}
		if req.EmployeeID != nil && *req.EmployeeID != "" {
			if u.EmployeeID == nil || *u.EmployeeID != *req.EmployeeID {
				var count int64
				db.Model(&models.User{}).Where("employee_id = ? AND id <> ?", *req.EmployeeID, u.ID).Count(&count)
				if count > 0 {
					respondError(w, lg, apperr.WithCode(apperr.Conflict, "Employee ID already exists", "EMPLOYEE_ID_EXISTS"))
					return
				}
				u.EmployeeID = req.EmployeeID
			}
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, lg, err)
				return
			}
			u.PasswordHash = hash
		}
		if req.FirstName != nil {
			u.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			u.LastName = *req.LastName
		}
		if err := db.Save(&u).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, &u)
	}
}

func PatchUserRole(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role string `json:"role" validate:"required,oneof=EMPLOYEE TECHNICIAN SUPERVISOR ADMIN"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("User not found"))
			return
		}
		u.Role = models.Role(req.Role)
		if err := db.Save(&u).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		lg.Infow("user role changed", "user_id", u.ID, "role", u.Role)
		respondJSON(w, http.StatusOK, &u)
	}
}

func PatchUserStatus(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IsActive *bool `json:"isActive" validate:"required"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("User not found"))
			return
		}
		u.IsActive = *req.IsActive
		if err := db.Save(&u).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, &u)
	}
}

// hasActiveWorkOrders reports whether the user created or is assigned
// to any work order that is neither completed nor cancelled.
func hasActiveWorkOrders(db *gorm.DB, userID string) bool {
	var count int64
	db.Model(&models.WorkOrder{}).
		Where("(created_by_id = ? OR assigned_to_id = ?) AND status IN ?", userID, userID, workorder.ActiveStatuses()).
		Count(&count)
	return count > 0
}

// DeleteUser deactivates; it refuses when active work orders reference
// the user.
func DeleteUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("User not found"))
			return
		}
		if hasActiveWorkOrders(db, u.ID) {
			respondError(w, lg, apperr.Conflictf("Cannot delete user with active work orders"))
			return
		}
		u.IsActive = false
		if err := db.Save(&u).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		lg.Infow("user deactivated", "user_id", u.ID)
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

func SearchUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := strings.TrimSpace(r.URL.Query().Get("q"))
		if qs == "" {
			respondError(w, lg, apperr.Validationf("Validation failed: q is required"))
			return
		}
		like := "%" + qs + "%"
		var users []models.User
		err := db.Where("email LIKE ? OR username LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like).
			Order("username").Limit(50).Find(&users).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

func UsersByRole(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := models.Role(chi.URLParam(r, "role"))
		if !role.Valid() {
			respondError(w, lg, apperr.Validationf("Validation failed: role must be one of EMPLOYEE, TECHNICIAN, SUPERVISOR, ADMIN"))
			return
		}
		var users []models.User
		err := db.Where("role = ? AND is_active = ?", role, true).Order("username").Find(&users).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

// BulkUserOperation mirrors the asset bulk shape; delete applies the
// active-work-order guard per id.
func BulkUserOperation(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserIDs   []string `json:"userIds" validate:"required,min=1"`
			Operation string   `json:"operation" validate:"required,oneof=activate deactivate delete"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		res := bulkOpResult{Errors: []string{}}
		for _, id := range req.UserIDs {
			var u models.User
			if err := db.First(&u, "id = ?", id).Error; err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: user not found", id))
				continue
			}
			switch req.Operation {
			case "activate":
				u.IsActive = true
			case "deactivate":
				u.IsActive = false
			case "delete":
				if hasActiveWorkOrders(db, u.ID) {
					res.Failed++
					res.Errors = append(res.Errors, fmt.Sprintf("%s: user has active work orders", id))
					continue
				}
				u.IsActive = false
			}
			if err := db.Save(&u).Error; err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", id, err))
				continue
			}
			res.Success++
		}
		lg.Infow("bulk user operation", "operation", req.Operation, "success", res.Success, "failed", res.Failed)
		respondJSON(w, http.StatusOK, res)
	}
}
