package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"emaintenance/internal/apperr"
	"emaintenance/internal/models"
	"emaintenance/internal/validate"
)

type assetPayload struct {
	AssetCode       string     `json:"assetCode" validate:"required"`
	Name            string     `json:"name" validate:"required"`
	Description     *string    `json:"description,omitempty"`
	Model           *string    `json:"model,omitempty"`
	Manufacturer    *string    `json:"manufacturer,omitempty"`
	SerialNumber    *string    `json:"serialNumber,omitempty"`
	Location        string     `json:"location" validate:"required"`
	InstallDate     *time.Time `json:"installDate,omitempty"`
	OwnerID         *string    `json:"ownerId,omitempty" validate:"omitempty,uuid"`
	AdministratorID *string    `json:"administratorId,omitempty" validate:"omitempty,uuid"`
}

func (p assetPayload) toModel() models.Asset {
	return models.Asset{
		AssetCode:       strings.TrimSpace(p.AssetCode),
		Name:            p.Name,
		Description:     p.Description,
		Model:           p.Model,
		Manufacturer:    p.Manufacturer,
		SerialNumber:    p.SerialNumber,
		Location:        p.Location,
		InstallDate:     p.InstallDate,
		OwnerID:         p.OwnerID,
		AdministratorID: p.AdministratorID,
		IsActive:        true,
	}
}

func assetCodeTaken(db *gorm.DB, code, excludeID string) bool {
	var count int64
	q := db.Model(&models.Asset{}).Where("asset_code = ?", code)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	q.Count(&count)
	return count > 0
}

func ListAssets(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := parsePage(r)
		q := db.Model(&models.Asset{})
		if s := r.URL.Query().Get("search"); s != "" {
			like := "%" + s + "%"
			q = q.Where("asset_code LIKE ? OR name LIKE ?", like, like)
		}
		if loc := r.URL.Query().Get("location"); loc != "" {
			q = q.Where("location = ?", loc)
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
		var assets []models.Asset
		if err := q.Order("created_at desc").Limit(p.Limit).Offset(p.Offset()).Find(&assets).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"assets":     assets,
			"pagination": paginate(p, total),
		})
	}
}

func CreateAsset(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assetPayload
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		a := req.toModel()
		if assetCodeTaken(db, a.AssetCode, "") {
			respondError(w, lg, apperr.WithCode(apperr.Conflict, "Asset code already exists", "ASSET_CODE_EXISTS"))
			return
		}
		if err := db.Create(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				respondError(w, lg, apperr.WithCode(apperr.Conflict, "Asset code already exists", "ASSET_CODE_EXISTS"))
				return
			}
			respondError(w, lg, err)
			return
		}
		lg.Infow("asset created", "asset_id", a.ID, "asset_code", a.AssetCode)
		respondJSON(w, http.StatusCreated, &a)
	}
}

func GetAsset(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a models.Asset
		err := db.Preload("Owner").Preload("Administrator").First(&a, "id = ?", chi.URLParam(r, "id")).Error
		if err != nil {
			respondError(w, lg, apperr.NotFoundf("Asset not found"))
			return
		}
		respondJSON(w, http.StatusOK, &a)
	}
}

// GetAssetByCode backs the mobile QR-scan flow; any authenticated role
// may call it.
func GetAssetByCode(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a models.Asset
		if err := db.First(&a, "asset_code = ?", chi.URLParam(r, "code")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Asset not found"))
			return
		}
		respondJSON(w, http.StatusOK, &a)
	}
}

type assetUpdateReq struct {
	AssetCode       *string    `json:"assetCode,omitempty"`
	Name            *string    `json:"name,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Model           *string    `json:"model,omitempty"`
	Manufacturer    *string    `json:"manufacturer,omitempty"`
	SerialNumber    *string    `json:"serialNumber,omitempty"`
	Location        *string    `json:"location,omitempty"`
	InstallDate     *time.Time `json:"installDate,omitempty"`
	OwnerID         *string    `json:"ownerId,omitempty"`
	AdministratorID *string    `json:"administratorId,omitempty"`
}

func UpdateAsset(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req assetUpdateReq
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var a models.Asset
		if err := db.First(&a, "id = ?", id).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Asset not found"))
			return
		}
		if req.AssetCode != nil && *req.AssetCode != a.AssetCode {
			code := strings.TrimSpace(*req.AssetCode)
			if code == "" {
				respondError(w, lg, apperr.Validationf("Validation failed: assetCode must not be empty"))
				return
			}
			if assetCodeTaken(db, code, a.ID) {
				respondError(w, lg, apperr.WithCode(apperr.Conflict, "Asset code already exists", "ASSET_CODE_EXISTS"))
				return
			}
			a.AssetCode = code
		}
		if req.Name != nil {
			a.Name = *req.Name
		}
		if req.Description != nil {
			a.Description = req.Description
		}
		if req.Model != nil {
			a.Model = req.Model
		}
		if req.Manufacturer != nil {
			a.Manufacturer = req.Manufacturer
		}
		if req.SerialNumber != nil {
			a.SerialNumber = req.SerialNumber
		}
		if req.Location != nil {
			a.Location = *req.Location
		}
		if req.InstallDate != nil {
			a.InstallDate = req.InstallDate
		}
		if req.OwnerID != nil {
			a.OwnerID = req.OwnerID
		}
		if req.AdministratorID != nil {
			a.AdministratorID = req.AdministratorID
		}
		if err := db.Save(&a).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, &a)
	}
}

func PatchAssetStatus(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IsActive *bool `json:"isActive" validate:"required"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var a models.Asset
		if err := db.First(&a, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Asset not found"))
			return
		}
		a.IsActive = *req.IsActive
		if err := db.Save(&a).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, &a)
	}
}

func PatchAssetOwnership(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OwnerID         *string `json:"ownerId,omitempty" validate:"omitempty,uuid"`
			AdministratorID *string `json:"administratorId,omitempty" validate:"omitempty,uuid"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var a models.Asset
		if err := db.First(&a, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Asset not found"))
			return
		}
		if req.OwnerID != nil {
			a.OwnerID = req.OwnerID
		}
		if req.AdministratorID != nil {
			a.AdministratorID = req.AdministratorID
		}
		if err := db.Save(&a).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, &a)
	}
}

// DeleteAsset is a soft delete; the row stays retrievable by id.
func DeleteAsset(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a models.Asset
		if err := db.First(&a, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Asset not found"))
			return
		}
		a.IsActive = false
		if err := db.Save(&a).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		lg.Infow("asset deactivated", "asset_id", a.ID)
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

func SearchAssets(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := strings.TrimSpace(r.URL.Query().Get("q"))
		if qs == "" {
			respondError(w, lg, apperr.Validationf("Validation failed: q is required"))
			return
		}
		like := "%" + qs + "%"
		var assets []models.Asset
		err := db.Where("asset_code LIKE ? OR name LIKE ? OR location LIKE ?", like, like, like).
			Order("asset_code").Limit(50).Find(&assets).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"assets": assets})
	}
}

// SuggestAssets returns autocomplete candidates, prefix matches ranked
// before substring matches.
func SuggestAssets(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := strings.TrimSpace(r.URL.Query().Get("q"))
		if qs == "" {
			respondJSON(w, http.StatusOK, map[string]any{"suggestions": []models.Asset{}})
			return
		}
		limit := 10
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 50 {
				limit = n
			}
		}
		var prefix, rest []models.Asset
		if err := db.Where("asset_code LIKE ?", qs+"%").Order("asset_code").Limit(limit).Find(&prefix).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		if len(prefix) < limit {
			err := db.Where("(asset_code LIKE ? OR name LIKE ?) AND asset_code NOT LIKE ?",
				"%"+qs+"%", "%"+qs+"%", qs+"%").
				Order("asset_code").Limit(limit - len(prefix)).Find(&rest).Error
			if err != nil {
				respondError(w, lg, err)
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]any{"suggestions": append(prefix, rest...)})
	}
}

// ValidateAssetCode answers existence probes from QR and form flows.
// An optional excludeId skips the asset being edited.
func ValidateAssetCode(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(r.URL.Query().Get("code"))
		if code == "" {
			respondError(w, lg, apperr.Validationf("Validation failed: code is required"))
			return
		}
		q := db.Model(&models.Asset{}).Where("asset_code = ?", code)
		if ex := r.URL.Query().Get("excludeId"); ex != "" {
			q = q.Where("id <> ?", ex)
		}
		var a models.Asset
		if err := q.First(&a).Error; err != nil {
			respondJSON(w, http.StatusOK, map[string]any{"exists": false})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"exists": true, "asset": &a})
	}
}

func AssetStats(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var total, active int64
		db.Model(&models.Asset{}).Count(&total)
		db.Model(&models.Asset{}).Where("is_active = ?", true).Count(&active)
		type locRow struct {
			Location string `json:"location"`
			Count    int64  `json:"count"`
		}
		var byLocation []locRow
		err := db.Model(&models.Asset{}).Select("location, count(*) as count").
			Group("location").Order("count desc").Scan(&byLocation).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"total":      total,
			"active":     active,
			"inactive":   total - active,
			"byLocation": byLocation,
		})
	}
}

func AssetLocations(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var locations []string
		if err := db.Model(&models.Asset{}).Distinct("location").Order("location").Pluck("location", &locations).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"locations": locations})
	}
}

func AssetsByLocation(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var assets []models.Asset
		err := db.Where("location = ?", chi.URLParam(r, "location")).Order("asset_code").Find(&assets).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"assets": assets})
	}
}

type bulkCreateError struct {
	Index     int    `json:"index"`
	AssetCode string `json:"assetCode"`
	Error     string `json:"error"`
}

// BulkCreateAssets commits every valid payload inside one transaction
// and reports per-row failures separately. 201 when everything landed,
// 207 on a mixed outcome.
func BulkCreateAssets(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Assets []assetPayload `json:"assets" validate:"required,min=1,max=500"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		created := make([]models.Asset, 0, len(req.Assets))
		errs := make([]bulkCreateError, 0)
		seen := make(map[string]bool)

		txErr := db.Transaction(func(tx *gorm.DB) error {
			for i, p := range req.Assets {
				code := strings.TrimSpace(p.AssetCode)
				switch {
				case code == "" || p.Name == "" || p.Location == "":
					errs = append(errs, bulkCreateError{Index: i, AssetCode: code, Error: "assetCode, name and location are required"})
					continue
				case seen[code]:
					errs = append(errs, bulkCreateError{Index: i, AssetCode: code, Error: "Duplicate asset code within request"})
					continue
				case assetCodeTaken(tx, code, ""):
					errs = append(errs, bulkCreateError{Index: i, AssetCode: code, Error: "Asset code already exists"})
					continue
				}
				a := p.toModel()
				if err := tx.Create(&a).Error; err != nil {
					errs = append(errs, bulkCreateError{Index: i, AssetCode: code, Error: err.Error()})
					continue
				}
				seen[code] = true
				created = append(created, a)
			}
			return nil
		})
		if txErr != nil {
			respondError(w, lg, txErr)
			return
		}
		status := http.StatusCreated
		if len(errs) > 0 {
			status = http.StatusMultiStatus
		}
		lg.Infow("bulk asset create", "requested", len(req.Assets), "created", len(created), "failed", len(errs))
		respondJSON(w, status, map[string]any{
			"created": created,
			"errors":  errs,
			"summary": map[string]int{
				"total":               len(req.Assets),
				"successfullyCreated": len(created),
				"failed":              len(errs),
			},
		})
	}
}

type bulkOpResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// BulkAssetOperation applies one operation per id independently; one
// failure never aborts the rest.
func BulkAssetOperation(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssetIDs  []string `json:"assetIds" validate:"required,min=1"`
			Operation string   `json:"operation" validate:"required,oneof=activate deactivate delete"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		res := bulkOpResult{Errors: []string{}}
		for _, id := range req.AssetIDs {
			var a models.Asset
			if err := db.First(&a, "id = ?", id).Error; err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: asset not found", id))
				continue
			}
			switch req.Operation {
			case "activate":
				a.IsActive = true
			case "deactivate", "delete":
				a.IsActive = false
			}
			if err := db.Save(&a).Error; err != nil {
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", id, err))
				continue
			}
			res.Success++
		}
		lg.Infow("bulk asset operation", "operation", req.Operation, "success", res.Success, "failed", res.Failed)
		respondJSON(w, http.StatusOK, res)
	}
}
