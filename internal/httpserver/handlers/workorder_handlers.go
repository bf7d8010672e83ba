package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"emaintenance/internal/apperr"
	"emaintenance/internal/auth"
	"emaintenance/internal/metrics"
	"emaintenance/internal/models"
	"emaintenance/internal/notify"
	"emaintenance/internal/validate"
	"emaintenance/internal/workorder"
)

type createWorkOrderReq struct {
	Title       string            `json:"title" validate:"required"`
	Description *string           `json:"description,omitempty"`
	Category    string            `json:"category" validate:"required"`
	Reason      string            `json:"reason" validate:"required"`
	Location    string            `json:"location" validate:"required"`
	Priority    *string           `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	AssetID     string            `json:"assetId" validate:"required,uuid"`
	Attachments models.StringList `json:"attachments,omitempty" validate:"omitempty,max=5,dive,url"`
}

func CreateWorkOrder(db *gorm.DB, lg *zap.SugaredLogger, hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createWorkOrderReq
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var asset models.Asset
		if err := db.First(&asset, "id = ?", req.AssetID).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Asset not found"))
			return
		}
		if !asset.IsActive {
			respondError(w, lg, apperr.Validationf("Validation failed: asset is not active"))
			return
		}
		priority := models.PriorityMedium
		if req.Priority != nil {
			priority = models.Priority(*req.Priority)
		}
		callerID := auth.UserID(r.Context())
		wo := models.WorkOrder{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Reason:      req.Reason,
			Location:    req.Location,
			Priority:    priority,
			Status:      models.StatusPending,
			ReportedAt:  time.Now().UTC(),
			Attachments: req.Attachments,
			AssetID:     asset.ID,
			CreatedByID: callerID,
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&wo).Error; err != nil {
				return err
			}
			h := models.WorkOrderStatusHistory{
				WorkOrderID: wo.ID,
				ToStatus:    models.StatusPending,
				ChangedByID: callerID,
			}
			return tx.Create(&h).Error
		})
		if err != nil {
			respondError(w, lg, err)
			return
		}
		hub.Broadcast(notify.Event{Type: notify.EventWorkOrderCreated, WorkOrderID: wo.ID, Data: &wo, UserID: callerID})
		lg.Infow("work order created", "work_order_id", wo.ID, "asset_id", wo.AssetID, "priority", wo.Priority)
		respondJSON(w, http.StatusCreated, &wo)
	}
}

// applyWorkOrderFilters shares the query grammar between the listing
// and export endpoints. The synthetic NOT_COMPLETED / ACTIVE status
// expands to every non-terminal status.
func applyWorkOrderFilters(q *gorm.DB, r *http.Request) (*gorm.DB, error) {
	if s := r.URL.Query().Get("status"); s != "" {
		if workorder.IsSyntheticActive(s) {
			q = q.Where("status IN ?", workorder.ActiveStatuses())
		} else if models.Status(s).Valid() {
			q = q.Where("status = ?", s)
		} else {
			return nil, apperr.Validationf("Validation failed: status is invalid")
		}
	}
	if s := r.URL.Query().Get("priority"); s != "" {
		if !models.Priority(s).Valid() {
			return nil, apperr.Validationf("Validation failed: priority must be one of LOW, MEDIUM, HIGH, URGENT")
		}
		q = q.Where("priority = ?", s)
	}
	if s := r.URL.Query().Get("assetId"); s != "" {
		q = q.Where("asset_id = ?", s)
	}
	if s := r.URL.Query().Get("assignedToId"); s != "" {
		q = q.Where("assigned_to_id = ?", s)
	}
	if s := r.URL.Query().Get("createdById"); s != "" {
		q = q.Where("created_by_id = ?", s)
	}
	return q, nil
}

func listWorkOrders(db *gorm.DB, lg *zap.SugaredLogger, w http.ResponseWriter, r *http.Request, base *gorm.DB) {
	p := parsePage(r)
	q, err := applyWorkOrderFilters(base, r)
	if err != nil {
		respondError(w, lg, err)
		return
	}
	var total int64
	q.Count(&total)
	var orders []models.WorkOrder
	err = q.Preload("Asset").Preload("CreatedBy").Preload("AssignedTo").
		Order("reported_at desc").Limit(p.Limit).Offset(p.Offset()).Find(&orders).Error
	if err != nil {
		respondError(w, lg, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"workOrders": orders,
		"pagination": paginate(p, total),
	})
}

func ListAllWorkOrders(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listWorkOrders(db, lg, w, r, db.Model(&models.WorkOrder{}))
	}
}

// ListAssignedWorkOrders defaults to the open-work view when no status
// filter is given, matching the technician's board.
func ListAssignedWorkOrders(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := db.Model(&models.WorkOrder{}).Where("assigned_to_id = ?", auth.UserID(r.Context()))
		if r.URL.Query().Get("status") == "" {
			base = base.Where("status IN ?", workorder.ActiveStatuses())
		}
		listWorkOrders(db, lg, w, r, base)
	}
}

func ListMyWorkOrders(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := db.Model(&models.WorkOrder{}).Where("created_by_id = ?", auth.UserID(r.Context()))
		listWorkOrders(db, lg, w, r, base)
	}
}

// canViewWorkOrder limits detail access to the creator, the assignee
// and supervisor-level roles.
func canViewWorkOrder(claims auth.Claims, wo *models.WorkOrder) bool {
	if claims.Role.AtLeast(models.RoleSupervisor) {
		return true
	}
	if wo.CreatedByID == claims.UserID {
		return true
	}
	return wo.AssignedToID != nil && *wo.AssignedToID == claims.UserID
}

func GetWorkOrder(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var wo models.WorkOrder
		err := db.Preload("Asset").Preload("CreatedBy").Preload("AssignedTo").
			First(&wo, "id = ?", chi.URLParam(r, "id")).Error
		if err != nil {
			respondError(w, lg, apperr.NotFoundf("Work order not found"))
			return
		}
		if !canViewWorkOrder(auth.FromContext(r.Context()), &wo) {
			respondError(w, lg, apperr.Forbiddenf("Insufficient permissions"))
			return
		}
		respondJSON(w, http.StatusOK, &wo)
	}
}

func WorkOrderHistory(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var wo models.WorkOrder
		if err := db.First(&wo, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Work order not found"))
			return
		}
		if !canViewWorkOrder(auth.FromContext(r.Context()), &wo) {
			respondError(w, lg, apperr.Forbiddenf("Insufficient permissions"))
			return
		}
		var history []models.WorkOrderStatusHistory
		err := db.Preload("ChangedBy").Where("work_order_id = ?", wo.ID).
			Order("created_at asc").Find(&history).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"history": history})
	}
}

// canActOnWorkOrder gates mutations: the assignee, or supervisor-level
// roles.
func canActOnWorkOrder(claims auth.Claims, wo *models.WorkOrder) bool {
	if claims.Role.AtLeast(models.RoleSupervisor) {
		return true
	}
	return wo.AssignedToID != nil && *wo.AssignedToID == claims.UserID
}

// UpdateWorkOrderStatus enforces the transition table server-side.
// COMPLETED is rejected here outright; only the completion endpoint
// reaches it.
func UpdateWorkOrderStatus(db *gorm.DB, lg *zap.SugaredLogger, hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Status string  `json:"status" validate:"required"`
			Notes  *string `json:"notes,omitempty"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		target := models.Status(req.Status)
		if !target.Valid() {
			respondError(w, lg, apperr.Validationf("Validation failed: status is invalid"))
			return
		}
		if target == models.StatusCompleted {
			respondError(w, lg, apperr.Validationf("Validation failed: use the completion endpoint to complete a work order"))
			return
		}
		var wo models.WorkOrder
		if err := db.First(&wo, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Work order not found"))
			return
		}
		claims := auth.FromContext(r.Context())
		if !canActOnWorkOrder(claims, &wo) {
			respondError(w, lg, apperr.Forbiddenf("Insufficient permissions"))
			return
		}
		if !workorder.CanTransition(wo.Status, target) {
			respondError(w, lg, apperr.Validationf(fmt.Sprintf(
				"Validation failed: cannot transition from %s to %s", wo.Status, target)))
			return
		}
		from := wo.Status
		wo.Status = target
		if target == models.StatusInProgress && wo.StartedAt == nil {
			now := time.Now().UTC()
			wo.StartedAt = &now
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&wo).Error; err != nil {
				return err
			}
			h := models.WorkOrderStatusHistory{
				WorkOrderID: wo.ID,
				FromStatus:  &from,
				ToStatus:    target,
				ChangedByID: claims.UserID,
				Notes:       req.Notes,
			}
			return tx.Create(&h).Error
		})
		if err != nil {
			respondError(w, lg, err)
			return
		}
		metrics.RecordTransition(string(target))
		hub.Broadcast(notify.Event{
			Type:        notify.EventWorkOrderStatusChanged,
			WorkOrderID: wo.ID,
			Data:        map[string]any{"fromStatus": from, "toStatus": target},
			UserID:      claims.UserID,
		})
		lg.Infow("work order status changed", "work_order_id", wo.ID, "from", from, "to", target)
		respondJSON(w, http.StatusOK, &wo)
	}
}

func AssignWorkOrder(db *gorm.DB, lg *zap.SugaredLogger, hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssignedToID string `json:"assignedToId" validate:"required,uuid"`
		}
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var wo models.WorkOrder
		if err := db.First(&wo, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Work order not found"))
			return
		}
		if workorder.IsTerminal(wo.Status) {
			respondError(w, lg, apperr.Validationf("Validation failed: cannot assign a closed work order"))
			return
		}
		var assignee models.User
		if err := db.First(&assignee, "id = ?", req.AssignedToID).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Assignee not found"))
			return
		}
		if !assignee.IsActive || !assignee.Role.AtLeast(models.RoleTechnician) {
			respondError(w, lg, apperr.Validationf("Validation failed: assignee must be an active technician"))
			return
		}
		wo.AssignedToID = &assignee.ID
		if err := db.Save(&wo).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		hub.Broadcast(notify.Event{
			Type:        notify.EventWorkOrderAssigned,
			WorkOrderID: wo.ID,
			Data:        map[string]any{"assignedToId": assignee.ID},
			UserID:      auth.UserID(r.Context()),
		})
		lg.Infow("work order assigned", "work_order_id", wo.ID, "assigned_to", assignee.ID)
		respondJSON(w, http.StatusOK, &wo)
	}
}

type completeWorkOrderReq struct {
	Solution  string            `json:"solution" validate:"required,min=10"`
	FaultCode *string           `json:"faultCode,omitempty"`
	Photos    models.StringList `json:"photos,omitempty" validate:"omitempty,max=5,dive,url"`
}

// CompleteWorkOrder is the only path to COMPLETED. It records the
// resolution (solution, fault code, photos) and stamps CompletedAt.
func CompleteWorkOrder(db *gorm.DB, lg *zap.SugaredLogger, hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req completeWorkOrderReq
		if err := validate.Body(r.Body, &req); err != nil {
			respondError(w, lg, err)
			return
		}
		var wo models.WorkOrder
		if err := db.First(&wo, "id = ?", chi.URLParam(r, "id")).Error; err != nil {
			respondError(w, lg, apperr.NotFoundf("Work order not found"))
			return
		}
		claims := auth.FromContext(r.Context())
		if !canActOnWorkOrder(claims, &wo) {
			respondError(w, lg, apperr.Forbiddenf("Insufficient permissions"))
			return
		}
		if !workorder.CanComplete(wo.Status) {
			respondError(w, lg, apperr.Validationf(fmt.Sprintf(
				"Validation failed: cannot complete a work order in status %s", wo.Status)))
			return
		}
		from := wo.Status
		now := time.Now().UTC()
		wo.Status = models.StatusCompleted
		wo.CompletedAt = &now
		wo.Solution = &req.Solution
		wo.FaultCode = req.FaultCode
		if len(req.Photos) > 0 {
			wo.Attachments = append(wo.Attachments, req.Photos...)
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&wo).Error; err != nil {
				return err
			}
			h := models.WorkOrderStatusHistory{
				WorkOrderID: wo.ID,
				FromStatus:  &from,
				ToStatus:    models.StatusCompleted,
				ChangedByID: claims.UserID,
				Notes:       &req.Solution,
			}
			return tx.Create(&h).Error
		})
		if err != nil {
			respondError(w, lg, err)
			return
		}
		metrics.RecordTransition(string(models.StatusCompleted))
		hub.Broadcast(notify.Event{
			Type:        notify.EventWorkOrderStatusChanged,
			WorkOrderID: wo.ID,
			Data:        map[string]any{"fromStatus": from, "toStatus": models.StatusCompleted},
			UserID:      claims.UserID,
		})
		lg.Infow("work order completed", "work_order_id", wo.ID)
		respondJSON(w, http.StatusOK, &wo)
	}
}

func WorkOrderStats(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type bucket struct {
			Key   string `json:"key"`
			Count int64  `json:"count"`
		}
		var byStatus []bucket
		if err := db.Model(&models.WorkOrder{}).Select("status as key, count(*) as count").
			Group("status").Scan(&byStatus).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		var byPriority []bucket
		if err := db.Model(&models.WorkOrder{}).Select("priority as key, count(*) as count").
			Group("priority").Scan(&byPriority).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		var total, open int64
		db.Model(&models.WorkOrder{}).Count(&total)
		db.Model(&models.WorkOrder{}).Where("status IN ?", workorder.ActiveStatuses()).Count(&open)
		respondJSON(w, http.StatusOK, map[string]any{
			"total":      total,
			"open":       open,
			"byStatus":   byStatus,
			"byPriority": byPriority,
		})
	}
}

// WorkOrderTrends buckets creations and completions per day. Bucketing
// happens in Go so the query stays portable across Postgres and the
// sqlite used in tests.
func WorkOrderTrends(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if s := r.URL.Query().Get("days"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 365 {
				respondError(w, lg, apperr.Validationf("Validation failed: days must be between 1 and 365"))
				return
			}
			days = n
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days+1).Truncate(24 * time.Hour)
		var orders []models.WorkOrder
		err := db.Select("reported_at", "completed_at").
			Where("reported_at >= ? OR completed_at >= ?", cutoff, cutoff).
			Find(&orders).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		type point struct {
			Date      string `json:"date"`
			Created   int    `json:"created"`
			Completed int    `json:"completed"`
		}
		byDay := make(map[string]*point, days)
		order := make([]string, 0, days)
		for d := 0; d < days; d++ {
			key := cutoff.AddDate(0, 0, d).Format("2006-01-02")
			byDay[key] = &point{Date: key}
			order = append(order, key)
		}
		for _, wo := range orders {
			if p, ok := byDay[wo.ReportedAt.UTC().Format("2006-01-02")]; ok {
				p.Created++
			}
			if wo.CompletedAt != nil {
				if p, ok := byDay[wo.CompletedAt.UTC().Format("2006-01-02")]; ok {
					p.Completed++
				}
			}
		}
		points := make([]point, 0, days)
		for _, key := range order {
			points = append(points, *byDay[key])
		}
		respondJSON(w, http.StatusOK, map[string]any{"days": days, "trends": points})
	}
}

// WorkOrderMTTR reports the mean time from report to completion in
// hours, overall and per priority.
func WorkOrderMTTR(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var orders []models.WorkOrder
		err := db.Select("reported_at", "completed_at", "priority").
			Where("status = ? AND completed_at IS NOT NULL", models.StatusCompleted).
			Find(&orders).Error
		if err != nil {
			respondError(w, lg, err)
			return
		}
		var overallSum time.Duration
		sums := make(map[models.Priority]time.Duration)
		counts := make(map[models.Priority]int)
		for _, wo := range orders {
			d := wo.CompletedAt.Sub(wo.ReportedAt)
			overallSum += d
			sums[wo.Priority] += d
			counts[wo.Priority]++
		}
		hours := func(sum time.Duration, n int) float64 {
			if n == 0 {
				return 0
			}
			return (sum / time.Duration(n)).Hours()
		}
		byPriority := make(map[string]float64, len(sums))
		for p, sum := range sums {
			byPriority[string(p)] = hours(sum, counts[p])
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"completedCount": len(orders),
			"mttrHours":      hours(overallSum, len(orders)),
			"byPriority":     byPriority,
		})
	}
}

// ExportWorkOrdersCSV streams the filtered orders as CSV.
func ExportWorkOrdersCSV(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := applyWorkOrderFilters(db.Model(&models.WorkOrder{}), r)
		if err != nil {
			respondError(w, lg, err)
			return
		}
		var orders []models.WorkOrder
		if err := q.Preload("Asset").Preload("CreatedBy").Preload("AssignedTo").
			Order("reported_at desc").Find(&orders).Error; err != nil {
			respondError(w, lg, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="work-orders.csv"`)
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id", "title", "category", "priority", "status", "asset_code", "location",
			"created_by", "assigned_to", "reported_at", "completed_at", "fault_code"})
		for _, wo := range orders {
			assetCode, createdBy, assignedTo, completedAt, faultCode := "", "", "", "", ""
			if wo.Asset != nil {
				assetCode = wo.Asset.AssetCode
			}
			if wo.CreatedBy != nil {
				createdBy = wo.CreatedBy.Username
			}
			if wo.AssignedTo != nil {
				assignedTo = wo.AssignedTo.Username
			}
			if wo.CompletedAt != nil {
				completedAt = wo.CompletedAt.UTC().Format(time.RFC3339)
			}
			if wo.FaultCode != nil {
				faultCode = *wo.FaultCode
			}
			_ = cw.Write([]string{
				wo.ID, wo.Title, wo.Category, string(wo.Priority), string(wo.Status),
				assetCode, wo.Location, createdBy, assignedTo,
				wo.ReportedAt.UTC().Format(time.RFC3339), completedAt, faultCode,
			})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			lg.Errorw("csv export failed", "error", err)
		}
	}
}
