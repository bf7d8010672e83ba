package httpserver_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emaintenance/internal/models"
)

func TestCreateWorkOrder(t *testing.T) {
	e := newTestEnv(t)
	_, empToken := e.newUser(t, "emp", models.RoleEmployee)
	asset := e.newAsset(t, "WO-A1", "HallA")

	w, env := e.do(t, http.MethodPost, "/api/work-orders", empToken, map[string]any{
		"title":    "Leaking valve",
		"category": "MECH",
		"reason":   "Oil on floor",
		"location": "HallA",
		"assetId":  asset.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	d := data(t, env)
	assert.Equal(t, "PENDING", d["status"])
	assert.Equal(t, "MEDIUM", d["priority"])

	// The creation writes the first history row.
	var history []models.WorkOrderStatusHistory
	require.NoError(t, e.db.Where("work_order_id = ?", d["id"]).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, models.StatusPending, history[0].ToStatus)

	// Unknown asset.
	w, _ = e.do(t, http.MethodPost, "/api/work-orders", empToken, map[string]any{
		"title":    "x",
		"category": "MECH",
		"reason":   "r",
		"location": "HallA",
		"assetId":  "00000000-0000-0000-0000-000000000000",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Inactive asset.
	dead := e.newAsset(t, "WO-A2", "HallA")
	require.NoError(t, e.db.Model(dead).Update("is_active", false).Error)
	w, _ = e.do(t, http.MethodPost, "/api/work-orders", empToken, map[string]any{
		"title":    "x",
		"category": "MECH",
		"reason":   "r",
		"location": "HallA",
		"assetId":  dead.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// seedWorkOrder creates an order assigned to the given technician.
func seedWorkOrder(t *testing.T, e *testEnv, creator, assignee *models.User, status models.Status) *models.WorkOrder {
	t.Helper()
	asset := e.newAsset(t, "SWO-"+string(status)+time.Now().Format("150405.000000000"), "HallA")
	wo := models.WorkOrder{
		Title: "Seeded", Category: "MECH", Reason: "r", Location: "HallA",
		Priority: models.PriorityMedium, Status: status, ReportedAt: time.Now().UTC(),
		AssetID: asset.ID, CreatedByID: creator.ID,
	}
	if assignee != nil {
		wo.AssignedToID = &assignee.ID
	}
	require.NoError(t, e.db.Create(&wo).Error)
	return &wo
}

func TestStatusTransitions(t *testing.T) {
	e := newTestEnv(t)
	emp, _ := e.newUser(t, "emp", models.RoleEmployee)
	tech, techToken := e.newUser(t, "tech", models.RoleTechnician)

	wo := seedWorkOrder(t, e, emp, tech, models.StatusPending)

	// PENDING does not reach WAITING_PARTS.
	w, env := e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", techToken,
		map[string]any{"status": "WAITING_PARTS"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env["error"], "cannot transition")

	// COMPLETED is rejected on the generic endpoint regardless of state.
	w, env = e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", techToken,
		map[string]any{"status": "COMPLETED"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env["error"], "completion endpoint")

	// PENDING -> IN_PROGRESS stamps startedAt.
	w, env = e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", techToken,
		map[string]any{"status": "IN_PROGRESS", "notes": "on it"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "IN_PROGRESS", data(t, env)["status"])
	assert.NotNil(t, data(t, env)["startedAt"])

	// IN_PROGRESS -> WAITING_PARTS -> IN_PROGRESS -> CANCELLED.
	for _, next := range []string{"WAITING_PARTS", "IN_PROGRESS", "CANCELLED"} {
		w, _ = e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", techToken,
			map[string]any{"status": next})
		require.Equal(t, http.StatusOK, w.Code, "transition to %s", next)
	}

	// CANCELLED is terminal.
	w, _ = e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", techToken,
		map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// One history row per transition plus nothing for rejections.
	var count int64
	e.db.Model(&models.WorkOrderStatusHistory{}).Where("work_order_id = ?", wo.ID).Count(&count)
	assert.EqualValues(t, 4, count)
}

func TestStatusUpdatePermissions(t *testing.T) {
	e := newTestEnv(t)
	emp, empToken := e.newUser(t, "emp", models.RoleEmployee)
	tech, _ := e.newUser(t, "tech", models.RoleTechnician)
	_, otherToken := e.newUser(t, "other", models.RoleTechnician)
	_, supToken := e.newUser(t, "sup", models.RoleSupervisor)

	wo := seedWorkOrder(t, e, emp, tech, models.StatusPending)

	// Employees cannot hit the status route at all.
	w, _ := e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", empToken,
		map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// A technician who is not the assignee is rejected.
	w, _ = e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", otherToken,
		map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Supervisors may act on any order.
	w, _ = e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/status", supToken,
		map[string]any{"status": "IN_PROGRESS"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCompleteWorkOrder(t *testing.T) {
	e := newTestEnv(t)
	emp, _ := e.newUser(t, "emp", models.RoleEmployee)
	tech, techToken := e.newUser(t, "tech", models.RoleTechnician)

	wo := seedWorkOrder(t, e, emp, tech, models.StatusInProgress)

	// Resolution description must be at least 10 characters.
	w, env := e.do(t, http.MethodPost, "/api/work-orders/"+wo.ID+"/complete", techToken,
		map[string]any{"solution": "fixed"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env["error"], "Validation failed")

	w, env = e.do(t, http.MethodPost, "/api/work-orders/"+wo.ID+"/complete", techToken, map[string]any{
		"solution":  "Replaced the worn gasket and retested under load",
		"faultCode": "SEAL-04",
		"photos":    []string{"https://cdn.example.com/p1.jpg"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, env)
	assert.Equal(t, "COMPLETED", d["status"])
	assert.NotNil(t, d["completedAt"])
	assert.Equal(t, "SEAL-04", d["faultCode"])

	// Terminal: cannot complete twice.
	w, _ = e.do(t, http.MethodPost, "/api/work-orders/"+wo.ID+"/complete", techToken,
		map[string]any{"solution": "completing it a second time"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWorkOrderListingsAndFilters(t *testing.T) {
	e := newTestEnv(t)
	emp, empToken := e.newUser(t, "emp", models.RoleEmployee)
	tech, techToken := e.newUser(t, "tech", models.RoleTechnician)
	_, supToken := e.newUser(t, "sup", models.RoleSupervisor)

	seedWorkOrder(t, e, emp, tech, models.StatusPending)
	seedWorkOrder(t, e, emp, tech, models.StatusInProgress)
	seedWorkOrder(t, e, emp, tech, models.StatusCompleted)
	seedWorkOrder(t, e, emp, nil, models.StatusCancelled)

	// The assigned view defaults to open work only.
	w, env := e.do(t, http.MethodGet, "/api/work-orders/assigned", techToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, env)["workOrders"], 2)

	// An explicit status filter overrides the default.
	w, env = e.do(t, http.MethodGet, "/api/work-orders/assigned?status=COMPLETED", techToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, env)["workOrders"], 1)

	// The creator sees all four in /my.
	w, env = e.do(t, http.MethodGet, "/api/work-orders/my", empToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, env)["workOrders"], 4)

	// The synthetic filter on the global listing.
	w, env = e.do(t, http.MethodGet, "/api/work-orders?status=NOT_COMPLETED", supToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, env)["workOrders"], 2)

	// Global listing is supervisor-gated.
	w, _ = e.do(t, http.MethodGet, "/api/work-orders", techToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWorkOrderDetailAccess(t *testing.T) {
	e := newTestEnv(t)
	emp, empToken := e.newUser(t, "emp", models.RoleEmployee)
	tech, _ := e.newUser(t, "tech", models.RoleTechnician)
	_, strangerToken := e.newUser(t, "stranger", models.RoleEmployee)

	wo := seedWorkOrder(t, e, emp, tech, models.StatusPending)

	w, _ := e.do(t, http.MethodGet, "/api/work-orders/"+wo.ID, empToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/work-orders/"+wo.ID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, http.MethodGet, "/api/work-orders/"+wo.ID+"/history", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAssignWorkOrder(t *testing.T) {
	e := newTestEnv(t)
	emp, _ := e.newUser(t, "emp", models.RoleEmployee)
	tech, _ := e.newUser(t, "tech", models.RoleTechnician)
	_, supToken := e.newUser(t, "sup", models.RoleSupervisor)

	wo := seedWorkOrder(t, e, emp, nil, models.StatusPending)

	// Employees are not valid assignees.
	w, _ := e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/assign", supToken,
		map[string]any{"assignedToId": emp.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := e.do(t, http.MethodPatch, "/api/work-orders/"+wo.ID+"/assign", supToken,
		map[string]any{"assignedToId": tech.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tech.ID, data(t, env)["assignedToId"])
}

func TestWorkOrderStatsTrendsMTTRExport(t *testing.T) {
	e := newTestEnv(t)
	emp, _ := e.newUser(t, "emp", models.RoleEmployee)
	tech, _ := e.newUser(t, "tech", models.RoleTechnician)
	_, supToken := e.newUser(t, "sup", models.RoleSupervisor)

	open := seedWorkOrder(t, e, emp, tech, models.StatusInProgress)
	done := seedWorkOrder(t, e, emp, tech, models.StatusCompleted)
	now := time.Now().UTC()
	reported := now.Add(-4 * time.Hour)
	require.NoError(t, e.db.Model(done).Updates(map[string]any{
		"reported_at": reported, "completed_at": now,
	}).Error)

	w, env := e.do(t, http.MethodGet, "/api/work-orders/stats", supToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, env)
	assert.EqualValues(t, 2, d["total"])
	assert.EqualValues(t, 1, d["open"])

	w, env = e.do(t, http.MethodGet, "/api/work-orders/trends?days=7", supToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	d = data(t, env)
	assert.EqualValues(t, 7, d["days"])
	assert.Len(t, d["trends"], 7)

	w, env = e.do(t, http.MethodGet, "/api/work-orders/mttr", supToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	d = data(t, env)
	assert.EqualValues(t, 1, d["completedCount"])
	assert.InDelta(t, 4.0, d["mttrHours"].(float64), 0.1)

	w, _ = e.do(t, http.MethodGet, "/api/work-orders/export?status=COMPLETED", supToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), done.ID)
	assert.NotContains(t, w.Body.String(), open.ID)
}
