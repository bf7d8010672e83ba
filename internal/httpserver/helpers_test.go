package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"emaintenance/internal/auth"
	"emaintenance/internal/config"
	"emaintenance/internal/httpserver"
	"emaintenance/internal/models"
	"emaintenance/internal/notify"
)

const testSecret = "test-secret"

type testEnv struct {
	db     *gorm.DB
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Asset{},
		&models.WorkOrder{},
		&models.WorkOrderStatusHistory{},
	))
	cfg := &config.Config{
		JWTSecret:     testSecret,
		JWTTTL:        time.Hour,
		CORSOrigins:   []string{"*"},
		AuthRateLimit: 1000,
	}
	lg := zap.NewNop().Sugar()
	return &testEnv{
		db:     db,
		router: httpserver.NewRouter(db, lg, cfg, notify.NewHub(lg)),
	}
}

// newUser inserts a user directly and returns it with a valid token.
func (e *testEnv) newUser(t *testing.T, username string, role models.Role) (*models.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u := models.User{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(&u).Error)
	tok, err := auth.Sign([]byte(testSecret), time.Hour, &u)
	require.NoError(t, err)
	return &u, tok
}

func (e *testEnv) newAsset(t *testing.T, code, location string) *models.Asset {
	t.Helper()
	a := models.Asset{AssetCode: code, Name: "Asset " + code, Location: location, IsActive: true}
	require.NoError(t, e.db.Create(&a).Error)
	return &a
}

// do runs a request through the full router and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var envelope map[string]any
	if w.Header().Get("Content-Type") == "application/json" {
		_ = json.Unmarshal(w.Body.Bytes(), &envelope)
	}
	return w, envelope
}

// data unwraps the envelope's data object.
func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "envelope has no data object: %v", envelope)
	return d
}
