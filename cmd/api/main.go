package main

import (
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"emaintenance/internal/auth"
	"emaintenance/internal/config"
	"emaintenance/internal/httpserver"
	"emaintenance/internal/logger"
	"emaintenance/internal/models"
	"emaintenance/internal/notify"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	cfg, err := config.Load()
	if err != nil {
		lg.Fatalw("config load failed", "error", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{TranslateError: true})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		lg.Fatalw("db handle failed", "error", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Asset{},
		&models.WorkOrder{},
		&models.WorkOrderStatusHistory{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaultAdmin(db, lg)

	hub := notify.NewHub(lg)
	router := httpserver.NewRouter(db, lg, cfg, hub)

	lg.Infow("listening", "port", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		lg.Fatalw("server stopped", "error", err)
	}
}

// seedDefaultAdmin guarantees a first login exists on a fresh database.
func seedDefaultAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		return
	}
	hash, err := auth.HashPassword("admin123")
	if err != nil {
		lg.Errorw("seed admin hash failed", "error", err)
		return
	}
	u := models.User{
		Email:        "admin@emaintenance.local",
		Username:     "admin",
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Errorw("seed admin failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", u.Email)
}
