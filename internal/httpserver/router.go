package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"emaintenance/internal/auth"
	"emaintenance/internal/config"
	"emaintenance/internal/httpserver/handlers"
	"emaintenance/internal/metrics"
	"emaintenance/internal/models"
	"emaintenance/internal/notify"
)

func NewRouter(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, hub *notify.Hub) http.Handler {
	secret := []byte(cfg.JWTSecret)
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(lg))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/auth", func(ar chi.Router) {
		ar.Group(func(pub chi.Router) {
			pub.Use(httprate.LimitByIP(cfg.AuthRateLimit, time.Minute))
			pub.Post("/register", handlers.Register(db, lg, secret, cfg.JWTTTL))
			pub.Post("/login", handlers.Login(db, lg, secret, cfg.JWTTTL))
		})
		ar.Group(func(priv chi.Router) {
			priv.Use(auth.Authenticate(db, secret))
			priv.Get("/profile", handlers.Profile(db, lg))
		})
	})

	r.Group(func(protected chi.Router) {
		protected.Use(auth.Authenticate(db, secret))

		protected.Route("/api/assets", func(a chi.Router) {
			// The QR lookup stays open to every authenticated role for
			// the mobile scan flow.
			a.Get("/code/{code}", handlers.GetAssetByCode(db, lg))

			a.Group(func(s chi.Router) {
				s.Use(auth.RequireSupervisor())
				s.Get("/", handlers.ListAssets(db, lg))
				s.Post("/", handlers.CreateAsset(db, lg))
				s.Get("/search", handlers.SearchAssets(db, lg))
				s.Get("/suggest", handlers.SuggestAssets(db, lg))
				s.Get("/validate", handlers.ValidateAssetCode(db, lg))
				s.Get("/stats", handlers.AssetStats(db, lg))
				s.Get("/locations", handlers.AssetLocations(db, lg))
				s.Get("/location/{location}", handlers.AssetsByLocation(db, lg))
				s.Post("/bulk", handlers.BulkCreateAssets(db, lg))
				s.Post("/bulk/operation", handlers.BulkAssetOperation(db, lg))
				s.Get("/{id}", handlers.GetAsset(db, lg))
				s.Put("/{id}", handlers.UpdateAsset(db, lg))
				s.Patch("/{id}/status", handlers.PatchAssetStatus(db, lg))
				s.Patch("/{id}/ownership", handlers.PatchAssetOwnership(db, lg))
				s.Delete("/{id}", handlers.DeleteAsset(db, lg))
			})
		})

		protected.Route("/api/users", func(u chi.Router) {
			u.Use(auth.RequireSupervisor())
			u.Get("/", handlers.ListUsers(db, lg))
			u.Post("/", handlers.CreateUser(db, lg))
			u.Get("/search", handlers.SearchUsers(db, lg))
			u.Get("/role/{role}", handlers.UsersByRole(db, lg))
			u.Post("/bulk", handlers.BulkUserOperation(db, lg))
			u.Get("/{id}", handlers.GetUser(db, lg))
			u.Put("/{id}", handlers.UpdateUser(db, lg))
			u.With(auth.RequireAdmin()).Patch("/{id}/role", handlers.PatchUserRole(db, lg))
			u.Patch("/{id}/status", handlers.PatchUserStatus(db, lg))
			u.Delete("/{id}", handlers.DeleteUser(db, lg))
		})

		protected.Route("/api/work-orders", func(wo chi.Router) {
			wo.Post("/", handlers.CreateWorkOrder(db, lg, hub))
			wo.Get("/assigned", handlers.ListAssignedWorkOrders(db, lg))
			wo.Get("/my", handlers.ListMyWorkOrders(db, lg))
			wo.With(auth.RequireSupervisor()).Get("/", handlers.ListAllWorkOrders(db, lg))
			wo.With(auth.RequireSupervisor()).Get("/stats", handlers.WorkOrderStats(db, lg))
			wo.With(auth.RequireSupervisor()).Get("/trends", handlers.WorkOrderTrends(db, lg))
			wo.With(auth.RequireSupervisor()).Get("/mttr", handlers.WorkOrderMTTR(db, lg))
			wo.With(auth.RequireSupervisor()).Get("/export", handlers.ExportWorkOrdersCSV(db, lg))
			wo.Get("/{id}", handlers.GetWorkOrder(db, lg))
			wo.Get("/{id}/history", handlers.WorkOrderHistory(db, lg))
			wo.With(auth.Authorize(models.RoleTechnician, models.RoleSupervisor, models.RoleAdmin)).
				Patch("/{id}/status", handlers.UpdateWorkOrderStatus(db, lg, hub))
			wo.With(auth.RequireSupervisor()).Patch("/{id}/assign", handlers.AssignWorkOrder(db, lg, hub))
			wo.With(auth.Authorize(models.RoleTechnician, models.RoleSupervisor, models.RoleAdmin)).
				Post("/{id}/complete", handlers.CompleteWorkOrder(db, lg, hub))
		})
	})

	// WebSocket upgrades carry the token in the query string because
	// browsers cannot set headers on socket connects.
	r.Get("/ws", wsHandler(db, secret, hub))

	r.Get("/health", handlers.Health())
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

func requestLogger(lg *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			lg.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func wsHandler(db *gorm.DB, secret []byte, hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		claims, err := auth.Verify(secret, token)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", claims.UserID).Error; err != nil || !u.IsActive {
			http.Error(w, "Account is disabled", http.StatusUnauthorized)
			return
		}
		hub.ServeHTTP(w, r)
	}
}
