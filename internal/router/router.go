package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/proctorhq/proctor-backend/internal/config"
	"github.com/proctorhq/proctor-backend/internal/handler"
	"github.com/proctorhq/proctor-backend/internal/middleware"
	"github.com/proctorhq/proctor-backend/internal/response"
	"github.com/proctorhq/proctor-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Student   *handler.StudentHandler
	Faculty   *handler.FacultyHandler
	Dashboard *handler.DashboardHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/login", handlers.Auth.Login)

		// Authenticated profile routes
		auth.POST("/logout", middleware.RequireStudentJWT(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireFacultyJWT(authService), handlers.Auth.Me)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.POST("/tests/:test_id/session", handlers.Student.StartSession)
		studentAPI.GET("/sessions/:id", handlers.Student.GetSession)
		studentAPI.PUT("/sessions/:id/answers", handlers.Student.SaveAnswer)
		studentAPI.PATCH("/sessions/:id/warnings", handlers.Student.UpdateWarnings)
		studentAPI.POST("/sessions/:id/events", handlers.Student.LogEvent)
		studentAPI.POST("/sessions/:id/submit", handlers.Student.SubmitTest)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/sessions/:id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Faculty Group (JWT) ────────────────────────────────────────
	facultyAPI := router.Group("/api/v1/faculty")
	facultyAPI.Use(middleware.RequireFacultyJWT(authService))
	{
		// Live dashboard
		facultyAPI.GET("/tests/:test_id/stream", handlers.Dashboard.StreamTest)
		facultyAPI.GET("/tests/:test_id/sessions", handlers.Dashboard.ListSessions)

		// Session drill-downs
		facultyAPI.GET("/sessions/:id/answers", handlers.Faculty.SessionAnswers)
		facultyAPI.GET("/sessions/:id/monitoring", handlers.Faculty.SessionMonitoringLogs)

		// Proctoring actions
		facultyAPI.POST("/sessions/:id/terminate", handlers.Faculty.TerminateSession)
		facultyAPI.POST("/sessions/:id/allow-continue", handlers.Faculty.AllowContinue)
		facultyAPI.POST("/sessions/:id/force-submit", handlers.Faculty.ForceSubmit)
		facultyAPI.POST("/students/:id/reset-session", handlers.Faculty.ResetStudentSession)

		// Grading
		facultyAPI.POST("/answers/:id/grade", handlers.Faculty.GradeAnswer)
	}

	return router
}
