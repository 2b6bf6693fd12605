package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/integrityguard/examsession/internal/config"
	"github.com/integrityguard/examsession/internal/gatewayd"
	"github.com/integrityguard/examsession/internal/middleware"
	"github.com/integrityguard/examsession/internal/response"
)

// SetupRouter configures the gateway's Gin route groups.
func SetupRouter(h *gatewayd.Handler, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Exams (proctor + student reads) ───────────────────────────────
	exams := router.Group("/api/v1/exams")
	{
		exams.POST("", h.CreateExam)
		exams.GET("/:exam", h.GetExam)
		exams.POST("/:exam/start", h.StartExam)
		exams.GET("/:exam/questions", h.ListQuestions)
		exams.GET("/:exam/students", h.Roster)
	}

	// Rate limiter for the join endpoint (30 requests per minute per IP).
	joinLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── Students (attempt records) ────────────────────────────────────
	students := router.Group("/api/v1/students")
	{
		students.POST("", joinLimiter.Middleware(), h.JoinExam)
		students.GET("/:id", h.GetStudent)
		students.PATCH("/:id", h.UpdateStudent)
		students.POST("/:id/answers", h.SubmitAnswer)
	}

	// ─── Push streams ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exams/:exam/stream", h.ExamStream)
		ws.GET("/students/:id/stream", h.StudentStream)
	}

	return router
}
