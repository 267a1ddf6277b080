package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/test-portal/backend/internal/config"
	"github.com/test-portal/backend/internal/database"
	"github.com/test-portal/backend/internal/handlers"
	"github.com/test-portal/backend/internal/middleware"
	"github.com/test-portal/backend/internal/models"
	"github.com/test-portal/backend/internal/services"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// @title Student Testing Portal API
// @version 1.0
// @description Scheduled multiple-choice tests for student groups: authoring, import, submission and reporting.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if len(os.Args) > 1 {
		handleCommand(os.Args[1])
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	setupLogging(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if cfg.Server.Env == "development" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(cors(cfg.CORS.Origins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "test-portal-api"})
	})
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Student Testing Portal API", "status": "running"})
	})

	if cfg.Monitoring.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Services
	authService := services.NewAuthService(db, cfg)
	auditService := services.NewAuditService(db)
	studentService := services.NewStudentService(db, authService)
	testService := services.NewTestService(db)
	submissionService := services.NewSubmissionService(db, cfg.Scoring.PointsPerCorrect)
	importService := services.NewImportService(db, cfg.Import.Mode)
	duplicationService := services.NewDuplicationService(db)
	reportService := services.NewReportService(db, cfg.Report.Location)
	groupService := services.NewGroupService(db)
	staffService := services.NewStaffService(db, authService)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, studentService)
	portalHandler := handlers.NewPortalHandler(studentService, testService, submissionService)
	groupHandler := handlers.NewGroupHandler(groupService, auditService)
	scheduleHandler := handlers.NewScheduleHandler(testService, importService, duplicationService, auditService, cfg.Import.MaxBytes)
	resultHandler := handlers.NewResultHandler(reportService, auditService)
	studentHandler := handlers.NewStudentHandler(studentService)
	userHandler := handlers.NewUserHandler(staffService, auditService)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Routes
	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/student/login", authHandler.StudentLogin)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(authService))
		{
			// Student portal
			me := protected.Group("/me")
			me.Use(middleware.RequireStudent())
			{
				me.GET("", portalHandler.Profile)
				me.GET("/tests", portalHandler.Tests)
				me.GET("/tests/:id", portalHandler.Take)
				me.POST("/tests/:id/submit", portalHandler.Submit)
				me.GET("/results/:id", portalHandler.Result)
			}

			// Staff
			staff := protected.Group("")
			staff.Use(middleware.RequireStaff())
			{
				staff.GET("/groups", groupHandler.List)
				staff.POST("/groups", groupHandler.Create)
				staff.PUT("/groups/:id", groupHandler.Update)
				staff.DELETE("/groups/:id", groupHandler.Delete)

				staff.GET("/schedules", scheduleHandler.List)
				staff.POST("/schedules", scheduleHandler.Create)
				staff.POST("/schedules/duplicate", scheduleHandler.Duplicate)
				staff.GET("/schedules/:id", scheduleHandler.Get)
				staff.PUT("/schedules/:id", scheduleHandler.Update)
				staff.DELETE("/schedules/:id", scheduleHandler.Delete)
				staff.POST("/schedules/:id/import", scheduleHandler.Import)
				staff.POST("/schedules/:id/questions", scheduleHandler.CreateQuestion)
				staff.PUT("/questions/:id", scheduleHandler.UpdateQuestion)
				staff.DELETE("/questions/:id", scheduleHandler.DeleteQuestion)

				staff.GET("/students", studentHandler.List)
				staff.GET("/students/:id", studentHandler.Get)

				staff.GET("/results", resultHandler.List)
				staff.GET("/results/export", resultHandler.Export)
			}

			// Admin only
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/users", userHandler.List)
				admin.POST("/users", userHandler.Create)
				admin.PUT("/users/:id", userHandler.Update)
				admin.GET("/audit/recent", auditHandler.GetRecentActivity)
			}
		}
	}

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func setupLogging(cfg *config.Config) {
	var handler slog.Handler
	if cfg.Server.Env == "development" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}

func cors(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Trace-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func handleCommand(cmd string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	setupLogging(cfg)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	switch cmd {
	case "migrate":
		if err := database.Migrate(db); err != nil {
			log.Fatal("Migration failed:", err)
		}
		log.Println("Migration completed successfully")

	case "seed-admin":
		seedAdmin(db, cfg)

	case "seed-demo":
		n, err := services.NewSeedService(db).SeedDemo(context.Background(), time.Now())
		if err != nil {
			log.Fatal("Failed to seed demo data:", err)
		}
		log.Printf("Seeded %d demo tests", n)

	default:
		log.Printf("Unknown command: %s", cmd)
	}
}

func seedAdmin(db *gorm.DB, cfg *config.Config) {
	authService := services.NewAuthService(db, cfg)

	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	if count > 0 {
		log.Println("Admin already exists")
		return
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@portal.local"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "Admin@123"
	}

	admin := &models.User{
		Email:    email,
		FullName: "Administrator",
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := authService.CreateUser(context.Background(), admin, password); err != nil {
		log.Fatal("Failed to create admin:", err)
	}

	log.Printf("Admin: %s / %s", email, password)
}
