package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/dtorrez/rentora-api/docs" // Swagger docs
	"github.com/dtorrez/rentora-api/internal/config"
	"github.com/dtorrez/rentora-api/internal/database"
	"github.com/dtorrez/rentora-api/internal/handlers"
	"github.com/dtorrez/rentora-api/internal/jobs"
	"github.com/dtorrez/rentora-api/internal/middleware"
	"github.com/dtorrez/rentora-api/internal/repository"
	"github.com/dtorrez/rentora-api/internal/services"
	"github.com/dtorrez/rentora-api/internal/storage"
	"github.com/dtorrez/rentora-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title Rentora API
// @version 1.0
// @description REST API for Rentora Property Management and Billing
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn: cfg.SentryDSN,
			// Set TracesSampleRate to 1.0 to capture 100% of transactions for performance monitoring.
			// Set to a lower value (e.g. 0.2) in production if needed.
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Warn if Resend email is not configured (API loads .env, not .production.env)
	if cfg.ResendAPIKey == "" || cfg.FromEmail == "" {
		logger.Warn("Resend email disabled: RESEND_API_KEY or FROM_EMAIL not set. Set them in .env and ensure the From domain is verified in Resend dashboard.")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database schema", "error", err)
		os.Exit(1)
	}
	logger.Info("Database schema up to date")

	// Initialize storage
	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage")

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, store, cfg, db)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, store)

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Redirect root to swagger
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})

		// Swagger documentation
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Authentication (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// Password recovery (public)
		recovery := v1.Group("/auth/recovery")
		{
			recovery.POST("/send", h.User.SendRecoveryCode)
			recovery.POST("/verify", h.User.VerifyRecoveryCode)
			recovery.POST("/reset", h.User.UpdatePasswordWithCode)
		}

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				// User management (admin only; PUT /users/:user_id is below for admin or owner)
				admin.DELETE("/users/:user_id", h.User.Delete)
				admin.PUT("/users/:user_id/toggle_status", h.User.ToggleStatus)
				admin.POST("/users/:user_id/restore", h.User.Restore)

				// Property management (admin only)
				admin.POST("/properties", h.Property.Create)
				admin.PUT("/properties/:property_id", h.Property.Update)
				admin.DELETE("/properties/:property_id", h.Property.Delete)

				// Unit management (admin only)
				admin.POST("/properties/:property_id/units", h.Unit.Create)
				admin.PUT("/properties/:property_id/units/:unit_id", h.Unit.Update)
				admin.DELETE("/properties/:property_id/units/:unit_id", h.Unit.Delete)

				// Audit log (admin only)
				admin.GET("/audits", h.Audit.Index)

				// Background job control (admin only)
				jobRoutes := admin.Group("/jobs")
				{
					jobRoutes.GET("/status", h.Job.Status)
					jobRoutes.POST("/billing_cycle", h.Job.TriggerBillingCycle)
					jobRoutes.POST("/reminders", h.Job.TriggerReminders)
					jobRoutes.POST("/lease_expiry", h.Job.TriggerLeaseExpiry)
					jobRoutes.POST("/score_refresh", h.Job.TriggerScoreRefresh)
					jobRoutes.POST("/analytics_refresh", h.Job.TriggerAnalyticsRefresh)
				}
			}

			// User data access (staff or the user themselves)
			userData := protected.Group("/users/:user_id")
			userData.Use(middleware.RequireStaffOrOwner())
			{
				userData.GET("", h.User.Show)
				userData.GET("/leases", h.User.Leases)
				userData.GET("/invoices", h.User.Invoices)
				userData.GET("/payments", h.User.Payments)
				userData.GET("/statement_pdf", h.Report.UserStatementPDF)
			}

			// Staff routes (admin and manager)
			staff := protected.Group("")
			staff.Use(middleware.RequireRole("admin", "manager"))
			{
				// User listing and creation
				staff.GET("/users", h.User.Index)
				staff.POST("/users", h.User.Create)

				// Property/Unit viewing
				staff.GET("/properties", h.Property.Index)
				staff.GET("/properties/:property_id", h.Property.Show)
				staff.GET("/properties/:property_id/units", h.Unit.Index)
				staff.GET("/properties/:property_id/units/:unit_id", h.Unit.Show)

				// Lease management (tenants read their own leases below)
				staff.POST("/leases", h.Lease.Create)
				staff.PATCH("/leases/:lease_id", h.Lease.Update)
				staff.POST("/leases/:lease_id/terminate", h.Lease.Terminate)
				staff.POST("/leases/:lease_id/charges", h.Lease.AddCharge)
				staff.PATCH("/leases/:lease_id/charges/:charge_id", h.Lease.UpdateCharge)
				staff.DELETE("/leases/:lease_id/charges/:charge_id", h.Lease.RemoveCharge)

				// Invoice management
				staff.GET("/invoices/stats", h.Invoice.Stats)
				staff.GET("/invoices/monthly_stats", h.Invoice.MonthlyStats)
				staff.GET("/invoices/export", h.Invoice.Export)
				staff.GET("/leases/:lease_id/invoices", h.Invoice.IndexByLease)
				staff.POST("/leases/:lease_id/invoices", h.Invoice.Generate)
				staff.POST("/invoices/:invoice_id/issue", h.Invoice.Issue)
				staff.POST("/invoices/:invoice_id/void", h.Invoice.Void)

				// Payment recording and gateway settlement
				staff.GET("/invoices/:invoice_id/payments", h.Payment.IndexByInvoice)
				staff.POST("/invoices/:invoice_id/payments", h.Payment.Record)
				staff.POST("/payments/:payment_id/finalize", h.Payment.Finalize)
				staff.GET("/payments/export", h.Payment.Export)

				// Payment confirmation review
				staff.GET("/confirmations/pending_count", h.Confirmation.PendingCount)
				staff.POST("/confirmations/:confirmation_id/confirm", h.Confirmation.Confirm)
				staff.POST("/confirmations/:confirmation_id/reject", h.Confirmation.Reject)

				// Analytics
				analytics := staff.Group("/analytics")
				{
					analytics.GET("/overview", h.Analytics.Overview)
					analytics.GET("/distribution", h.Analytics.Distribution)
					analytics.GET("/property_revenue", h.Analytics.PropertyRevenue)
					analytics.GET("/export", h.Analytics.Export)
				}

				// Reports
				staff.GET("/reports/collections_csv", h.Report.CollectionsCSV)
				staff.GET("/reports/overdue_invoices_csv", h.Report.OverdueInvoicesCSV)
				staff.GET("/reports/tenant_statement_pdf", h.Report.TenantStatementPDF)
			}

			// All authenticated users (personal data access)
			// Profile update: admin or profile owner only (managers cannot update other users' profiles)
			protected.PUT("/users/:user_id", middleware.RequireAdminOrOwner(), h.User.Update)
			// User can change their own password
			protected.PATCH("/users/:user_id/change_password", h.User.ChangePassword)
			protected.POST("/users/:user_id/resend_confirmation", h.User.ResendConfirmation)
			protected.PATCH("/users/:user_id/update_locale", h.User.UpdateLocale)
			protected.POST("/auth/logout_all", h.Auth.LogoutAll)

			// Leases, invoices and payments scope themselves to the caller
			// when the caller is not staff
			protected.GET("/leases", h.Lease.Index)
			protected.GET("/leases/:lease_id", h.Lease.Show)
			protected.GET("/invoices", h.Invoice.Index)
			protected.GET("/invoices/:invoice_id", h.Invoice.Show)
			protected.GET("/invoices/:invoice_id/pdf", h.Report.InvoicePDF)
			protected.GET("/payments", h.Payment.Index)
			protected.GET("/payments/:payment_id", h.Payment.Show)
			protected.GET("/payments/:payment_id/receipt_pdf", h.Report.ReceiptPDF)

			// Payment confirmation requests (tenants submit proof of offline payments)
			protected.GET("/confirmations", h.Confirmation.Index)
			protected.POST("/confirmations", h.Confirmation.Create)
			protected.GET("/confirmations/:confirmation_id", h.Confirmation.Show)
			protected.GET("/confirmations/:confirmation_id/proof", h.Confirmation.Proof)

			// Notifications (users can manage their own notifications)
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.GET("/unread_count", h.Notification.UnreadCount)
				// Static route first so "mark_all_as_read" is not matched as :notification_id
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
				notifications.PUT("/:notification_id", h.Notification.Update)
				notifications.DELETE("/:notification_id", h.Notification.Delete)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services) {
	// Generate the current period's invoices on boot (the cycle skips periods
	// that are already invoiced), then every 24 hours
	worker.ScheduleEveryImmediate("billing_cycle", 24*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Running billing cycle...")
		return svcs.Invoice.RunBillingCycle(ctx)
	})

	// Expire leases whose end date has passed, on boot then daily
	worker.ScheduleEveryImmediate("lease_expiry", 24*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Expiring ended leases...")
		return svcs.Lease.ExpireEndedLeases(ctx)
	})

	// Overdue reminder emails every hour; the send is recorded per invoice so
	// tenants are not nagged on every sweep
	worker.ScheduleEvery("overdue_reminders", 1*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Sending overdue invoice reminders...")
		return svcs.Invoice.SendOverdueReminders(ctx)
	})

	// Upcoming due date reminder emails, daily at 08:00 so tenants get them
	// in the morning
	worker.ScheduleDaily("upcoming_reminders", 8, 0, func(ctx context.Context) error {
		logger.Info("[Job] Sending upcoming due date reminders...")
		return svcs.Invoice.SendUpcomingReminders(ctx)
	})

	// Update tenant payment scores every 6 hours
	worker.ScheduleEvery("score_refresh", 6*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Updating payment scores...")
		return svcs.PaymentScore.UpdateAllScores(ctx)
	})

	// Refresh analytics cache every 15 minutes
	worker.ScheduleEveryImmediate("analytics_refresh", 15*time.Minute, func(ctx context.Context) error {
		logger.Info("[Job] Refreshing analytics cache...")
		return svcs.Analytics.RefreshCache(ctx)
	})

	// Purge expired refresh tokens during the quiet hours
	worker.ScheduleDaily("token_cleanup", 3, 0, func(ctx context.Context) error {
		logger.Info("[Job] Cleaning up expired refresh tokens...")
		return svcs.Auth.CleanupExpiredTokens(ctx)
	})

	logger.Info("Scheduled recurring jobs")
}
