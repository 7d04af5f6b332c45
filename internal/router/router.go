package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/handler"
	"github.com/truonghoc-dev/truonghoc-api/internal/middleware"
	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	"github.com/truonghoc-dev/truonghoc-api/internal/service"
	"github.com/truonghoc-dev/truonghoc-api/pkg/config"
	"github.com/truonghoc-dev/truonghoc-api/pkg/logger"
	corsmiddleware "github.com/truonghoc-dev/truonghoc-api/pkg/middleware/cors"
	reqidmiddleware "github.com/truonghoc-dev/truonghoc-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	AcademicYear *handler.AcademicYearHandler
	Classes      *handler.ClassHandler
	Students     *handler.StudentHandler
	Teachers     *handler.TeacherHandler
	Guardians    *handler.GuardianHandler
	Enrollments  *handler.EnrollmentHandler
	Schedules    *handler.ScheduleHandler
	Sessions     *handler.ClassSessionHandler
	Attendance   *handler.AttendanceHandler
	Invoices     *handler.InvoiceHandler
	Payments     *handler.PaymentHandler
	Exports      *handler.ExportHandler
	Uploads      *handler.UploadHandler
	Dashboard    *handler.DashboardHandler
}

// New builds the gin engine with all middleware and routes mounted.
func New(cfg *config.Config, logr *zap.Logger, auth *service.AuthService, metrics *service.MetricsService, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	authed := api.Group("", middleware.JWT(auth))

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)
	authed.GET("/auth/me", h.Auth.Me)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	users := authed.Group("/users")
	{
		users.GET("", adminOnly, h.Users.List)
		users.POST("", adminOnly, h.Users.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.Users.Get)
		users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.Users.UpdateProfile)
	}

	years := authed.Group("/academic-years")
	{
		years.GET("", h.AcademicYear.List)
		years.GET("/active", h.AcademicYear.GetActive)
		years.GET("/:id", h.AcademicYear.Get)
		years.POST("", adminOnly, h.AcademicYear.Create)
		years.PUT("/:id", adminOnly, h.AcademicYear.Update)
		years.DELETE("/:id", adminOnly, h.AcademicYear.Delete)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("", h.Classes.List)
		classes.GET("/:id", h.Classes.Get)
		classes.POST("", adminOnly, h.Classes.Create)
		classes.PUT("/:id", adminOnly, h.Classes.Update)
		classes.DELETE("/:id", adminOnly, h.Classes.Delete)
	}

	students := authed.Group("/students")
	{
		students.GET("", staff, h.Students.List)
		students.GET("/:id", staff, h.Students.Get)
		students.POST("", adminOnly, h.Students.Create)
		students.PUT("/:id", adminOnly, h.Students.Update)
		students.DELETE("/:id", adminOnly, h.Students.Delete)
	}

	teachers := authed.Group("/teachers")
	{
		teachers.GET("", staff, h.Teachers.List)
		teachers.GET("/:id", staff, h.Teachers.Get)
		teachers.POST("", adminOnly, h.Teachers.Create)
		teachers.PUT("/:id", adminOnly, h.Teachers.Update)
		teachers.DELETE("/:id", adminOnly, h.Teachers.Delete)
	}

	guardians := authed.Group("/guardians")
	{
		guardians.GET("", staff, h.Guardians.List)
		guardians.GET("/:id", staff, h.Guardians.Get)
		guardians.GET("/:id/students", staff, h.Guardians.ListStudents)
		guardians.POST("", adminOnly, h.Guardians.Create)
		guardians.PUT("/:id", adminOnly, h.Guardians.Update)
		guardians.DELETE("/:id", adminOnly, h.Guardians.Delete)
	}

	enrollments := authed.Group("/enrollments")
	{
		enrollments.GET("", staff, h.Enrollments.List)
		enrollments.GET("/check", staff, h.Enrollments.CheckStatus)
		enrollments.GET("/:id", staff, h.Enrollments.Get)
		enrollments.POST("", adminOnly, h.Enrollments.Create)
		enrollments.PUT("/:id/withdraw", adminOnly, h.Enrollments.Withdraw)
		enrollments.PUT("/:id/complete", adminOnly, h.Enrollments.Complete)
		enrollments.PUT("/:id/terms", adminOnly, h.Enrollments.UpdateTerms)
	}

	schedules := authed.Group("/schedules")
	{
		schedules.GET("", h.Schedules.List)
		schedules.GET("/:id", h.Schedules.Get)
		schedules.POST("", adminOnly, h.Schedules.Create)
		schedules.POST("/batch", adminOnly, h.Schedules.CreateBatch)
		schedules.PUT("/:id", adminOnly, h.Schedules.Update)
		schedules.DELETE("/:id", adminOnly, h.Schedules.Delete)
		schedules.DELETE("/batch", adminOnly, h.Schedules.DeleteBatch)
	}

	sessions := authed.Group("/sessions")
	{
		sessions.GET("", staff, h.Sessions.List)
		sessions.GET("/:id", staff, h.Sessions.Get)
		sessions.POST("", staff, h.Sessions.Create)
		sessions.PUT("/:id", staff, h.Sessions.Update)
		sessions.DELETE("/:id", adminOnly, h.Sessions.Delete)
		sessions.GET("/:id/rollcall", staff, h.Attendance.RollCall)
		sessions.GET("/:id/rollcall/export", staff, h.Attendance.ExportRollCall)
	}

	attendance := authed.Group("/attendance", staff)
	{
		attendance.POST("", h.Attendance.Mark)
		attendance.POST("/batch", h.Attendance.MarkBatch)
		attendance.DELETE("/:id", h.Attendance.Unmark)
	}

	invoices := authed.Group("/invoices", adminOnly)
	{
		invoices.GET("", h.Invoices.List)
		invoices.GET("/summary", h.Invoices.Summary)
		invoices.GET("/:id", h.Invoices.Get)
		invoices.POST("", h.Invoices.Create)
		invoices.PUT("/:id", h.Invoices.Update)
		invoices.PUT("/:id/cancel", h.Invoices.Cancel)
	}
	authed.POST("/invoice/multiple", adminOnly, h.Invoices.CreateBatch)

	payments := authed.Group("/payments", adminOnly)
	{
		payments.GET("", h.Payments.List)
		payments.GET("/:id", h.Payments.Get)
		payments.POST("", h.Payments.Create)
		payments.POST("/confirm", h.Payments.Confirm)
		payments.PUT("/:id/fail", h.Payments.Fail)
		payments.POST("/watch/:invoiceId", h.Payments.Watch)
		payments.GET("/watch/:invoiceId", h.Payments.WatchStatus)
		payments.DELETE("/watch/:invoiceId", h.Payments.WatchClose)
	}

	exports := authed.Group("/exports", adminOnly)
	{
		exports.GET("", h.Exports.List)
		exports.POST("", h.Exports.Enqueue)
		exports.GET("/:id", h.Exports.Get)
	}
	// Download is authorized by the signed token, not the session.
	api.GET("/exports/:id/download", h.Exports.Download)

	uploads := authed.Group("/upload", staff)
	{
		uploads.POST("/single", h.Uploads.Single)
		uploads.POST("/multiple", h.Uploads.Multiple)
	}
	api.GET("/upload/download", h.Uploads.Download)

	if cfg.Dashboard.Enabled {
		authed.GET("/dashboard/financial", adminOnly, h.Dashboard.Financial)
	}

	return r
}
