package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/prhi-portal-api/internal/handler"
	"github.com/noah-isme/prhi-portal-api/internal/middleware"
	"github.com/noah-isme/prhi-portal-api/internal/models"
	"github.com/noah-isme/prhi-portal-api/internal/service"
	"github.com/noah-isme/prhi-portal-api/pkg/config"
	"github.com/noah-isme/prhi-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/prhi-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/prhi-portal-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth    middleware.TokenValidator
	portals *service.PortalRegistry
	metrics *service.MetricsService

	sessions      *handler.SessionHandler
	admin         *handler.AdminHandler
	batches       *handler.BatchHandler
	modules       *handler.ModuleHandler
	assignments   *handler.AssignmentHandler
	applicants    *handler.ApplicantHandler
	notifications *handler.NotificationHandler
	files         *handler.FileHandler
	health        *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", d.health.Health)
	r.GET("/ready", d.health.Ready)
	r.GET("/metrics", d.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/files/public/:bucket/*key", d.files.Public)
	r.GET("/files/signed/:token", d.files.Signed)

	api := r.Group(cfg.APIPrefix)

	open := api.Group("/session", middleware.OptionalJWT(d.auth))
	open.POST("/login", d.sessions.Login)
	open.POST("/register", d.sessions.Register)
	open.POST("/restore", d.sessions.Restore)

	authed := api.Group("", middleware.JWT(d.auth), middleware.Portal(d.portals))

	session := authed.Group("/session")
	session.POST("/logout", d.sessions.Logout)
	session.GET("/me", d.sessions.Me)
	session.POST("/change-password", d.sessions.ChangePassword)
	session.PUT("/profile", d.sessions.UpdateProfile)
	session.POST("/avatar", d.sessions.UploadAvatar)

	authed.GET("/notifications", d.notifications.List)
	authed.DELETE("/notifications/:id", d.notifications.Dismiss)
	authed.GET("/inbox", d.notifications.Inbox)
	authed.POST("/inbox/read", d.notifications.MarkRead)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/admin/users", d.admin.Users)
	admin.POST("/admin/instructors", middleware.Audit(logr, "create", "instructor"), d.admin.CreateInstructor)
	admin.DELETE("/admin/users/:id", middleware.Audit(logr, "delete", "user"), d.admin.DeleteUser)
	admin.GET("/admin/analytics", d.admin.Analytics)
	admin.GET("/admin/dashboard", d.admin.Dashboard)
	admin.GET("/admin/applicants/export", d.admin.ExportApplicants)

	admin.GET("/batches", d.batches.List)
	admin.POST("/batches", middleware.Audit(logr, "create", "batch"), d.batches.Create)
	admin.PUT("/batches/:id", middleware.Audit(logr, "update", "batch"), d.batches.Update)
	admin.DELETE("/batches/:id", middleware.Audit(logr, "delete", "batch"), d.batches.Delete)
	admin.POST("/batches/:id/complete", middleware.Audit(logr, "complete", "batch"), d.batches.Complete)
	admin.GET("/batches/:id/students", d.batches.Students)

	instructor := authed.Group("", middleware.RequireRoles(models.RoleInstructor))
	instructor.GET("/modules", d.modules.List)
	instructor.POST("/modules", middleware.Audit(logr, "create", "module"), d.modules.Create)
	instructor.PUT("/modules/:id", middleware.Audit(logr, "update", "module"), d.modules.Update)
	instructor.DELETE("/modules/:id", middleware.Audit(logr, "delete", "module"), d.modules.Delete)
	instructor.PUT("/modules/:id/batches", middleware.Audit(logr, "assign", "module"), d.modules.AssignBatches)

	instructor.GET("/assignments", d.assignments.List)
	instructor.POST("/assignments", middleware.Audit(logr, "create", "assignment"), d.assignments.Create)
	instructor.PUT("/assignments/:id", middleware.Audit(logr, "update", "assignment"), d.assignments.Update)
	instructor.DELETE("/assignments/:id", middleware.Audit(logr, "delete", "assignment"), d.assignments.Delete)
	instructor.PUT("/assignments/:id/students", middleware.Audit(logr, "assign", "assignment"), d.assignments.AssignStudents)
	instructor.GET("/assignments/:id/submissions", d.assignments.Submissions)
	instructor.GET("/submissions/pending", d.assignments.Pending)
	instructor.POST("/submissions/:id/grade", middleware.Audit(logr, "grade", "submission"), d.assignments.Grade)

	instructor.GET("/applicants/review", d.applicants.Review)
	instructor.GET("/applicants/enrolled", d.applicants.Enrolled)
	instructor.POST("/applicants/:id/enroll", middleware.Audit(logr, "enroll", "applicant"), d.applicants.Enroll)
	instructor.POST("/applicants/:id/remediation", middleware.Audit(logr, "remediate", "applicant"), d.applicants.Remediation)
	instructor.GET("/applicants/:id/documents", d.applicants.Documents)
	instructor.POST("/applicants/:id/documents/review", middleware.Audit(logr, "review", "document"), d.applicants.ReviewDocument)

	// Applicants may fetch their own private files; the handler checks the path owner.
	documents := authed.Group("/documents", middleware.RequireRoles(models.RoleInstructor, models.RoleStudentApplicant))
	documents.GET("/url", d.applicants.DocumentURL)
	documents.GET("/download", d.applicants.Download)

	student := authed.Group("", middleware.RequireRoles(models.RoleStudentApplicant))
	student.GET("/assessment/quiz", d.applicants.Quiz)
	student.POST("/assessment/quiz", d.applicants.SubmitQuiz)
	student.GET("/student/modules", d.modules.List)
	student.GET("/student/assignments", d.assignments.List)
	student.POST("/assignments/:id/submit", d.assignments.Submit)
	student.GET("/student/documents", d.applicants.StudentDocuments)
	student.POST("/student/documents", d.applicants.UploadDocument)
	student.POST("/student/resume", d.applicants.Resume)

	return r
}
