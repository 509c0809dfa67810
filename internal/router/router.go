package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/config"
	"github.com/ikkim/inspection-backend/internal/app/controller"
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	applicationController  *controller.ApplicationController
	inspectionController   *controller.InspectionController
	violationController    *controller.ViolationController
	userController         *controller.UserController
	notificationController *controller.NotificationController
	socketController       *controller.NotificationSocketController
	authMiddleware         *middleware.AuthMiddleware
	config                 *config.Config
}

func NewRouter(
	applicationController *controller.ApplicationController,
	inspectionController *controller.InspectionController,
	violationController *controller.ViolationController,
	userController *controller.UserController,
	notificationController *controller.NotificationController,
	socketController *controller.NotificationSocketController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		applicationController:  applicationController,
		inspectionController:   inspectionController,
		violationController:    violationController,
		userController:         userController,
		notificationController: notificationController,
		socketController:       socketController,
		authMiddleware:         authMiddleware,
		config:                 cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Inspection workflow API is running",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.socketController != nil {
		router.GET("/ws", r.authMiddleware.Authenticate(), r.socketController.Connect)
	}

	adminOnly := r.authMiddleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(r.authMiddleware.Authenticate())
	{
		applications := v1.Group("/applications")
		{
			applications.POST("", r.applicationController.SubmitApplication)
			applications.PUT("/:id", r.applicationController.ResubmitApplication)
			applications.POST("/:id/review", r.applicationController.ReviewApplication)
		}

		documents := v1.Group("/documents")
		{
			documents.POST("/upload-url", r.applicationController.DocumentUploadURL)
			documents.POST("/review-url", adminOnly, r.applicationController.DocumentReviewURL)
		}

		businesses := v1.Group("/businesses")
		{
			businesses.POST("/:id/inspections", r.inspectionController.RequestInspection)
			businesses.POST("/:id/inspections/schedule", r.inspectionController.ScheduleInspection)
			businesses.PUT("/:id/inspector", r.inspectionController.AssignInspectorToBusiness)
		}

		inspections := v1.Group("/inspections")
		{
			inspections.PUT("/:id/inspector", r.inspectionController.ReassignInspector)
			inspections.POST("/:id/start", r.inspectionController.StartInspection)
			inspections.POST("/:id/complete", r.inspectionController.CompleteInspection)
			inspections.POST("/:id/cancel", r.inspectionController.CancelInspection)
		}

		violations := v1.Group("/violations")
		{
			violations.POST("", r.violationController.ReportViolation)
			violations.PATCH("/:id", r.violationController.UpdateViolation)
			violations.POST("/:id/inspection", r.violationController.LinkViolationToNewInspection)
		}

		v1.PATCH("/profile", r.userController.UpdateMyProfile)
		v1.PATCH("/users/:id", r.userController.UpdateUserProfile)

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", r.notificationController.GetNotifications)
			notifications.GET("/unread-count", r.notificationController.GetUnreadCount)
			notifications.PATCH("/read-all", r.notificationController.MarkAllAsRead)
			notifications.PATCH("/:id/read", r.notificationController.MarkAsRead)
		}

		admin := v1.Group("/admin", adminOnly)
		{
			admin.POST("/inspections/overdue-sweep", r.inspectionController.SweepOverdue)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
