package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/study-planner-api/api/swagger"
	"github.com/noah-isme/study-planner-api/internal/handler"
	internalmiddleware "github.com/noah-isme/study-planner-api/internal/middleware"
	"github.com/noah-isme/study-planner-api/internal/models"
	"github.com/noah-isme/study-planner-api/internal/service"
	"github.com/noah-isme/study-planner-api/pkg/config"
	"github.com/noah-isme/study-planner-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/study-planner-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/study-planner-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *service.MetricsService
	tokens     *service.TokenService
	timetables *handler.TimetableHandler
	exports    *handler.ExportHandler
	system     *handler.MetricsHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(d.metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", d.system.Health)
	r.GET("/ready", d.system.Ready)
	r.GET("/metrics", d.system.Prometheus)

	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.cfg.APIPrefix)

	planner := api.Group("/timetable", internalmiddleware.OptionalJWT(d.tokens))
	planner.POST("/generate", d.timetables.Generate)
	planner.GET("/sample", d.timetables.Sample)
	planner.POST("/validate", d.timetables.Validate)

	secured := api.Group("", internalmiddleware.JWT(d.tokens))
	saved := secured.Group("/timetables")
	saved.GET("", d.timetables.List)
	saved.GET("/:id", d.timetables.Get)
	saved.DELETE("/:id", d.timetables.Delete)
	saved.POST("/:id/missed", d.timetables.MarkMissed)
	saved.POST("/:id/confidence", d.timetables.UpdateConfidence)

	if d.exports != nil {
		saved.POST("/:id/exports", d.exports.Create)
		secured.GET("/exports/:jobId", d.exports.Status)
		api.GET("/export/:token", d.exports.Download)
	}

	secured.GET("/system/metrics", internalmiddleware.RequireRoles(models.RoleAdmin), d.system.Snapshot)

	return r
}
