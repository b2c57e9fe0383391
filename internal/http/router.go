package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/kgbridge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/kgbridge-backend/internal/http/middleware"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	KGHandler     *httpH.KGHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLog(cfg.Log))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.KGHandler != nil {
			api.POST("/projects/:projectId/kg/ingest_chat_turn", cfg.KGHandler.IngestChatTurn)
			api.GET("/projects/:projectId/kg/status", cfg.KGHandler.Status)
			api.POST("/projects/:projectId/kg/query", cfg.KGHandler.Query)
			api.GET("/projects/:projectId/kg/trace", cfg.KGHandler.Trace)
		}
	}

	return r
}
