package router

import (
	"github.com/gin-gonic/gin"

	"github.com/filealchemy/converter-service/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	convertHandler := handler.NewConvertHandler(deps)

	r.GET("/health", convertHandler.Health)
	r.GET("/formats", convertHandler.ListFormats)

	// Asynchronous batch path
	r.POST("/convert-batch", convertHandler.ConvertBatch)
	r.GET("/jobs/:jobId", convertHandler.JobStatus)
	r.GET("/artifacts/:storageKey", convertHandler.DownloadArtifact)

	// Synchronous single-file path
	r.POST("/convert", convertHandler.ConvertSingle)

	return r
}
