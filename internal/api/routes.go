package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	CORSOrigins []string
	Debug       bool
}

func NewRouter(h *Handler, log *zap.Logger, cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		cors.New(corsConfig(cfg.CORSOrigins)),
	)

	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ReCircle CardScan API",
			"version": "1.0.0",
			"status":  "running",
		})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/send-emails", h.SendEmails)
		v1.GET("/queue-status", h.QueueStatus)
		v1.GET("/queue-details", h.QueueDetails)
		v1.GET("/batches/:batch_id", h.BatchDetails)
		v1.GET("/batches/:batch_id/deliveries", h.BatchDeliveries)
		v1.POST("/process-queue", h.ProcessQueue)

		v1.POST("/upload-attachment", h.UploadAttachment)
		v1.GET("/attachments", h.ListAttachments)

		v1.GET("/names", h.ListNames)
		v1.GET("/events/:name", h.ListEventsByName)
		v1.GET("/contacts", h.ListContacts)
		v1.GET("/contacts/by-batch/:batch_id", h.ListContactsByBatch)
	}

	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}

	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
