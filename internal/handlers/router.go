package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, environment string) *gin.Engine {
	gin.SetMode(ginMode(environment))
	r := gin.New()

	if environment != "test" {
		r.Use(logger.SetLogger(logger.WithUTC(true)))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"POST", "GET", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	r.Use(gin.Recovery())

	r.SetHTMLTemplate(parseTemplates())

	r.GET("/", h.Index)
	r.POST("/", h.Upload)
	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)

	return r
}

func ginMode(env string) string {
	switch env {
	case "development":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
