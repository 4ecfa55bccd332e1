package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train4best-api/internal/middleware"
	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/service"
)

func authContextFrom(c *gin.Context) *models.AuthContext {
	return middleware.AuthContext(c)
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
