package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const welcomeText = "Welcome to the Delivery API Server!"

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": h.now().UTC(),
		"version":   h.Version,
	})
}

func Home(c *gin.Context) {
	c.String(http.StatusOK, welcomeText)
}

func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
}
