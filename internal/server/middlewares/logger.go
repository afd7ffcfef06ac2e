package middlewares

import (
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger logs each request through the global zap logger.
func Logger() gin.HandlerFunc {
	return ginzap.Ginzap(zap.S().Desugar().Named("http"), time.RFC3339, false)
}
