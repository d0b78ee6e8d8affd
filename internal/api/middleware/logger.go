package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 探活与指标抓取只记 Debug
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Logger 请求日志中间件（基于 Zap 结构化日志）
// 记录路由模板而非实际路径，避免观测员姓名等参数进入日志
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if user := c.GetString("username"); user != "" {
			fields = append(fields, zap.String("admin", user))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("errors", errs.String()))
		}

		switch {
		case status >= 500:
			logger.Error("请求处理失败", fields...)
		case status >= 400:
			logger.Warn("客户端错误", fields...)
		case quietPaths[route]:
			logger.Debug("请求完成", fields...)
		default:
			logger.Info("请求完成", fields...)
		}
	}
}
