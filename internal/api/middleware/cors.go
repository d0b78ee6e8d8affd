package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, X-Request-ID"
	corsExposeHeaders = "X-Request-ID, Content-Disposition"
)

// CORS 跨域中间件。管理端使用 Bearer Token，不发送 Cookie，因此不开启 Allow-Credentials；
// allowOrigins 含 "*" 时放行任意来源（表单回调与只读查询为公开接口）
func CORS(allowOrigins []string) gin.HandlerFunc {
	allowAll := false
	origins := make(map[string]bool, len(allowOrigins))
	for _, o := range allowOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
			continue
		}
		origins[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Header("Vary", "Origin")
			if allowAll || origins[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
				if c.Request.Method == http.MethodOptions {
					c.Header("Access-Control-Allow-Methods", corsAllowMethods)
					c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
					c.Header("Access-Control-Max-Age", "600")
				}
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
