package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig controls cross-origin access for browser dashboards.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowedMethods   []string `yaml:"allowedMethods"`
	AllowedHeaders   []string `yaml:"allowedHeaders"`
	ExposedHeaders   []string `yaml:"exposedHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           string   `yaml:"maxAge"`
}

// CORSMiddleware applies basic CORS headers and answers preflight requests.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	wildcard := len(cfg.AllowedOrigins) == 1 && strings.TrimSpace(cfg.AllowedOrigins[0]) == "*"
	headers := map[string]string{
		"Access-Control-Allow-Methods":  strings.Join(cfg.AllowedMethods, ","),
		"Access-Control-Allow-Headers":  strings.Join(cfg.AllowedHeaders, ","),
		"Access-Control-Expose-Headers": strings.Join(cfg.ExposedHeaders, ","),
		"Access-Control-Max-Age":        cfg.MaxAge,
	}
	if cfg.AllowCredentials {
		headers["Access-Control-Allow-Credentials"] = "true"
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if !isOriginAllowed(origin, cfg.AllowedOrigins) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		if wildcard && !cfg.AllowCredentials {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		for k, v := range headers {
			if v != "" {
				c.Header(k, v)
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func isOriginAllowed(origin string, allowed []string) bool {
	for _, item := range allowed {
		item = strings.TrimSpace(item)
		if item == "*" || (item != "" && strings.EqualFold(item, origin)) {
			return true
		}
	}
	return false
}
