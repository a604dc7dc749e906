package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PublicCache marks anonymous GET responses (catalog, articles) as
// cacheable for maxAge seconds. It must run after OptionalAuth: prices for
// a signed-in user stay private.
func PublicCache(maxAge int) gin.HandlerFunc {
	public := "public, max-age=" + strconv.Itoa(maxAge)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			if UserID(c) != nil {
				c.Header("Cache-Control", "private, no-cache")
			} else {
				c.Header("Cache-Control", public)
			}
			c.Writer.Header().Add("Vary", "Authorization")
		}
		c.Next()
	}
}

// NoStore keeps patient data (carts, lab results) out of every cache.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
