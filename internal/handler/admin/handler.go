// Package admin serves the back-office endpoints. Every route expects the
// caller to have passed RequireAdmin.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	contentService "github.com/jwalitptl/lab-portal-api/internal/service/content"
	tariffService "github.com/jwalitptl/lab-portal-api/internal/service/tariff"
	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
)

type Handler struct {
	tariffs tariffService.TariffServicer
	content contentService.ContentServicer
}

func NewHandler(tariffs tariffService.TariffServicer, content contentService.ContentServicer) *Handler {
	return &Handler{tariffs: tariffs, content: content}
}

// RegisterRoutes mounts the admin resources on r, which the router guards.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	tariffs := r.Group("/tariffs")
	{
		tariffs.GET("", h.GetTariffs)
		tariffs.POST("", h.PostTariffs)
		tariffs.PUT("", h.PutTariffs)
		tariffs.DELETE("", h.DeleteTariffs)
	}

	content := r.Group("/content")
	{
		content.GET("", h.GetContent)
		content.POST("", h.PostContent)
		content.PUT("", h.PutContent)
		content.DELETE("", h.DeleteContent)
	}
}

func respond(c *gin.Context, status int, data interface{}, err error) {
	switch {
	case err != nil:
		httputil.RespondWithError(c, err)
	case status == http.StatusCreated:
		httputil.RespondWithCreated(c, data)
	default:
		httputil.RespondWithSuccess(c, data)
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
