package catalog

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/handler"
	"github.com/jwalitptl/lab-portal-api/internal/middleware"
	"github.com/jwalitptl/lab-portal-api/internal/model"
	catalogService "github.com/jwalitptl/lab-portal-api/internal/service/catalog"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
)

// contentReader is the public, read-only slice of the content service.
type contentReader interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	ListArticles(ctx context.Context, onlyPublished bool) ([]*model.Article, error)
	GetPublishedArticle(ctx context.Context, slug string) (*model.Article, error)
}

type Handler struct {
	catalog catalogService.CatalogServicer
	content contentReader
}

func NewHandler(catalog catalogService.CatalogServicer, content contentReader) *Handler {
	return &Handler{catalog: catalog, content: content}
}

// RegisterRoutes expects OptionalAuth to have run so prices follow the caller.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	catalog := r.Group("/catalog")
	{
		catalog.GET("/exams", h.ListExams)
		catalog.GET("/exams/:id/price", h.GetPrice)
		catalog.GET("/categories", h.ListCategories)
		catalog.GET("/articles", h.ListArticles)
		catalog.GET("/articles/:slug", h.GetArticle)
	}
}

func (h *Handler) ListExams(c *gin.Context) {
	categoryID, err := handler.ParseOptionalID(c.Query("category_id"), "category_id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filters := &model.ExamFilters{
		CategoryID: categoryID,
		Kind:       model.ExamKind(strings.ToLower(c.Query("kind"))),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	switch filters.Kind {
	case "", model.ExamKindAnalysis, model.ExamKindProfile:
	default:
		httputil.RespondWithError(c, apperrors.BadRequest("kind must be analysis or profile", nil))
		return
	}

	entries, err := h.catalog.ListExams(c.Request.Context(), filters, middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

// GetPrice answers 200 with available=false when the exam has no price.
func (h *Handler) GetPrice(c *gin.Context) {
	examID, err := handler.ParseID(c.Param("id"), "exam id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	quote, err := h.catalog.Quote(c.Request.Context(), examID, middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, quote)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.content.ListCategories(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, categories)
}

func (h *Handler) ListArticles(c *gin.Context) {
	articles, err := h.content.ListArticles(c.Request.Context(), true)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid category_id", err))
			return
		}
		filtered := make([]*model.Article, 0, len(articles))
		for _, a := range articles {
			if a.CategoryID != nil && *a.CategoryID == id {
				filtered = append(filtered, a)
			}
		}
		articles = filtered
	}
	httputil.RespondWithSuccess(c, articles)
}

func (h *Handler) GetArticle(c *gin.Context) {
	article, err := h.content.GetPublishedArticle(c.Request.Context(), c.Param("slug"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, article)
}
