package admin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/handler"
	"github.com/jwalitptl/lab-portal-api/internal/model"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

const (
	typeArticle  = "article"
	typeCategory = "category"
)

type articleRequest struct {
	Title      string `json:"title" binding:"required,max=200"`
	Slug       string `json:"slug" binding:"max=200"`
	Summary    string `json:"summary"`
	Body       string `json:"body"`
	CategoryID string `json:"category_id" binding:"omitempty,uuid"`
	ImageURL   string `json:"image_url" binding:"omitempty,url"`
	Published  bool   `json:"published"`
}

func (r articleRequest) toModel(id uuid.UUID) (*model.Article, error) {
	categoryID, err := handler.ParseOptionalID(r.CategoryID, "category_id")
	if err != nil {
		return nil, err
	}
	a := &model.Article{
		Title:      r.Title,
		Slug:       r.Slug,
		Summary:    r.Summary,
		Body:       r.Body,
		CategoryID: categoryID,
		ImageURL:   r.ImageURL,
		Published:  r.Published,
	}
	a.ID = id
	return a, nil
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Slug        string `json:"slug" binding:"max=120"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
}

func (r categoryRequest) toModel(id uuid.UUID) *model.Category {
	c := &model.Category{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		SortOrder:   r.SortOrder,
	}
	c.ID = id
	return c
}

type publishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// GetContent lists articles (drafts included) or categories; with ?id it
// returns one.
func (h *Handler) GetContent(c *gin.Context) {
	id, err := handler.ParseOptionalID(c.Query("id"), "id")
	if err != nil {
		respond(c, 0, nil, err)
		return
	}

	ctx := c.Request.Context()
	var data interface{}
	switch kind := c.DefaultQuery("type", typeArticle); {
	case kind == typeArticle && id != nil:
		data, err = h.content.GetArticle(ctx, *id)
	case kind == typeArticle:
		data, err = h.content.ListArticles(ctx, false)
	case kind == typeCategory && id != nil:
		data, err = h.content.GetCategory(ctx, *id)
	case kind == typeCategory:
		data, err = h.content.ListCategories(ctx)
	default:
		err = apperrors.BadRequest(fmt.Sprintf("unknown type %q", kind), nil)
	}
	respond(c, http.StatusOK, data, err)
}

func (h *Handler) PostContent(c *gin.Context) {
	var env handler.Envelope
	if err := handler.BindJSON(c, &env); err != nil {
		respond(c, 0, nil, err)
		return
	}

	ctx := c.Request.Context()
	var (
		data interface{}
		err  error
	)
	switch env.Type {
	case typeArticle:
		var req articleRequest
		var article *model.Article
		if err = handler.BindData(env.Data, &req); err == nil {
			if article, err = req.toModel(uuid.Nil); err == nil {
				if err = h.content.CreateArticle(ctx, article); err == nil {
					data = article
				}
			}
		}
	case typeCategory:
		var req categoryRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			category := req.toModel(uuid.Nil)
			if err = h.content.CreateCategory(ctx, category); err == nil {
				data = category
			}
		}
	default:
		err = unknownType(env.Type)
	}
	respond(c, http.StatusCreated, data, err)
}

// PutContent replaces an article or category. {"action": "publish"} on an
// article only flips its publication.
func (h *Handler) PutContent(c *gin.Context) {
	var env handler.Envelope
	if err := handler.BindJSON(c, &env); err != nil {
		respond(c, 0, nil, err)
		return
	}
	id, err := handler.ParseID(firstOf(env.ID, c.Query("id")), "id")
	if err != nil {
		respond(c, 0, nil, err)
		return
	}

	ctx := c.Request.Context()
	var data interface{}
	switch kind := firstOf(env.Type, c.Query("type")); {
	case kind == typeArticle && env.Action == "publish":
		var req publishRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			data, err = h.content.PublishArticle(ctx, id, *req.Published)
		}
	case kind == typeArticle:
		var req articleRequest
		var article *model.Article
		if err = handler.BindData(env.Data, &req); err == nil {
			if article, err = req.toModel(id); err == nil {
				if err = h.content.UpdateArticle(ctx, article); err == nil {
					data = article
				}
			}
		}
	case kind == typeCategory:
		var req categoryRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			category := req.toModel(id)
			if err = h.content.UpdateCategory(ctx, category); err == nil {
				data = category
			}
		}
	default:
		err = unknownType(kind)
	}
	respond(c, http.StatusOK, data, err)
}

func (h *Handler) DeleteContent(c *gin.Context) {
	id, err := handler.ParseID(c.Query("id"), "id")
	if err != nil {
		respond(c, 0, nil, err)
		return
	}

	ctx := c.Request.Context()
	switch kind := c.Query("type"); kind {
	case typeArticle:
		err = h.content.DeleteArticle(ctx, id)
	case typeCategory:
		err = h.content.DeleteCategory(ctx, id)
	default:
		err = unknownType(kind)
	}
	respond(c, http.StatusOK, gin.H{"deleted": true}, err)
}

func unknownType(kind string) error {
	if kind == "" {
		return apperrors.BadRequest("type is required", nil)
	}
	return apperrors.BadRequest(fmt.Sprintf("unknown type %q", kind), nil)
}
