package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
)

type ContentServicer interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ListArticles(ctx context.Context, onlyPublished bool) ([]*model.Article, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*model.Article, error)
	GetPublishedArticle(ctx context.Context, slug string) (*model.Article, error)
	CreateArticle(ctx context.Context, article *model.Article) error
	UpdateArticle(ctx context.Context, article *model.Article) error
	PublishArticle(ctx context.Context, id uuid.UUID, published bool) (*model.Article, error)
	DeleteArticle(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	categories repository.CategoryRepository
	articles   repository.ArticleRepository
	log        *logger.Logger
	now        func() time.Time
}

func NewService(categories repository.CategoryRepository, articles repository.ArticleRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		categories: categories,
		articles:   articles,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]*model.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if categories == nil {
		categories = []*model.Category{}
	}
	return categories, nil
}

func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	category, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "category")
	}
	return category, nil
}

func (s *Service) CreateCategory(ctx context.Context, category *model.Category) error {
	category.ID = uuid.Nil
	if err := normalizeCategory(category); err != nil {
		return err
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return writeErr(err, "category", "create")
	}
	return nil
}

func (s *Service) UpdateCategory(ctx context.Context, category *model.Category) error {
	existing, err := s.categories.Get(ctx, category.ID)
	if err != nil {
		return notFoundOr(err, "category")
	}
	if err := normalizeCategory(category); err != nil {
		return err
	}
	category.CreatedAt = existing.CreatedAt
	if err := s.categories.Update(ctx, category); err != nil {
		return writeErr(err, "category", "update")
	}
	return nil
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return notFoundOr(err, "category")
	}
	return nil
}

// ListArticles returns articles newest first. Public callers pass onlyPublished.
func (s *Service) ListArticles(ctx context.Context, onlyPublished bool) ([]*model.Article, error) {
	articles, err := s.articles.List(ctx, onlyPublished)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	if articles == nil {
		articles = []*model.Article{}
	}
	return articles, nil
}

func (s *Service) GetArticle(ctx context.Context, id uuid.UUID) (*model.Article, error) {
	article, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "article")
	}
	return article, nil
}

// GetPublishedArticle hides drafts behind NotFound.
func (s *Service) GetPublishedArticle(ctx context.Context, slug string) (*model.Article, error) {
	article, err := s.articles.GetBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOr(err, "article")
	}
	if !article.Published {
		return nil, apperrors.NotFound("article", nil)
	}
	return article, nil
}

func (s *Service) CreateArticle(ctx context.Context, article *model.Article) error {
	article.ID = uuid.Nil
	if err := s.normalizeArticle(ctx, article); err != nil {
		return err
	}
	article.PublishedAt = nil
	s.stampPublished(article)

	if err := s.articles.Create(ctx, article); err != nil {
		return writeErr(err, "article", "create")
	}
	return nil
}

func (s *Service) UpdateArticle(ctx context.Context, article *model.Article) error {
	existing, err := s.articles.Get(ctx, article.ID)
	if err != nil {
		return notFoundOr(err, "article")
	}
	if err := s.normalizeArticle(ctx, article); err != nil {
		return err
	}
	article.CreatedAt = existing.CreatedAt
	article.PublishedAt = existing.PublishedAt
	s.stampPublished(article)

	if err := s.articles.Update(ctx, article); err != nil {
		return writeErr(err, "article", "update")
	}
	return nil
}

func (s *Service) PublishArticle(ctx context.Context, id uuid.UUID, published bool) (*model.Article, error) {
	article, err := s.articles.Get(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "article")
	}
	article.Published = published
	s.stampPublished(article)

	if err := s.articles.Update(ctx, article); err != nil {
		return nil, writeErr(err, "article", "update")
	}
	s.log.Info("article publication changed", "article_id", id.String(), "published", published)
	return article, nil
}

func (s *Service) DeleteArticle(ctx context.Context, id uuid.UUID) error {
	if err := s.articles.Delete(ctx, id); err != nil {
		return notFoundOr(err, "article")
	}
	return nil
}

// stampPublished keeps the first publication date across edits and clears it
// when the article goes back to draft.
func (s *Service) stampPublished(article *model.Article) {
	switch {
	case !article.Published:
		article.PublishedAt = nil
	case article.PublishedAt == nil:
		now := s.now()
		article.PublishedAt = &now
	}
}

func (s *Service) normalizeArticle(ctx context.Context, article *model.Article) error {
	article.Title = strings.TrimSpace(article.Title)
	if article.Title == "" {
		return apperrors.BadRequest("article title is required", nil)
	}
	article.Slug = Slugify(firstNonEmpty(article.Slug, article.Title))
	if article.Slug == "" {
		return apperrors.BadRequest("article slug is empty", nil)
	}
	if article.CategoryID != nil {
		if _, err := s.categories.Get(ctx, *article.CategoryID); err != nil {
			return notFoundOr(err, "category")
		}
	}
	return nil
}

func normalizeCategory(category *model.Category) error {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return apperrors.BadRequest("category name is required", nil)
	}
	category.Slug = Slugify(firstNonEmpty(category.Slug, category.Name))
	if category.Slug == "" {
		return apperrors.BadRequest("category slug is empty", nil)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(entity, err)
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}

func writeErr(err error, entity, op string) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return apperrors.Conflict(fmt.Sprintf("%s slug already exists", entity), err)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound(entity, err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, entity, err)
}
