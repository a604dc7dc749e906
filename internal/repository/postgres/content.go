package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
)

type categoryRepository struct {
	BaseRepository
}

func NewCategoryRepository(base BaseRepository) repository.CategoryRepository {
	return &categoryRepository{base}
}

const categoryColumns = `id, name, slug, description, sort_order, created_at, updated_at`

func (r *categoryRepository) Create(ctx context.Context, category *model.Category) error {
	query := `
		INSERT INTO categories (id, name, slug, description, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	category.Touch(time.Now())

	_, err := r.db.ExecContext(ctx, query,
		category.ID,
		category.Name,
		category.Slug,
		category.Description,
		category.SortOrder,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		return writeError("category", err)
	}
	return nil
}

func (r *categoryRepository) Get(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	if err := r.get(ctx, &category, "category", query, id); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) Update(ctx context.Context, category *model.Category) error {
	query := `
		UPDATE categories
		SET name = $1, slug = $2, description = $3, sort_order = $4, updated_at = $5
		WHERE id = $6
	`
	category.UpdatedAt = time.Now()
	return r.execOne(ctx, "category", query,
		category.Name,
		category.Slug,
		category.Description,
		category.SortOrder,
		category.UpdatedAt,
		category.ID,
	)
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "category", `DELETE FROM categories WHERE id = $1`, id)
}

func (r *categoryRepository) List(ctx context.Context) ([]*model.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY sort_order ASC, name ASC`

	var categories []*model.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

type articleRepository struct {
	BaseRepository
}

func NewArticleRepository(base BaseRepository) repository.ArticleRepository {
	return &articleRepository{base}
}

const articleColumns = `
	id, title, slug, summary, body, category_id, image_url,
	published, published_at, created_at, updated_at
`

func (r *articleRepository) Create(ctx context.Context, article *model.Article) error {
	query := `
		INSERT INTO articles (
			id, title, slug, summary, body, category_id, image_url,
			published, published_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	article.Touch(time.Now())

	_, err := r.db.ExecContext(ctx, query,
		article.ID,
		article.Title,
		article.Slug,
		article.Summary,
		article.Body,
		article.CategoryID,
		article.ImageURL,
		article.Published,
		article.PublishedAt,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		return writeError("article", err)
	}
	return nil
}

func (r *articleRepository) Get(ctx context.Context, id uuid.UUID) (*model.Article, error) {
	var article model.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1`
	if err := r.get(ctx, &article, "article", query, id); err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepository) GetBySlug(ctx context.Context, slug string) (*model.Article, error) {
	var article model.Article
	query := `SELECT ` + articleColumns + ` FROM articles WHERE slug = $1`
	if err := r.get(ctx, &article, "article", query, slug); err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepository) Update(ctx context.Context, article *model.Article) error {
	query := `
		UPDATE articles
		SET title = $1, slug = $2, summary = $3, body = $4, category_id = $5,
			image_url = $6, published = $7, published_at = $8, updated_at = $9
		WHERE id = $10
	`
	article.UpdatedAt = time.Now()
	return r.execOne(ctx, "article", query,
		article.Title,
		article.Slug,
		article.Summary,
		article.Body,
		article.CategoryID,
		article.ImageURL,
		article.Published,
		article.PublishedAt,
		article.UpdatedAt,
		article.ID,
	)
}

func (r *articleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "article", `DELETE FROM articles WHERE id = $1`, id)
}

func (r *articleRepository) List(ctx context.Context, onlyPublished bool) ([]*model.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles`
	if onlyPublished {
		query += ` WHERE published`
	}
	query += ` ORDER BY COALESCE(published_at, created_at) DESC`

	var articles []*model.Article
	if err := r.db.SelectContext(ctx, &articles, query); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	return articles, nil
}
