package content_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository/repotest"
	"github.com/jwalitptl/lab-portal-api/internal/service/content"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Perfil Lipídico Completo": "perfil-lipidico-completo",
		"  Niños & Adolescentes ":  "ninos-adolescentes",
		"Vitamina D (25-OH)":       "vitamina-d-25-oh",
		"¿Qué es el PSA?":          "que-es-el-psa",
		"---":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, content.Slugify(in), in)
	}
}

func newService() *content.Service {
	store := repotest.NewStore()
	return content.NewService(store.Categories(), store.Articles(), nil)
}

func TestCategories(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	hormones := &model.Category{Name: "Hormonas Tiroideas", SortOrder: 2}
	require.NoError(t, svc.CreateCategory(ctx, hormones))
	assert.Equal(t, "hormonas-tiroideas", hormones.Slug)

	blood := &model.Category{Name: "Hematología", SortOrder: 1}
	require.NoError(t, svc.CreateCategory(ctx, blood))

	err := svc.CreateCategory(ctx, &model.Category{Name: "Hormonas tiroideas"})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrConflict))

	err = svc.CreateCategory(ctx, &model.Category{Name: " "})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrBadRequest))

	list, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Hematología", list[0].Name)

	blood.Description = "Hemograma y coagulación"
	require.NoError(t, svc.UpdateCategory(ctx, blood))
	got, err := svc.GetCategory(ctx, blood.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hemograma y coagulación", got.Description)

	require.NoError(t, svc.DeleteCategory(ctx, blood.ID))
	assert.True(t, apperrors.IsKind(svc.DeleteCategory(ctx, blood.ID), apperrors.ErrNotFound))
}

func TestArticlePublication(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	draft := &model.Article{Title: "¿Cómo prepararse para un análisis de sangre?", Body: "Ayuno de 8 horas."}
	require.NoError(t, svc.CreateArticle(ctx, draft))
	assert.Equal(t, "como-prepararse-para-un-analisis-de-sangre", draft.Slug)
	assert.Nil(t, draft.PublishedAt)

	_, err := svc.GetPublishedArticle(ctx, draft.Slug)
	assert.True(t, apperrors.IsKind(err, apperrors.ErrNotFound), "drafts are hidden")

	published, err := svc.PublishArticle(ctx, draft.ID, true)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	firstPublished := *published.PublishedAt

	published.Summary = "Ayuno y hidratación"
	require.NoError(t, svc.UpdateArticle(ctx, published))
	assert.Equal(t, firstPublished, *published.PublishedAt, "edits keep the publication date")

	got, err := svc.GetPublishedArticle(ctx, draft.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Ayuno y hidratación", got.Summary)

	require.NoError(t, svc.CreateArticle(ctx, &model.Article{Title: "Borrador"}))
	public, err := svc.ListArticles(ctx, true)
	require.NoError(t, err)
	assert.Len(t, public, 1)
	all, err := svc.ListArticles(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unpublished, err := svc.PublishArticle(ctx, draft.ID, false)
	require.NoError(t, err)
	assert.Nil(t, unpublished.PublishedAt)
}

func TestArticleValidation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	err := svc.CreateArticle(ctx, &model.Article{})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrBadRequest))

	missing := uuid.New()
	err = svc.CreateArticle(ctx, &model.Article{Title: "Glucosa", CategoryID: &missing})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrNotFound))

	require.NoError(t, svc.CreateArticle(ctx, &model.Article{Title: "Glucosa"}))
	err = svc.CreateArticle(ctx, &model.Article{Title: "glucosa"})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrConflict))

	err = svc.UpdateArticle(ctx, &model.Article{Base: model.Base{ID: uuid.New()}, Title: "x"})
	assert.True(t, apperrors.IsKind(err, apperrors.ErrNotFound))
}
