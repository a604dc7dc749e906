// Package repotest holds map-backed repositories for service and handler
// tests, in the manner of net/http/httptest. It is shared by tests in several
// packages so it cannot live in a _test.go file; no binary imports it.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
)

// Store shares one lock and one set of tables between the repositories it hands out.
type Store struct {
	mu          sync.RWMutex
	references  map[uuid.UUID]*model.Reference
	assignments []model.UserReference
	tariffs     map[uuid.UUID]*model.Tariff
	prices      map[priceKey]*model.TariffPrice
	exams       map[uuid.UUID]*model.Exam
	categories  map[uuid.UUID]*model.Category
	articles    map[uuid.UUID]*model.Article

	// FailPrice makes price writes for the exam fail, for partial-failure tests.
	FailPrice map[uuid.UUID]error
}

type priceKey struct {
	tariff uuid.UUID
	exam   uuid.UUID
}

func NewStore() *Store {
	return &Store{
		references: make(map[uuid.UUID]*model.Reference),
		tariffs:    make(map[uuid.UUID]*model.Tariff),
		prices:     make(map[priceKey]*model.TariffPrice),
		exams:      make(map[uuid.UUID]*model.Exam),
		categories: make(map[uuid.UUID]*model.Category),
		articles:   make(map[uuid.UUID]*model.Article),
		FailPrice:  make(map[uuid.UUID]error),
	}
}

func (s *Store) References() repository.ReferenceRepository { return (*referenceRepo)(s) }
func (s *Store) Tariffs() repository.TariffRepository       { return (*tariffRepo)(s) }
func (s *Store) Exams() repository.ExamRepository           { return (*examRepo)(s) }
func (s *Store) Categories() repository.CategoryRepository  { return (*categoryRepo)(s) }
func (s *Store) Articles() repository.ArticleRepository     { return (*articleRepo)(s) }

// AddExam seeds the read-only exam table.
func (s *Store) AddExam(exam *model.Exam) *model.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	exam.Touch(time.Now())
	s.exams[exam.ID] = exam
	return exam
}

// PriceCount is the number of tariff price rows.
func (s *Store) PriceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}

func notFound(entity string) error {
	return fmt.Errorf("%s: %w", entity, repository.ErrNotFound)
}

type referenceRepo Store

func (r *referenceRepo) Create(ctx context.Context, ref *model.Reference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.references {
		if existing.Active && ref.Active && existing.Name == ref.Name {
			return fmt.Errorf("reference %q: %w", ref.Name, repository.ErrConflict)
		}
	}
	ref.Touch(time.Now())
	cp := *ref
	r.references[ref.ID] = &cp
	return nil
}

func (r *referenceRepo) Get(ctx context.Context, id uuid.UUID) (*model.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.references[id]
	if !ok {
		return nil, notFound("reference")
	}
	cp := *ref
	return &cp, nil
}

func (r *referenceRepo) GetByName(ctx context.Context, name string) (*model.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ref := range r.references {
		if ref.Active && ref.Name == name {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, notFound("reference")
}

func (r *referenceRepo) Update(ctx context.Context, ref *model.Reference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.references[ref.ID]; !ok {
		return notFound("reference")
	}
	ref.UpdatedAt = time.Now()
	cp := *ref
	r.references[ref.ID] = &cp
	return nil
}

func (r *referenceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.references[id]; !ok {
		return notFound("reference")
	}
	delete(r.references, id)
	kept := r.assignments[:0]
	for _, a := range r.assignments {
		if a.ReferenceID != id {
			kept = append(kept, a)
		}
	}
	r.assignments = kept
	return nil
}

func (r *referenceRepo) List(ctx context.Context) ([]*model.Reference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Reference, 0, len(r.references))
	for _, ref := range r.references {
		cp := *ref
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *referenceRepo) SetDefaultTariff(ctx context.Context, referenceID uuid.UUID, tariffID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.references[referenceID]
	if !ok {
		return notFound("reference")
	}
	ref.DefaultTariffID = tariffID
	ref.UpdatedAt = time.Now()
	return nil
}

func (r *referenceRepo) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*model.ReferenceAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.ReferenceAssignment
	for _, a := range r.assignments {
		ref, ok := r.references[a.ReferenceID]
		if a.UserID != userID || !ok || !ref.Active {
			continue
		}
		out = append(out, &model.ReferenceAssignment{
			ReferenceID:     ref.ID,
			ReferenceName:   ref.Name,
			DefaultTariffID: ref.DefaultTariffID,
			AssignedAt:      a.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.After(out[j].AssignedAt)
		}
		return out[i].ReferenceName < out[j].ReferenceName
	})
	return out, nil
}

func (r *referenceRepo) Assign(ctx context.Context, userID, referenceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.references[referenceID]; !ok {
		return notFound("reference")
	}
	for _, a := range r.assignments {
		if a.UserID == userID && a.ReferenceID == referenceID {
			return nil
		}
	}
	now := time.Now()
	// keep assignment times strictly increasing so ordering is deterministic
	if n := len(r.assignments); n > 0 && !now.After(r.assignments[n-1].CreatedAt) {
		now = r.assignments[n-1].CreatedAt.Add(time.Microsecond)
	}
	r.assignments = append(r.assignments, model.UserReference{
		UserID:      userID,
		ReferenceID: referenceID,
		CreatedAt:   now,
	})
	return nil
}

func (r *referenceRepo) Unassign(ctx context.Context, userID, referenceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.assignments {
		if a.UserID == userID && a.ReferenceID == referenceID {
			r.assignments = append(r.assignments[:i], r.assignments[i+1:]...)
			return nil
		}
	}
	return notFound("user reference")
}

type tariffRepo Store

func (r *tariffRepo) Create(ctx context.Context, tariff *model.Tariff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tariffs {
		if existing.Name == tariff.Name {
			return fmt.Errorf("tariff %q: %w", tariff.Name, repository.ErrConflict)
		}
	}
	if tariff.Type == "" {
		tariff.Type = model.TariffTypeSale
	}
	tariff.Touch(time.Now())
	cp := *tariff
	r.tariffs[tariff.ID] = &cp
	return nil
}

func (r *tariffRepo) Get(ctx context.Context, id uuid.UUID) (*model.Tariff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tariff, ok := r.tariffs[id]
	if !ok {
		return nil, notFound("tariff")
	}
	cp := *tariff
	return &cp, nil
}

func (r *tariffRepo) GetByName(ctx context.Context, name string) (*model.Tariff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tariff := range r.tariffs {
		if tariff.Name == name {
			cp := *tariff
			return &cp, nil
		}
	}
	return nil, notFound("tariff")
}

func (r *tariffRepo) Update(ctx context.Context, tariff *model.Tariff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tariffs[tariff.ID]; !ok {
		return notFound("tariff")
	}
	tariff.UpdatedAt = time.Now()
	cp := *tariff
	r.tariffs[tariff.ID] = &cp
	return nil
}

func (r *tariffRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tariffs[id]; !ok {
		return notFound("tariff")
	}
	delete(r.tariffs, id)
	for key := range r.prices {
		if key.tariff == id {
			delete(r.prices, key)
		}
	}
	for _, ref := range r.references {
		if ref.DefaultTariffID != nil && *ref.DefaultTariffID == id {
			ref.DefaultTariffID = nil
		}
	}
	return nil
}

func (r *tariffRepo) List(ctx context.Context) ([]*model.Tariff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Tariff, 0, len(r.tariffs))
	for _, tariff := range r.tariffs {
		cp := *tariff
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *tariffRepo) GetPrice(ctx context.Context, tariffID, examID uuid.UUID) (*model.TariffPrice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	price, ok := r.prices[priceKey{tariffID, examID}]
	if !ok {
		return nil, notFound("tariff price")
	}
	cp := *price
	return &cp, nil
}

func (r *tariffRepo) PricesForExams(ctx context.Context, tariffID uuid.UUID, examIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, id := range examIDs {
		if price, ok := r.prices[priceKey{tariffID, id}]; ok {
			out[id] = price.Price
		}
	}
	return out, nil
}

func (r *tariffRepo) ListPrices(ctx context.Context, tariffID uuid.UUID) ([]*model.TariffPriceView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.TariffPriceView
	for key, price := range r.prices {
		if key.tariff != tariffID {
			continue
		}
		view := &model.TariffPriceView{TariffPrice: *price}
		if exam, ok := r.exams[key.exam]; ok {
			view.ExamName = exam.Name
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamName < out[j].ExamName })
	return out, nil
}

func (r *tariffRepo) UpsertPrice(ctx context.Context, price *model.TariffPrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailPrice[price.ExamID]; err != nil {
		return err
	}
	key := priceKey{price.TariffID, price.ExamID}
	if existing, ok := r.prices[key]; ok {
		price.ID = existing.ID
		price.CreatedAt = existing.CreatedAt
	}
	price.Touch(time.Now())
	cp := *price
	r.prices[key] = &cp
	return nil
}

func (r *tariffRepo) InsertPriceIfAbsent(ctx context.Context, price *model.TariffPrice) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailPrice[price.ExamID]; err != nil {
		return false, err
	}
	key := priceKey{price.TariffID, price.ExamID}
	if _, ok := r.prices[key]; ok {
		return false, nil
	}
	price.Touch(time.Now())
	cp := *price
	r.prices[key] = &cp
	return true, nil
}

func (r *tariffRepo) DeletePrice(ctx context.Context, tariffID, examID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := priceKey{tariffID, examID}
	if _, ok := r.prices[key]; !ok {
		return notFound("tariff price")
	}
	delete(r.prices, key)
	return nil
}

type examRepo Store

func (r *examRepo) Get(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exam, ok := r.exams[id]
	if !ok {
		return nil, notFound("exam")
	}
	cp := *exam
	return &cp, nil
}

func (r *examRepo) List(ctx context.Context, filters *model.ExamFilters) ([]*model.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Exam
	for _, exam := range r.exams {
		if filters != nil {
			if filters.OnlyActive && !exam.Active {
				continue
			}
			if filters.CategoryID != nil && (exam.CategoryID == nil || *exam.CategoryID != *filters.CategoryID) {
				continue
			}
			if filters.Kind != "" && exam.Kind != filters.Kind {
				continue
			}
			if filters.Search != "" && !strings.Contains(strings.ToLower(exam.Name), strings.ToLower(filters.Search)) {
				continue
			}
		}
		cp := *exam
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *examRepo) ListWithLegacyPrice(ctx context.Context) ([]*model.Exam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Exam
	for _, exam := range r.exams {
		if exam.HasLegacyPrice() {
			cp := *exam
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type categoryRepo Store

func (r *categoryRepo) Create(ctx context.Context, category *model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.categories {
		if existing.Slug == category.Slug {
			return fmt.Errorf("category %q: %w", category.Slug, repository.ErrConflict)
		}
	}
	category.Touch(time.Now())
	cp := *category
	r.categories[category.ID] = &cp
	return nil
}

func (r *categoryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	category, ok := r.categories[id]
	if !ok {
		return nil, notFound("category")
	}
	cp := *category
	return &cp, nil
}

func (r *categoryRepo) Update(ctx context.Context, category *model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[category.ID]; !ok {
		return notFound("category")
	}
	category.UpdatedAt = time.Now()
	cp := *category
	r.categories[category.ID] = &cp
	return nil
}

func (r *categoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return notFound("category")
	}
	delete(r.categories, id)
	return nil
}

func (r *categoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Category, 0, len(r.categories))
	for _, category := range r.categories {
		cp := *category
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type articleRepo Store

func (r *articleRepo) Create(ctx context.Context, article *model.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.articles {
		if existing.Slug == article.Slug {
			return fmt.Errorf("article %q: %w", article.Slug, repository.ErrConflict)
		}
	}
	article.Touch(time.Now())
	cp := *article
	r.articles[article.ID] = &cp
	return nil
}

func (r *articleRepo) Get(ctx context.Context, id uuid.UUID) (*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	article, ok := r.articles[id]
	if !ok {
		return nil, notFound("article")
	}
	cp := *article
	return &cp, nil
}

func (r *articleRepo) GetBySlug(ctx context.Context, slug string) (*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, article := range r.articles {
		if article.Slug == slug {
			cp := *article
			return &cp, nil
		}
	}
	return nil, notFound("article")
}

func (r *articleRepo) Update(ctx context.Context, article *model.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.articles[article.ID]; !ok {
		return notFound("article")
	}
	article.UpdatedAt = time.Now()
	cp := *article
	r.articles[article.ID] = &cp
	return nil
}

func (r *articleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.articles[id]; !ok {
		return notFound("article")
	}
	delete(r.articles, id)
	return nil
}

func (r *articleRepo) List(ctx context.Context, onlyPublished bool) ([]*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Article
	for _, article := range r.articles {
		if onlyPublished && !article.Published {
			continue
		}
		cp := *article
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return articleDate(out[i]).After(articleDate(out[j])) })
	return out, nil
}

func articleDate(a *model.Article) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}
