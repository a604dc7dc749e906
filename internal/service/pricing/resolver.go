package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
	"github.com/jwalitptl/lab-portal-api/pkg/metrics"
)

// ErrPriceNotFound means neither a tariff nor a legacy price exists for the
// exam. Callers hide the price instead of showing zero.
var ErrPriceNotFound = errors.New("no resolvable price")

type PriceResolver interface {
	ResolvePrice(ctx context.Context, examID uuid.UUID, userID *uuid.UUID) (*model.PriceResolution, error)
	ResolvePrices(ctx context.Context, examIDs []uuid.UUID, userID *uuid.UUID) (map[uuid.UUID]*model.PriceResolution, error)
	Invalidate()
}

type Options struct {
	PublicReference   string
	BaseTariff        string
	ReferentialTariff string
	DirectoryTTL      time.Duration
	CleanupInterval   time.Duration
}

// candidate is one reference a user's price may come from. tariff is nil when
// the reference has no usable tariff binding.
type candidate struct {
	referenceName string
	public        bool
	tariff        *model.Tariff
}

type Resolver struct {
	references repository.ReferenceRepository
	tariffs    repository.TariffRepository
	exams      repository.ExamRepository
	directory  *cache.Cache
	opts       Options
	metrics    *metrics.Metrics
	log        *logger.Logger
}

func NewResolver(
	references repository.ReferenceRepository,
	tariffs repository.TariffRepository,
	exams repository.ExamRepository,
	opts Options,
	m *metrics.Metrics,
	log *logger.Logger,
) *Resolver {
	if opts.DirectoryTTL <= 0 {
		opts.DirectoryTTL = 5 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 10 * time.Minute
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		references: references,
		tariffs:    tariffs,
		exams:      exams,
		directory:  cache.New(opts.DirectoryTTL, opts.CleanupInterval),
		opts:       opts,
		metrics:    m,
		log:        log,
	}
}

// Invalidate drops cached references and tariffs. Admin writes call it.
func (r *Resolver) Invalidate() {
	r.directory.Flush()
}

// ResolvePrice returns the price of examID for userID (nil for anonymous
// visitors). Candidate references are tried most recently assigned first;
// the first whose tariff prices the exam wins. Without any tariff price the
// exam's legacy flat price is used, read through the first candidate.
func (r *Resolver) ResolvePrice(ctx context.Context, examID uuid.UUID, userID *uuid.UUID) (*model.PriceResolution, error) {
	exam, err := r.exams.Get(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.metrics.PriceResolutions.WithLabelValues("not_found").Inc()
			return nil, apperrors.NotFound("exam", err)
		}
		r.metrics.PriceResolutions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	candidates, err := r.candidates(ctx, userID)
	if err != nil {
		r.metrics.PriceResolutions.WithLabelValues("error").Inc()
		return nil, err
	}

	for _, c := range candidates {
		if c.tariff == nil {
			continue
		}
		price, err := r.tariffs.GetPrice(ctx, c.tariff.ID, examID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			r.metrics.PriceResolutions.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to get tariff price: %w", err)
		}
		r.metrics.PriceResolutions.WithLabelValues(string(model.PriceSourceTariff)).Inc()
		return tariffResolution(examID, price.Price, c), nil
	}

	if res := r.legacyResolution(exam, candidates); res != nil {
		r.metrics.PriceResolutions.WithLabelValues(string(model.PriceSourceLegacy)).Inc()
		return res, nil
	}

	r.metrics.PriceResolutions.WithLabelValues("not_found").Inc()
	return nil, apperrors.NotFound("price", ErrPriceNotFound)
}

// ResolvePrices resolves a whole catalog page. Exams without a price are
// left out of the result.
func (r *Resolver) ResolvePrices(ctx context.Context, examIDs []uuid.UUID, userID *uuid.UUID) (map[uuid.UUID]*model.PriceResolution, error) {
	resolved := make(map[uuid.UUID]*model.PriceResolution, len(examIDs))
	if len(examIDs) == 0 {
		return resolved, nil
	}

	candidates, err := r.candidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	pending := examIDs
	for _, c := range candidates {
		if c.tariff == nil || len(pending) == 0 {
			continue
		}
		prices, err := r.tariffs.PricesForExams(ctx, c.tariff.ID, pending)
		if err != nil {
			return nil, fmt.Errorf("failed to get tariff prices: %w", err)
		}

		var rest []uuid.UUID
		for _, id := range pending {
			if price, ok := prices[id]; ok {
				resolved[id] = tariffResolution(id, price, c)
				continue
			}
			rest = append(rest, id)
		}
		pending = rest
	}

	for _, id := range pending {
		exam, err := r.exams.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		if res := r.legacyResolution(exam, candidates); res != nil {
			resolved[id] = res
		}
	}

	return resolved, nil
}

func tariffResolution(examID uuid.UUID, price decimal.Decimal, c candidate) *model.PriceResolution {
	tariffID := c.tariff.ID
	return &model.PriceResolution{
		ExamID:        examID,
		Price:         price,
		TariffID:      &tariffID,
		TariffName:    c.tariff.Name,
		ReferenceName: c.referenceName,
		Source:        model.PriceSourceTariff,
	}
}

// legacyResolution reads the flat prices that predate tariffs. Non-public
// references prefer reference_price.
func (r *Resolver) legacyResolution(exam *model.Exam, candidates []candidate) *model.PriceResolution {
	lead := candidate{referenceName: r.opts.PublicReference, public: true}
	if len(candidates) > 0 {
		lead = candidates[0]
	}

	res := &model.PriceResolution{
		ExamID:        exam.ID,
		ReferenceName: lead.referenceName,
		Source:        model.PriceSourceLegacy,
	}
	switch {
	case !lead.public && exam.HasLegacyReferencePrice():
		res.Price = exam.LegacyReferencePrice.Decimal
		res.TariffName = r.opts.ReferentialTariff
	case exam.HasLegacyPrice():
		res.Price = exam.LegacyPrice.Decimal
		res.TariffName = r.opts.BaseTariff
	default:
		return nil
	}
	return res
}

// candidates lists the references a price may come from, in priority order.
// Anonymous users and users without assignments get the public reference.
func (r *Resolver) candidates(ctx context.Context, userID *uuid.UUID) ([]candidate, error) {
	if userID != nil {
		assignments, err := r.references.ListAssignments(ctx, *userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list reference assignments: %w", err)
		}
		if len(assignments) > 0 {
			out := make([]candidate, 0, len(assignments))
			for _, a := range assignments {
				c := candidate{
					referenceName: a.ReferenceName,
					public:        a.ReferenceName == r.opts.PublicReference,
				}
				if a.DefaultTariffID != nil {
					tariff, err := r.tariff(ctx, *a.DefaultTariffID)
					if err != nil {
						return nil, err
					}
					c.tariff = tariff
				}
				if c.tariff == nil && c.public {
					base, err := r.tariffByName(ctx, r.opts.BaseTariff)
					if err != nil {
						return nil, err
					}
					c.tariff = base
				}
				out = append(out, c)
			}
			return out, nil
		}
	}

	public, err := r.publicCandidate(ctx)
	if err != nil {
		return nil, err
	}
	return []candidate{public}, nil
}

func (r *Resolver) publicCandidate(ctx context.Context) (candidate, error) {
	const key = "public"
	if cached, ok := r.directory.Get(key); ok {
		return cached.(candidate), nil
	}

	c := candidate{referenceName: r.opts.PublicReference, public: true}
	ref, err := r.references.GetByName(ctx, r.opts.PublicReference)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		r.log.Warn("public reference missing, using base tariff", "reference", r.opts.PublicReference)
	case err != nil:
		return candidate{}, fmt.Errorf("failed to get public reference: %w", err)
	case ref.DefaultTariffID != nil:
		tariff, err := r.tariff(ctx, *ref.DefaultTariffID)
		if err != nil {
			return candidate{}, err
		}
		c.tariff = tariff
	}

	if c.tariff == nil {
		base, err := r.tariffByName(ctx, r.opts.BaseTariff)
		if err != nil {
			return candidate{}, err
		}
		c.tariff = base
	}

	r.directory.SetDefault(key, c)
	return c, nil
}

// tariff returns nil for missing or inactive tariffs.
func (r *Resolver) tariff(ctx context.Context, id uuid.UUID) (*model.Tariff, error) {
	key := "tariff:" + id.String()
	if cached, ok := r.directory.Get(key); ok {
		return cached.(*model.Tariff), nil
	}

	tariff, err := r.tariffs.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		tariff, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tariff: %w", err)
	}
	if tariff != nil && !tariff.Active {
		tariff = nil
	}
	r.directory.SetDefault(key, tariff)
	return tariff, nil
}

func (r *Resolver) tariffByName(ctx context.Context, name string) (*model.Tariff, error) {
	key := "tariff-name:" + name
	if cached, ok := r.directory.Get(key); ok {
		return cached.(*model.Tariff), nil
	}

	tariff, err := r.tariffs.GetByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		tariff, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tariff %q: %w", name, err)
	}
	if tariff != nil && !tariff.Active {
		tariff = nil
	}
	r.directory.SetDefault(key, tariff)
	return tariff, nil
}
