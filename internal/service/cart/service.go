package cart

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/email"
	"github.com/jwalitptl/lab-portal-api/internal/model"
	"github.com/jwalitptl/lab-portal-api/internal/repository"
	"github.com/jwalitptl/lab-portal-api/internal/service/pricing"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/logger"
	"github.com/jwalitptl/lab-portal-api/pkg/metrics"
	"github.com/jwalitptl/lab-portal-api/pkg/payment"
)

var cartIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// StaleCheckout is how long a cart may sit in checking_out before it is
// treated as populated again. It outlives any notification timeout.
const StaleCheckout = 5 * time.Minute

// Every method takes the caller's user id. A cart that belongs to a user is
// invisible to everyone else.
type CartServicer interface {
	Get(ctx context.Context, id string, userID *uuid.UUID) (*model.Cart, error)
	AddItem(ctx context.Context, id string, userID *uuid.UUID, req AddItemRequest) (*model.Cart, error)
	RemoveItem(ctx context.Context, id string, userID *uuid.UUID, examID uuid.UUID) (*model.Cart, error)
	SetQuantity(ctx context.Context, id string, userID *uuid.UUID, examID uuid.UUID, quantity int) (*model.Cart, error)
	SetPatient(ctx context.Context, id string, userID *uuid.UUID, patient model.PatientDetails) (*model.Cart, error)
	SetSchedule(ctx context.Context, id string, userID *uuid.UUID, schedule model.PickupSchedule) (*model.Cart, error)
	Clear(ctx context.Context, id string, userID *uuid.UUID) error
	Abandon(ctx context.Context, id string, userID *uuid.UUID) error
	Checkout(ctx context.Context, id string, userID *uuid.UUID, req CheckoutRequest) (*model.CheckoutResult, error)
}

type AddItemRequest struct {
	ExamID         uuid.UUID             `json:"exam_id" binding:"required"`
	Quantity       int                   `json:"quantity" binding:"omitempty,min=1"`
	PatientDetails *model.PatientDetails `json:"patient_details,omitempty"`
}

type CheckoutRequest struct {
	PaymentMethod model.PaymentMethod   `json:"payment_method" binding:"required,payment_method"`
	Patient       *model.PatientDetails `json:"patient,omitempty"`
	Schedule      *model.PickupSchedule `json:"schedule,omitempty"`
}

type Config struct {
	MerchantPhone string
	// Message prefixes the payment reference in the wallet transfer note.
	Message string
}

type Service struct {
	store    Store
	prices   pricing.PriceResolver
	exams    examGetter
	notifier email.Notifier
	cfg      Config
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

type examGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

func NewService(store Store, prices pricing.PriceResolver, exams examGetter, notifier email.Notifier, cfg Config, m *metrics.Metrics, log *logger.Logger) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		prices:   prices,
		exams:    exams,
		notifier: notifier,
		cfg:      cfg,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Get returns the cart, or a new empty one when id is unknown. Carts are
// created lazily on first write.
func (s *Service) Get(ctx context.Context, id string, userID *uuid.UUID) (*model.Cart, error) {
	if !cartIDPattern.MatchString(id) {
		return nil, apperrors.BadRequest("invalid cart id", nil)
	}
	cart, err := s.store.Load(ctx, id)
	if errors.Is(err, ErrCartNotFound) {
		return &model.Cart{ID: id, State: model.CartEmpty, Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart.UserID != nil && (userID == nil || *userID != *cart.UserID) {
		return nil, apperrors.NotFound("cart", nil)
	}
	if cart.Items == nil {
		cart.Items = []model.CartItem{}
	}
	return s.recoverStale(cart), nil
}

// recoverStale returns a cart left in checking_out by an interrupted checkout
// to populated so it can be edited and submitted again.
func (s *Service) recoverStale(cart *model.Cart) *model.Cart {
	if cart.State != model.CartCheckingOut || s.now().Sub(cart.UpdatedAt) < StaleCheckout {
		return cart
	}
	populated, err := Reduce(*cart, Action{Type: ActionCheckoutFailed, At: s.now()})
	if err != nil {
		return cart
	}
	s.log.Warn("recovered stale checkout", "cart_id", cart.ID)
	return &populated
}

// AddItem snapshots the caller's price at add time. Adding an exam already
// in the cart increments its quantity and keeps the first price.
func (s *Service) AddItem(ctx context.Context, id string, userID *uuid.UUID, req AddItemRequest) (*model.Cart, error) {
	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if cart.UserID == nil && userID != nil {
		cart.UserID = userID
	}

	item := model.CartItem{
		ExamID:         req.ExamID,
		Quantity:       req.Quantity,
		PatientDetails: req.PatientDetails,
	}
	if i := cart.Find(req.ExamID); i >= 0 {
		item.Price = cart.Items[i].Price
	} else {
		exam, err := s.exams.Get(ctx, req.ExamID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("exam", err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get exam: %w", err)
		}
		if !exam.Active {
			return nil, apperrors.BadRequest("exam is not available", nil)
		}
		res, err := s.prices.ResolvePrice(ctx, req.ExamID, userID)
		if errors.Is(err, pricing.ErrPriceNotFound) {
			return nil, apperrors.BadRequest(fmt.Sprintf("%s has no price and cannot be ordered online", exam.Name), err)
		}
		if err != nil {
			return nil, err
		}
		item.Name = exam.Name
		item.Price = res.Price
		item.TariffName = res.TariffName
	}

	return s.apply(ctx, cart, Action{Type: ActionAddItem, Item: item})
}

func (s *Service) RemoveItem(ctx context.Context, id string, userID *uuid.UUID, examID uuid.UUID) (*model.Cart, error) {
	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, cart, Action{Type: ActionRemoveItem, ExamID: examID})
}

// SetQuantity changes a line's quantity; zero removes it. The unit price is
// not re-resolved here, checkout does that.
func (s *Service) SetQuantity(ctx context.Context, id string, userID *uuid.UUID, examID uuid.UUID, quantity int) (*model.Cart, error) {
	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, cart, Action{Type: ActionSetQuantity, ExamID: examID, Quantity: quantity})
}

func (s *Service) SetPatient(ctx context.Context, id string, userID *uuid.UUID, patient model.PatientDetails) (*model.Cart, error) {
	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, cart, Action{Type: ActionSetPatient, Patient: &patient})
}

func (s *Service) SetSchedule(ctx context.Context, id string, userID *uuid.UUID, schedule model.PickupSchedule) (*model.Cart, error) {
	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, cart, Action{Type: ActionSetSchedule, Schedule: &schedule})
}

// Clear empties the cart and purges patient and schedule data. A cart that
// is checking out is abandoned instead.
func (s *Service) Clear(ctx context.Context, id string, userID *uuid.UUID) error {
	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	action := ActionClear
	if cart.State == model.CartCheckingOut {
		action = ActionAbandon
	}
	return s.discard(ctx, cart, action)
}

// Abandon drops the cart from any state but completed, including one stuck
// in checking_out.
func (s *Service) Abandon(ctx context.Context, id string, userID *uuid.UUID) error {
	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	return s.discard(ctx, cart, ActionAbandon)
}

func (s *Service) discard(ctx context.Context, cart *model.Cart, action ActionType) error {
	next, err := Reduce(*cart, Action{Type: action, At: s.now()})
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	if next.State == model.CartAbandoned {
		s.metrics.Checkouts.WithLabelValues("abandoned", "").Inc()
	}
	return nil
}

// Checkout re-resolves every price, builds the payment link and sends the
// notification once. The cart is deleted only after the notification is
// accepted; otherwise it returns to populated and the error is retryable.
func (s *Service) Checkout(ctx context.Context, id string, userID *uuid.UUID, req CheckoutRequest) (*model.CheckoutResult, error) {
	if !payment.Valid(req.PaymentMethod) {
		return nil, apperrors.BadRequest(fmt.Sprintf("unsupported payment method %q", req.PaymentMethod), nil)
	}

	cart, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	current := *cart
	if req.Patient != nil {
		if current, err = Reduce(current, Action{Type: ActionSetPatient, Patient: req.Patient, At: s.now()}); err != nil {
			return nil, err
		}
	}
	if req.Schedule != nil {
		if current, err = Reduce(current, Action{Type: ActionSetSchedule, Schedule: req.Schedule, At: s.now()}); err != nil {
			return nil, err
		}
	}

	checkingOut, err := Reduce(current, Action{Type: ActionBeginCheckout, At: s.now()})
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, &checkingOut); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}

	result, err := s.complete(ctx, &checkingOut, userID, req.PaymentMethod)
	if err != nil {
		s.metrics.Checkouts.WithLabelValues("failed", string(req.PaymentMethod)).Inc()
		s.rollback(ctx, checkingOut)
		return nil, err
	}

	s.metrics.Checkouts.WithLabelValues("completed", string(req.PaymentMethod)).Inc()
	return result, nil
}

func (s *Service) complete(ctx context.Context, cart *model.Cart, userID *uuid.UUID, method model.PaymentMethod) (*model.CheckoutResult, error) {
	changes, err := s.refreshPrices(ctx, cart, userID)
	if err != nil {
		return nil, err
	}

	total := cart.Total()
	reference := newReference()
	message := strings.TrimSpace(s.cfg.Message + " " + reference)

	link, err := payment.DeepLink(method, s.cfg.MerchantPhone, total, message)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	payload := BuildPayload(cart, reference, total, method, link)
	if err := s.notifier.Send(ctx, payload); err != nil {
		s.log.Error(err, "checkout notification failed", "cart_id", cart.ID, "reference", reference)
		if apperrors.IsKind(err, apperrors.ErrBadRequest) {
			return nil, err
		}
		upstream := apperrors.Upstream("we could not send your order, please try again", 0, err)
		upstream.Retryable = true
		return nil, upstream
	}

	completed, err := Reduce(*cart, Action{Type: ActionCheckoutSucceeded, At: s.now()})
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, cart.ID); err != nil {
		// notification already sent, checkout still succeeds
		s.log.Error(err, "failed to delete completed cart", "cart_id", cart.ID)
	}

	s.log.Info("checkout completed",
		"cart_id", cart.ID,
		"reference", reference,
		"total", total.StringFixed(2),
		"method", string(method),
	)

	return &model.CheckoutResult{
		CartID:        cart.ID,
		State:         completed.State,
		Reference:     reference,
		Total:         total,
		PaymentMethod: method,
		PaymentLink:   link,
		Items:         cart.Items,
		PriceChanges:  changes,
	}, nil
}

// refreshPrices re-resolves every line so admin price edits made during the
// session apply. Lines whose price moved are reported.
func (s *Service) refreshPrices(ctx context.Context, cart *model.Cart, userID *uuid.UUID) ([]model.PriceChange, error) {
	var changes []model.PriceChange
	for i := range cart.Items {
		item := &cart.Items[i]
		res, err := s.prices.ResolvePrice(ctx, item.ExamID, userID)
		if errors.Is(err, pricing.ErrPriceNotFound) || apperrors.IsKind(err, apperrors.ErrNotFound) {
			return nil, apperrors.BadRequest(fmt.Sprintf("%s is no longer available, remove it to continue", item.Name), err)
		}
		if err != nil {
			return nil, err
		}
		if !res.Price.Equal(item.Price) {
			changes = append(changes, model.PriceChange{
				ExamID:   item.ExamID,
				Name:     item.Name,
				OldPrice: item.Price,
				NewPrice: res.Price,
			})
			item.Price = res.Price
			item.TariffName = res.TariffName
		}
	}
	return changes, nil
}

func (s *Service) rollback(ctx context.Context, checkingOut model.Cart) {
	populated, err := Reduce(checkingOut, Action{Type: ActionCheckoutFailed, At: s.now()})
	if err != nil {
		s.log.Error(err, "failed to roll back checkout", "cart_id", checkingOut.ID)
		return
	}
	if err := s.store.Save(ctx, &populated); err != nil {
		s.log.Error(err, "failed to save cart after checkout failure", "cart_id", checkingOut.ID)
	}
}

func (s *Service) apply(ctx context.Context, cart *model.Cart, action Action) (*model.Cart, error) {
	if action.At.IsZero() {
		action.At = s.now()
	}
	next, err := Reduce(*cart, action)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	if next.Items == nil {
		next.Items = []model.CartItem{}
	}
	return &next, nil
}

// newReference is the short code quoted in the payment note and the email.
func newReference() string {
	return "LAB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// BuildPayload flattens a cart into the notification template fields.
func BuildPayload(cart *model.Cart, reference string, total decimal.Decimal, method model.PaymentMethod, link string) email.Payload {
	lines := make([]string, 0, len(cart.Items))
	count := 0
	for _, item := range cart.Items {
		line := fmt.Sprintf("%s x%d - S/ %s", item.Name, item.Quantity, item.Subtotal().StringFixed(2))
		if item.PatientDetails != nil && item.PatientDetails.FullName != "" {
			line += " (" + item.PatientDetails.FullName + ")"
		}
		lines = append(lines, line)
		count += item.Quantity
	}

	p := email.Payload{
		email.FieldOrderReference: reference,
		email.FieldExams:          strings.Join(lines, "\n"),
		email.FieldItemCount:      fmt.Sprintf("%d", count),
		email.FieldTotal:          total.StringFixed(2),
		email.FieldPaymentMethod:  string(method),
		email.FieldPaymentLink:    link,
	}
	if pt := cart.Patient; pt != nil {
		p[email.FieldPatientName] = pt.FullName
		p[email.FieldPatientDocument] = pt.DocumentNumber
		p[email.FieldPatientPhone] = pt.Phone
		p[email.FieldPatientEmail] = pt.Email
		p[email.FieldPatientBirth] = pt.BirthDate
	}
	if sc := cart.Schedule; sc != nil {
		p[email.FieldPickupDate] = sc.Date
		p[email.FieldPickupTime] = sc.Time
		p[email.FieldPickupAddress] = sc.Address
		p[email.FieldPickupDistrict] = sc.District
		p[email.FieldPickupNotes] = sc.Notes
	}
	return p
}
