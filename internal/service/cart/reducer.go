package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/model"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

// MaxQuantity bounds a single line.
const MaxQuantity = 20

var (
	ErrInvalidTransition = errors.New("invalid cart transition")
	ErrItemNotFound      = errors.New("item not in cart")
)

type ActionType string

const (
	ActionAddItem           ActionType = "add_item"
	ActionRemoveItem        ActionType = "remove_item"
	ActionSetQuantity       ActionType = "set_quantity"
	ActionSetPatient        ActionType = "set_patient"
	ActionSetSchedule       ActionType = "set_schedule"
	ActionClear             ActionType = "clear"
	ActionBeginCheckout     ActionType = "begin_checkout"
	ActionCheckoutFailed    ActionType = "checkout_failed"
	ActionCheckoutSucceeded ActionType = "checkout_succeeded"
	ActionAbandon           ActionType = "abandon"
)

// Action is one state change. Only the fields its Type reads are set.
type Action struct {
	Type     ActionType
	Item     model.CartItem
	ExamID   uuid.UUID
	Quantity int
	Patient  *model.PatientDetails
	Schedule *model.PickupSchedule
	At       time.Time
}

// allowed lists the states each action may start from.
var allowed = map[ActionType][]model.CartState{
	ActionAddItem:           {model.CartEmpty, model.CartPopulated},
	ActionRemoveItem:        {model.CartPopulated},
	ActionSetQuantity:       {model.CartPopulated},
	ActionSetPatient:        {model.CartEmpty, model.CartPopulated},
	ActionSetSchedule:       {model.CartEmpty, model.CartPopulated},
	ActionClear:             {model.CartEmpty, model.CartPopulated, model.CartAbandoned},
	ActionBeginCheckout:     {model.CartPopulated},
	ActionCheckoutFailed:    {model.CartCheckingOut},
	ActionCheckoutSucceeded: {model.CartCheckingOut},
	ActionAbandon:           {model.CartEmpty, model.CartPopulated, model.CartCheckingOut},
}

// Reduce applies a to c and returns the new cart. c is not modified.
func Reduce(c model.Cart, a Action) (model.Cart, error) {
	state := c.State
	if state == "" {
		state = model.CartEmpty
	}
	if !stateIn(state, allowed[a.Type]) {
		return c, transitionError(a.Type, state)
	}

	next := c
	next.State = state
	next.Items = append([]model.CartItem(nil), c.Items...)
	next.UpdatedAt = a.At
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now()
	}

	switch a.Type {
	case ActionAddItem:
		qty := a.Item.Quantity
		if qty <= 0 {
			qty = 1
		}
		if i := next.Find(a.Item.ExamID); i >= 0 {
			qty += next.Items[i].Quantity
			if qty > MaxQuantity {
				return c, quantityError(qty)
			}
			next.Items[i].Quantity = qty
			if a.Item.PatientDetails != nil {
				next.Items[i].PatientDetails = a.Item.PatientDetails
			}
		} else {
			if qty > MaxQuantity {
				return c, quantityError(qty)
			}
			if a.Item.Price.IsNegative() {
				return c, apperrors.BadRequest("price must not be negative", nil)
			}
			item := a.Item
			item.Quantity = qty
			next.Items = append(next.Items, item)
		}
		next.State = model.CartPopulated

	case ActionRemoveItem:
		i := next.Find(a.ExamID)
		if i < 0 {
			return c, apperrors.NotFound("cart item", ErrItemNotFound)
		}
		next.Items = append(next.Items[:i], next.Items[i+1:]...)
		next.State = stateFor(next.Items)

	case ActionSetQuantity:
		i := next.Find(a.ExamID)
		if i < 0 {
			return c, apperrors.NotFound("cart item", ErrItemNotFound)
		}
		switch {
		case a.Quantity <= 0:
			next.Items = append(next.Items[:i], next.Items[i+1:]...)
		case a.Quantity > MaxQuantity:
			return c, quantityError(a.Quantity)
		default:
			next.Items[i].Quantity = a.Quantity
		}
		next.State = stateFor(next.Items)

	case ActionSetPatient:
		if a.Patient == nil {
			return c, apperrors.BadRequest("patient details are required", nil)
		}
		p := *a.Patient
		next.Patient = &p

	case ActionSetSchedule:
		if a.Schedule == nil {
			return c, apperrors.BadRequest("pickup schedule is required", nil)
		}
		s := *a.Schedule
		next.Schedule = &s

	case ActionClear:
		next.Items = nil
		next.Patient = nil
		next.Schedule = nil
		next.State = model.CartEmpty

	case ActionBeginCheckout:
		if len(next.Items) == 0 {
			return c, apperrors.BadRequest("cart is empty", nil)
		}
		if next.Patient == nil {
			return c, apperrors.BadRequest("patient details are required", nil)
		}
		if next.Schedule == nil {
			return c, apperrors.BadRequest("pickup schedule is required", nil)
		}
		next.State = model.CartCheckingOut

	case ActionCheckoutFailed:
		next.State = model.CartPopulated

	case ActionCheckoutSucceeded:
		next.Items = nil
		next.Patient = nil
		next.Schedule = nil
		next.State = model.CartCompleted

	case ActionAbandon:
		next.State = model.CartAbandoned

	default:
		return c, apperrors.BadRequest(fmt.Sprintf("unknown cart action %q", a.Type), nil)
	}

	return next, nil
}

func stateFor(items []model.CartItem) model.CartState {
	if len(items) == 0 {
		return model.CartEmpty
	}
	return model.CartPopulated
}

func stateIn(state model.CartState, states []model.CartState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

func transitionError(action ActionType, state model.CartState) error {
	if _, ok := allowed[action]; !ok {
		return apperrors.BadRequest(fmt.Sprintf("unknown cart action %q", action), nil)
	}
	return apperrors.BadRequest(
		fmt.Sprintf("cannot %s while cart is %s", action, state),
		fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, state),
	)
}

func quantityError(qty int) error {
	return apperrors.BadRequest(fmt.Sprintf("quantity %d exceeds the limit of %d", qty, MaxQuantity), nil)
}
