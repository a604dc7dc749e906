package cart

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/lab-portal-api/internal/handler"
	"github.com/jwalitptl/lab-portal-api/internal/middleware"
	"github.com/jwalitptl/lab-portal-api/internal/model"
	cartService "github.com/jwalitptl/lab-portal-api/internal/service/cart"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/httputil"
)

type Handler struct {
	service cartService.CartServicer
}

func NewHandler(service cartService.CartServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	carts := r.Group("/cart")
	{
		carts.GET("/:id", h.GetCart)
		carts.POST("/:id", h.Dispatch)
		carts.DELETE("/:id", h.ClearCart)
		carts.POST("/:id/items", h.AddItem)
		carts.PUT("/:id/items/:examId", h.SetQuantity)
		carts.DELETE("/:id/items/:examId", h.RemoveItem)
		carts.PUT("/:id/patient", h.SetPatient)
		carts.PUT("/:id/schedule", h.SetSchedule)
		carts.POST("/:id/checkout", h.Checkout)
	}
}

type setQuantityRequest struct {
	ExamID   string `json:"exam_id"`
	Quantity *int   `json:"quantity" binding:"required,min=0"`
}

type removeItemRequest struct {
	ExamID string `json:"exam_id" binding:"required"`
}

func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cart)
}

// Dispatch is the action-discriminated form of the cart routes:
// {"action": "add-item", "data": {...}}.
func (h *Handler) Dispatch(c *gin.Context) {
	var env handler.Envelope
	if err := handler.BindJSON(c, &env); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	var (
		cart interface{}
		err  error
	)
	switch env.Action {
	case "add-item":
		var req cartService.AddItemRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			cart, err = h.service.AddItem(ctx, id, userID, req)
		}
	case "set-quantity":
		var req setQuantityRequest
		var examID uuid.UUID
		if err = handler.BindData(env.Data, &req); err == nil {
			if examID, err = handler.ParseID(req.ExamID, "exam_id"); err == nil {
				cart, err = h.service.SetQuantity(ctx, id, userID, examID, *req.Quantity)
			}
		}
	case "remove-item":
		var req removeItemRequest
		var examID uuid.UUID
		if err = handler.BindData(env.Data, &req); err == nil {
			if examID, err = handler.ParseID(req.ExamID, "exam_id"); err == nil {
				cart, err = h.service.RemoveItem(ctx, id, userID, examID)
			}
		}
	case "set-patient":
		var req model.PatientDetails
		if err = handler.BindData(env.Data, &req); err == nil {
			cart, err = h.service.SetPatient(ctx, id, userID, req)
		}
	case "set-schedule":
		var req model.PickupSchedule
		if err = handler.BindData(env.Data, &req); err == nil {
			cart, err = h.service.SetSchedule(ctx, id, userID, req)
		}
	case "clear":
		if err = h.service.Clear(ctx, id, userID); err == nil {
			cart, err = h.service.Get(ctx, id, userID)
		}
	case "abandon":
		if err = h.service.Abandon(ctx, id, userID); err == nil {
			cart, err = h.service.Get(ctx, id, userID)
		}
	case "checkout":
		var req cartService.CheckoutRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			cart, err = h.service.Checkout(ctx, id, userID, req)
		}
	case "":
		err = apperrors.BadRequest("action is required", nil)
	default:
		err = apperrors.BadRequest(fmt.Sprintf("unknown cart action %q", env.Action), nil)
	}

	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cart)
}

// ClearCart also abandons a cart stuck in checking_out.
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"cleared": true})
}

func (h *Handler) AddItem(c *gin.Context) {
	var req cartService.AddItemRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cart, err := h.service.AddItem(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, cart)
}

func (h *Handler) SetQuantity(c *gin.Context) {
	examID, err := handler.ParseID(c.Param("examId"), "exam id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	var req setQuantityRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cart, err := h.service.SetQuantity(c.Request.Context(), c.Param("id"), middleware.UserID(c), examID, *req.Quantity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cart)
}

func (h *Handler) RemoveItem(c *gin.Context) {
	examID, err := handler.ParseID(c.Param("examId"), "exam id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cart, err := h.service.RemoveItem(c.Request.Context(), c.Param("id"), middleware.UserID(c), examID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cart)
}

func (h *Handler) SetPatient(c *gin.Context) {
	var req model.PatientDetails
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cart, err := h.service.SetPatient(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cart)
}

func (h *Handler) SetSchedule(c *gin.Context) {
	var req model.PickupSchedule
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cart, err := h.service.SetSchedule(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cart)
}

// Checkout returns the payment link. A failed notification leaves the cart
// intact; the client may submit again.
func (h *Handler) Checkout(c *gin.Context) {
	var req cartService.CheckoutRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.service.Checkout(c.Request.Context(), c.Param("id"), middleware.UserID(c), req)
	if err != nil {
		if appErr, ok := apperrors.AsApp(err); ok && appErr.Retryable {
			c.Header("Retry-After", "5")
		}
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}
