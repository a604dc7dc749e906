package admin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/lab-portal-api/internal/handler"
	"github.com/jwalitptl/lab-portal-api/internal/model"
	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
)

type tariffRequest struct {
	Name   string `json:"name" binding:"required,max=120"`
	Type   string `json:"type"`
	Active *bool  `json:"active"`
}

func (r tariffRequest) toModel(id uuid.UUID) *model.Tariff {
	t := &model.Tariff{Name: r.Name, Type: r.Type, Active: true}
	t.ID = id
	if r.Active != nil {
		t.Active = *r.Active
	}
	return t
}

type priceRequest struct {
	TariffID string           `json:"tariff_id" binding:"required,uuid"`
	ExamID   string           `json:"exam_id" binding:"required,uuid"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
}

type referenceRequest struct {
	Name            string `json:"name" binding:"required,max=120"`
	DefaultTariffID string `json:"default_tariff_id" binding:"omitempty,uuid"`
	Active          *bool  `json:"active"`
}

func (r referenceRequest) toModel(id uuid.UUID) (*model.Reference, error) {
	tariffID, err := handler.ParseOptionalID(r.DefaultTariffID, "default_tariff_id")
	if err != nil {
		return nil, err
	}
	ref := &model.Reference{Name: r.Name, DefaultTariffID: tariffID, Active: true}
	ref.ID = id
	if r.Active != nil {
		ref.Active = *r.Active
	}
	return ref, nil
}

// bindRequest with an empty tariff_id unbinds the reference.
type bindRequest struct {
	ReferenceID string `json:"reference_id" binding:"required,uuid"`
	TariffID    string `json:"tariff_id" binding:"omitempty,uuid"`
}

type assignRequest struct {
	UserID      string `json:"user_id" binding:"required,uuid"`
	ReferenceID string `json:"reference_id" binding:"required,uuid"`
}

type migrateRequest struct {
	DryRun bool `json:"dry_run"`
}

// GetTariffs lists by ?type=tariffs (default), tariff&id, references or
// user-references&user_id.
func (h *Handler) GetTariffs(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		data interface{}
		err  error
	)
	switch kind := c.DefaultQuery("type", "tariffs"); kind {
	case "tariffs":
		data, err = h.tariffs.ListTariffs(ctx)
	case "tariff":
		var id uuid.UUID
		if id, err = handler.ParseID(c.Query("id"), "id"); err == nil {
			data, err = h.tariffs.GetTariff(ctx, id)
		}
	case "references":
		data, err = h.tariffs.ListReferences(ctx)
	case "user-references":
		var userID uuid.UUID
		if userID, err = handler.ParseID(c.Query("user_id"), "user_id"); err == nil {
			data, err = h.tariffs.ListUserReferences(ctx, userID)
		}
	default:
		err = apperrors.BadRequest(fmt.Sprintf("unknown type %q", kind), nil)
	}
	respond(c, http.StatusOK, data, err)
}

// PostTariffs runs one envelope action: create-tariff, set-price,
// create-reference, bind-tariff, assign-user or migrate-legacy-prices.
func (h *Handler) PostTariffs(c *gin.Context) {
	var env handler.Envelope
	if err := handler.BindJSON(c, &env); err != nil {
		respond(c, 0, nil, err)
		return
	}

	ctx := c.Request.Context()
	status := http.StatusOK
	var (
		data interface{}
		err  error
	)
	switch env.Action {
	case "create-tariff":
		var req tariffRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			t := req.toModel(uuid.Nil)
			if err = h.tariffs.CreateTariff(ctx, t); err == nil {
				data, status = t, http.StatusCreated
			}
		}
	case "set-price":
		var req priceRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			data, err = h.tariffs.SetPrice(ctx, uuid.MustParse(req.TariffID), uuid.MustParse(req.ExamID), *req.Price)
		}
	case "create-reference":
		var req referenceRequest
		var ref *model.Reference
		if err = handler.BindData(env.Data, &req); err == nil {
			if ref, err = req.toModel(uuid.Nil); err == nil {
				if err = h.tariffs.CreateReference(ctx, ref); err == nil {
					data, status = ref, http.StatusCreated
				}
			}
		}
	case "bind-tariff":
		var req bindRequest
		var tariffID *uuid.UUID
		if err = handler.BindData(env.Data, &req); err == nil {
			if tariffID, err = handler.ParseOptionalID(req.TariffID, "tariff_id"); err == nil {
				err = h.tariffs.BindTariff(ctx, uuid.MustParse(req.ReferenceID), tariffID)
				data = gin.H{"reference_id": req.ReferenceID, "tariff_id": tariffID}
			}
		}
	case "assign-user":
		var req assignRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			err = h.tariffs.AssignUser(ctx, uuid.MustParse(req.UserID), uuid.MustParse(req.ReferenceID))
			data = gin.H{"user_id": req.UserID, "reference_id": req.ReferenceID}
		}
	case "migrate-legacy-prices":
		var req migrateRequest
		if len(env.Data) > 0 && string(env.Data) != "null" {
			err = handler.BindData(env.Data, &req)
		}
		if err == nil {
			data, err = h.tariffs.MigrateLegacyPrices(ctx, req.DryRun)
		}
	case "":
		err = apperrors.BadRequest("action is required", nil)
	default:
		err = apperrors.BadRequest(fmt.Sprintf("unknown tariff action %q", env.Action), nil)
	}
	respond(c, status, data, err)
}

// PutTariffs replaces a tariff or a reference. The type and id may come from
// the envelope or the query string.
func (h *Handler) PutTariffs(c *gin.Context) {
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
	switch kind := firstOf(env.Type, c.Query("type")); kind {
	case "tariff":
		var req tariffRequest
		if err = handler.BindData(env.Data, &req); err == nil {
			t := req.toModel(id)
			if err = h.tariffs.UpdateTariff(ctx, t); err == nil {
				data = t
			}
		}
	case "reference":
		var req referenceRequest
		var ref *model.Reference
		if err = handler.BindData(env.Data, &req); err == nil {
			if ref, err = req.toModel(id); err == nil {
				if err = h.tariffs.UpdateReference(ctx, ref); err == nil {
					data = ref
				}
			}
		}
	case "":
		err = apperrors.BadRequest("type is required", nil)
	default:
		err = apperrors.BadRequest(fmt.Sprintf("unknown type %q", kind), nil)
	}
	respond(c, http.StatusOK, data, err)
}

// DeleteTariffs removes ?type=tariff&id, exam-price&id&exam_id,
// reference&id or user-reference&id&user_id.
func (h *Handler) DeleteTariffs(c *gin.Context) {
	id, err := handler.ParseID(c.Query("id"), "id")
	if err != nil {
		respond(c, 0, nil, err)
		return
	}

	ctx := c.Request.Context()
	switch kind := c.Query("type"); kind {
	case "tariff":
		err = h.tariffs.DeleteTariff(ctx, id)
	case "exam-price":
		var examID uuid.UUID
		if examID, err = handler.ParseID(c.Query("exam_id"), "exam_id"); err == nil {
			err = h.tariffs.DeletePrice(ctx, id, examID)
		}
	case "reference":
		err = h.tariffs.DeleteReference(ctx, id)
	case "user-reference":
		var userID uuid.UUID
		if userID, err = handler.ParseID(c.Query("user_id"), "user_id"); err == nil {
			err = h.tariffs.UnassignUser(ctx, userID, id)
		}
	case "":
		err = apperrors.BadRequest("type is required", nil)
	default:
		err = apperrors.BadRequest(fmt.Sprintf("unknown type %q", kind), nil)
	}
	respond(c, http.StatusOK, gin.H{"deleted": true}, err)
}
