// Package handler holds the helpers shared by the HTTP handlers in its
// subpackages.
package handler

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/lab-portal-api/pkg/errors"
	"github.com/jwalitptl/lab-portal-api/pkg/validator"
)

// Envelope is the body of discriminated admin writes: the discriminator
// selects how Data is decoded.
type Envelope struct {
	Action string          `json:"action"`
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Data   json.RawMessage `json:"data"`
}

// BindJSON binds the request body, turning binding failures into a
// ValidationError.
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return apperrors.BadRequest(validator.Describe(err), err)
	}
	return nil
}

// BindData decodes and validates an envelope payload.
func BindData(raw json.RawMessage, obj interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return apperrors.BadRequest("data is required", nil)
	}
	if err := binding.JSON.BindBody(raw, obj); err != nil {
		return apperrors.BadRequest(validator.Describe(err), err)
	}
	return nil
}

// ParseID parses a required uuid, naming the field in the error.
func ParseID(value, name string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, apperrors.BadRequest(name+" is required", nil)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid "+name, err)
	}
	return id, nil
}

// ParseOptionalID is ParseID for fields that may be left empty.
func ParseOptionalID(value, name string) (*uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := ParseID(value, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
