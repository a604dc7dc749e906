package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	cause := stderrors.New("no rows")
	err := NotFound("exam", cause)

	assert.Equal(t, "exam not found: no rows", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "exam not found", NotFound("exam", nil).Error())
}

func TestIsKindFollowsWrapping(t *testing.T) {
	err := fmt.Errorf("quote: %w", BadRequest("exam_ids is required", nil))

	assert.True(t, IsKind(err, ErrBadRequest))
	assert.False(t, IsKind(err, ErrNotFound))
	assert.False(t, IsKind(stderrors.New("plain"), ErrInternal))

	appErr, ok := AsApp(err)
	assert.True(t, ok)
	assert.Equal(t, "exam_ids is required", appErr.Message)
}

func TestUpstreamKeepsStatus(t *testing.T) {
	err := Upstream("orion request failed", 502, nil)
	assert.Equal(t, ErrUpstream, err.Kind)
	assert.Equal(t, 502, err.Status)
}
