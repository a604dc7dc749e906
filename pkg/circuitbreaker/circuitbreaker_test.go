package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "orion", Failures: 2, Timeout: time.Minute})

	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, "closed", cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, "open", cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	errMissing := errors.New("not found")
	cb := NewCircuitBreaker(Settings{
		Failures:  1,
		IsFailure: func(err error) bool { return !errors.Is(err, errMissing) },
	})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errMissing }), errMissing)
	}
	assert.Equal(t, "closed", cb.State())
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(Settings{
		Failures: 1,
		Timeout:  10 * time.Millisecond,
		OnStateChange: func(_, from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})

	_ = cb.Execute(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, "closed", cb.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}
