package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"service-marketplace-server/services"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("handler: %w", &services.Error{
		Kind:    services.ErrSettlementFailure,
		Op:      "settlement.settle",
		Message: "request 7",
		Err:     cause,
	})

	assert.ErrorIs(t, err, services.ErrSettlementFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, services.ErrConflict)
	assert.Equal(t, "handler: settlement.settle: settlement failed: request 7: disk full", err.Error())

	var typed *services.Error
	assert.True(t, errors.As(err, &typed))
	assert.Equal(t, "settlement.settle", typed.Op)
}

func TestKindOf(t *testing.T) {
	for _, kind := range []error{
		services.ErrValidation,
		services.ErrInvalidTransition,
		services.ErrUnauthorized,
		services.ErrNotFound,
		services.ErrConflict,
		services.ErrSettlementFailure,
	} {
		err := &services.Error{Kind: kind, Op: "op"}
		assert.Equal(t, kind, services.KindOf(err))
	}
	assert.Nil(t, services.KindOf(context.Canceled))
	assert.Nil(t, services.KindOf(nil))
}

func TestOnlyConflictIsRetryable(t *testing.T) {
	assert.True(t, services.IsRetryable(&services.Error{Kind: services.ErrConflict, Op: "requests.accept"}))
	assert.False(t, services.IsRetryable(&services.Error{Kind: services.ErrInvalidTransition, Op: "requests.accept"}))
	assert.False(t, services.IsRetryable(errors.New("boom")))
}
