package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"storefront/internal/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindMatching(t *testing.T) {
	err := fmt.Errorf("pay order: %w", apperrors.InvalidTransition("PAID", "SHIPPED"))

	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "from PAID to SHIPPED")
}

func TestInsufficientStockDetails(t *testing.T) {
	err := apperrors.InsufficientStock([]apperrors.Shortfall{{ProductID: "p-1", Requested: 2, Available: 1}})

	assert.Equal(t, "insufficient stock for product p-1 (requested: 2, available: 1)", err.Error())
	shortfalls, ok := err.Details["shortfalls"].([]apperrors.Shortfall)
	assert.True(t, ok)
	assert.Len(t, shortfalls, 1)
}

func TestProviderUnavailableUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := apperrors.ProviderUnavailable("payway", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
	assert.Equal(t, apperrors.Kind(""), apperrors.KindOf(cause))
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.NotFound("order", "o-1"), 404},
		{apperrors.Forbidden("no"), 403},
		{apperrors.Unauthorized("no"), 401},
		{apperrors.Conflict("taken"), 409},
		{apperrors.InvalidTransition("PAID", "PENDING"), 422},
		{apperrors.InsufficientStock(nil), 422},
		{apperrors.WrongStatus("PAID", "PENDING"), 422},
		{apperrors.Validation("bad"), 400},
		{apperrors.InvalidSignature("payway"), 400},
		{fmt.Errorf("verify: %w", apperrors.ProviderUnavailable("stripe", errors.New("timeout"))), 503},
		{errors.New("boom"), 500},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, apperrors.StatusCode(tc.err), tc.err.Error())
	}
}
