package services_test

import (
	"testing"

	"storefront/internal/apperrors"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderPricesItems(t *testing.T) {
	f := newFixture(t, nil)
	productID := f.product(t, "100.00", 10, 50)

	order := f.order(t, productID, 2)

	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, f.owner.UserID, order.UserID)
	assert.Equal(t, "200.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "180.00", order.DiscountedSubtotal.StringFixed(2))
	assert.Equal(t, "20.00", order.VatAmount.StringFixed(2))
	assert.Equal(t, "22.00", order.DiscountAmount.StringFixed(2))
	assert.Equal(t, "5.00", order.ShippingAmount.StringFixed(2))
	assert.Equal(t, "203.00", order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 1)
	assert.Equal(t, "100.00", order.Items[0].PriceAtTime.StringFixed(2))
	assert.Equal(t, 10, order.Items[0].DiscountPercentAtTime)
	assert.Equal(t, 50, f.stock(t, productID), "creation checks stock without reserving it")
	assert.Equal(t, []events.Type{events.OrderCreated}, f.publisher.types())
}

func TestCreateOrderInsufficientStockCreatesNothing(t *testing.T) {
	f := newFixture(t, nil)
	productID := f.product(t, "10.00", 0, 1)

	_, err := f.orders.CreateOrder(f.ctx, f.owner.UserID, []services.ItemRequest{{ProductID: productID, Quantity: 2}})

	require.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "requested: 2, available: 1")
	_, total, listErr := f.store.Repositories().Orders.ListAll(f.ctx, repositories.Page{})
	require.NoError(t, listErr)
	assert.Zero(t, total)
	assert.Empty(t, f.publisher.types())
}

func TestCreateOrderValidatesReferences(t *testing.T) {
	f := newFixture(t, nil)
	productID := f.product(t, "10.00", 0, 5)

	_, err := f.orders.CreateOrder(f.ctx, "missing-user", []services.ItemRequest{{ProductID: productID, Quantity: 1}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.CreateOrder(f.ctx, f.owner.UserID, []services.ItemRequest{{ProductID: "missing-product", Quantity: 1}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.orders.CreateOrder(f.ctx, f.owner.UserID, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.orders.CreateOrder(f.ctx, f.owner.UserID, []services.ItemRequest{{ProductID: productID, Quantity: 0}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateOrderReplacesItems(t *testing.T) {
	f := newFixture(t, nil)
	first := f.product(t, "10.00", 0, 10)
	second := f.product(t, "300.00", 0, 10)
	order := f.order(t, first, 1)

	_, err := f.orders.UpdateOrder(f.ctx, order.ID, f.stranger, []services.ItemRequest{{ProductID: second, Quantity: 1}})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := f.orders.UpdateOrder(f.ctx, order.ID, f.owner, []services.ItemRequest{{ProductID: second, Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, second, updated.Items[0].ProductID)
	assert.Equal(t, "600.00", updated.DiscountedSubtotal.StringFixed(2))
	assert.Equal(t, "0.00", updated.ShippingAmount.StringFixed(2))
	assert.Equal(t, "660.00", updated.TotalAmount.StringFixed(2))

	stored, err := f.orders.GetOrder(f.ctx, order.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, "660.00", stored.TotalAmount.StringFixed(2))
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
}

func TestUpdateOrderRequiresPending(t *testing.T) {
	f := newFixture(t, nil)
	productID := f.product(t, "10.00", 0, 10)
	order := f.order(t, productID, 1)
	_, err := f.orders.PayOrder(f.ctx, order.ID, f.owner)
	require.NoError(t, err)

	_, err = f.orders.UpdateOrder(f.ctx, order.ID, f.admin, []services.ItemRequest{{ProductID: productID, Quantity: 5}})

	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "PAID", appErr.Details["current_status"])
	assert.Equal(t, "PENDING", appErr.Details["required_status"])
}

func TestOwnershipChecks(t *testing.T) {
	f := newFixture(t, nil)
	order := f.order(t, f.product(t, "10.00", 0, 10), 1)

	_, err := f.orders.PayOrder(f.ctx, order.ID, f.stranger)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.orders.CancelOrder(f.ctx, order.ID, f.stranger)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.orders.GetOrder(f.ctx, order.ID, f.stranger)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.ErrorIs(t, f.orders.DeleteOrder(f.ctx, order.ID, f.stranger), apperrors.ErrForbidden)

	_, err = f.orders.GetOrder(f.ctx, order.ID, f.admin)
	assert.NoError(t, err)
	_, err = f.orders.GetOrder(f.ctx, "missing", f.owner)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, models.StatusPending, f.status(t, order.ID))
}

func TestSetOrderStatusProgression(t *testing.T) {
	f := newFixture(t, nil)
	order := f.order(t, f.product(t, "10.00", 0, 10), 1)

	_, err := f.orders.SetOrderStatus(f.ctx, order.ID, f.owner, models.StatusPaid)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.orders.SetOrderStatus(f.ctx, order.ID, f.admin, models.OrderStatus("LOST"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	for _, next := range []models.OrderStatus{
		models.StatusPaid, models.StatusProcessing, models.StatusShipped,
		models.StatusDelivered, models.StatusCompleted,
	} {
		updated, err := f.orders.SetOrderStatus(f.ctx, order.ID, f.admin, next)
		require.NoError(t, err, next)
		assert.Equal(t, next, updated.Status)
	}

	_, err = f.orders.SetOrderStatus(f.ctx, order.ID, f.admin, models.StatusCancelled)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestDeleteOrderReleasesReservedStock(t *testing.T) {
	f := newFixture(t, nil)
	productID := f.product(t, "10.00", 0, 10)
	pending := f.order(t, productID, 2)
	paid := f.order(t, productID, 3)
	_, err := f.orders.PayOrder(f.ctx, paid.ID, f.owner)
	require.NoError(t, err)
	require.Equal(t, 7, f.stock(t, productID))

	require.NoError(t, f.orders.DeleteOrder(f.ctx, pending.ID, f.owner))
	assert.Equal(t, 7, f.stock(t, productID))

	require.NoError(t, f.orders.DeleteOrder(f.ctx, paid.ID, f.admin))
	assert.Equal(t, 10, f.stock(t, productID))

	_, err = f.orders.GetOrder(f.ctx, paid.ID, f.admin)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListOrdersPaginates(t *testing.T) {
	f := newFixture(t, nil)
	productID := f.product(t, "10.00", 0, 100)
	for i := 0; i < 3; i++ {
		f.order(t, productID, 1)
	}
	_, err := f.orders.CreateOrder(f.ctx, f.stranger.UserID, []services.ItemRequest{{ProductID: productID, Quantity: 1}})
	require.NoError(t, err)

	page, err := f.orders.ListOrders(f.ctx, f.owner, repositories.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)

	_, err = f.orders.ListAllOrders(f.ctx, f.owner, repositories.Page{})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	all, err := f.orders.ListAllOrders(f.ctx, f.admin, repositories.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Total)
	assert.Equal(t, 10, all.Limit)
}

func TestReceiptMatchesStoredTotals(t *testing.T) {
	f := newFixture(t, nil)
	productID := f.product(t, "100.00", 10, 10)
	order := f.order(t, productID, 2)

	// Later catalog changes must not alter the receipt.
	p, err := f.store.Repositories().Products.GetByID(f.ctx, productID)
	require.NoError(t, err)
	p.DiscountPercent = 50
	require.NoError(t, f.store.Repositories().Products.Update(f.ctx, p))

	receipt, err := f.orders.Receipt(f.ctx, order.ID, f.owner)

	require.NoError(t, err)
	assert.True(t, receipt.Total.Equal(order.TotalAmount))
	require.Len(t, receipt.Lines, 1)
	assert.Equal(t, "90.00", receipt.Lines[0].FinalUnitPrice.StringFixed(2))
	assert.Equal(t, "180.00", receipt.Lines[0].LineTotal.StringFixed(2))
}

func TestStatusChangeEventsCarryPreviousStatus(t *testing.T) {
	f := newFixture(t, nil)
	order := f.order(t, f.product(t, "10.00", 0, 10), 1)

	_, err := f.orders.PayOrder(f.ctx, order.ID, f.owner)
	require.NoError(t, err)

	require.Len(t, f.publisher.events, 2)
	evt := f.publisher.events[1]
	assert.Equal(t, events.OrderStatusChanged, evt.Type)
	assert.Equal(t, "PENDING", evt.PreviousStatus)
	assert.Equal(t, "PAID", evt.Status)
}
