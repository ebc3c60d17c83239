package services

import (
	"context"
	"fmt"

	"storefront/internal/apperrors"
	"storefront/internal/inventory"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	log "github.com/sirupsen/logrus"
)

// StateMachine applies order status transitions and the stock effects bound to them.
//
// Callers load the order with GetForUpdate inside a Store transaction and pass
// that transaction's repositories, so the ledger effect and the status write
// commit or roll back together.
type StateMachine struct {
	table   models.TransitionTable
	ledger  *inventory.Ledger
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

func NewStateMachine(table models.TransitionTable, ledger *inventory.Ledger, m *metrics.OrderMetrics) *StateMachine {
	if table == nil {
		table = models.StrictTransitions
	}
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	return &StateMachine{
		table:   table,
		ledger:  ledger,
		metrics: m,
		logger:  log.WithField("component", "state_machine"),
	}
}

// CanTransition reports whether the table allows from -> to.
func (sm *StateMachine) CanTransition(from, to models.OrderStatus) bool {
	return sm.table.Allows(from, to)
}

// Transition moves order to target. On error the order's status is left unchanged.
func (sm *StateMachine) Transition(ctx context.Context, repos repositories.Repositories, order *models.Order, target models.OrderStatus) error {
	from := order.Status
	if !sm.table.Allows(from, target) {
		sm.metrics.RecordTransitionFailed(string(target), string(apperrors.KindInvalidTransition))
		return apperrors.InvalidTransition(string(from), string(target))
	}

	switch {
	case from == models.StatusPending && target == models.StatusPaid:
		if err := sm.ledger.Reserve(ctx, repos.Products, inventory.ItemsOf(order.Items)); err != nil {
			sm.metrics.RecordTransitionFailed(string(target), reason(err))
			return err
		}
	case target == models.StatusCancelled && from.HoldsReservation():
		if err := sm.release(ctx, repos, order); err != nil {
			sm.metrics.RecordTransitionFailed(string(target), reason(err))
			return err
		}
	}

	order.Status = target
	if err := repos.Orders.Save(ctx, order); err != nil {
		order.Status = from
		sm.metrics.RecordTransitionFailed(string(target), reason(err))
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}

	sm.metrics.RecordTransition(string(from), string(target))
	sm.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       target,
	}).Info("order status changed")
	return nil
}

// ReleaseReservation returns the order's stock if its status holds a reservation.
// It is used when an order is removed outside the transition table.
func (sm *StateMachine) ReleaseReservation(ctx context.Context, repos repositories.Repositories, order *models.Order) error {
	if !order.Status.HoldsReservation() {
		return nil
	}
	return sm.release(ctx, repos, order)
}

func (sm *StateMachine) release(ctx context.Context, repos repositories.Repositories, order *models.Order) error {
	if err := sm.ledger.Release(ctx, repos.Products, inventory.ItemsOf(order.Items)); err != nil {
		return err
	}
	sm.metrics.RecordStockReleased()
	return nil
}

func reason(err error) string {
	if kind := apperrors.KindOf(err); kind != "" {
		return string(kind)
	}
	return "internal"
}
