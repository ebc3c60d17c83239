package services

import (
	"context"
	"errors"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/events"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/payments"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CallbackResult is the success-shaped answer returned to a provider after its signature checks out.
type CallbackResult struct {
	Received bool `json:"received"`
	Paid     bool `json:"paid"`
}

// PaymentService reconciles provider transactions with order state.
type PaymentService struct {
	store     repositories.Store
	machine   *StateMachine
	providers *payments.Registry
	publisher events.Publisher
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
}

func NewPaymentService(store repositories.Store, machine *StateMachine, providers *payments.Registry, publisher events.Publisher, m *metrics.OrderMetrics) *PaymentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PaymentService{
		store:     store,
		machine:   machine,
		providers: providers,
		publisher: publisher,
		metrics:   m,
		logger:    log.WithField("component", "payment_service"),
	}
}

func (s *PaymentService) initiate(ctx context.Context, p payments.Provider, order *models.Order, opts payments.InitiateOptions) (*payments.Transaction, error) {
	start := time.Now()
	tx, err := p.Initiate(ctx, order, opts)
	s.metrics.RecordProviderCall(p.Name(), "initiate", err, time.Since(start))
	return tx, err
}

func (s *PaymentService) verify(ctx context.Context, p payments.Provider, transactionID string) (models.PaymentOutcome, error) {
	start := time.Now()
	outcome, err := p.Verify(ctx, transactionID)
	s.metrics.RecordProviderCall(p.Name(), "verify", err, time.Since(start))
	return outcome, err
}

func (s *PaymentService) publishPaid(ctx context.Context, order *models.Order) {
	evt := events.ForOrder(events.OrderStatusChanged, order)
	evt.PreviousStatus = string(models.StatusPending)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to publish order event")
	}
}

func markRecord(ctx context.Context, repos repositories.Repositories, record *models.PaymentRecord, outcome models.PaymentOutcome) error {
	if record == nil || record.Status == outcome {
		return nil
	}
	record.Status = outcome
	return repos.Payments.Update(ctx, record)
}

// itemNames looks up display names for providers that list line items.
func itemNames(ctx context.Context, products repositories.ProductRepository, order *models.Order) map[string]string {
	names := make(map[string]string, len(order.Items))
	for _, it := range order.Items {
		if product, err := products.GetByID(ctx, it.ProductID); err == nil {
			names[it.ProductID] = product.Name
		}
	}
	return names
}

// InitiatePayment starts a provider transaction for a PENDING order, or returns the
// payload of the transaction that is still outstanding for it.
func (s *PaymentService) InitiatePayment(ctx context.Context, orderID string, caller Caller, providerName string, opts payments.InitiateOptions) (*payments.Payload, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return nil, err
	}

	var (
		payload     *payments.Payload
		order       *models.Order
		created     *payments.Transaction
		alreadyPaid bool
	)
	err = s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, caller); err != nil {
			return err
		}
		if order.Status != models.StatusPending {
			return apperrors.WrongStatus(string(order.Status), string(models.StatusPending))
		}
		if !order.TotalAmount.IsPositive() {
			return apperrors.Validation("order total must be positive to start a payment")
		}

		record, err := repos.Payments.Latest(ctx, order.ID, p.Name())
		if err != nil {
			return err
		}
		// A stored FAILED status may come from an unconfirmed notification, so the
		// provider is asked again before a replacement transaction is started.
		if record != nil {
			outcome, verr := s.verify(ctx, p, record.TransactionID)
			switch {
			case verr != nil:
				s.logger.WithError(verr).WithFields(log.Fields{"order_id": order.ID, "provider": p.Name()}).
					Warn("Could not check outstanding transaction, returning stored payload")
				outcome = models.OutcomePending
			case outcome == models.OutcomeApproved:
				if err := s.machine.Transition(ctx, repos, order, models.StatusPaid); err != nil {
					return err
				}
				alreadyPaid = true
				return markRecord(ctx, repos, record, models.OutcomeApproved)
			case outcome == models.OutcomeFailed:
				if err := markRecord(ctx, repos, record, models.OutcomeFailed); err != nil {
					return err
				}
			}
			if outcome == models.OutcomePending {
				stored, err := payments.DecodePayload(record.Payload)
				if err != nil {
					return err
				}
				payload = &stored
				return nil
			}
		}

		opts.ItemNames = itemNames(ctx, repos.Products, order)
		created, err = s.initiate(ctx, p, order, opts)
		if err != nil {
			return err
		}
		encoded, err := created.Payload.Encode()
		if err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, &models.PaymentRecord{
			ID:            uuid.New().String(),
			OrderID:       order.ID,
			Provider:      p.Name(),
			TransactionID: created.ID,
			Status:        models.OutcomePending,
			Amount:        order.TotalAmount,
			Currency:      created.Currency,
			Payload:       encoded,
		}); err != nil {
			return err
		}
		order.SetTransactionID(p.Name(), created.ID)
		if err := repos.Orders.Save(ctx, order); err != nil {
			return err
		}
		payload = &created.Payload
		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyPaid {
		s.publishPaid(ctx, order)
		return nil, apperrors.BadRequest("order has already been paid")
	}
	if created != nil {
		s.logger.WithFields(log.Fields{"order_id": order.ID, "provider": p.Name(), "tran_id": created.ID}).
			Info("payment initiated")
		evt := events.ForOrder(events.PaymentInitiated, order)
		evt.Provider = p.Name()
		evt.TransactionID = created.ID
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to publish payment event")
		}
	}
	return payload, nil
}

// HandleCallback processes a provider notification. Only an InvalidSignature error is
// returned once the provider is known; every other failure is logged and answered
// with received=true, paid=false so the response does not reveal order state.
func (s *PaymentService) HandleCallback(ctx context.Context, providerName string, raw []byte, signature string) (CallbackResult, error) {
	p, err := s.providers.Get(providerName)
	if err != nil {
		return CallbackResult{}, err
	}
	logger := s.logger.WithField("provider", p.Name())

	n, err := p.HandleCallback(raw, signature)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidSignature) {
			s.metrics.RecordCallback(p.Name(), "invalid_signature")
			logger.Warn("Rejected payment notification with invalid signature")
			return CallbackResult{}, err
		}
		s.metrics.RecordCallback(p.Name(), "malformed")
		logger.WithError(err).Warn("Unreadable payment notification")
		return CallbackResult{Received: true}, nil
	}
	if n.Ignored || n.OrderID == "" {
		s.metrics.RecordCallback(p.Name(), "ignored")
		return CallbackResult{Received: true}, nil
	}
	logger = logger.WithFields(log.Fields{"order_id": n.OrderID, "tran_id": n.TransactionID})

	if n.Outcome != models.OutcomeApproved {
		if err := s.recordOutcome(ctx, p, n); err != nil {
			logger.WithError(err).Warn("Failed to record payment outcome")
		}
		s.metrics.RecordCallback(p.Name(), "not_approved")
		return CallbackResult{Received: true}, nil
	}

	// The notification alone is never trusted: the provider must confirm it.
	outcome, err := s.verify(ctx, p, n.TransactionID)
	if err != nil {
		s.metrics.RecordCallback(p.Name(), "verify_failed")
		logger.WithError(err).Warn("Could not confirm payment notification")
		return CallbackResult{Received: true}, nil
	}
	if outcome != models.OutcomeApproved {
		s.metrics.RecordCallback(p.Name(), "not_confirmed")
		logger.WithField("outcome", outcome).Warn("Provider did not confirm approved notification")
		return CallbackResult{Received: true}, nil
	}

	var (
		order *models.Order
		paid  bool
	)
	err = s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, n.OrderID)
		if apperrors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if order.Status != models.StatusPending {
			return nil
		}
		record, err := findRecord(ctx, repos, order.ID, p.Name(), n.TransactionID)
		if err != nil {
			return err
		}
		if record == nil && order.TransactionID(p.Name()) != n.TransactionID {
			return nil
		}
		order.SetTransactionID(p.Name(), n.TransactionID)
		if err := s.machine.Transition(ctx, repos, order, models.StatusPaid); err != nil {
			return err
		}
		if err := markRecord(ctx, repos, record, models.OutcomeApproved); err != nil {
			return err
		}
		paid = true
		return nil
	})
	if err != nil {
		s.metrics.RecordCallback(p.Name(), "transition_failed")
		logger.WithError(err).Error("Confirmed payment could not be applied to order")
		return CallbackResult{Received: true}, nil
	}
	if !paid {
		s.metrics.RecordCallback(p.Name(), "noop")
		logger.Info("Payment notification did not change order")
		return CallbackResult{Received: true}, nil
	}

	s.metrics.RecordCallback(p.Name(), "paid")
	logger.Info("order paid from provider notification")
	s.publishPaid(ctx, order)
	return CallbackResult{Received: true, Paid: true}, nil
}

// recordOutcome marks the matching payment record FAILED once the provider confirms it.
// Other outcomes leave the record as it is.
func (s *PaymentService) recordOutcome(ctx context.Context, p payments.Provider, n *payments.Notification) error {
	if n.Outcome != models.OutcomeFailed {
		return nil
	}
	outcome, err := s.verify(ctx, p, n.TransactionID)
	if err != nil {
		return err
	}
	if outcome != models.OutcomeFailed {
		return nil
	}
	return s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		record, err := findRecord(ctx, repos, n.OrderID, p.Name(), n.TransactionID)
		if err != nil || record == nil || record.Status == models.OutcomeApproved {
			return err
		}
		return markRecord(ctx, repos, record, models.OutcomeFailed)
	})
}

// findRecord returns the payment record for a provider transaction on an order, or nil.
func findRecord(ctx context.Context, repos repositories.Repositories, orderID, provider, transactionID string) (*models.PaymentRecord, error) {
	records, err := repos.Payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Provider == provider && records[i].TransactionID == transactionID {
			return &records[i], nil
		}
	}
	return nil, nil
}

// VerifyPayment polls the provider for the order's active transaction and marks the
// order PAID when the provider reports it approved. A provider failure changes nothing.
func (s *PaymentService) VerifyPayment(ctx context.Context, orderID string, caller Caller) (*models.Order, error) {
	var (
		order *models.Order
		paid  bool
	)
	err := s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, caller); err != nil {
			return err
		}
		if order.Status != models.StatusPending || order.PaymentProvider == nil {
			return nil
		}
		p, err := s.providers.Get(*order.PaymentProvider)
		if err != nil {
			return err
		}
		transactionID := order.TransactionID(p.Name())
		if transactionID == "" {
			return nil
		}

		outcome, err := s.verify(ctx, p, transactionID)
		if err != nil {
			return err
		}
		record, err := repos.Payments.Latest(ctx, order.ID, p.Name())
		if err != nil {
			return err
		}
		if record != nil && record.TransactionID != transactionID {
			record = nil
		}
		if outcome == models.OutcomeApproved {
			if err := s.machine.Transition(ctx, repos, order, models.StatusPaid); err != nil {
				return err
			}
			paid = true
		}
		return markRecord(ctx, repos, record, outcome)
	})
	if err != nil {
		return nil, err
	}

	if paid {
		s.publishPaid(ctx, order)
	}
	return order, nil
}

// SimulatePayment marks a PENDING order paid without a provider round trip.
// It is only available while PayWay points at its sandbox.
func (s *PaymentService) SimulatePayment(ctx context.Context, orderID string, caller Caller) (*models.Order, error) {
	p, err := s.providers.Get(models.ProviderPayway)
	if err != nil {
		return nil, apperrors.Forbidden("payment simulation is not available")
	}
	if sandbox, ok := p.(payments.SandboxProvider); !ok || !sandbox.Sandbox() {
		return nil, apperrors.Forbidden("payment simulation is only available in sandbox mode")
	}

	var order *models.Order
	err = s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, caller); err != nil {
			return err
		}
		if order.Status != models.StatusPending {
			return apperrors.WrongStatus(string(order.Status), string(models.StatusPending))
		}
		if err := s.machine.Transition(ctx, repos, order, models.StatusPaid); err != nil {
			return err
		}
		record, err := repos.Payments.Latest(ctx, order.ID, p.Name())
		if err != nil {
			return err
		}
		return markRecord(ctx, repos, record, models.OutcomeApproved)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("order_id", order.ID).Warn("sandbox payment simulated")
	s.publishPaid(ctx, order)
	return order, nil
}

// Payments lists the provider transactions recorded for an order.
func (s *PaymentService) Payments(ctx context.Context, orderID string, caller Caller) ([]models.PaymentRecord, error) {
	repos := s.store.Repositories()
	order, err := repos.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, caller); err != nil {
		return nil, err
	}
	return repos.Payments.ListByOrder(ctx, order.ID)
}
