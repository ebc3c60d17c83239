package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusPaid       OrderStatus = "PAID"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// AllStatuses lists every persisted status value in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending, StatusPaid, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCompleted, StatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// HoldsReservation reports whether stock has been decremented for an order in this status.
func (s OrderStatus) HoldsReservation() bool {
	return s.Valid() && s != StatusPending && s != StatusCancelled
}

// TransitionTable maps a source status to the statuses it may move to.
type TransitionTable map[OrderStatus][]OrderStatus

// StrictTransitions only allows cancelling orders that were never paid.
var StrictTransitions = TransitionTable{
	StatusPending:    {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusProcessing},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// PreShipmentCancelTransitions extends StrictTransitions so paid orders may be cancelled until they ship.
func PreShipmentCancelTransitions() TransitionTable {
	table := make(TransitionTable, len(StrictTransitions))
	for from, targets := range StrictTransitions {
		table[from] = append([]OrderStatus(nil), targets...)
	}
	table[StatusPaid] = append(table[StatusPaid], StatusCancelled)
	table[StatusProcessing] = append(table[StatusProcessing], StatusCancelled)
	return table
}

func (t TransitionTable) Allows(from, to OrderStatus) bool {
	for _, target := range t[from] {
		if target == to {
			return true
		}
	}
	return false
}
