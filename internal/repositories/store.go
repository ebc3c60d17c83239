package repositories

import "context"

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Users    UserRepository
	Products ProductRepository
	Orders   OrderRepository
	Payments PaymentRepository
}

// Store hands out repositories, either standalone or bound to a transaction.
type Store interface {
	Repositories() Repositories
	// Transaction runs fn atomically. Any error returned by fn rolls back every write made through repos.
	Transaction(ctx context.Context, fn func(repos Repositories) error) error
}
