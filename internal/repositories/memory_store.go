package repositories

import (
	"context"
	"sync"
	"time"

	"storefront/internal/models"
)

// MemoryStore is an in-memory Store used for local development and tests.
// Writes made inside a transaction are visible immediately and undone on rollback.
// GetForUpdate takes a per-order lock that is held until the transaction ends.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	users    map[string]models.User
	products map[string]memoryProduct
	orders   map[string]memoryOrder
	payments map[string]memoryPayment
	locks    *keyedMutex
	now      func() time.Time
}

type memoryProduct struct {
	product models.Product
	deleted bool
}

type memoryOrder struct {
	order models.Order
	seq   int64
}

type memoryPayment struct {
	record models.PaymentRecord
	seq    int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		products: make(map[string]memoryProduct),
		orders:   make(map[string]memoryOrder),
		payments: make(map[string]memoryPayment),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) repositories(tx *memoryTx) Repositories {
	return Repositories{
		Users:    &memoryUserRepository{store: s, tx: tx},
		Products: &memoryProductRepository{store: s, tx: tx},
		Orders:   &memoryOrderRepository{store: s, tx: tx},
		Payments: &memoryPaymentRepository{store: s, tx: tx},
	}
}

func (s *MemoryStore) Repositories() Repositories {
	return s.repositories(nil)
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(repos Repositories) error) (err error) {
	tx := &memoryTx{store: s}
	defer tx.unlock()
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(s.repositories(tx)); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx journals undo steps and the order locks taken by one transaction.
type memoryTx struct {
	store   *MemoryStore
	undo    []func()
	held    map[string]func()
	heldMus sync.Mutex
}

// record must be called with store.mu held for writing.
func (tx *memoryTx) record(undo func()) {
	if tx == nil {
		return
	}
	tx.undo = append(tx.undo, undo)
}

func (tx *memoryTx) rollback() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memoryTx) lock(ctx context.Context, key string) error {
	tx.heldMus.Lock()
	_, ok := tx.held[key]
	tx.heldMus.Unlock()
	if ok {
		return nil
	}
	unlock, err := tx.store.locks.lock(ctx, key)
	if err != nil {
		return err
	}
	tx.heldMus.Lock()
	if tx.held == nil {
		tx.held = make(map[string]func())
	}
	tx.held[key] = unlock
	tx.heldMus.Unlock()
	return nil
}

func (tx *memoryTx) unlock() {
	tx.heldMus.Lock()
	defer tx.heldMus.Unlock()
	for key, unlock := range tx.held {
		unlock()
		delete(tx.held, key)
	}
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]chan struct{})}
}

func (k *keyedMutex) lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	ch, ok := k.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.locks[key] = ch
	}
	k.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
