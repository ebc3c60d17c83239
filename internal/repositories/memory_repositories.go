package repositories

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
)

type memoryUserRepository struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r *memoryUserRepository) Create(_ context.Context, user *models.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("failed to create user: duplicate username or email")
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	id := user.ID
	r.tx.record(func() { delete(s.users, id) })
	return nil
}

func (r *memoryUserRepository) find(match func(models.User) bool, key string) (*models.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, u := range r.store.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user", key)
}

func (r *memoryUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username }, username)
}

func (r *memoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email }, email)
}

func (r *memoryUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id }, id)
}

type memoryProductRepository struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r *memoryProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	productList := make([]models.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		if !p.deleted {
			productList = append(productList, p.product)
		}
	}
	sort.Slice(productList, func(i, j int) bool { return productList[i].Name < productList[j].Name })
	return productList, nil
}

func (r *memoryProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.products[id]
	if !ok || p.deleted {
		return nil, apperrors.NotFound("product", id)
	}
	product := p.product
	return &product, nil
}

// modify applies change to a stored product and journals revert. Both run with store.mu held,
// and revert only undoes this change so writes committed by other transactions survive a rollback.
func (r *memoryProductRepository) modify(id string, change, revert func(*memoryProduct)) {
	s := r.store
	entry := s.products[id]
	change(&entry)
	s.products[id] = entry
	r.tx.record(func() {
		if current, ok := s.products[id]; ok {
			revert(&current)
			s.products[id] = current
		}
	})
}

func (r *memoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	product.CreatedAt = r.store.now()
	product.UpdatedAt = product.CreatedAt
	s := r.store
	id := product.ID
	s.products[id] = memoryProduct{product: *product}
	r.tx.record(func() { delete(s.products, id) })
	return nil
}

func (r *memoryProductRepository) Update(_ context.Context, product *models.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.products[product.ID]
	if !ok || current.deleted {
		return apperrors.NotFound("product", product.ID)
	}
	prev := current.product
	now := r.store.now()
	r.modify(product.ID, func(e *memoryProduct) {
		e.product.Name = product.Name
		e.product.Description = product.Description
		e.product.Price = product.Price
		e.product.DiscountPercent = product.DiscountPercent
		e.product.UpdatedAt = now
	}, func(e *memoryProduct) {
		e.product.Name = prev.Name
		e.product.Description = prev.Description
		e.product.Price = prev.Price
		e.product.DiscountPercent = prev.DiscountPercent
		e.product.UpdatedAt = prev.UpdatedAt
	})
	*product = r.store.products[product.ID].product
	return nil
}

func (r *memoryProductRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.products[id]
	if !ok || current.deleted {
		return apperrors.NotFound("product", id)
	}
	r.modify(id, func(e *memoryProduct) { e.deleted = true }, func(e *memoryProduct) { e.deleted = false })
	return nil
}

func (r *memoryProductRepository) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.products[id]
	if !ok || current.deleted || current.product.Stock < qty {
		return false, nil
	}
	r.modify(id, func(e *memoryProduct) { e.product.Stock -= qty }, func(e *memoryProduct) { e.product.Stock += qty })
	return true, nil
}

func (r *memoryProductRepository) IncrementStock(_ context.Context, id string, qty int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[id]; !ok {
		return apperrors.NotFound("product", id)
	}
	r.modify(id, func(e *memoryProduct) { e.product.Stock += qty }, func(e *memoryProduct) { e.product.Stock -= qty })
	return nil
}

type memoryOrderRepository struct {
	store *MemoryStore
	tx    *memoryTx
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func (r *memoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, ok := r.store.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	order := cloneOrder(entry.order)
	return &order, nil
}

func (r *memoryOrderRepository) GetForUpdate(ctx context.Context, id string) (*models.Order, error) {
	if r.tx != nil {
		if err := r.tx.lock(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to lock order %s: %w", id, err)
		}
	}
	return r.GetByID(ctx, id)
}

func (r *memoryOrderRepository) list(page Page, match func(models.Order) bool) ([]models.Order, int64) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := make([]memoryOrder, 0)
	for _, e := range r.store.orders {
		if match(e.order) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].order.CreatedAt.Equal(entries[j].order.CreatedAt) {
			return entries[i].order.CreatedAt.After(entries[j].order.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	page = page.Normalize()
	total := int64(len(entries))
	orders := make([]models.Order, 0, page.Limit)
	for i := page.Offset(); i < len(entries) && len(orders) < page.Limit; i++ {
		orders = append(orders, cloneOrder(entries[i].order))
	}
	return orders, total
}

func (r *memoryOrderRepository) ListByUser(_ context.Context, userID string, page Page) ([]models.Order, int64, error) {
	orders, total := r.list(page, func(o models.Order) bool { return o.UserID == userID })
	return orders, total, nil
}

func (r *memoryOrderRepository) ListAll(_ context.Context, page Page) ([]models.Order, int64, error) {
	orders, total := r.list(page, func(models.Order) bool { return true })
	return orders, total, nil
}

// put replaces an order entry and journals the previous one. Callers hold store.mu.
func (r *memoryOrderRepository) put(id string, next *memoryOrder) {
	s := r.store
	prev, existed := s.orders[id]
	if next == nil {
		delete(s.orders, id)
	} else {
		s.orders[id] = *next
	}
	r.tx.record(func() {
		if existed {
			s.orders[id] = prev
		} else {
			delete(s.orders, id)
		}
	})
}

func (r *memoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, exists := r.store.orders[order.ID]; exists {
		return fmt.Errorf("failed to create order: order %s already exists", order.ID)
	}
	prepareItems(order.ID, order.Items)
	order.CreatedAt = r.store.now()
	order.UpdatedAt = order.CreatedAt
	r.put(order.ID, &memoryOrder{order: cloneOrder(*order), seq: r.store.nextSeq()})
	return nil
}

func (r *memoryOrderRepository) Save(_ context.Context, order *models.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[order.ID]
	if !ok {
		return apperrors.NotFound("order", order.ID)
	}
	next := cloneOrder(*order)
	next.Items = current.order.Items
	next.CreatedAt = current.order.CreatedAt
	next.UpdatedAt = r.store.now()
	order.UpdatedAt = next.UpdatedAt
	r.put(order.ID, &memoryOrder{order: next, seq: current.seq})
	return nil
}

func (r *memoryOrderRepository) ReplaceItems(_ context.Context, orderID string, items []models.OrderItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[orderID]
	if !ok {
		return apperrors.NotFound("order", orderID)
	}
	prepareItems(orderID, items)
	next := current
	next.order.Items = append([]models.OrderItem(nil), items...)
	r.put(orderID, &next)
	return nil
}

func (r *memoryOrderRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.orders[id]; !ok {
		return apperrors.NotFound("order", id)
	}
	r.put(id, nil)
	return nil
}

type memoryPaymentRepository struct {
	store *MemoryStore
	tx    *memoryTx
}

func (r *memoryPaymentRepository) put(id string, next memoryPayment) {
	s := r.store
	prev, existed := s.payments[id]
	s.payments[id] = next
	r.tx.record(func() {
		if existed {
			s.payments[id] = prev
		} else {
			delete(s.payments, id)
		}
	})
}

func (r *memoryPaymentRepository) Create(_ context.Context, record *models.PaymentRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.CreatedAt = r.store.now()
	record.UpdatedAt = record.CreatedAt
	r.put(record.ID, memoryPayment{record: *record, seq: r.store.nextSeq()})
	return nil
}

func (r *memoryPaymentRepository) Update(_ context.Context, record *models.PaymentRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.payments[record.ID]
	if !ok {
		return apperrors.NotFound("payment", record.ID)
	}
	record.UpdatedAt = r.store.now()
	r.put(record.ID, memoryPayment{record: *record, seq: current.seq})
	return nil
}

func (r *memoryPaymentRepository) byOrder(orderID string, match func(models.PaymentRecord) bool) []memoryPayment {
	entries := make([]memoryPayment, 0)
	for _, e := range r.store.payments {
		if e.record.OrderID == orderID && match(e.record) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries
}

func (r *memoryPaymentRepository) Latest(_ context.Context, orderID, provider string) (*models.PaymentRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := r.byOrder(orderID, func(p models.PaymentRecord) bool { return p.Provider == provider })
	if len(entries) == 0 {
		return nil, nil
	}
	record := entries[len(entries)-1].record
	return &record, nil
}

func (r *memoryPaymentRepository) ListByOrder(_ context.Context, orderID string) ([]models.PaymentRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := r.byOrder(orderID, func(models.PaymentRecord) bool { return true })
	records := make([]models.PaymentRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.record)
	}
	return records, nil
}
