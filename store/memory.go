package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	models "github.com/sagrvma/bookstore/model"
)

// MemoryStore keeps everything in process. A transaction holds the store
// exclusively and works on a private copy that replaces the shared state
// only on commit, so a failed unit of work leaves nothing behind.
type MemoryStore struct {
	sem   chan struct{}
	state *memState
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type memState struct {
	nextCartID  int64
	nextOrderID int64
	books       map[int64]models.Book
	carts       map[string]models.Cart
	orders      map[int64]models.Order
	numbers     map[string]int64
}

func NewMemoryStore(books ...models.Book) *MemoryStore {
	s := &MemoryStore{
		sem: make(chan struct{}, 1),
		state: &memState{
			nextCartID:  1,
			nextOrderID: 1,
			books:       make(map[int64]models.Book),
			carts:       make(map[string]models.Cart),
			orders:      make(map[int64]models.Order),
			numbers:     make(map[string]int64),
		},
		now: time.Now,
	}
	for _, b := range books {
		s.state.books[b.ID] = b
	}
	return s
}

// PutBook inserts or replaces a catalog entry.
func (s *MemoryStore) PutBook(b models.Book) {
	s.sem <- struct{}{}
	defer s.release()
	s.state.books[b.ID] = b
}

func (s *MemoryStore) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return &wrapped{sentinel: ErrConflict, err: ctx.Err()}
	}
}

func (s *MemoryStore) release() { <-s.sem }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	working := s.state.clone()
	if err := fn(ctx, &memTx{st: working, now: s.now}); err != nil {
		return classify(err)
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}
	s.state = working
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// auto runs fn as a single-statement transaction.
func (s *MemoryStore) auto(ctx context.Context, fn func(tx *memTx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	return fn(&memTx{st: s.state, now: s.now})
}

func (s *MemoryStore) GetCartByUser(ctx context.Context, userID string) (c *models.Cart, err error) {
	err = s.auto(ctx, func(tx *memTx) error {
		c, err = tx.GetCartByUser(ctx, userID)
		return err
	})
	return c, err
}

func (s *MemoryStore) CreateCart(ctx context.Context, userID string) (c *models.Cart, err error) {
	err = s.auto(ctx, func(tx *memTx) error {
		c, err = tx.CreateCart(ctx, userID)
		return err
	})
	return c, err
}

func (s *MemoryStore) PutCartLine(ctx context.Context, cartID int64, line models.CartLine) error {
	return s.auto(ctx, func(tx *memTx) error { return tx.PutCartLine(ctx, cartID, line) })
}

func (s *MemoryStore) DeleteCartLine(ctx context.Context, cartID, bookID int64) error {
	return s.auto(ctx, func(tx *memTx) error { return tx.DeleteCartLine(ctx, cartID, bookID) })
}

func (s *MemoryStore) ClearCart(ctx context.Context, userID string) error {
	return s.auto(ctx, func(tx *memTx) error { return tx.ClearCart(ctx, userID) })
}

func (s *MemoryStore) GetBook(ctx context.Context, bookID int64) (b *models.Book, err error) {
	err = s.auto(ctx, func(tx *memTx) error {
		b, err = tx.GetBook(ctx, bookID)
		return err
	})
	return b, err
}

func (s *MemoryStore) DecrementStock(ctx context.Context, bookID int64, qty int) error {
	return s.auto(ctx, func(tx *memTx) error { return tx.DecrementStock(ctx, bookID, qty) })
}

func (s *MemoryStore) IncrementStock(ctx context.Context, bookID int64, qty int) error {
	return s.auto(ctx, func(tx *memTx) error { return tx.IncrementStock(ctx, bookID, qty) })
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o *models.Order) error {
	return s.auto(ctx, func(tx *memTx) error { return tx.CreateOrder(ctx, o) })
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderID int64) (o *models.Order, err error) {
	err = s.auto(ctx, func(tx *memTx) error {
		o, err = tx.GetOrder(ctx, orderID)
		return err
	})
	return o, err
}

func (s *MemoryStore) GetOrderForUser(ctx context.Context, orderID int64, userID string) (o *models.Order, err error) {
	err = s.auto(ctx, func(tx *memTx) error {
		o, err = tx.GetOrderForUser(ctx, orderID, userID)
		return err
	})
	return o, err
}

func (s *MemoryStore) CountOrdersCreatedBetween(ctx context.Context, start, end time.Time) (n int, err error) {
	err = s.auto(ctx, func(tx *memTx) error {
		n, err = tx.CountOrdersCreatedBetween(ctx, start, end)
		return err
	})
	return n, err
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	return s.auto(ctx, func(tx *memTx) error { return tx.UpdateOrderStatus(ctx, orderID, status) })
}

func (s *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) (out []models.Order, total int, err error) {
	err = s.auto(ctx, func(tx *memTx) error {
		out, total, err = tx.ListOrders(ctx, f)
		return err
	})
	return out, total, err
}

func (st *memState) clone() *memState {
	cp := &memState{
		nextCartID:  st.nextCartID,
		nextOrderID: st.nextOrderID,
		books:       make(map[int64]models.Book, len(st.books)),
		carts:       make(map[string]models.Cart, len(st.carts)),
		orders:      make(map[int64]models.Order, len(st.orders)),
		numbers:     make(map[string]int64, len(st.numbers)),
	}
	for k, v := range st.books {
		cp.books[k] = v
	}
	for k, v := range st.carts {
		cp.carts[k] = copyCart(v)
	}
	for k, v := range st.orders {
		cp.orders[k] = copyOrder(v)
	}
	for k, v := range st.numbers {
		cp.numbers[k] = v
	}
	return cp
}

func copyCart(c models.Cart) models.Cart {
	c.Items = append([]models.CartLine{}, c.Items...)
	return c
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderLine{}, o.Items...)
	return o
}

// memTx operates on whichever state it was given; callers hold the store.
type memTx struct {
	st  *memState
	now func() time.Time
}

func (t *memTx) GetCartByUser(_ context.Context, userID string) (*models.Cart, error) {
	c, ok := t.st.carts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	c = copyCart(c)
	return &c, nil
}

func (t *memTx) CreateCart(ctx context.Context, userID string) (*models.Cart, error) {
	if _, ok := t.st.carts[userID]; !ok {
		now := t.now()
		t.st.carts[userID] = models.Cart{
			ID:        t.st.nextCartID,
			UserID:    userID,
			Items:     []models.CartLine{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		t.st.nextCartID++
	}
	return t.GetCartByUser(ctx, userID)
}

func (t *memTx) cartByID(cartID int64) (models.Cart, bool) {
	for _, c := range t.st.carts {
		if c.ID == cartID {
			return c, true
		}
	}
	return models.Cart{}, false
}

func (t *memTx) PutCartLine(_ context.Context, cartID int64, line models.CartLine) error {
	if line.Quantity < 1 || line.Quantity > models.MaxLineQuantity {
		return errors.New("quantity out of range")
	}
	c, ok := t.cartByID(cartID)
	if !ok {
		return ErrNotFound
	}
	items := make([]models.CartLine, 0, len(c.Items)+1)
	for _, it := range c.Items {
		if it.BookID != line.BookID {
			items = append(items, it)
		}
	}
	items = append(items, line)
	sort.Slice(items, func(i, j int) bool { return items[i].BookID < items[j].BookID })
	c.Items = items
	t.st.carts[c.UserID] = c
	return nil
}

func (t *memTx) DeleteCartLine(_ context.Context, cartID, bookID int64) error {
	c, ok := t.cartByID(cartID)
	if !ok {
		return ErrNotFound
	}
	items := make([]models.CartLine, 0, len(c.Items))
	for _, it := range c.Items {
		if it.BookID != bookID {
			items = append(items, it)
		}
	}
	if len(items) == len(c.Items) {
		return ErrNotFound
	}
	c.Items = items
	t.st.carts[c.UserID] = c
	return nil
}

func (t *memTx) ClearCart(_ context.Context, userID string) error {
	c, ok := t.st.carts[userID]
	if !ok {
		return nil
	}
	c.Items = []models.CartLine{}
	c.UpdatedAt = t.now()
	t.st.carts[userID] = c
	return nil
}

func (t *memTx) GetBook(_ context.Context, bookID int64) (*models.Book, error) {
	b, ok := t.st.books[bookID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (t *memTx) DecrementStock(_ context.Context, bookID int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be > 0")
	}
	b, ok := t.st.books[bookID]
	if !ok || b.Stock < qty {
		return ErrStockRefused
	}
	b.Stock -= qty
	t.st.books[bookID] = b
	return nil
}

func (t *memTx) IncrementStock(_ context.Context, bookID int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be > 0")
	}
	b, ok := t.st.books[bookID]
	if !ok {
		return ErrNotFound
	}
	b.Stock += qty
	t.st.books[bookID] = b
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, o *models.Order) error {
	if len(o.Items) == 0 {
		return errors.New("order has no items")
	}
	if _, taken := t.st.numbers[o.OrderNumber]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderNumber, o.OrderNumber)
	}
	o.ID = t.st.nextOrderID
	t.st.nextOrderID++
	t.st.orders[o.ID] = copyOrder(*o)
	t.st.numbers[o.OrderNumber] = o.ID
	return nil
}

func (t *memTx) GetOrder(_ context.Context, orderID int64) (*models.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (t *memTx) GetOrderForUser(ctx context.Context, orderID int64, userID string) (*models.Order, error) {
	o, err := t.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (t *memTx) CountOrdersCreatedBetween(_ context.Context, start, end time.Time) (int, error) {
	n := 0
	for _, o := range t.st.orders {
		if !o.CreatedAt.Before(start) && !o.CreatedAt.After(end) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, orderID int64, status models.OrderStatus) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = t.now()
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) ListOrders(_ context.Context, f OrderFilter) ([]models.Order, int, error) {
	var matched []models.Order
	for _, o := range t.st.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, copyOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Offset >= total {
		return []models.Order{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < total {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}
