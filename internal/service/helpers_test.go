package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/store/memstore"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (p *recordingPublisher) record(eventType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishPaymentStatusChanged(ctx context.Context, e *models.PaymentStatusChangedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishStockChanged(ctx context.Context, e *models.StockChangedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) PublishProductRemoved(ctx context.Context, e *models.ProductRemovedEvent) error {
	return p.record(e.EventType)
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

func (p *recordingPublisher) count(eventType string) int {
	n := 0
	for _, t := range p.published() {
		if t == eventType {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = nil
}

type recordingCache struct {
	mu      sync.Mutex
	evicted []int64
}

func (c *recordingCache) InvalidateProduct(ctx context.Context, productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evicted = append(c.evicted, productID)
	return nil
}

func (c *recordingCache) evictions() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.evicted...)
}

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	acquired int
	released int
}

func newStubLocker() *stubLocker {
	return &stubLocker{held: make(map[string]string)}
}

func (l *stubLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.acquired++
	token := key + "-token"
	l.held[key] = token
	return token, true, nil
}

func (l *stubLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.released++
	}
	return nil
}

type testEnv struct {
	store     *memstore.Store
	events    *recordingPublisher
	cache     *recordingCache
	ledger    *StockLedger
	validator *CartValidator
	builder   *OrderBuilder
	orders    *OrderStateMachine
	guard     *CatalogGuard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLocker(t, nil)
}

func newTestEnvWithLocker(t *testing.T, locker CheckoutLocker) *testEnv {
	t.Helper()

	st := memstore.New()
	events := &recordingPublisher{}
	cache := &recordingCache{}
	ledger := NewStockLedger(st, events, cache)

	return &testEnv{
		store:     st,
		events:    events,
		cache:     cache,
		ledger:    ledger,
		validator: NewCartValidator(st),
		builder:   NewOrderBuilder(st, ledger, events, cache, locker, BuilderConfig{}),
		orders:    NewOrderStateMachine(st, ledger, events, cache),
		guard:     NewCatalogGuard(st, ledger, events, cache),
	}
}

func validAddress() models.ShippingAddress {
	return models.ShippingAddress{
		FullName:   "Ada Lovelace",
		Phone:      "+44 20 7946 0000",
		Line1:      "12 St James's Square",
		City:       "London",
		PostalCode: "SW1Y 4JH",
		Country:    "GB",
	}
}

func (e *testEnv) place(userID int64) (*models.Order, error) {
	return e.builder.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          userID,
		ShippingAddress: validAddress(),
	})
}

func (e *testEnv) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := e.store.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product %d: %v", productID, err)
	}
	if p.InStock != models.DeriveInStock(p.StockCount) {
		t.Fatalf("product %d: in_stock=%v with stock_count=%d", productID, p.InStock, p.StockCount)
	}
	return p.StockCount
}

func movementKinds(t *testing.T, e *testEnv, productID int64) []string {
	t.Helper()
	movements, err := e.store.GetStockMovements(context.Background(), productID)
	if err != nil {
		t.Fatalf("get movements: %v", err)
	}
	kinds := make([]string, 0, len(movements))
	for _, m := range movements {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}
