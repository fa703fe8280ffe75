package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"order-engine/internal/models"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PlaceOrderRequest is everything checkout needs besides the cart itself.
type PlaceOrderRequest struct {
	UserID          int64                  `json:"user_id" validate:"gt=0"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	Notes           string                 `json:"notes,omitempty" validate:"max=1000"`
	IdempotencyKey  string                 `json:"idempotency_key,omitempty" validate:"max=128"`
}

// BuilderConfig tunes checkout behavior.
type BuilderConfig struct {
	OrderNumberPrefix string
	Timeout           time.Duration
	CheckoutLockTTL   time.Duration
	// MaxAttempts bounds retries after an order number collision.
	MaxAttempts int
}

// OrderBuilder is the only writer that creates orders.
type OrderBuilder struct {
	repo           store.Repository
	ledger         *StockLedger
	locker         CheckoutLocker
	notify         notifier
	cfg            BuilderConfig
	newOrderNumber func() string
	logger         *zap.Logger
}

// NewOrderBuilder creates a new order builder. locker may be nil.
func NewOrderBuilder(
	repo store.Repository,
	ledger *StockLedger,
	events EventPublisher,
	cache ProductCache,
	locker CheckoutLocker,
	cfg BuilderConfig,
) *OrderBuilder {
	if cfg.OrderNumberPrefix == "" {
		cfg.OrderNumberPrefix = "ORD"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.CheckoutLockTTL <= 0 {
		cfg.CheckoutLockTTL = 30 * time.Second
	}

	prefix := cfg.OrderNumberPrefix
	return &OrderBuilder{
		repo:   repo,
		ledger: ledger,
		locker: locker,
		notify: newNotifier(events, cache),
		cfg:    cfg,
		newOrderNumber: func() string {
			return prefix + "-" + ulid.Make().String()
		},
		logger: util.GetLogger(),
	}
}

// PlaceOrder converts the user's cart into an order in one transaction.
// Either the order exists with all of its stock reserved and the cart cleared,
// or nothing changed.
func (b *OrderBuilder) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderBuilder.PlaceOrder", attribute.Int64("user_id", req.UserID))
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.PlaceOrderLatency.Observe(time.Since(start).Seconds())
	}()

	if err := validateStruct(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	if b.locker != nil {
		release, err := b.lockCheckout(ctx, req.UserID)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues(ErrorKind(err)).Inc()
			return nil, err
		}
		defer release()
	}

	var replayed bool
	for attempt := 1; ; attempt++ {
		fx := &effects{}
		order, replayed, err = b.placeOnce(ctx, req, fx)
		if err == nil {
			b.notify.flush(ctx, fx)
			break
		}
		if errors.Is(err, store.ErrDuplicate) && attempt < b.cfg.MaxAttempts {
			b.logger.Warn("Order insert collided, retrying",
				zap.Int64("user_id", req.UserID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		util.OrdersFailedTotal.WithLabelValues(ErrorKind(err)).Inc()
		b.logger.Info("Order placement rejected",
			zap.Int64("user_id", req.UserID),
			zap.String("reason", ErrorKind(err)),
			zap.Error(err))
		return nil, err
	}

	if replayed {
		util.OrderReplaysTotal.Inc()
		b.logger.Info("Duplicate checkout request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("order_id", order.ID))
		return order, nil
	}

	util.OrdersPlacedTotal.Inc()
	b.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.String()))
	return order, nil
}

// placeOnce runs a single checkout transaction attempt.
func (b *OrderBuilder) placeOnce(ctx context.Context, req PlaceOrderRequest, fx *effects) (*models.Order, bool, error) {
	var order *models.Order
	var replayed bool

	err := b.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		// The cart lock comes first so a concurrent request with the same key
		// sees the order committed by whoever held it.
		items, err := tx.LockCartItems(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}

		if req.IdempotencyKey != "" {
			existing, err := tx.GetOrderByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if err == nil {
				order, replayed = existing, true
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("failed to check idempotency: %w", err)
			}
		}

		if len(items) == 0 {
			return &EmptyCartError{UserID: req.UserID}
		}

		products, err := tx.LockProducts(ctx, cartProductIDs(items))
		if err != nil {
			return fmt.Errorf("failed to lock products: %w", err)
		}

		var shortages []StockShortage
		for _, item := range items {
			if s := checkReservation(item.ProductID, products[item.ProductID], item.Quantity); s != nil {
				shortages = append(shortages, *s)
			}
		}
		if len(shortages) > 0 {
			return &InsufficientStockError{Shortages: shortages}
		}

		built, lines := b.buildOrder(req, items, products)
		if err := tx.CreateOrder(ctx, built); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i := range lines {
			lines[i].OrderID = built.ID
			if err := tx.CreateOrderItem(ctx, &lines[i]); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}
		built.Items = lines

		orderID := built.ID
		cartIDs := make([]int64, 0, len(items))
		for _, item := range items {
			if err := b.ledger.apply(ctx, tx, fx, products[item.ProductID], -item.Quantity, models.MovementReserve, &orderID); err != nil {
				return err
			}
			cartIDs = append(cartIDs, item.ID)
		}

		if err := tx.DeleteCartItems(ctx, req.UserID, cartIDs); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		fx.emit(orderPlacedEvent(built))
		order = built
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return order, replayed, nil
}

// buildOrder snapshots prices and computes the total. Shipping is free.
func (b *OrderBuilder) buildOrder(
	req PlaceOrderRequest,
	items []models.CartItem,
	products map[int64]*models.Product,
) (*models.Order, []models.OrderItem) {
	lines := make([]models.OrderItem, 0, len(items))
	total := decimal.Zero
	for _, item := range items {
		product := products[item.ProductID]
		line := models.OrderItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Price:       product.Price,
		}
		total = total.Add(line.LineTotal())
		lines = append(lines, line)
	}

	order := &models.Order{
		OrderNumber:     b.newOrderNumber(),
		UserID:          req.UserID,
		Status:          models.OrderStatusPending,
		PaymentMethod:   models.PaymentMethodCOD,
		PaymentStatus:   models.PaymentStatusPending,
		TotalAmount:     total,
		ShippingAddress: req.ShippingAddress,
	}
	if req.Notes != "" {
		notes := req.Notes
		order.Notes = &notes
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}
	return order, lines
}

func (b *OrderBuilder) lockCheckout(ctx context.Context, userID int64) (func(), error) {
	key := fmt.Sprintf("checkout:%d", userID)
	token, ok, err := b.locker.AcquireLock(ctx, key, b.cfg.CheckoutLockTTL)
	if err != nil {
		// advisory only
		b.logger.Warn("Checkout lock unavailable, continuing without it",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, ErrCheckoutInProgress)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := b.locker.ReleaseLock(releaseCtx, key, token); err != nil {
			b.logger.Warn("Failed to release checkout lock",
				zap.Int64("user_id", userID),
				zap.Error(err))
		}
	}, nil
}

// cartProductIDs returns the distinct product ids of a cart in ascending order.
func cartProductIDs(items []models.CartItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func orderPlacedEvent(order *models.Order) func(ctx context.Context, p EventPublisher) error {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	event := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}
	return func(ctx context.Context, p EventPublisher) error {
		return p.PublishOrderPlaced(ctx, event)
	}
}
