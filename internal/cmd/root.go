package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"order-engine/config"
	"order-engine/internal/broker"
	"order-engine/internal/service"
	"order-engine/internal/store"
	"order-engine/internal/util"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storectl",
	Short: "Admin tool for the order engine",
	Long: `storectl runs the order engine's admin operations directly against the
database: schema migrations, stock corrections, order status changes,
product removal and cart checks.

Changes are published to Kafka when KAFKA_ENABLED is set, so running
servers evict their product caches.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// engine is the set of services a command runs against.
type engine struct {
	store     *store.Store
	ledger    *service.StockLedger
	validator *service.CartValidator
	orders    *service.OrderStateMachine
	guard     *service.CatalogGuard
	close     func()
}

func openEngine() (*engine, error) {
	cfg := config.Load()
	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := store.NewStore(cfg.Database.URL, 2, 1)
	if err != nil {
		return nil, err
	}

	var events service.EventPublisher
	closers := []func() error{db.Close}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		events = broker.NewEventPublisher(producer)
		closers = append([]func() error{producer.Close}, closers...)
	}

	ledger := service.NewStockLedger(db, events, nil)
	return &engine{
		store:     db,
		ledger:    ledger,
		validator: service.NewCartValidator(db),
		orders:    service.NewOrderStateMachine(db, ledger, events, nil),
		guard:     service.NewCatalogGuard(db, ledger, events, nil),
		close: func() {
			for _, c := range closers {
				c()
			}
			util.SyncLogger()
		},
	}, nil
}

// withEngine adapts a command body that needs the engine into a cobra RunE.
func withEngine(run func(cmd *cobra.Command, e *engine, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.close()
		return run(cmd, e, args)
	}
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
