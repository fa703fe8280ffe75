package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"order-engine/internal/models"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		applied, err := e.store.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied: %s\n", strings.Join(applied, ", "))
		return nil
	}),
}

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Inspect and correct product stock",
}

var stockShowCmd = &cobra.Command{
	Use:   "show <product-id>",
	Short: "Show current stock and the movement journal",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		productID, err := parseID("product-id", args[0])
		if err != nil {
			return err
		}
		quantity, active, err := e.ledger.GetAvailable(cmd.Context(), productID)
		if err != nil {
			return err
		}
		movements, err := e.store.GetStockMovements(cmd.Context(), productID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"product_id": productID,
			"quantity":   quantity,
			"is_active":  active,
			"movements":  movements,
		})
	}),
}

var stockAdjustCmd = &cobra.Command{
	Use:   "adjust <product-id> <delta>",
	Short: "Apply a relative stock correction (clamped at zero)",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		productID, err := parseID("product-id", args[0])
		if err != nil {
			return err
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("delta must be an integer, got %q", args[1])
		}
		product, err := e.ledger.Adjust(cmd.Context(), productID, delta)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), product)
	}),
}

var stockSetCmd = &cobra.Command{
	Use:   "set <product-id> <quantity>",
	Short: "Set the absolute stock count",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		productID, err := parseID("product-id", args[0])
		if err != nil {
			return err
		}
		quantity, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity must be an integer, got %q", args[1])
		}
		product, err := e.ledger.SetAbsolute(cmd.Context(), productID, quantity)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), product)
	}),
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Inspect orders and change their status",
}

var orderShowCmd = &cobra.Command{
	Use:   "show <order-id>",
	Short: "Show an order with its items",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		orderID, err := parseID("order-id", args[0])
		if err != nil {
			return err
		}
		order, err := e.orders.GetOrder(cmd.Context(), orderID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), order)
	}),
}

var orderStatusCmd = &cobra.Command{
	Use:   "status <order-id> <status>",
	Short: "Move an order along the fulfillment track",
	Long: `Move an order along the fulfillment track:
PENDING, CONFIRMED, PROCESSING, SHIPPED, DELIVERED, CANCELLED.`,
	Args: cobra.ExactArgs(2),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		orderID, err := parseID("order-id", args[0])
		if err != nil {
			return err
		}
		status := models.OrderStatus(strings.ToUpper(args[1]))
		order, err := e.orders.UpdateOrderStatus(cmd.Context(), orderID, status)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), order)
	}),
}

var orderPaymentCmd = &cobra.Command{
	Use:   "payment <order-id> <status>",
	Short: "Move an order along the payment track (PENDING, PAID, FAILED, REFUNDED)",
	Args:  cobra.ExactArgs(2),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		orderID, err := parseID("order-id", args[0])
		if err != nil {
			return err
		}
		status := models.PaymentStatus(strings.ToUpper(args[1]))
		order, err := e.orders.UpdatePaymentStatus(cmd.Context(), orderID, status)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), order)
	}),
}

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage catalog products",
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete <product-id>",
	Short: "Delete a product, or deactivate it if orders, carts or reviews reference it",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		productID, err := parseID("product-id", args[0])
		if err != nil {
			return err
		}
		result, err := e.guard.DeleteProduct(cmd.Context(), productID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	}),
}

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Inspect user carts",
}

var cartValidateCmd = &cobra.Command{
	Use:   "validate <user-id>",
	Short: "Check every line of a user's cart against current stock",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(cmd *cobra.Command, e *engine, args []string) error {
		userID, err := parseID("user-id", args[0])
		if err != nil {
			return err
		}
		result, err := e.validator.ValidateCart(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if result.HasBlockingIssues() {
			return fmt.Errorf("cart for user %d cannot be checked out as is", userID)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	// negative deltas must not be parsed as flags
	stockAdjustCmd.Flags().SetInterspersed(false)
	stockCmd.AddCommand(stockShowCmd, stockAdjustCmd, stockSetCmd)
	rootCmd.AddCommand(stockCmd)

	orderCmd.AddCommand(orderShowCmd, orderStatusCmd, orderPaymentCmd)
	rootCmd.AddCommand(orderCmd)

	productCmd.AddCommand(productDeleteCmd)
	rootCmd.AddCommand(productCmd)

	cartCmd.AddCommand(cartValidateCmd)
	rootCmd.AddCommand(cartCmd)
}
