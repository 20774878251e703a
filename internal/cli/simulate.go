package cli

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/app"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
)

var (
	simulatePrices string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a price series through an in-memory pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrices == "" {
			return errors.New("--prices must be provided")
		}

		parts := strings.Split(simulatePrices, ",")
		prices := make([]*big.Int, 0, len(parts))
		for _, part := range parts {
			price, err := decimal.NewFromString(strings.TrimSpace(part))
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", part, err)
			}
			if price.Sign() <= 0 {
				return fmt.Errorf("price %q must be greater than 0", part)
			}
			prices = append(prices, fixedpoint.FromDecimal(price))
		}

		return getApp().Simulate(cmd.Context(), app.SimulateOptions{Prices: prices})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePrices, "prices", "", "Comma-separated price series in whole units, one per update slot")
}
