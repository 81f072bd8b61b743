package utils

import (
	"math"

	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/lanternworks/lantern-backtest/internal/types"
)

// CalculateMaxQuantity calculates the maximum quantity that can be bought with
// the given balance, net of commission.
func CalculateMaxQuantity(balance float64, price float64, commissionFee commission_fee.CommissionFee) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}

	// Initial rough estimate (ignoring fees)
	maxQty := balance / price

	// Commission depends on quantity, so refine iteratively; converges quickly
	for i := 0; i < 10; i++ {
		totalCost := maxQty*price + commissionFee.Calculate(maxQty, price, types.LiquidityTaker)
		if totalCost <= balance {
			break
		}

		maxQty = maxQty * (balance / totalCost)
	}

	return maxQty
}

// RoundToDecimalPrecision floors the quantity to the specified decimal
// precision, so rounding never overspends.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// CalculateOrderQuantityByPercentage calculates the quantity affordable with
// the given percentage of the balance.
func CalculateOrderQuantityByPercentage(balance float64, price float64, commissionFee commission_fee.CommissionFee, percentage float64) float64 {
	quantity := balance * percentage

	return CalculateMaxQuantity(quantity, price, commissionFee)
}
