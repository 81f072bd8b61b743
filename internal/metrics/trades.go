package metrics

import "github.com/lanternworks/lantern-backtest/internal/types"

// Trade-derived statistics. Every helper skips round trips that are still
// open (nil Pnl), except TotalCommissions which counts fees already paid.

// WinRate is the fraction of closed trades with positive P&L, zero when no
// trades closed.
func WinRate(trades []types.TradeRecord) float64 {
	closed, wins := 0, 0

	for _, trade := range trades {
		if trade.Pnl == nil {
			continue
		}

		closed++

		if *trade.Pnl > 0 {
			wins++
		}
	}

	if closed == 0 {
		return 0
	}

	return float64(wins) / float64(closed)
}

// ProfitFactor is gross profit over gross loss. RatioCap when every closed
// trade won, nil when no trade closed with a non-zero result.
func ProfitFactor(trades []types.TradeRecord) *float64 {
	var grossProfit, grossLoss float64

	for _, trade := range trades {
		if trade.Pnl == nil {
			continue
		}

		switch {
		case *trade.Pnl > 0:
			grossProfit += *trade.Pnl
		case *trade.Pnl < 0:
			grossLoss += -*trade.Pnl
		}
	}

	switch {
	case grossLoss > 0:
		return ptr(grossProfit / grossLoss)
	case grossProfit > 0:
		return ptr(RatioCap)
	default:
		return nil
	}
}

// AverageWin is the mean P&L of winning trades, zero when there are none.
func AverageWin(trades []types.TradeRecord) float64 {
	var sum float64

	count := 0

	for _, trade := range trades {
		if trade.Pnl != nil && *trade.Pnl > 0 {
			sum += *trade.Pnl
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// AverageLoss is the mean P&L of losing trades, reported negative. Zero when
// there are none.
func AverageLoss(trades []types.TradeRecord) float64 {
	var sum float64

	count := 0

	for _, trade := range trades {
		if trade.Pnl != nil && *trade.Pnl < 0 {
			sum += *trade.Pnl
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// LargestWin is the best single closed-trade P&L, zero when nothing won.
func LargestWin(trades []types.TradeRecord) float64 {
	var largest float64

	for _, trade := range trades {
		if trade.Pnl != nil && *trade.Pnl > largest {
			largest = *trade.Pnl
		}
	}

	return largest
}

// LargestLoss is the worst single closed-trade P&L, zero when nothing lost.
func LargestLoss(trades []types.TradeRecord) float64 {
	var largest float64

	for _, trade := range trades {
		if trade.Pnl != nil && *trade.Pnl < largest {
			largest = *trade.Pnl
		}
	}

	return largest
}

// TotalCommissions sums the fees across all trades, open ones included.
func TotalCommissions(trades []types.TradeRecord) float64 {
	var total float64
	for _, trade := range trades {
		total += trade.Commission
	}

	return total
}

func closedCount(trades []types.TradeRecord) int {
	count := 0

	for _, trade := range trades {
		if trade.Pnl != nil {
			count++
		}
	}

	return count
}
