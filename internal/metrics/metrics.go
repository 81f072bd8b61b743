// Package metrics derives risk and return statistics from a finished run's
// equity curve and trade log. Every function is deterministic and
// side-effect free: identical inputs produce identical outputs, small
// samples yield nil rather than a division by zero.
package metrics

import (
	"math"
	"sort"

	"github.com/lanternworks/lantern-backtest/internal/types"
)

// TradingDaysPerYear is the annualization convention for daily bars.
const TradingDaysPerYear = 252

// RatioCap stands in for ratios whose denominator vanishes for a good
// reason: a run with no downside deviation or no losing trades.
const RatioCap = 9999.0

// Options carries the inputs Calculate cannot read off the curve itself.
type Options struct {
	// RiskFreeRate is the annual risk-free rate used by Sharpe and Sortino.
	RiskFreeRate float64
	// BenchmarkReturns is the benchmark's period-return series, aligned with
	// the portfolio's. Beta, alpha and information ratio stay nil without it.
	BenchmarkReturns []float64
}

func DefaultOptions() Options {
	return Options{RiskFreeRate: 0.02}
}

// Calculate computes the full metrics summary for a run.
func Calculate(curve []types.EquityCurvePoint, trades []types.TradeRecord, initialCapital float64, opts Options) types.PerformanceMetrics {
	returns := PeriodReturns(curve)
	totalReturn := TotalReturn(curve, initialCapital)
	annualized := AnnualizedReturn(totalReturn, len(returns))
	maxDrawdown := MaxDrawdown(curve, initialCapital)

	m := types.PerformanceMetrics{
		TotalReturn:             totalReturn,
		AnnualizedReturn:        annualized,
		Volatility:              Volatility(returns),
		SharpeRatio:             SharpeRatio(returns, opts.RiskFreeRate),
		SortinoRatio:            SortinoRatio(returns, annualized, opts.RiskFreeRate),
		CalmarRatio:             CalmarRatio(annualized, maxDrawdown),
		MaxDrawdown:             maxDrawdown,
		MaxDrawdownDurationDays: MaxDrawdownDuration(curve, initialCapital),
		VaR95:                   VaR95(returns),
		CVaR95:                  CVaR95(returns),
		Skewness:                Skewness(returns),
		Kurtosis:                Kurtosis(returns),
		WinRate:                 WinRate(trades),
		ProfitFactor:            ProfitFactor(trades),
		AverageWin:              AverageWin(trades),
		AverageLoss:             AverageLoss(trades),
		LargestWin:              LargestWin(trades),
		LargestLoss:             LargestLoss(trades),
		TotalTrades:             closedCount(trades),
		TotalCommissions:        TotalCommissions(trades),
	}

	if len(opts.BenchmarkReturns) > 0 {
		m.Beta, m.Alpha, m.InformationRatio = BenchmarkStats(returns, opts.BenchmarkReturns, opts.RiskFreeRate)
	}

	return m
}

// PeriodReturns is the series of consecutive portfolio-value changes along
// the curve, one observation per adjacent pair.
func PeriodReturns(curve []types.EquityCurvePoint) []float64 {
	if len(curve) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].PortfolioValue
		if prev == 0 {
			returns = append(returns, 0)

			continue
		}

		returns = append(returns, (curve[i].PortfolioValue-prev)/prev)
	}

	return returns
}

// TotalReturn is the final portfolio value relative to initial capital.
func TotalReturn(curve []types.EquityCurvePoint, initialCapital float64) float64 {
	if len(curve) == 0 || initialCapital == 0 {
		return 0
	}

	return (curve[len(curve)-1].PortfolioValue - initialCapital) / initialCapital
}

// AnnualizedReturn is the compound annual growth rate over periods
// observations, zero when there are none.
func AnnualizedReturn(totalReturn float64, periods int) float64 {
	if periods == 0 {
		return 0
	}

	base := 1 + totalReturn
	if base <= 0 {
		// A wiped-out account annualizes to a full loss.
		return -1
	}

	return math.Pow(base, TradingDaysPerYear/float64(periods)) - 1
}

// Volatility is the annualized sample standard deviation of period returns,
// zero below two observations.
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	return sampleStdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// SharpeRatio is the annualized mean excess return over the annualized
// volatility. Nil below two observations or when volatility is zero.
func SharpeRatio(returns []float64, riskFreeRate float64) *float64 {
	if len(returns) < 2 {
		return nil
	}

	stdDev := sampleStdDev(returns)
	if stdDev == 0 {
		return nil
	}

	excess := mean(returns) - riskFreeRate/TradingDaysPerYear

	return ptr(excess / stdDev * math.Sqrt(TradingDaysPerYear))
}

// SortinoRatio is the annualized excess return over the annualized downside
// deviation, computed from the risk-free-adjusted negative returns only.
// RatioCap when the run has no downside, nil when the series is empty.
func SortinoRatio(returns []float64, annualizedReturn, riskFreeRate float64) *float64 {
	if len(returns) == 0 {
		return nil
	}

	daily := riskFreeRate / TradingDaysPerYear

	var sumSquares float64

	downside := 0

	for _, r := range returns {
		if excess := r - daily; excess < 0 {
			sumSquares += excess * excess
			downside++
		}
	}

	if downside == 0 {
		return ptr(RatioCap)
	}

	deviation := math.Sqrt(sumSquares/float64(downside)) * math.Sqrt(TradingDaysPerYear)
	if deviation == 0 {
		return nil
	}

	return ptr((annualizedReturn - riskFreeRate) / deviation)
}

// CalmarRatio is the annualized return over the absolute max drawdown, nil
// when the run never drew down.
func CalmarRatio(annualizedReturn, maxDrawdown float64) *float64 {
	if maxDrawdown == 0 {
		return nil
	}

	return ptr(annualizedReturn / math.Abs(maxDrawdown))
}

// MaxDrawdown is the largest peak-to-trough relative decline along the
// curve, with the peak seeded at initial capital.
func MaxDrawdown(curve []types.EquityCurvePoint, initialCapital float64) float64 {
	peak := initialCapital

	var maxDrawdown float64

	for _, point := range curve {
		if point.PortfolioValue > peak {
			peak = point.PortfolioValue
		}

		if peak <= 0 {
			continue
		}

		if drawdown := (peak - point.PortfolioValue) / peak; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}

	return maxDrawdown
}

// MaxDrawdownDuration is the longest run of consecutive curve points below
// the running peak, in periods. Nil when equity never dips under its peak.
func MaxDrawdownDuration(curve []types.EquityCurvePoint, initialCapital float64) *int {
	peak := initialCapital
	streak, longest := 0, 0

	for _, point := range curve {
		switch {
		case point.PortfolioValue > peak:
			peak = point.PortfolioValue
			streak = 0
		case point.PortfolioValue < peak:
			streak++
			if streak > longest {
				longest = streak
			}
		default:
			streak = 0
		}
	}

	if longest == 0 {
		return nil
	}

	return &longest
}

// VaR95 is the 95% historical value at risk, reported as a positive loss.
// Nil below twenty observations.
func VaR95(returns []float64) *float64 {
	sorted, idx, ok := tailIndex(returns)
	if !ok {
		return nil
	}

	return ptr(-sorted[idx])
}

// CVaR95 is the mean loss in the tail at and beyond VaR95. Nil below twenty
// observations.
func CVaR95(returns []float64) *float64 {
	sorted, idx, ok := tailIndex(returns)
	if !ok {
		return nil
	}

	return ptr(-mean(sorted[:idx+1]))
}

// tailIndex sorts a copy of the returns ascending and locates the 5th
// percentile index for the historical-simulation tail metrics.
func tailIndex(returns []float64) ([]float64, int, bool) {
	if len(returns) < 20 {
		return nil, 0, false
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	return sorted, int(float64(len(sorted)) * 0.05), true
}

// Skewness is the third standardized moment of the returns, with population
// standard deviation. Nil below three observations or on a flat series.
func Skewness(returns []float64) *float64 {
	if len(returns) < 3 {
		return nil
	}

	return standardizedMoment(returns, 3)
}

// Kurtosis is the excess fourth standardized moment of the returns. Nil
// below four observations or on a flat series.
func Kurtosis(returns []float64) *float64 {
	if len(returns) < 4 {
		return nil
	}

	moment := standardizedMoment(returns, 4)
	if moment == nil {
		return nil
	}

	return ptr(*moment - 3)
}

func standardizedMoment(returns []float64, power int) *float64 {
	mu := mean(returns)
	stdDev := populationStdDev(returns, mu)

	if stdDev == 0 {
		return nil
	}

	var sum float64
	for _, r := range returns {
		sum += math.Pow((r-mu)/stdDev, float64(power))
	}

	return ptr(sum / float64(len(returns)))
}

// BenchmarkStats computes beta, annualized CAPM alpha and the annualized
// information ratio of the portfolio returns against the benchmark returns.
// The series are aligned from the start and truncated to the shorter one.
func BenchmarkStats(portfolio, benchmark []float64, riskFreeRate float64) (beta, alpha, informationRatio *float64) {
	n := len(portfolio)
	if len(benchmark) < n {
		n = len(benchmark)
	}

	if n < 2 {
		return nil, nil, nil
	}

	p, b := portfolio[:n], benchmark[:n]
	meanP, meanB := mean(p), mean(b)

	var covariance, varianceB float64

	diffs := make([]float64, n)

	for i := 0; i < n; i++ {
		dp, db := p[i]-meanP, b[i]-meanB
		covariance += dp * db
		varianceB += db * db
		diffs[i] = p[i] - b[i]
	}

	covariance /= float64(n - 1)
	varianceB /= float64(n - 1)

	if varianceB > 0 {
		beta = ptr(covariance / varianceB)

		daily := riskFreeRate / TradingDaysPerYear
		alpha = ptr((meanP - daily - *beta*(meanB-daily)) * TradingDaysPerYear)
	}

	if trackingError := sampleStdDev(diffs); trackingError > 0 {
		informationRatio = ptr(mean(diffs) / trackingError * math.Sqrt(TradingDaysPerYear))
	}

	return beta, alpha, informationRatio
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mu := mean(values)

	var sumSquares float64
	for _, v := range values {
		diff := v - mu
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(len(values)-1))
}

func populationStdDev(values []float64, mu float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sumSquares float64
	for _, v := range values {
		diff := v - mu
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(len(values)))
}

func ptr[T any](v T) *T {
	return &v
}
