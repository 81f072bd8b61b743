package types

// PerformanceMetrics summarizes a backtest run. Pointer fields are nil when
// the sample is too small for the statistic to be meaningful, and the
// metrics engine documents each threshold.
type PerformanceMetrics struct {
	// TotalReturn is the fractional return on initial capital.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// AnnualizedReturn is the compound annual growth rate over the run.
	AnnualizedReturn float64 `yaml:"annualized_return" json:"annualized_return"`
	// Volatility is the annualized sample standard deviation of daily returns.
	Volatility float64 `yaml:"volatility" json:"volatility"`
	// SharpeRatio is nil with fewer than two return observations.
	SharpeRatio *float64 `yaml:"sharpe_ratio,omitempty" json:"sharpe_ratio,omitempty"`
	// SortinoRatio is nil with no return observations.
	SortinoRatio *float64 `yaml:"sortino_ratio,omitempty" json:"sortino_ratio,omitempty"`
	// CalmarRatio is nil when max drawdown is zero.
	CalmarRatio *float64 `yaml:"calmar_ratio,omitempty" json:"calmar_ratio,omitempty"`
	// MaxDrawdown is the largest peak-to-trough equity decline, as a fraction.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// MaxDrawdownDurationDays is nil when equity never dips below its peak.
	MaxDrawdownDurationDays *int `yaml:"max_drawdown_duration_days,omitempty" json:"max_drawdown_duration_days,omitempty"`
	// VaR95 is the 95% one-day value at risk, nil below 20 observations.
	VaR95 *float64 `yaml:"var_95,omitempty" json:"var_95,omitempty"`
	// CVaR95 is the expected loss beyond VaR95, nil below 20 observations.
	CVaR95 *float64 `yaml:"cvar_95,omitempty" json:"cvar_95,omitempty"`
	// Beta is nil without benchmark returns.
	Beta *float64 `yaml:"beta,omitempty" json:"beta,omitempty"`
	// Alpha is nil without benchmark returns.
	Alpha *float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	// InformationRatio is nil without benchmark returns.
	InformationRatio *float64 `yaml:"information_ratio,omitempty" json:"information_ratio,omitempty"`
	// Skewness is nil below 3 observations.
	Skewness *float64 `yaml:"skewness,omitempty" json:"skewness,omitempty"`
	// Kurtosis is excess kurtosis, nil below 4 observations.
	Kurtosis *float64 `yaml:"kurtosis,omitempty" json:"kurtosis,omitempty"`
	// WinRate is winning trades over total closed trades, zero with no trades.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// ProfitFactor is gross profit over gross loss, nil with no closed trades.
	ProfitFactor *float64 `yaml:"profit_factor,omitempty" json:"profit_factor,omitempty"`
	// AverageWin is the mean P&L of winning trades.
	AverageWin float64 `yaml:"average_win" json:"average_win"`
	// AverageLoss is the mean P&L of losing trades, reported negative.
	AverageLoss float64 `yaml:"average_loss" json:"average_loss"`
	// LargestWin is the best single-trade P&L.
	LargestWin float64 `yaml:"largest_win" json:"largest_win"`
	// LargestLoss is the worst single-trade P&L.
	LargestLoss float64 `yaml:"largest_loss" json:"largest_loss"`
	// TotalTrades counts closed round trips.
	TotalTrades int `yaml:"total_trades" json:"total_trades"`
	// TotalCommissions paid across the run.
	TotalCommissions float64 `yaml:"total_commissions" json:"total_commissions"`
}
