package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidCapital       ErrorCode = 102
	ErrCodeInvalidResolution    ErrorCode = 103
	ErrCodeInvalidTimeRange     ErrorCode = 104
	ErrCodeInvalidCommission    ErrorCode = 105
	ErrCodeInvalidSlippage      ErrorCode = 106
	ErrCodeInvalidLatency       ErrorCode = 107
	ErrCodeMissingParameter     ErrorCode = 108
	ErrCodeInvalidVersion       ErrorCode = 109

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNonMonotonicData      ErrorCode = 203
	ErrCodeMalformedBar          ErrorCode = 204
	ErrCodeNoDataFound           ErrorCode = 205
	ErrCodeMarkerNotAvailable    ErrorCode = 206

	// Scheduler errors (300-399)
	ErrCodeSchedulerNotInitialized     ErrorCode = 300
	ErrCodeSchedulerAlreadyInitialized ErrorCode = 301
	ErrCodeSchedulerComplete           ErrorCode = 302
	ErrCodeSchedulerNoFeeds            ErrorCode = 303
	ErrCodeFeedNotSorted               ErrorCode = 304

	// Strategy errors (400-499)
	ErrCodeStrategyNotFound     ErrorCode = 400
	ErrCodeStrategyConfigError  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402
	ErrCodeInsufficientData     ErrorCode = 403
	ErrCodeVersionMismatch      ErrorCode = 404

	// Order/execution errors (500-599)
	ErrCodeOrderRejected      ErrorCode = 500
	ErrCodeInvalidOrder       ErrorCode = 501
	ErrCodeInsufficientFunds  ErrorCode = 502
	ErrCodeMarketClosed       ErrorCode = 503
	ErrCodeOrderNotFound      ErrorCode = 504
	ErrCodeFractionalQuantity ErrorCode = 505

	// Portfolio errors (600-699)
	ErrCodePositionNotFound     ErrorCode = 600
	ErrCodeConservationViolated ErrorCode = 601
	ErrCodeMarkPriceMissing     ErrorCode = 602

	// Metrics errors (700-799)
	ErrCodeMetricsCalculation ErrorCode = 700

	// Backtest errors (800-899)
	ErrCodeBacktestStateNil     ErrorCode = 800
	ErrCodeBacktestInitFailed   ErrorCode = 801
	ErrCodeBacktestNoStrategies ErrorCode = 802
	ErrCodeBacktestNoConfigs    ErrorCode = 803
	ErrCodeBacktestNoDataPaths  ErrorCode = 804
	ErrCodeBacktestNoResultsDir ErrorCode = 805
	ErrCodeBacktestNoDatasource ErrorCode = 806
	ErrCodeCallbackFailed       ErrorCode = 807
)
