package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/latency"
	"github.com/lanternworks/lantern-backtest/internal/backtest/engine/engine_v1/slippage"
	"github.com/lanternworks/lantern-backtest/internal/types"
	"github.com/lanternworks/lantern-backtest/internal/utils"
	"github.com/shopspring/decimal"
)

// pendingOrder is one accepted order waiting in the time-indexed queue.
type pendingOrder struct {
	order      types.Order
	symbol     types.Symbol
	eligibleAt time.Time
	seq        uint64
	// rested is set once the order survives an eligible evaluation without
	// filling; a rested limit order fills as maker.
	rested bool
	// triggered latches the stop condition for STOP and STOP_LIMIT orders.
	triggered bool
}

// ExecutionSimulator converts order intents into fills. Orders accepted by
// SubmitOrder wait in a pending queue until their latency-adjusted eligible
// time; ProcessBatch evaluates every due order against the batch's bars and
// emits at most one fill per order. Liquidity is unlimited at the adjusted
// price, so fills are always for the full quantity.
type ExecutionSimulator struct {
	state            *BacktestState
	commission       commission_fee.CommissionFee
	makerTaker       commission_fee.CommissionFee
	broker           commission_fee.Broker
	slippage         slippage.Slippage
	latency          latency.Latency
	marketHours      types.MarketHours
	policy           MarketHoursPolicy
	universe         map[string]types.Symbol
	decimalPrecision int
	strategyName     string
	cash             float64
	pending          []*pendingOrder
	seq              uint64
}

// NewExecutionSimulator builds the friction models from the configuration.
// The cash view starts at the initial capital; the orchestrator keeps it in
// sync with the ledger via SetCash.
func NewExecutionSimulator(state *BacktestState, config BacktestEngineV1Config, strategyName string) *ExecutionSimulator {
	universe := make(map[string]types.Symbol, len(config.Symbols))
	for _, symbol := range config.Symbols {
		universe[symbol.Ticker] = symbol
	}

	composed := slippage.NewComposed(
		slippage.GetSlippageHandler(config.Execution.Slippage),
		slippage.GetMarketImpactHandler(config.Execution.Impact),
	)

	return &ExecutionSimulator{
		state:            state,
		commission:       commission_fee.GetCommissionFeeHandler(config.Broker),
		makerTaker:       commission_fee.NewMakerTakerCommissionFee(commission_fee.DefaultMakerRate, commission_fee.DefaultTakerRate),
		broker:           config.Broker,
		slippage:         composed,
		latency:          latency.GetLatencyHandler(config.Execution.Latency),
		marketHours:      config.MarketHours,
		policy:           config.MarketHoursPolicy,
		universe:         universe,
		decimalPrecision: config.DecimalPrecision,
		strategyName:     strategyName,
		cash:             config.InitialCapital,
	}
}

// SetCash syncs the simulator's cash view with the ledger. Within a batch the
// simulator depletes its own view as fills are emitted, so two buys in one
// batch cannot both spend the same dollar.
func (s *ExecutionSimulator) SetCash(cash float64) {
	s.cash = cash
}

// SubmitOrder validates an intent and queues the resulting order. Invalid
// intents come back REJECTED with a recorded reason; rejections are non-fatal
// and the returned error is reserved for state I/O failures.
func (s *ExecutionSimulator) SubmitOrder(intent types.OrderIntent, now time.Time) (types.Order, error) {
	order := types.NewOrder(intent, s.strategyName, now)

	if err := intent.Validate(); err != nil {
		return s.reject(order, intentRejectionReason(intent), err.Error())
	}

	symbol := s.resolveSymbol(intent.Symbol)

	quantity := utils.RoundToDecimalPrecision(intent.Quantity, s.decimalPrecision)
	if quantity <= 0 {
		return s.reject(order, types.OrderReasonInvalidQuantity,
			fmt.Sprintf("quantity %f is zero after rounding to %d decimals", intent.Quantity, s.decimalPrecision))
	}

	if !symbol.AssetClass.SupportsFractional() && quantity != math.Trunc(quantity) {
		return s.reject(order, types.OrderReasonFractionalQuantity,
			fmt.Sprintf("%s orders require whole units, got %f", symbol.AssetClass, quantity))
	}

	order.Quantity = quantity
	order.RemainingQuantity = quantity

	eligible := now.Add(s.latency.Delay(symbol.Exchange))

	if !s.marketHours.IsOpen(now, symbol.AssetClass) {
		if s.policy == MarketHoursPolicyReject {
			return s.reject(order, types.OrderReasonMarketClosed,
				fmt.Sprintf("market for %s is closed at %s", symbol.Ticker, now.UTC().Format(time.RFC3339)))
		}

		if nextOpen := s.marketHours.NextOpen(now, symbol.AssetClass); nextOpen.After(eligible) {
			eligible = nextOpen
		}
	}

	order.Status = types.OrderStatusSubmitted

	if err := s.state.RecordOrder(order); err != nil {
		return order, err
	}

	s.seq++
	s.pending = append(s.pending, &pendingOrder{
		order:      order,
		symbol:     symbol,
		eligibleAt: eligible,
		seq:        s.seq,
	})

	return order, nil
}

// ProcessBatch evaluates the pending queue against one event batch. Orders are
// visited in (eligible time, symbol, sequence) order so two runs over the same
// stream produce identical fills.
func (s *ExecutionSimulator) ProcessBatch(event types.Event) ([]types.Fill, error) {
	if len(s.pending) == 0 {
		return nil, nil
	}

	sort.SliceStable(s.pending, func(i, j int) bool {
		a, b := s.pending[i], s.pending[j]
		if !a.eligibleAt.Equal(b.eligibleAt) {
			return a.eligibleAt.Before(b.eligibleAt)
		}

		if a.order.Symbol != b.order.Symbol {
			return a.order.Symbol < b.order.Symbol
		}

		return a.seq < b.seq
	})

	now := event.Time

	var (
		fills     []types.Fill
		remaining []*pendingOrder
	)

	for _, p := range s.pending {
		// DAY orders die at the first batch on a later date, due or not
		if p.order.TimeInForce == types.TimeInForceDay && !sameUTCDay(p.order.SubmittedAt, now) {
			p.order.Status = types.OrderStatusExpired
			p.order.Reason = types.Reason{Reason: types.OrderReasonExpired, Message: "day order expired at day change"}

			if err := s.state.UpdateOrder(p.order); err != nil {
				return fills, err
			}

			continue
		}

		if p.eligibleAt.After(now) {
			remaining = append(remaining, p)
			continue
		}

		bar, ok := event.Bar(p.order.Symbol)
		if !ok {
			if p.order.TimeInForce == types.TimeInForceIOC {
				if err := s.cancelPending(p, "no bar for symbol when eligible"); err != nil {
					return fills, err
				}

				continue
			}

			p.rested = true
			remaining = append(remaining, p)

			continue
		}

		refPrice, fillable := s.evaluate(p, bar)
		if !fillable {
			if p.order.TimeInForce == types.TimeInForceIOC {
				if err := s.cancelPending(p, "not fillable when eligible"); err != nil {
					return fills, err
				}

				continue
			}

			p.rested = true
			remaining = append(remaining, p)

			continue
		}

		execPrice := s.slippage.Adjust(refPrice, p.order.Side, p.order.Quantity, bar.Volume)

		liquidity := types.LiquidityTaker
		if p.rested && (p.order.OrderType == types.OrderTypeLimit || p.order.OrderType == types.OrderTypeStopLimit) {
			liquidity = types.LiquidityMaker
		}

		fee := s.commissionFor(p.symbol.AssetClass).Calculate(p.order.Quantity, execPrice, liquidity)

		if p.order.IsBuy() {
			cost := decimal.NewFromFloat(p.order.Quantity).
				Mul(decimal.NewFromFloat(execPrice)).
				Add(decimal.NewFromFloat(fee))

			if cost.GreaterThan(decimal.NewFromFloat(s.cash)) {
				p.order.Status = types.OrderStatusRejected
				p.order.Reason = types.Reason{
					Reason:  types.OrderReasonInsufficientFunds,
					Message: fmt.Sprintf("cost %s exceeds available cash %.2f", cost.StringFixed(2), s.cash),
				}

				if err := s.state.UpdateOrder(p.order); err != nil {
					return fills, err
				}

				continue
			}
		}

		fill := types.NewFill(p.order, p.order.Quantity, execPrice, fee, liquidity, now)

		p.order.Fill(p.order.Quantity, execPrice)

		if err := s.state.UpdateOrder(p.order); err != nil {
			return fills, err
		}

		s.cash += fill.NetAmount()
		fills = append(fills, fill)
	}

	s.pending = remaining

	return fills, nil
}

// evaluate decides whether the order can fill against this bar and at what
// reference price, before slippage.
func (s *ExecutionSimulator) evaluate(p *pendingOrder, bar types.MarketData) (float64, bool) {
	order := &p.order
	mid := bar.Mid()

	switch order.OrderType {
	case types.OrderTypeMarket:
		return mid, true

	case types.OrderTypeLimit:
		limit := order.LimitPrice.Unwrap()
		if order.IsBuy() && bar.Low <= limit {
			return limit, true
		}

		if order.IsSell() && bar.High >= limit {
			return limit, true
		}

		return 0, false

	case types.OrderTypeStop:
		if !s.triggerStop(p, bar) {
			return 0, false
		}

		// A triggered stop fills as market at the more adverse of stop and mid
		stop := order.StopPrice.Unwrap()
		if order.IsBuy() {
			return math.Max(stop, mid), true
		}

		return math.Min(stop, mid), true

	case types.OrderTypeStopLimit:
		if !s.triggerStop(p, bar) {
			return 0, false
		}

		limit := order.LimitPrice.Unwrap()
		if order.IsBuy() && bar.Low <= limit {
			return limit, true
		}

		if order.IsSell() && bar.High >= limit {
			return limit, true
		}

		return 0, false
	}

	return 0, false
}

// triggerStop latches the stop condition: buys trigger when the bar trades at
// or above the stop, sells at or below.
func (s *ExecutionSimulator) triggerStop(p *pendingOrder, bar types.MarketData) bool {
	if p.triggered {
		return true
	}

	stop := p.order.StopPrice.Unwrap()
	if p.order.IsBuy() && bar.High >= stop {
		p.triggered = true
	}

	if p.order.IsSell() && bar.Low <= stop {
		p.triggered = true
	}

	return p.triggered
}

// CancelOrder cancels one pending order by id. Unknown or already resolved
// ids are a no-op.
func (s *ExecutionSimulator) CancelOrder(orderID string) error {
	for i, p := range s.pending {
		if p.order.ID != orderID {
			continue
		}

		if err := s.cancelPending(p, "cancelled by strategy"); err != nil {
			return err
		}

		s.pending = append(s.pending[:i], s.pending[i+1:]...)

		return nil
	}

	return nil
}

// CancelAllOrders cancels every pending order, recording each transition.
func (s *ExecutionSimulator) CancelAllOrders() error {
	for _, p := range s.pending {
		if err := s.cancelPending(p, "cancelled"); err != nil {
			return err
		}
	}

	s.pending = nil

	return nil
}

func (s *ExecutionSimulator) cancelPending(p *pendingOrder, message string) error {
	reason := types.OrderReasonCancelled
	if p.order.TimeInForce == types.TimeInForceIOC {
		reason = types.OrderReasonImmediateOrCancel
	}

	p.order.Cancel()
	p.order.Reason = types.Reason{Reason: reason, Message: message}

	return s.state.UpdateOrder(p.order)
}

// PendingOrders returns a snapshot of the queue in evaluation order.
func (s *ExecutionSimulator) PendingOrders() []types.Order {
	orders := make([]types.Order, 0, len(s.pending))
	for _, p := range s.pending {
		orders = append(orders, p.order)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].SubmittedAt.Equal(orders[j].SubmittedAt) {
			return orders[i].Symbol < orders[j].Symbol
		}

		return orders[i].SubmittedAt.Before(orders[j].SubmittedAt)
	})

	return orders
}

// Reset clears the queue and restores the cash view for a fresh run.
func (s *ExecutionSimulator) Reset(cash float64) {
	s.pending = nil
	s.cash = cash
	s.seq = 0
}

// resolveSymbol returns the universe entry for a ticker. Tickers outside the
// configured universe trade as plain equities.
func (s *ExecutionSimulator) resolveSymbol(ticker string) types.Symbol {
	if symbol, ok := s.universe[ticker]; ok {
		return symbol
	}

	return types.NewEquity(ticker)
}

// commissionFor picks the commission model for an asset class. Share-based
// models do not fit venues quoting fractional units, so fractional classes
// fall back to the maker/taker pair.
func (s *ExecutionSimulator) commissionFor(class types.AssetClass) commission_fee.CommissionFee {
	if class.SupportsFractional() && (s.broker == commission_fee.BrokerStandard || s.broker == commission_fee.BrokerInteractiveBroker) {
		return s.makerTaker
	}

	return s.commission
}

func (s *ExecutionSimulator) reject(order types.Order, reason string, message string) (types.Order, error) {
	order.Status = types.OrderStatusRejected
	order.Reason = types.Reason{Reason: reason, Message: message}

	if err := s.state.RecordOrder(order); err != nil {
		return order, err
	}

	return order, nil
}

// intentRejectionReason maps a failed validation onto a recorded reason.
func intentRejectionReason(intent types.OrderIntent) string {
	if intent.Quantity <= 0 {
		return types.OrderReasonInvalidQuantity
	}

	needsLimit := intent.OrderType == types.OrderTypeLimit || intent.OrderType == types.OrderTypeStopLimit
	needsStop := intent.OrderType == types.OrderTypeStop || intent.OrderType == types.OrderTypeStopLimit

	switch {
	case needsLimit && intent.LimitPrice.IsNone(),
		needsStop && intent.StopPrice.IsNone(),
		intent.OrderType == types.OrderTypeMarket && (intent.LimitPrice.IsSome() || intent.StopPrice.IsSome()),
		intent.LimitPrice.IsSome() && intent.LimitPrice.Unwrap() <= 0,
		intent.StopPrice.IsSome() && intent.StopPrice.Unwrap() <= 0:
		return types.OrderReasonInvalidPrice
	}

	return types.OrderReasonInvalidOrder
}

func sameUTCDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()

	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
