package types

import "fmt"

// AssetClass groups instruments by their trading profile. The class decides
// the session window, fractional-quantity support, and the default venue.
type AssetClass string

const (
	AssetClassEquity    AssetClass = "equity"
	AssetClassCrypto    AssetClass = "crypto"
	AssetClassForex     AssetClass = "forex"
	AssetClassCommodity AssetClass = "commodity"
	AssetClassBond      AssetClass = "bond"
)

var AllAssetClasses = []any{
	AssetClassEquity,
	AssetClassCrypto,
	AssetClassForex,
	AssetClassCommodity,
	AssetClassBond,
}

// Is24x7 returns true if this asset class trades around the clock with no
// market close or weekends.
func (a AssetClass) Is24x7() bool {
	return a == AssetClassCrypto
}

// SupportsFractional returns true if this asset class supports fractional
// quantities natively.
func (a AssetClass) SupportsFractional() bool {
	return a == AssetClassCrypto || a == AssetClassForex
}

// DefaultExchange returns the default exchange identifier for this asset class.
func (a AssetClass) DefaultExchange() string {
	switch a {
	case AssetClassEquity:
		return "NASDAQ"
	case AssetClassCrypto:
		return "BINANCE"
	case AssetClassForex:
		return "FOREX"
	case AssetClassCommodity:
		return "CME"
	case AssetClassBond:
		return "NYSE"
	default:
		return ""
	}
}

// Symbol identifies one tradable instrument together with its asset-class
// metadata. Bars reference symbols by ticker only; the engine resolves the
// full Symbol from its configured universe.
type Symbol struct {
	Ticker     string     `yaml:"ticker" json:"ticker" validate:"required"`
	Exchange   string     `yaml:"exchange" json:"exchange"`
	AssetClass AssetClass `yaml:"asset_class" json:"asset_class" validate:"omitempty,oneof=equity crypto forex commodity bond"`
}

// NewSymbol creates a Symbol with an explicit exchange and asset class.
func NewSymbol(ticker, exchange string, assetClass AssetClass) Symbol {
	return Symbol{
		Ticker:     ticker,
		Exchange:   exchange,
		AssetClass: assetClass,
	}
}

// NewEquity creates an equity symbol on the default equity exchange.
func NewEquity(ticker string) Symbol {
	return NewSymbol(ticker, AssetClassEquity.DefaultExchange(), AssetClassEquity)
}

// NewCrypto creates a crypto symbol on the default crypto exchange.
func NewCrypto(ticker string) Symbol {
	return NewSymbol(ticker, AssetClassCrypto.DefaultExchange(), AssetClassCrypto)
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s:%s", s.Exchange, s.Ticker)
}
